package model

import (
	"encoding/json"
	"fmt"
)

// Connector modes.
const (
	ModeSource      = "SOURCE"
	ModeDestination = "DESTINATION"
)

// SourceConnector is the channel's single inbound endpoint.
type SourceConnector struct {
	Version         string           `json:"@version,omitempty"`
	MetaDataID      Int              `json:"metaDataId"` // Always 0 for the source
	Name            string           `json:"name"`
	Properties      SourceProperties `json:"properties"`    // Variant selected by TransportName
	Transformer     *Transformer     `json:"transformer"`
	Filter          *Filter          `json:"filter"`
	TransportName   string           `json:"transportName"` // Discriminator, e.g. "File Reader"
	Mode            string           `json:"mode"`
	Enabled         bool             `json:"enabled"`
	WaitForPrevious bool             `json:"waitForPrevious"`
	Extra           Extra            `json:"-"`
}

type sourceConnectorAlias SourceConnector

func (s *SourceConnector) UnmarshalJSON(b []byte) error {
	var raw struct {
		*sourceConnectorAlias
		Properties json.RawMessage `json:"properties"`
	}
	raw.sourceConnectorAlias = (*sourceConnectorAlias)(s)
	if err := decodeObject(b, &raw, &s.Extra); err != nil {
		return err
	}
	props, err := DecodeSourceProperties(raw.Properties)
	if err != nil {
		return fmt.Errorf("sourceConnector.properties: %w", err)
	}
	s.Properties = props
	return nil
}

func (s SourceConnector) MarshalJSON() ([]byte, error) {
	return encodeObject(sourceConnectorAlias(s), s.Extra)
}

// Kind returns the source variant kind, falling back to the transport name.
func (s *SourceConnector) Kind() SourceKind {
	if s == nil {
		return ""
	}
	if s.Properties != nil {
		if k := s.Properties.Kind(); k != "" {
			return k
		}
	}
	return SourceKind(s.TransportName)
}

// DestinationConnector is one outbound endpoint, addressed by MetaDataID.
type DestinationConnector struct {
	Version             string                `json:"@version,omitempty"`
	MetaDataID          Int                   `json:"metaDataId"` // Stable id, independent of list position
	Name                string                `json:"name"`
	Properties          DestinationProperties `json:"properties"`
	Transformer         *Transformer          `json:"transformer"`
	ResponseTransformer *Transformer          `json:"responseTransformer"`
	Filter              *Filter               `json:"filter"`
	TransportName       string                `json:"transportName"`
	Mode                string                `json:"mode"`
	Enabled             bool                  `json:"enabled"`
	WaitForPrevious     bool                  `json:"waitForPrevious"`
	Extra               Extra                 `json:"-"`
}

type destinationConnectorAlias DestinationConnector

func (d *DestinationConnector) UnmarshalJSON(b []byte) error {
	var raw struct {
		*destinationConnectorAlias
		Properties json.RawMessage `json:"properties"`
	}
	raw.destinationConnectorAlias = (*destinationConnectorAlias)(d)
	if err := decodeObject(b, &raw, &d.Extra); err != nil {
		return err
	}
	props, err := DecodeDestinationProperties(raw.Properties)
	if err != nil {
		return fmt.Errorf("destinationConnector %d properties: %w", d.MetaDataID, err)
	}
	d.Properties = props
	return nil
}

func (d DestinationConnector) MarshalJSON() ([]byte, error) {
	return encodeObject(destinationConnectorAlias(d), d.Extra)
}

// Kind returns the destination variant kind, falling back to the transport name.
func (d *DestinationConnector) Kind() DestinationKind {
	if d == nil {
		return ""
	}
	if d.Properties != nil {
		if k := d.Properties.Kind(); k != "" {
			return k
		}
	}
	return DestinationKind(d.TransportName)
}

// Rule kind tags used as keys of filter.elements.
const (
	RuleKindJavaScript     = "com.mirth.connect.plugins.javascriptrule.JavaScriptRule"
	RuleKindExternalScript = "com.mirth.connect.plugins.scriptfilerule.ExternalScriptRule"
	RuleKindRuleBuilder    = "com.mirth.connect.plugins.rulebuilder.RuleBuilderRule"
	StepKindJavaScript     = "com.mirth.connect.plugins.javascriptstep.JavaScriptStep"
)

// Filter decides whether a message continues through the connector.
type Filter struct {
	Version  string          `json:"@version,omitempty"`
	Elements *FilterElements `json:"elements"`
	Extra    Extra           `json:"-"`
}

type filterAlias Filter

func (f *Filter) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*filterAlias)(f), &f.Extra)
}

func (f Filter) MarshalJSON() ([]byte, error) {
	return encodeObject(filterAlias(f), f.Extra)
}

// FilterElements partitions filter rules by kind. Sequence numbers are shared
// across the partitions.
type FilterElements struct {
	JavaScriptRules     List[JavaScriptRule]     `json:"com.mirth.connect.plugins.javascriptrule.JavaScriptRule,omitempty"`
	ExternalScriptRules List[ExternalScriptRule] `json:"com.mirth.connect.plugins.scriptfilerule.ExternalScriptRule,omitempty"`
	RuleBuilderRules    List[RuleBuilderRule]    `json:"com.mirth.connect.plugins.rulebuilder.RuleBuilderRule,omitempty"`
	Extra               Extra                    `json:"-"`
}

type filterElementsAlias FilterElements

func (e *FilterElements) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*filterElementsAlias)(e), &e.Extra)
}

func (e FilterElements) MarshalJSON() ([]byte, error) {
	return encodeObject(filterElementsAlias(e), e.Extra)
}

// Len returns the number of rules across all partitions.
func (e *FilterElements) Len() int {
	if e == nil {
		return 0
	}
	return len(e.JavaScriptRules) + len(e.ExternalScriptRules) + len(e.RuleBuilderRules)
}

// RuleBase holds the fields every filter rule kind shares.
type RuleBase struct {
	Version        string `json:"@version,omitempty"`
	Name           string `json:"name"`
	SequenceNumber Int    `json:"sequenceNumber"`
	Enabled        bool   `json:"enabled"`
	Operator       string `json:"operator,omitempty"` // AND, OR; ignored on the first rule
}

// JavaScriptRule accepts a message when its script returns true.
type JavaScriptRule struct {
	RuleBase
	Script *string `json:"script"`
}

// ExternalScriptRule runs a script file from disk.
type ExternalScriptRule struct {
	RuleBase
	ScriptPath string `json:"scriptPath"`
}

// RuleBuilderRule compares a message field against values.
type RuleBuilderRule struct {
	RuleBase
	Field     string   `json:"field"`
	Condition string   `json:"condition"`
	Values    *Strings `json:"values,omitempty"`
}

// Transformer rewrites messages between the inbound and outbound data types.
type Transformer struct {
	Version            string               `json:"@version,omitempty"`
	Elements           *TransformerElements `json:"elements"`
	InboundTemplate    json.RawMessage      `json:"inboundTemplate,omitempty"`
	OutboundTemplate   json.RawMessage      `json:"outboundTemplate,omitempty"`
	InboundDataType    string               `json:"inboundDataType"`
	OutboundDataType   string               `json:"outboundDataType"`
	InboundProperties  json.RawMessage      `json:"inboundProperties,omitempty"`
	OutboundProperties json.RawMessage      `json:"outboundProperties,omitempty"`
	Extra              Extra                `json:"-"`
}

type transformerAlias Transformer

func (t *Transformer) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*transformerAlias)(t), &t.Extra)
}

func (t Transformer) MarshalJSON() ([]byte, error) {
	return encodeObject(transformerAlias(t), t.Extra)
}

// TransformerElements holds transformer steps. Step kinds the console does not
// edit stay in Extra.
type TransformerElements struct {
	JavaScriptSteps List[JavaScriptStep] `json:"com.mirth.connect.plugins.javascriptstep.JavaScriptStep,omitempty"`
	Extra           Extra                `json:"-"`
}

type transformerElementsAlias TransformerElements

func (e *TransformerElements) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*transformerElementsAlias)(e), &e.Extra)
}

func (e TransformerElements) MarshalJSON() ([]byte, error) {
	return encodeObject(transformerElementsAlias(e), e.Extra)
}

// JavaScriptStep is one transformer script step.
type JavaScriptStep struct {
	Version        string  `json:"@version,omitempty"`
	Name           string  `json:"name"`
	SequenceNumber Int     `json:"sequenceNumber"`
	Enabled        bool    `json:"enabled"`
	Script         *string `json:"script"`
}
