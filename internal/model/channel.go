// Package model defines the channel document exchanged with the integration
// engine's REST API, its connector variants and the list/status records the
// console derives from it.
//
// Every object the console edits keeps the keys it does not model in an Extra
// bag so a document read from the engine is written back without losing fields.
package model

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Channel is one configured message-processing pipeline.
type Channel struct {
	Version               string                 `json:"@version,omitempty"`
	ID                    string                 `json:"id"`                 // Server-assigned, never mutated by the console
	NextMetaDataID        Int                    `json:"nextMetaDataId"`     // Next free destination metaDataId
	Name                  string                 `json:"name"`               // Display name
	Description           string                 `json:"description"`        // Free text
	Revision              Int                    `json:"revision"`           // Server-owned, read-only
	SourceConnector       *SourceConnector       `json:"sourceConnector"`    // Exactly one source
	DestinationConnectors *DestinationConnectors `json:"destinationConnectors"`
	PreprocessingScript   *string                `json:"preprocessingScript"`
	PostprocessingScript  *string                `json:"postprocessingScript"`
	DeployScript          *string                `json:"deployScript"`
	UndeployScript        *string                `json:"undeployScript"`
	Properties            *ChannelProperties     `json:"properties"`
	ExportData            *ExportData            `json:"exportData"`
	Extra                 Extra                  `json:"-"`
}

type channelAlias Channel

func (c *Channel) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*channelAlias)(c), &c.Extra)
}

func (c Channel) MarshalJSON() ([]byte, error) {
	return encodeObject(channelAlias(c), c.Extra)
}

// Destinations returns the destination connectors, or nil when the document has none.
func (c *Channel) Destinations() []*DestinationConnector {
	if c == nil || c.DestinationConnectors == nil {
		return nil
	}
	return c.DestinationConnectors.Connector
}

// Destination finds a destination connector by metaDataId.
func (c *Channel) Destination(metaDataID int64) *DestinationConnector {
	for _, d := range c.Destinations() {
		if d != nil && int64(d.MetaDataID) == metaDataID {
			return d
		}
	}
	return nil
}

// DestinationConnectors wraps the ordered destination list.
type DestinationConnectors struct {
	Connector List[*DestinationConnector] `json:"connector"`
}

// UnmarshalJSON accepts "" for a channel without destinations.
func (d *DestinationConnectors) UnmarshalJSON(b []byte) error {
	if isEmptyJSON(bytes.TrimSpace(b)) {
		*d = DestinationConnectors{}
		return nil
	}
	type alias DestinationConnectors
	return json.Unmarshal(b, (*alias)(d))
}

// ChannelProperties holds channel-wide processing settings.
type ChannelProperties struct {
	Version                        string                `json:"@version,omitempty"`
	ClearGlobalChannelMap          bool                  `json:"clearGlobalChannelMap"`
	MessageStorageMode             string                `json:"messageStorageMode"` // DEVELOPMENT, PRODUCTION, RAW, METADATA, DISABLED
	EncryptData                    bool                  `json:"encryptData"`
	EncryptAttachments             bool                  `json:"encryptAttachments"`
	EncryptCustomMetaData          bool                  `json:"encryptCustomMetaData"`
	RemoveContentOnCompletion      bool                  `json:"removeContentOnCompletion"`
	RemoveOnlyFilteredOnCompletion bool                  `json:"removeOnlyFilteredOnCompletion"`
	RemoveAttachmentsOnCompletion  bool                  `json:"removeAttachmentsOnCompletion"`
	InitialState                   string                `json:"initialState"` // STARTED, PAUSED, STOPPED
	StoreAttachments               bool                  `json:"storeAttachments"`
	MetaDataColumns                *MetaDataColumns      `json:"metaDataColumns"`
	AttachmentProperties           *AttachmentProperties `json:"attachmentProperties"`
	ResourceIDs                    *Map[StringEntry]     `json:"resourceIds,omitempty"`
	Extra                          Extra                 `json:"-"`
}

type channelPropertiesAlias ChannelProperties

func (p *ChannelProperties) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*channelPropertiesAlias)(p), &p.Extra)
}

func (p ChannelProperties) MarshalJSON() ([]byte, error) {
	return encodeObject(channelPropertiesAlias(p), p.Extra)
}

// MetaDataColumns wraps the custom metadata column list.
type MetaDataColumns struct {
	MetaDataColumn List[MetaDataColumn] `json:"metaDataColumn"`
}

// MetaDataColumn is one custom metadata column.
type MetaDataColumn struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // STRING, NUMBER, BOOLEAN, TIMESTAMP
	MappingName string `json:"mappingName"`
}

// AttachmentProperties selects the attachment handler.
type AttachmentProperties struct {
	Version    string          `json:"@version,omitempty"`
	ClassName  *string         `json:"className,omitempty"`
	Type       string          `json:"type"`
	Properties json.RawMessage `json:"properties"`
}

// ExportData carries metadata the engine stores next to the channel.
type ExportData struct {
	Metadata      *Metadata       `json:"metadata"`
	DependentIDs  json.RawMessage `json:"dependentIds,omitempty"`
	DependencyIDs json.RawMessage `json:"dependencyIds,omitempty"`
	ChannelTags   json.RawMessage `json:"channelTags"` // Free text or the engine's tag list
	Extra         Extra           `json:"-"`
}

type exportDataAlias ExportData

func (e *ExportData) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*exportDataAlias)(e), &e.Extra)
}

func (e ExportData) MarshalJSON() ([]byte, error) {
	return encodeObject(exportDataAlias(e), e.Extra)
}

// Metadata is exportData.metadata.
type Metadata struct {
	Enabled         bool             `json:"enabled"`
	LastModified    *LastModified    `json:"lastModified,omitempty"` // Server-owned
	PruningSettings *PruningSettings `json:"pruningSettings"`
	UserID          *Int             `json:"userId,omitempty"`
	Extra           Extra            `json:"-"`
}

type metadataAlias Metadata

func (m *Metadata) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*metadataAlias)(m), &m.Extra)
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	return encodeObject(metadataAlias(m), m.Extra)
}

// LastModified is the engine's calendar encoding.
type LastModified struct {
	Time     Int    `json:"time"`
	Timezone string `json:"timezone"`
}

// PruningSettings controls message retention. A nil day count means the data is
// stored indefinitely.
type PruningSettings struct {
	PruneMetaDataDays    *Int `json:"pruneMetaDataDays,omitempty"`
	PruneContentDays     *Int `json:"pruneContentDays,omitempty"`
	ArchiveEnabled       bool `json:"archiveEnabled"`
	PruneErroredMessages bool `json:"pruneErroredMessages"`
}

// ChannelTag is one structured tag attached to channels.
type ChannelTag struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	ChannelIDs      *Strings        `json:"channelIds,omitempty"`
	BackgroundColor json.RawMessage `json:"backgroundColor,omitempty"`
}

// TagNames returns the channel's tags, never nil. Tags stored as free text are
// split on commas; structured tags contribute their names.
func (c *Channel) TagNames() []string {
	names := []string{}
	if c == nil || c.ExportData == nil || isEmptyJSON(bytes.TrimSpace(c.ExportData.ChannelTags)) {
		return names
	}
	raw := c.ExportData.ChannelTags

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		for _, t := range strings.Split(text, ",") {
			if t = strings.TrimSpace(t); t != "" {
				names = append(names, t)
			}
		}
		return names
	}

	var structured struct {
		ChannelTag List[ChannelTag] `json:"channelTag"`
	}
	if err := json.Unmarshal(raw, &structured); err == nil {
		for _, t := range structured.ChannelTag {
			names = append(names, t.Name)
		}
	}
	return names
}
