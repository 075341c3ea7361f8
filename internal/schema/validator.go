// Package schema validates channel documents and global scripts against
// JSON schemas before they are sent to the engine.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/relaycore/channel-console/internal/model"
)

// Document kinds with a schema.
const (
	KindChannel       = "channel"
	KindGlobalScripts = "globalScripts"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("document rejected by schema")

// channelSchema lists what the engine needs to accept a channel on save.
const channelSchema = `{
  "type": "object",
  "required": ["id", "name", "properties", "sourceConnector", "destinationConnectors", "exportData"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "name": {"type": "string", "pattern": "\\S"},
    "properties": {
      "type": "object",
      "properties": {
        "messageStorageMode": {"enum": ["", "DEVELOPMENT", "PRODUCTION", "RAW", "METADATA", "DISABLED"]}
      }
    },
    "sourceConnector": {
      "type": "object",
      "required": ["properties"],
      "properties": {"properties": {"type": "object"}}
    },
    "destinationConnectors": {
      "type": "object",
      "required": ["connector"],
      "properties": {
        "connector": {
          "oneOf": [
            {"$ref": "#/definitions/destination"},
            {"type": "array", "minItems": 1, "items": {"$ref": "#/definitions/destination"}}
          ]
        }
      }
    },
    "exportData": {
      "type": "object",
      "required": ["metadata"],
      "properties": {"metadata": {"type": "object"}}
    }
  },
  "definitions": {
    "destination": {
      "type": "object",
      "required": ["metaDataId", "properties"],
      "properties": {
        "metaDataId": {"type": ["integer", "string"]},
        "properties": {"type": "object"}
      }
    }
  }
}`

const globalScriptsSchema = `{
  "type": "object",
  "required": ["map"],
  "properties": {
    "map": {
      "type": "object",
      "properties": {
        "entry": {
          "type": ["object", "array"]
        }
      }
    }
  }
}`

// Observer records validation outcomes.
type Observer interface {
	ObserveValidation(err error)
}

// Validator validates documents against compiled JSON schemas.
type Validator struct {
	schemas  map[string]*gojsonschema.Schema
	observer Observer
}

// NewValidator compiles the built-in schemas. obs may be nil.
func NewValidator(obs Observer) (*Validator, error) {
	v := &Validator{schemas: make(map[string]*gojsonschema.Schema), observer: obs}
	for kind, src := range map[string]string{
		KindChannel:       channelSchema,
		KindGlobalScripts: globalScriptsSchema,
	} {
		if err := v.loadSchema(kind, src); err != nil {
			return nil, fmt.Errorf("failed to load schemas: %w", err)
		}
	}
	return v, nil
}

// loadSchema parses and compiles the schema of one document kind.
func (v *Validator) loadSchema(kind, schemaJSON string) error {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return fmt.Errorf("invalid schema for %s: %w", kind, err)
	}
	v.schemas[kind] = schema
	return nil
}

// Validate checks a document of the given kind. doc is anything that
// marshals to JSON.
func (v *Validator) Validate(kind string, doc interface{}) error {
	err := v.validate(kind, doc)
	if v.observer != nil {
		v.observer.ObserveValidation(err)
	}
	return err
}

func (v *Validator) validate(kind string, doc interface{}) error {
	schema, exists := v.schemas[kind]
	if !exists {
		return fmt.Errorf("schema not found for document kind: %s", kind)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", kind, err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}
	return nil
}

// ValidateChannel checks a channel document before save.
func (v *Validator) ValidateChannel(ch *model.Channel) error {
	if ch == nil {
		return fmt.Errorf("%w: no channel", ErrInvalid)
	}
	return v.Validate(KindChannel, ch)
}

// ValidateGlobalScripts checks the global scripts document before save.
func (v *Validator) ValidateGlobalScripts(g *model.GlobalScripts) error {
	if g == nil {
		return fmt.Errorf("%w: no global scripts", ErrInvalid)
	}
	return v.Validate(KindGlobalScripts, g)
}
