package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/relaycore/channel-console/internal/model"
)

type countingObserver struct{ valid, invalid int }

func (c *countingObserver) ObserveValidation(err error) {
	if err != nil {
		c.invalid++
	} else {
		c.valid++
	}
}

func TestValidateChannel(t *testing.T) {
	obs := &countingObserver{}
	v, err := NewValidator(obs)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		mutate  func(c *model.Channel)
		wantErr string
	}{
		{"new channel", func(c *model.Channel) {}, ""},
		{"blank name", func(c *model.Channel) { c.Name = "   " }, "name"},
		{"no id", func(c *model.Channel) { c.ID = "" }, "id"},
		{"no source", func(c *model.Channel) { c.SourceConnector = nil }, "sourceConnector"},
		{"no destinations", func(c *model.Channel) { c.DestinationConnectors = nil }, "destinationConnectors"},
		{"no metadata", func(c *model.Channel) { c.ExportData.Metadata = nil }, "metadata"},
		{"bad storage mode", func(c *model.Channel) { c.Properties.MessageStorageMode = "FOREVER" }, "messageStorageMode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := model.NewChannel("Lab")
			tt.mutate(c)
			err := v.ValidateChannel(c)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateChannel() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("ValidateChannel() = %v, want ErrInvalid", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %s", err, tt.wantErr)
			}
		})
	}

	if obs.valid != 1 || obs.invalid != len(tests)-1 {
		t.Errorf("observed valid=%d invalid=%d", obs.valid, obs.invalid)
	}
}

func TestValidateChannelNil(t *testing.T) {
	v, _ := NewValidator(nil)
	if err := v.ValidateChannel(nil); !errors.Is(err, ErrInvalid) {
		t.Errorf("ValidateChannel(nil) = %v", err)
	}
}

func TestValidateGlobalScripts(t *testing.T) {
	v, _ := NewValidator(nil)
	g := (&model.GlobalScripts{}).With("Deploy", "return;")
	if err := v.ValidateGlobalScripts(g); err != nil {
		t.Errorf("valid scripts rejected: %v", err)
	}
	if err := v.ValidateGlobalScripts(&model.GlobalScripts{}); !errors.Is(err, ErrInvalid) {
		t.Errorf("scripts without map accepted: %v", err)
	}
}

func TestUnknownKind(t *testing.T) {
	v, _ := NewValidator(nil)
	if err := v.Validate("codeTemplate", map[string]string{}); err == nil || errors.Is(err, ErrInvalid) {
		t.Errorf("Validate(unknown) = %v", err)
	}
}
