package workflow

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/relaycore/channel-console/internal/mirth"
	"github.com/relaycore/channel-console/internal/model"
)

// PersistChannel saves ch on the engine, then fetches the stored copy. The
// fetched copy is returned; when the fetch fails the update response is used
// instead, and when that holds no channel either, ch itself. A failed fetch
// never undoes the save.
func (r *Runner) PersistChannel(ctx context.Context, ch *model.Channel) (*model.Channel, error) {
	if ch == nil {
		return nil, errors.New("Failed to update channel: no channel loaded")
	}
	var out *model.Channel
	err := r.observe(ctx, "persist_channel", channelAttrs(ch.ID), func(ctx context.Context) error {
		if r.validator != nil {
			if err := r.validator.ValidateChannel(ch); err != nil {
				return fmt.Errorf("Failed to update channel: %w", err)
			}
		}
		resp, err := r.engine.UpdateChannel(ctx, ch, r.now())
		if err != nil {
			return fmt.Errorf("Failed to update channel: %w", err)
		}

		canonical, err := r.engine.GetChannel(ctx, ch.ID)
		if err == nil && canonical != nil {
			out = canonical
			return nil
		}
		r.logger.Warn("refetch after save failed, using update response", "channel_id", ch.ID, "error", err)

		fallback, derr := mirth.DecodeChannel(resp)
		if derr != nil || fallback == nil {
			fallback = ch
		}
		out = fallback
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Channel name rules for new channels.
var (
	ErrNameRequired = errors.New("Channel name is required")
	ErrNameTaken    = errors.New("Channel name already exists")
	ErrNameTooLong  = errors.New("Channel name must be 40 characters or less")
	ErrNameInvalid  = errors.New("Channel name contains invalid characters")
)

// MaxNameLength bounds new channel names.
const MaxNameLength = 40

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-\s]+$`)

// ValidateName checks a new channel name against the listed channels.
func ValidateName(name string, existing []model.ChannelSummary) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ErrNameRequired
	}
	for _, c := range existing {
		if c.Name == trimmed {
			return ErrNameTaken
		}
	}
	if len(name) > MaxNameLength {
		return ErrNameTooLong
	}
	if !namePattern.MatchString(name) {
		return ErrNameInvalid
	}
	return nil
}

// CreateChannel creates a channel named name with the default connectors and
// returns the engine's copy of it, or the created document when it cannot be
// fetched back.
func (r *Runner) CreateChannel(ctx context.Context, name string, existing []model.ChannelSummary) (*model.Channel, error) {
	if err := ValidateName(name, existing); err != nil {
		return nil, err
	}
	ch := model.NewChannel(strings.TrimSpace(name))
	var out *model.Channel
	err := r.observe(ctx, "create_channel", channelAttrs(ch.ID), func(ctx context.Context) error {
		if r.validator != nil {
			if err := r.validator.ValidateChannel(ch); err != nil {
				return fmt.Errorf("Failed to create channel: %w", err)
			}
		}
		if err := r.engine.CreateChannel(ctx, ch); err != nil {
			return fmt.Errorf("Failed to create channel: %w", err)
		}
		canonical, err := r.engine.GetChannel(ctx, ch.ID)
		if err != nil || canonical == nil {
			r.logger.Warn("fetch after create failed, using created document", "channel_id", ch.ID, "error", err)
			out = ch
			return nil
		}
		out = canonical
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
