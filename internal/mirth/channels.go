package mirth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/relaycore/channel-console/internal/model"
)

// ListChannels returns every channel the engine knows.
func (c *Client) ListChannels(ctx context.Context) ([]model.ChannelListItem, error) {
	data, err := c.do(ctx, "list_channels", http.MethodGet, "/channels", nil, nil)
	if err != nil {
		return nil, err
	}
	items, err := listPayload[model.ChannelListItem](data, "channel")
	if err != nil {
		return nil, fmt.Errorf("list_channels: decode: %w", err)
	}
	return items, nil
}

// GetChannel fetches one channel document.
func (c *Client) GetChannel(ctx context.Context, id string) (*model.Channel, error) {
	data, err := c.do(ctx, "get_channel", http.MethodGet, channelPath(id), nil, nil)
	if err != nil {
		return nil, err
	}
	ch, err := DecodeChannel(data)
	if err != nil {
		return nil, fmt.Errorf("get_channel: %w", err)
	}
	if ch == nil {
		return nil, fmt.Errorf("get_channel %s: %w", id, ErrNotFound)
	}
	return ch, nil
}

// DecodeChannel reads a channel from an engine response, either wrapped as
// {"channel": {...}} or bare. It returns nil when the body holds no channel.
func DecodeChannel(data []byte) (*model.Channel, error) {
	if !isObject(data) {
		return nil, nil
	}
	var env struct {
		Channel json.RawMessage `json:"channel"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	raw := json.RawMessage(data)
	if isObject(env.Channel) {
		raw = env.Channel
	}
	var ch model.Channel
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, err
	}
	if ch.ID == "" {
		return nil, nil
	}
	return &ch, nil
}

// CheckChannel rejects documents the engine would refuse to save.
func CheckChannel(ch *model.Channel) error {
	switch {
	case ch == nil:
		return errors.New("channel is missing")
	case ch.ID == "":
		return errors.New("channel ID is required")
	case ch.Name == "":
		return errors.New("channel name is required")
	case ch.Properties == nil:
		return errors.New("channel properties are missing")
	case ch.SourceConnector == nil:
		return errors.New("source connector is missing")
	case ch.DestinationConnectors == nil || ch.DestinationConnectors.Connector == nil:
		return errors.New("destination connectors are missing")
	case ch.ExportData == nil || ch.ExportData.Metadata == nil:
		return errors.New("channel export metadata is missing")
	}
	return nil
}

// CreateChannel adds a new channel to the engine. The document is sent
// wrapped as {"channel": {...}}.
func (c *Client) CreateChannel(ctx context.Context, ch *model.Channel) error {
	if err := CheckChannel(ch); err != nil {
		return fmt.Errorf("creation failed: %w", err)
	}
	body := struct {
		Channel *model.Channel `json:"channel"`
	}{ch}
	if _, err := c.do(ctx, "create_channel", http.MethodPost, "/channels", nil, body); err != nil {
		return fmt.Errorf("creation failed: %w", err)
	}
	return nil
}

// UpdateChannel overwrites the stored channel with ch. startEdit is the time
// editing began. The raw response body is returned.
func (c *Client) UpdateChannel(ctx context.Context, ch *model.Channel, startEdit time.Time) (json.RawMessage, error) {
	if err := CheckChannel(ch); err != nil {
		return nil, fmt.Errorf("save failed: %w", err)
	}
	q := url.Values{}
	q.Set("override", "true")
	q.Set("startEdit", startEdit.Format(StartEditLayout))
	data, err := c.do(ctx, "update_channel", http.MethodPut, channelPath(ch.ID), q, ch)
	if err != nil {
		return nil, fmt.Errorf("save failed: %w", err)
	}
	return data, nil
}

// statisticsPaths are tried in order until one answers.
var statisticsPaths = []string{"/channels/statistics", "/channels/status", "/dashboard/statistics"}

// Statistics returns the message counters of every channel.
func (c *Client) Statistics(ctx context.Context) ([]model.ChannelStatistics, error) {
	var errs []error
	for _, path := range statisticsPaths {
		data, err := c.do(ctx, "statistics", http.MethodGet, path, nil, nil)
		if err != nil {
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		stats, err := listPayload[model.ChannelStatistics](data, "channelStatistics")
		if err != nil {
			return nil, fmt.Errorf("statistics: decode %s: %w", path, err)
		}
		return stats, nil
	}
	return nil, fmt.Errorf("statistics: %w", errors.Join(errs...))
}

// Statuses returns the dashboard status of every deployed channel.
func (c *Client) Statuses(ctx context.Context) ([]model.DashboardStatus, error) {
	data, err := c.do(ctx, "statuses", http.MethodGet, "/channels/statuses", nil, nil)
	if err != nil {
		return nil, err
	}
	statuses, err := listPayload[model.DashboardStatus](data, "dashboardStatus")
	if err != nil {
		return nil, fmt.Errorf("statuses: decode: %w", err)
	}
	return statuses, nil
}

// Status returns the dashboard status of one channel.
func (c *Client) Status(ctx context.Context, id string) (*model.DashboardStatus, error) {
	var out struct {
		DashboardStatus *model.DashboardStatus `json:"dashboardStatus"`
	}
	if err := c.getJSON(ctx, "status", channelPath(id, "status"), nil, &out); err != nil {
		return nil, err
	}
	if out.DashboardStatus == nil {
		return nil, fmt.Errorf("status %s: %w", id, ErrNotFound)
	}
	return out.DashboardStatus, nil
}

// IDsAndNames maps channel ids to names.
func (c *Client) IDsAndNames(ctx context.Context) ([]model.ChannelIDAndName, error) {
	var out struct {
		Map *model.Map[model.StringEntry] `json:"map"`
	}
	if err := c.getJSON(ctx, "ids_and_names", "/channels/idsAndNames", nil, &out); err != nil {
		return nil, err
	}
	if out.Map == nil {
		return nil, nil
	}
	ids := make([]model.ChannelIDAndName, 0, len(out.Map.Entry))
	for _, e := range out.Map.Entry {
		ids = append(ids, model.ChannelIDAndName{ID: e.Key(), Name: e.Value()})
	}
	return ids, nil
}

// PortsInUse lists the listener ports of deployed channels.
func (c *Client) PortsInUse(ctx context.Context) ([]model.Port, error) {
	data, err := c.do(ctx, "ports_in_use", http.MethodGet, "/channels/portsInUse", nil, nil)
	if err != nil {
		return nil, err
	}
	ports, err := listPayload[model.Port](data, "com.mirth.connect.donkey.model.channel.Ports")
	if err != nil {
		return nil, fmt.Errorf("ports_in_use: decode: %w", err)
	}
	return ports, nil
}

// ConnectorNames maps the metaDataIds of channel id to connector names.
func (c *Client) ConnectorNames(ctx context.Context, id string) ([]model.ConnectorName, error) {
	var out struct {
		Map *struct {
			Entry model.List[struct {
				Int    model.Int `json:"int"`
				String string    `json:"string"`
			}] `json:"entry"`
		} `json:"linked-hash-map"`
	}
	if err := c.getJSON(ctx, "connector_names", channelPath(id, "connectorNames"), nil, &out); err != nil {
		return nil, err
	}
	if out.Map == nil {
		return nil, nil
	}
	names := make([]model.ConnectorName, 0, len(out.Map.Entry))
	for _, e := range out.Map.Entry {
		names = append(names, model.ConnectorName{MetaDataID: int64(e.Int), Name: e.String})
	}
	return names, nil
}

// ChannelGroups lists the channel groups.
func (c *Client) ChannelGroups(ctx context.Context) ([]model.ChannelGroup, error) {
	data, err := c.do(ctx, "channel_groups", http.MethodGet, "/channelgroups", nil, nil)
	if err != nil {
		return nil, err
	}
	groups, err := listPayload[model.ChannelGroup](data, "channelGroup")
	if err != nil {
		return nil, fmt.Errorf("channel_groups: decode: %w", err)
	}
	return groups, nil
}

// Action is a channel lifecycle operation.
type Action string

const (
	ActionStart    Action = "start"
	ActionStop     Action = "stop"
	ActionPause    Action = "pause"
	ActionResume   Action = "resume"
	ActionDeploy   Action = "deploy"
	ActionUndeploy Action = "undeploy"
)

// ParseAction validates a lifecycle action name.
func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionStart, ActionStop, ActionPause, ActionResume, ActionDeploy, ActionUndeploy:
		return a, true
	}
	return "", false
}

// DeployOptions are the query flags of a deploy.
type DeployOptions struct {
	ReturnErrors bool
	DebugOptions string
}

// Lifecycle runs action on channel id.
func (c *Client) Lifecycle(ctx context.Context, id string, action Action) error {
	if _, ok := ParseAction(string(action)); !ok {
		return fmt.Errorf("unknown channel action %q", action)
	}
	if action == ActionDeploy {
		return c.Deploy(ctx, id, DeployOptions{})
	}
	_, err := c.do(ctx, string(action), http.MethodPost, channelPath(id, "_"+string(action)), nil, nil)
	return err
}

// Deploy deploys channel id.
func (c *Client) Deploy(ctx context.Context, id string, opts DeployOptions) error {
	q := url.Values{}
	if opts.ReturnErrors {
		q.Set("returnErrors", "true")
	}
	if opts.DebugOptions != "" {
		q.Set("debugOptions", opts.DebugOptions)
	}
	_, err := c.do(ctx, "deploy", http.MethodPost, channelPath(id, "_deploy"), q, nil)
	return err
}

// ClearOptions select which counters ClearStatistics resets.
type ClearOptions struct {
	Received bool `json:"received"`
	Filtered bool `json:"filtered"`
	Sent     bool `json:"sent"`
	Error    bool `json:"error"`
}

// ClearStatistics resets the selected counters of the given channels.
func (c *Client) ClearStatistics(ctx context.Context, ids []string, opts ClearOptions) error {
	body := make(map[string]any, len(ids))
	for _, id := range ids {
		body[id] = nil
	}
	q := url.Values{}
	for name, on := range map[string]bool{"received": opts.Received, "filtered": opts.Filtered, "sent": opts.Sent, "error": opts.Error} {
		if on {
			q.Set(name, strconv.FormatBool(true))
		}
	}
	_, err := c.do(ctx, "clear_statistics", http.MethodPost, "/channels/_clearStatistics", q, body)
	return err
}

// Events lists server events whose name matches name.
func (c *Client) Events(ctx context.Context, name string) ([]model.Event, error) {
	q := url.Values{}
	q.Set("name", name)
	data, err := c.do(ctx, "events", http.MethodGet, "/events", q, nil)
	if err != nil {
		return nil, err
	}
	events, err := listPayload[model.Event](data, "event")
	if err != nil {
		return nil, fmt.Errorf("events: decode: %w", err)
	}
	return events, nil
}

// GlobalScripts fetches the server's global scripts.
func (c *Client) GlobalScripts(ctx context.Context) (*model.GlobalScripts, error) {
	var g model.GlobalScripts
	if err := c.getJSON(ctx, "global_scripts", "/server/globalScripts", nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// SetGlobalScripts replaces the server's global scripts.
func (c *Client) SetGlobalScripts(ctx context.Context, g *model.GlobalScripts) error {
	_, err := c.do(ctx, "set_global_scripts", http.MethodPut, "/server/globalScripts", nil, g)
	return err
}
