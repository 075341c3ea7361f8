// Package view derives read-only projections from channel documents and
// engine records: table rows, option and label sets, and fields scraped from
// event attributes. Nothing here performs I/O.
package view

import (
	"strings"

	"github.com/relaycore/channel-console/internal/model"
)

// EventChannel is the channel an event refers to.
type EventChannel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChannelFromEvent extracts the channel named in the "channel" attribute of e.
// The attribute holds the engine's toString form, Channel[id=<id>,name=<name>],
// usually followed by a newline. The value is scraped, not parsed: each known
// marker is removed once, the id is the first comma segment and the name the
// second. nil is returned when the attribute is missing or both segments are
// empty.
func ChannelFromEvent(e model.Event) *EventChannel {
	if e.Attributes == nil {
		return nil
	}
	for _, entry := range e.Attributes.Entry {
		if entry.Key() != "channel" {
			continue
		}
		s := entry.Value()
		if s == "" {
			return nil
		}
		for _, marker := range []string{"Channel[", "]\n", "id=", "name="} {
			s = strings.Replace(s, marker, "", 1)
		}
		parts := strings.Split(s, ",")
		id, name := parts[0], ""
		if len(parts) > 1 {
			name = parts[1]
		}
		if id == "" && name == "" {
			return nil
		}
		return &EventChannel{ID: id, Name: name}
	}
	return nil
}

// EventRow is one row of the events table.
type EventRow struct {
	ID          int64         `json:"id"`
	Time        int64         `json:"time"` // Unix millis
	Level       string        `json:"level"`
	Name        string        `json:"name"`
	Outcome     string        `json:"outcome"`
	UserID      int64         `json:"userId"`
	IPAddress   string        `json:"ipAddress"`
	ServerID    string        `json:"serverId"`
	ChannelID   string        `json:"channelId"`
	ChannelName string        `json:"channelName"`
	Channel     *EventChannel `json:"-"`
}

// EventRows projects events to table rows, newest first as the engine returns them.
func EventRows(events []model.Event) []EventRow {
	rows := make([]EventRow, 0, len(events))
	for _, e := range events {
		row := EventRow{
			ID:        int64(e.ID),
			Time:      e.Time().UnixMilli(),
			Level:     e.Level,
			Name:      e.Name,
			Outcome:   e.Outcome,
			UserID:    int64(e.UserID),
			IPAddress: e.IPAddress,
			ServerID:  e.ServerID,
		}
		if ch := ChannelFromEvent(e); ch != nil {
			row.Channel = ch
			row.ChannelID, row.ChannelName = ch.ID, ch.Name
		}
		rows = append(rows, row)
	}
	return rows
}
