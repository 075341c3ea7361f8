package model

import (
	"encoding/json"
	"time"
)

// Statistics are the message counters of one channel.
type Statistics struct {
	Received         int64 `json:"received"`
	Filtered         int64 `json:"filtered"`
	Queued           int64 `json:"queued"`
	Sent             int64 `json:"sent"`
	Error            int64 `json:"error"`
	LifetimeReceived int64 `json:"lifetimeReceived"`
	LifetimeFiltered int64 `json:"lifetimeFiltered"`
	LifetimeSent     int64 `json:"lifetimeSent"`
	LifetimeError    int64 `json:"lifetimeError"`
}

// ChannelSummary is one row of the channel list, joined from the channel,
// its statistics and its dashboard status.
type ChannelSummary struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	State        string     `json:"state"`
	Revision     int64      `json:"revision"`
	LastModified int64      `json:"lastModified,omitempty"` // Unix millis
	Deployed     bool       `json:"deployed"`
	Queued       int64      `json:"queued"`
	Statistics   Statistics `json:"statistics"`
	Tags         []string   `json:"tags"`
}

// ChannelListItem is an element of the engine's channel list. The engine
// returns full channels; the list only relies on a few of their fields.
type ChannelListItem struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Revision     Int             `json:"revision"`
	State        string          `json:"state,omitempty"`
	LastModified json.RawMessage `json:"lastModified,omitempty"`
	ExportData   *ExportData     `json:"exportData,omitempty"`
}

// LastModifiedMillis returns exportData.metadata.lastModified.time, or the
// item's own lastModified when that is absent.
func (c ChannelListItem) LastModifiedMillis() int64 {
	if c.ExportData != nil && c.ExportData.Metadata != nil && c.ExportData.Metadata.LastModified != nil &&
		c.ExportData.Metadata.LastModified.Time != 0 {
		return int64(c.ExportData.Metadata.LastModified.Time)
	}
	if len(c.LastModified) == 0 {
		return 0
	}
	var lm LastModified
	if err := json.Unmarshal(c.LastModified, &lm); err == nil && lm.Time != 0 {
		return int64(lm.Time)
	}
	var n Int
	if err := json.Unmarshal(c.LastModified, &n); err == nil {
		return int64(n)
	}
	return 0
}

// TagNames returns the item's tags, never nil.
func (c ChannelListItem) TagNames() []string {
	ch := Channel{ExportData: c.ExportData}
	return ch.TagNames()
}

// ChannelStatistics is one element of list.channelStatistics.
type ChannelStatistics struct {
	ServerID         string `json:"serverId,omitempty"`
	ChannelID        string `json:"channelId"`
	Received         Int    `json:"received"`
	Sent             Int    `json:"sent"`
	Error            Int    `json:"error"`
	Filtered         Int    `json:"filtered"`
	Queued           Int    `json:"queued"`
	LifetimeReceived Int    `json:"lifetimeReceived"`
	LifetimeFiltered Int    `json:"lifetimeFiltered"`
	LifetimeSent     Int    `json:"lifetimeSent"`
	LifetimeError    Int    `json:"lifetimeError"`
}

// Counters converts the engine record to the summary counters.
func (s ChannelStatistics) Counters() Statistics {
	return Statistics{
		Received:         int64(s.Received),
		Filtered:         int64(s.Filtered),
		Queued:           int64(s.Queued),
		Sent:             int64(s.Sent),
		Error:            int64(s.Error),
		LifetimeReceived: int64(s.LifetimeReceived),
		LifetimeFiltered: int64(s.LifetimeFiltered),
		LifetimeSent:     int64(s.LifetimeSent),
		LifetimeError:    int64(s.LifetimeError),
	}
}

// DashboardStatus is one element of list.dashboardStatus.
type DashboardStatus struct {
	ChannelID             string          `json:"channelId"`
	Name                  string          `json:"name,omitempty"`
	State                 string          `json:"state"` // STARTED, STOPPED, PAUSED, ...
	DeployedRevisionDelta *Int            `json:"deployedRevisionDelta"`
	DeployedDate          json.RawMessage `json:"deployedDate,omitempty"`
	Queued                Int             `json:"queued"`
	StatusType            string          `json:"statusType,omitempty"`
	Extra                 Extra           `json:"-"`
}

type dashboardStatusAlias DashboardStatus

func (s *DashboardStatus) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*dashboardStatusAlias)(s), &s.Extra)
}

func (s DashboardStatus) MarshalJSON() ([]byte, error) {
	return encodeObject(dashboardStatusAlias(s), s.Extra)
}

// Event is one server event log record.
type Event struct {
	DateTime   Int              `json:"dateTime"`
	NanoTime   Int              `json:"nanoTime,omitempty"`
	ID         Int              `json:"id"`
	EventTime  *LastModified    `json:"eventTime,omitempty"`
	Level      string           `json:"level"` // INFORMATION, WARNING, ERROR
	Name       string           `json:"name"`  // e.g. "Channel updated"
	Attributes *EventAttributes `json:"attributes,omitempty"`
	Outcome    string           `json:"outcome"` // SUCCESS, FAILURE
	UserID     Int              `json:"userId"`
	IPAddress  string           `json:"ipAddress"`
	ServerID   string           `json:"serverId"`
}

// EventAttributes is the attribute map of an event; entry is a single
// {string: [key, value]} or a list of them.
type EventAttributes struct {
	Class string            `json:"@class,omitempty"`
	Entry List[StringEntry] `json:"entry,omitempty"`
}

// Time returns the event time.
func (e Event) Time() time.Time {
	if e.EventTime != nil && e.EventTime.Time != 0 {
		return time.UnixMilli(int64(e.EventTime.Time))
	}
	return time.UnixMilli(int64(e.DateTime))
}

// Global script keys.
const (
	GlobalScriptDeploy        = "Deploy"
	GlobalScriptUndeploy      = "Undeploy"
	GlobalScriptPreprocessor  = "Preprocessor"
	GlobalScriptPostprocessor = "Postprocessor"
)

// GlobalScripts is the server's global script map.
type GlobalScripts struct {
	Map *Map[StringEntry] `json:"map"`
}

// Get returns the script stored under key.
func (g *GlobalScripts) Get(key string) (string, bool) {
	if g == nil || g.Map == nil {
		return "", false
	}
	for _, e := range g.Map.Entry {
		if e.Key() == key {
			return e.Value(), true
		}
	}
	return "", false
}

// With returns a copy of g with the script under key set to script.
func (g *GlobalScripts) With(key, script string) *GlobalScripts {
	out := &GlobalScripts{Map: &Map[StringEntry]{}}
	if g != nil && g.Map != nil {
		out.Map.Class = g.Map.Class
		out.Map.Entry = append(List[StringEntry](nil), g.Map.Entry...)
	}
	for i, e := range out.Map.Entry {
		if e.Key() == key {
			out.Map.Entry[i] = StringEntry{String: []string{key, script}}
			return out
		}
	}
	out.Map.Entry = append(out.Map.Entry, StringEntry{String: []string{key, script}})
	return out
}

// Port is one port in use by a deployed channel.
type Port struct {
	Name string `json:"name"`
	ID   string `json:"id"`
	Port Int    `json:"port"`
}

// ChannelIDAndName maps a channel id to its name.
type ChannelIDAndName struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ConnectorName maps a connector metaDataId to its name.
type ConnectorName struct {
	MetaDataID int64  `json:"metaDataId"`
	Name       string `json:"name"`
}

// ChannelGroup is a named group of channels.
type ChannelGroup struct {
	Version     string          `json:"@version,omitempty"`
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Revision    Int             `json:"revision"`
	Description string          `json:"description"`
	Channels    json.RawMessage `json:"channels,omitempty"`
}
