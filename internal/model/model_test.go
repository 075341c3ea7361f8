package model

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const engineChannel = `{
  "@version": "4.5.2",
  "id": "c1",
  "nextMetaDataId": "3",
  "name": "Lab",
  "description": "",
  "revision": 7,
  "sourceConnector": {
    "metaDataId": 0,
    "name": "sourceConnector",
    "properties": {
      "@class": "com.mirth.connect.connectors.file.FileReceiverProperties",
      "scheme": "FTP",
      "host": "ftp.example",
      "customKey": {"a": 1},
      "pollConnectorProperties": {"pollingType": "CRON", "cronJobs": {"cronProperity": {"description": "nightly", "expression": "0 0 * * *"}}},
      "sourceConnectorProperties": {"responseVariable": "None", "queueBufferSize": "1000"}
    },
    "transportName": "File Reader",
    "mode": "SOURCE",
    "enabled": true,
    "futureField": "x"
  },
  "destinationConnectors": {
    "connector": {
      "metaDataId": 1,
      "name": "D1",
      "properties": {"@class": "com.example.CustomDispatcherProperties", "foo": "bar"},
      "transportName": "Custom",
      "mode": "DESTINATION",
      "enabled": true
    }
  },
  "properties": {"messageStorageMode": "PRODUCTION", "unknownSetting": true},
  "exportData": {
    "metadata": {"enabled": true, "lastModified": {"time": 1700000000000, "timezone": "UTC"}},
    "channelTags": "lab, results"
  },
  "topLevelExtra": [1, 2]
}`

func TestListAcceptsOneOrMany(t *testing.T) {
	tests := []struct {
		in   string
		want List[Int]
	}{
		{`5`, List[Int]{5}},
		{`[1, "2"]`, List[Int]{1, 2}},
		{`null`, nil},
		{`""`, nil},
	}
	for _, tt := range tests {
		var got List[Int]
		if err := json.Unmarshal([]byte(tt.in), &got); err != nil {
			t.Fatalf("Unmarshal(%s) error: %v", tt.in, err)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Unmarshal(%s) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}

	b, err := json.Marshal(List[string]{"only"})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `["only"]` {
		t.Errorf("Marshal = %s, want [\"only\"]", b)
	}
}

func TestIntAndText(t *testing.T) {
	var i Int
	for in, want := range map[string]Int{`42`: 42, `"42"`: 42, `"7.0"`: 7, `null`: 0, `""`: 0} {
		if err := json.Unmarshal([]byte(in), &i); err != nil {
			t.Fatalf("Int(%s) error: %v", in, err)
		}
		if i != want {
			t.Errorf("Int(%s) = %d, want %d", in, i, want)
		}
	}
	if err := json.Unmarshal([]byte(`"abc"`), &i); err == nil {
		t.Error("Int(\"abc\") expected error")
	}

	var p Text
	for in, want := range map[string]Text{`6661`: "6661", `"${port}"`: "${port}", `true`: "true", `null`: ""} {
		if err := json.Unmarshal([]byte(in), &p); err != nil {
			t.Fatalf("Text(%s) error: %v", in, err)
		}
		if p != want {
			t.Errorf("Text(%s) = %q, want %q", in, p, want)
		}
	}
}

func TestChannelDecode(t *testing.T) {
	var c Channel
	if err := json.Unmarshal([]byte(engineChannel), &c); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if c.NextMetaDataID != 3 {
		t.Errorf("NextMetaDataID = %d, want 3", c.NextMetaDataID)
	}
	fr, ok := c.SourceConnector.Properties.(*FileReaderProperties)
	if !ok {
		t.Fatalf("source properties = %T, want *FileReaderProperties", c.SourceConnector.Properties)
	}
	if fr.Host == nil || *fr.Host != "ftp.example" {
		t.Errorf("host = %v, want ftp.example", fr.Host)
	}
	if _, ok := fr.Extra["customKey"]; !ok {
		t.Error("customKey not kept in Extra")
	}
	if got := fr.SourceConnectorProperties.QueueBufferSize; got != 1000 {
		t.Errorf("queueBufferSize = %d, want 1000", got)
	}
	jobs := fr.PollConnectorProperties.CronJobs.CronProperty
	if len(jobs) != 1 || jobs[0].Expression != "0 0 * * *" {
		t.Errorf("cron jobs = %+v, want one nightly job", jobs)
	}
	if c.SourceConnector.Kind() != SourceFileReader {
		t.Errorf("source kind = %q, want %q", c.SourceConnector.Kind(), SourceFileReader)
	}

	dests := c.Destinations()
	if len(dests) != 1 {
		t.Fatalf("destinations = %d, want 1", len(dests))
	}
	raw, ok := dests[0].Properties.(*RawDestinationProperties)
	if !ok {
		t.Fatalf("destination properties = %T, want *RawDestinationProperties", dests[0].Properties)
	}
	if raw.Class != "com.example.CustomDispatcherProperties" {
		t.Errorf("raw class = %q", raw.Class)
	}
	if dests[0].Kind() != "Custom" {
		t.Errorf("destination kind = %q, want Custom", dests[0].Kind())
	}
	if c.Destination(1) != dests[0] || c.Destination(9) != nil {
		t.Error("Destination lookup by metaDataId failed")
	}

	if diff := cmp.Diff([]string{"lab", "results"}, c.TagNames()); diff != "" {
		t.Errorf("TagNames mismatch (-want +got):\n%s", diff)
	}
}

func TestChannelRoundTripKeepsUnknownFields(t *testing.T) {
	var c Channel
	if err := json.Unmarshal([]byte(engineChannel), &c); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	b, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatal(err)
	}
	if _, ok := doc["topLevelExtra"]; !ok {
		t.Error("topLevelExtra dropped")
	}
	src := doc["sourceConnector"].(map[string]any)
	if src["futureField"] != "x" {
		t.Errorf("sourceConnector.futureField = %v, want x", src["futureField"])
	}
	props := src["properties"].(map[string]any)
	if _, ok := props["customKey"]; !ok {
		t.Error("source properties customKey dropped")
	}
	cron := props["pollConnectorProperties"].(map[string]any)["cronJobs"].(map[string]any)
	if _, ok := cron["cronProperty"]; !ok {
		t.Errorf("cronJobs = %v, want cronProperty key", cron)
	}
	if doc["properties"].(map[string]any)["unknownSetting"] != true {
		t.Error("properties.unknownSetting dropped")
	}

	conns, ok := doc["destinationConnectors"].(map[string]any)["connector"].([]any)
	if !ok || len(conns) != 1 {
		t.Fatalf("destinationConnectors.connector = %v, want array of one", doc["destinationConnectors"])
	}
	destProps := conns[0].(map[string]any)["properties"].(map[string]any)
	want := map[string]any{"@class": "com.example.CustomDispatcherProperties", "foo": "bar"}
	if diff := cmp.Diff(want, destProps); diff != "" {
		t.Errorf("raw destination properties mismatch (-want +got):\n%s", diff)
	}
}

func TestStructuredTags(t *testing.T) {
	c := Channel{ExportData: &ExportData{
		ChannelTags: json.RawMessage(`{"channelTag":[{"id":"t1","name":"lab"},{"id":"t2","name":"adt"}]}`),
	}}
	if diff := cmp.Diff([]string{"lab", "adt"}, c.TagNames()); diff != "" {
		t.Errorf("TagNames mismatch (-want +got):\n%s", diff)
	}
	empty := Channel{ExportData: &ExportData{ChannelTags: json.RawMessage(`null`)}}
	if got := empty.TagNames(); got == nil || len(got) != 0 {
		t.Errorf("TagNames = %v, want empty non-nil", got)
	}
}

func TestNewChannel(t *testing.T) {
	c := NewChannel("Inbound ADT")
	if c.ID == "" {
		t.Error("ID is empty")
	}
	if c.NextMetaDataID != 2 {
		t.Errorf("NextMetaDataID = %d, want 2", c.NextMetaDataID)
	}
	if c.SourceConnector.Kind() != SourceChannelReader {
		t.Errorf("source kind = %q", c.SourceConnector.Kind())
	}
	d := c.Destination(1)
	if d == nil || d.Kind() != DestinationChannelWriter || d.Name != "Destination 1" {
		t.Fatalf("destination 1 = %+v", d)
	}
	if _, err := json.Marshal(c); err != nil {
		t.Errorf("Marshal new channel: %v", err)
	}
}

func TestDefaultsCoverEveryKind(t *testing.T) {
	for _, k := range SourceKinds() {
		p := DefaultSourceProperties(k)
		if p == nil || p.Kind() != k {
			t.Errorf("DefaultSourceProperties(%q) = %v", k, p)
			continue
		}
		if p.Common().SourceConnectorProperties == nil {
			t.Errorf("%q: sourceConnectorProperties missing", k)
		}
		class, _ := SourceClass(k)
		if p.Common().Class != class {
			t.Errorf("%q: class = %q, want %q", k, p.Common().Class, class)
		}
	}
	for _, k := range DestinationKinds() {
		p := DefaultDestinationProperties(k)
		if p == nil || p.Kind() != k {
			t.Errorf("DefaultDestinationProperties(%q) = %v", k, p)
			continue
		}
		if p.Common().DestinationConnectorProperties == nil {
			t.Errorf("%q: destinationConnectorProperties missing", k)
		}
	}
	if DefaultSourceProperties("Bogus") != nil || DefaultDestinationProperties("Bogus") != nil {
		t.Error("unknown kinds should have no defaults")
	}
}

func TestHydrate(t *testing.T) {
	complete := NewChannel("x")
	h := Hydrate(complete)
	if h == complete {
		t.Fatal("Hydrate returned its input")
	}
	if h.SourceConnector != complete.SourceConnector {
		t.Error("complete source connector was replaced")
	}
	if h.DestinationConnectors != complete.DestinationConnectors {
		t.Error("complete destination list was replaced")
	}

	sparse := &Channel{
		ID:         "c2",
		Properties: &ChannelProperties{MessageStorageMode: "RAW"},
		SourceConnector: &SourceConnector{
			TransportName: string(SourceFileReader),
			Properties:    &FileReaderProperties{SourceBase: SourceBase{Class: "com.mirth.connect.connectors.file.FileReceiverProperties"}},
		},
		DestinationConnectors: &DestinationConnectors{Connector: List[*DestinationConnector]{
			{MetaDataID: 1, TransportName: string(DestinationFileWriter)},
		}},
	}
	h = Hydrate(sparse)
	if h.Properties.AttachmentProperties == nil || h.Properties.MessageStorageMode != "RAW" {
		t.Errorf("properties = %+v", h.Properties)
	}
	if sparse.Properties.AttachmentProperties != nil {
		t.Error("Hydrate modified its input")
	}
	if h.ExportData == nil || h.ExportData.Metadata.PruningSettings == nil {
		t.Error("exportData not filled")
	}
	common := h.SourceConnector.Properties.Common()
	if common.SourceConnectorProperties == nil || common.PollConnectorProperties == nil {
		t.Errorf("file reader common = %+v", common)
	}
	if h.SourceConnector.Filter == nil || h.SourceConnector.Transformer == nil {
		t.Error("source filter/transformer not filled")
	}
	d := h.Destination(1)
	if _, ok := d.Properties.(*FileWriterProperties); !ok {
		t.Fatalf("destination properties = %T, want *FileWriterProperties", d.Properties)
	}
	if d.Properties.Common().DestinationConnectorProperties == nil {
		t.Error("destinationConnectorProperties not filled")
	}
}

func TestHydrateEmptyDestinations(t *testing.T) {
	for _, in := range []string{
		`{"id":"c3","name":"Empty"}`,
		`{"id":"c3","name":"Empty","destinationConnectors":null}`,
		`{"id":"c3","name":"Empty","destinationConnectors":""}`,
		`{"id":"c3","name":"Empty","destinationConnectors":{"connector":null}}`,
	} {
		var c Channel
		if err := json.Unmarshal([]byte(in), &c); err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		h := Hydrate(&c)
		if h.DestinationConnectors == nil || h.DestinationConnectors.Connector == nil {
			t.Errorf("%s: destinations = %+v, want an empty list", in, h.DestinationConnectors)
			continue
		}
		b, err := json.Marshal(h.DestinationConnectors)
		if err != nil {
			t.Fatal(err)
		}
		if string(b) != `{"connector":[]}` {
			t.Errorf("%s: destinations encode as %s", in, b)
		}
	}
}

func TestHydrateKeepsUnmodeledVariants(t *testing.T) {
	raw := &RawSourceProperties{Class: "com.example.Receiver", Raw: json.RawMessage(`{"@class":"com.example.Receiver"}`)}
	c := &Channel{SourceConnector: &SourceConnector{TransportName: "Custom", Properties: raw}}
	h := Hydrate(c)
	if h.SourceConnector.Properties != raw {
		t.Error("raw source properties were replaced")
	}
}

func TestGlobalScriptsWith(t *testing.T) {
	g := &GlobalScripts{Map: NewMap(
		StringEntry{String: []string{GlobalScriptDeploy, "return;"}},
	)}
	next := g.With(GlobalScriptDeploy, "logger.info('x');").With(GlobalScriptUndeploy, "")

	if got, _ := g.Get(GlobalScriptDeploy); got != "return;" {
		t.Errorf("original Deploy = %q, want unchanged", got)
	}
	if got, _ := next.Get(GlobalScriptDeploy); got != "logger.info('x');" {
		t.Errorf("Deploy = %q", got)
	}
	if _, ok := next.Get(GlobalScriptUndeploy); !ok {
		t.Error("Undeploy not added")
	}
	if _, ok := next.Get(GlobalScriptPreprocessor); ok {
		t.Error("Preprocessor should be absent")
	}
}

func TestChannelListItem(t *testing.T) {
	var items List[ChannelListItem]
	in := `[{"id":"a","name":"A","revision":"2","exportData":{"metadata":{"lastModified":{"time":5}},"channelTags":"x"}},
	        {"id":"b","name":"B","lastModified":{"time":9,"timezone":"UTC"}},
	        {"id":"c","name":"C","lastModified":11}]`
	if err := json.Unmarshal([]byte(in), &items); err != nil {
		t.Fatal(err)
	}
	want := []int64{5, 9, 11}
	for i, it := range items {
		if got := it.LastModifiedMillis(); got != want[i] {
			t.Errorf("%s: LastModifiedMillis = %d, want %d", it.ID, got, want[i])
		}
	}
	if items[0].Revision != 2 {
		t.Errorf("revision = %d, want 2", items[0].Revision)
	}
	if diff := cmp.Diff([]string{"x"}, items[0].TagNames()); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
}
