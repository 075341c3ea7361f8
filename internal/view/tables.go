package view

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/relaycore/channel-console/internal/channel"
	"github.com/relaycore/channel-console/internal/model"
)

// ErrUnknownTable is returned for a table name with no projection.
var ErrUnknownTable = errors.New("unknown table")

// CellType selects the renderer of a cell.
type CellType string

const (
	CellText     CellType = "text"
	CellNumber   CellType = "number"
	CellSelect   CellType = "select"
	CellCheckbox CellType = "checkbox"
)

// Cell is one table cell.
type Cell struct {
	Type     CellType `json:"type"`
	Value    any      `json:"value"`
	Editable bool     `json:"editable,omitempty"`
	Items    []Option `json:"items,omitempty"`
}

// Column describes one table column.
type Column struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Width string `json:"width,omitempty"`
}

// Row is one table row. It is encoded flat: {"id": ..., "<column>": Cell}.
type Row struct {
	ID    string
	Cells map[string]Cell
}

func (r Row) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Cells)+1)
	for k, c := range r.Cells {
		m[k] = c
	}
	m["id"] = r.ID
	return json.Marshal(m)
}

func (r *Row) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.Cells = make(map[string]Cell, len(raw))
	for k, v := range raw {
		if k == "id" {
			if err := json.Unmarshal(v, &r.ID); err != nil {
				return fmt.Errorf("row id: %w", err)
			}
			continue
		}
		var c Cell
		if err := json.Unmarshal(v, &c); err != nil {
			return fmt.Errorf("row %q cell %q: %w", r.ID, k, err)
		}
		r.Cells[k] = c
	}
	return nil
}

// Text returns the cell value of column as a string.
func (r Row) Text(column string) string {
	switch v := r.Cells[column].Value.(type) {
	case string:
		return v
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Number returns the cell value of column as an integer; non-numeric values are 0.
func (r Row) Number(column string) int64 {
	switch v := r.Cells[column].Value.(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}

// Bool returns the cell value of column as a boolean.
func (r Row) Bool(column string) bool {
	switch v := r.Cells[column].Value.(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// Table is a projected table.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
}

func text(v string) Cell { return Cell{Type: CellText, Value: v, Editable: true} }
func readOnly(v string) Cell { return Cell{Type: CellText, Value: v} }
func number(v int64) Cell { return Cell{Type: CellNumber, Value: v} }
func checkbox(v bool) Cell { return Cell{Type: CellCheckbox, Value: v, Editable: true} }
func choice(v string, items []Option) Cell {
	return Cell{Type: CellSelect, Value: v, Editable: true, Items: items}
}

type tableDef struct {
	columns []Column
	rows    func(c *model.Channel, target int64) []Row
	apply   func(c *model.Channel, target int64, rows []Row) *model.Channel
}

// Table names.
const (
	TableMetaDataColumns     = "metaDataColumns"
	TableDestinations        = "destinations"
	TableFilterRules         = "filterRules"
	TableTransformerSteps    = "transformerSteps"
	TableCronJobs            = "cronJobs"
	TableHTTPHeaders         = "httpHeaders"
	TableHTTPParameters      = "httpParameters"
	TableHTTPResponseHeaders = "httpResponseHeaders"
	TableStaticResources     = "staticResources"
	TableSMTPAttachments     = "smtpAttachments"
	TableSMTPHeaders         = "smtpHeaders"
	TableJMSConnectionProps  = "jmsConnectionProperties"
	TableWebServiceHeaders   = "webServiceHeaders"
)

var metaDataTypes = []Option{{"STRING", "String"}, {"NUMBER", "Number"}, {"BOOLEAN", "Boolean"}, {"TIMESTAMP", "Timestamp"}}

var ruleKinds = []Option{
	{string(channel.RuleJavaScript), "JavaScript"},
	{string(channel.RuleExternalScript), "External Script"},
	{string(channel.RuleBuilder), "Rule Builder"},
}

var tables = map[string]tableDef{
	TableMetaDataColumns: {
		columns: []Column{{ID: "name", Title: "Column Name"}, {ID: "type", Title: "Type"}, {ID: "mappingName", Title: "Variable Mapping"}},
		rows: func(c *model.Channel, _ int64) []Row {
			if c.Properties == nil || c.Properties.MetaDataColumns == nil {
				return []Row{}
			}
			cols := c.Properties.MetaDataColumns.MetaDataColumn
			rows := make([]Row, len(cols))
			for i, col := range cols {
				rows[i] = Row{ID: strconv.Itoa(i), Cells: map[string]Cell{
					"name":        text(col.Name),
					"type":        choice(col.Type, metaDataTypes),
					"mappingName": text(col.MappingName),
				}}
			}
			return rows
		},
		apply: func(c *model.Channel, _ int64, rows []Row) *model.Channel {
			cols := make([]model.MetaDataColumn, len(rows))
			for i, r := range rows {
				cols[i] = model.MetaDataColumn{Name: r.Text("name"), Type: r.Text("type"), MappingName: r.Text("mappingName")}
			}
			return channel.SetMetaDataColumns(c, cols)
		},
	},

	TableDestinations: {
		columns: []Column{
			{ID: "destinationId", Title: "Id", Width: "10%"},
			{ID: "destination", Title: "Destination", Width: "40%"},
			{ID: "status", Title: "Status", Width: "10%"},
			{ID: "connectorType", Title: "Connector Type", Width: "40%"},
		},
		rows: func(c *model.Channel, _ int64) []Row {
			dests := c.Destinations()
			rows := make([]Row, 0, len(dests))
			for _, d := range dests {
				if d == nil {
					continue
				}
				status := "Disabled"
				if d.Enabled {
					status = "Enabled"
				}
				rows = append(rows, Row{ID: strconv.FormatInt(int64(d.MetaDataID), 10), Cells: map[string]Cell{
					"destinationId": number(int64(d.MetaDataID)),
					"destination":   text(d.Name),
					"status":        readOnly(status),
					"connectorType": readOnly(d.TransportName),
				}})
			}
			return rows
		},
		// Rows reorder and rename destinations; ids not in the document are skipped
		// and destinations missing from rows are dropped.
		apply: func(c *model.Channel, _ int64, rows []Row) *model.Channel {
			list := make([]*model.DestinationConnector, 0, len(rows))
			for _, r := range rows {
				id, err := strconv.ParseInt(r.ID, 10, 64)
				if err != nil {
					continue
				}
				d := c.Destination(id)
				if d == nil {
					continue
				}
				if name := r.Text("destination"); name != d.Name {
					next := *d
					next.Name = name
					d = &next
				}
				list = append(list, d)
			}
			return channel.SetDestinations(c, list)
		},
	},

	TableFilterRules: {
		columns: []Column{
			{ID: "sequenceNumber", Title: "#"},
			{ID: "enabled", Title: "Enabled"},
			{ID: "operator", Title: "Operator"},
			{ID: "name", Title: "Name"},
			{ID: "kind", Title: "Type"},
		},
		rows: func(c *model.Channel, target int64) []Row {
			rules := channel.FilterRules(channel.FilterOf(c, target))
			rows := make([]Row, len(rules))
			for i, r := range rules {
				rows[i] = Row{ID: strconv.FormatInt(r.SequenceNumber, 10), Cells: map[string]Cell{
					"sequenceNumber": number(r.SequenceNumber),
					"enabled":        checkbox(r.Enabled),
					"operator":       choice(r.Operator, []Option{{"AND", "AND"}, {"OR", "OR"}}),
					"name":           text(r.Name),
					"kind":           {Type: CellSelect, Value: string(r.Kind), Items: ruleKinds},
				}}
			}
			return rows
		},
		// Rows edit the enabled flag, operator and name of existing rules.
		apply: func(c *model.Channel, target int64, rows []Row) *model.Channel {
			rules := channel.FilterRules(channel.FilterOf(c, target))
			bySeq := make(map[string]Row, len(rows))
			for _, r := range rows {
				bySeq[r.ID] = r
			}
			changed := false
			for i := range rules {
				r, ok := bySeq[strconv.FormatInt(rules[i].SequenceNumber, 10)]
				if !ok {
					continue
				}
				rules[i].Enabled = r.Bool("enabled")
				rules[i].Operator = r.Text("operator")
				rules[i].Name = r.Text("name")
				changed = true
			}
			if !changed {
				return c
			}
			return channel.SetFilterRules(c, target, rules)
		},
	},

	TableTransformerSteps: {
		columns: []Column{
			{ID: "sequenceNumber", Title: "#"},
			{ID: "enabled", Title: "Enabled"},
			{ID: "name", Title: "Name"},
			{ID: "type", Title: "Type"},
		},
		rows: func(c *model.Channel, target int64) []Row {
			steps := channel.TransformerSteps(channel.TransformerOf(c, target))
			rows := make([]Row, len(steps))
			for i, s := range steps {
				rows[i] = Row{ID: strconv.FormatInt(int64(s.SequenceNumber), 10), Cells: map[string]Cell{
					"sequenceNumber": number(int64(s.SequenceNumber)),
					"enabled":        checkbox(s.Enabled),
					"name":           text(s.Name),
					"type":           readOnly("JavaScript"),
				}}
			}
			return rows
		},
		apply: func(c *model.Channel, target int64, rows []Row) *model.Channel {
			steps := channel.TransformerSteps(channel.TransformerOf(c, target))
			bySeq := make(map[string]Row, len(rows))
			for _, r := range rows {
				bySeq[r.ID] = r
			}
			for i := range steps {
				if r, ok := bySeq[strconv.FormatInt(int64(steps[i].SequenceNumber), 10)]; ok {
					steps[i].Enabled = r.Bool("enabled")
					steps[i].Name = r.Text("name")
				}
			}
			return channel.SetTransformerSteps(c, target, steps)
		},
	},

	TableCronJobs: {
		columns: []Column{{ID: "description", Title: "Description"}, {ID: "expression", Title: "Expression"}},
		rows: func(c *model.Channel, _ int64) []Row {
			if c.SourceConnector == nil || c.SourceConnector.Properties == nil {
				return []Row{}
			}
			b := c.SourceConnector.Properties.Common()
			if b == nil || b.PollConnectorProperties == nil || b.PollConnectorProperties.CronJobs == nil {
				return []Row{}
			}
			jobs := b.PollConnectorProperties.CronJobs.CronProperty
			rows := make([]Row, len(jobs))
			for i, j := range jobs {
				rows[i] = Row{ID: strconv.Itoa(i), Cells: map[string]Cell{
					"description": text(j.Description),
					"expression":  text(j.Expression),
				}}
			}
			return rows
		},
		apply: func(c *model.Channel, _ int64, rows []Row) *model.Channel {
			jobs := make([]model.CronProperty, len(rows))
			for i, r := range rows {
				jobs[i] = model.CronProperty{Description: r.Text("description"), Expression: r.Text("expression")}
			}
			return channel.SetCronJobs(c, jobs)
		},
	},

	TableHTTPHeaders: listEntryTable(
		func(c *model.Channel, id int64) *model.Map[model.ListEntry] {
			if p, ok := destinationProps[*model.HTTPSenderProperties](c, id); ok {
				return p.Headers
			}
			return nil
		},
		func(c *model.Channel, id int64, m *model.Map[model.ListEntry]) *model.Channel {
			return channel.UpdateDestination(c, id, func(p *model.HTTPSenderProperties) { p.Headers = m })
		},
	),

	TableHTTPParameters: listEntryTable(
		func(c *model.Channel, id int64) *model.Map[model.ListEntry] {
			if p, ok := destinationProps[*model.HTTPSenderProperties](c, id); ok {
				return p.Parameters
			}
			return nil
		},
		func(c *model.Channel, id int64, m *model.Map[model.ListEntry]) *model.Channel {
			return channel.UpdateDestination(c, id, func(p *model.HTTPSenderProperties) { p.Parameters = m })
		},
	),

	TableWebServiceHeaders: listEntryTable(
		func(c *model.Channel, id int64) *model.Map[model.ListEntry] {
			if p, ok := destinationProps[*model.WebServiceSenderProperties](c, id); ok {
				return p.Headers
			}
			return nil
		},
		func(c *model.Channel, id int64, m *model.Map[model.ListEntry]) *model.Channel {
			return channel.UpdateDestination(c, id, func(p *model.WebServiceSenderProperties) { p.Headers = m })
		},
	),

	TableHTTPResponseHeaders: listEntryTable(
		func(c *model.Channel, _ int64) *model.Map[model.ListEntry] {
			if p, ok := sourceProps[*model.HTTPListenerProperties](c); ok {
				return p.ResponseHeaders
			}
			return nil
		},
		func(c *model.Channel, _ int64, m *model.Map[model.ListEntry]) *model.Channel {
			return channel.UpdateSource(c, func(p *model.HTTPListenerProperties) { p.ResponseHeaders = m })
		},
	),

	TableStaticResources: {
		columns: []Column{
			{ID: "contextPath", Title: "Context Path"},
			{ID: "resourceType", Title: "Resource Type"},
			{ID: "value", Title: "Value"},
			{ID: "contentType", Title: "Content Type"},
		},
		rows: func(c *model.Channel, _ int64) []Row {
			p, ok := sourceProps[*model.HTTPListenerProperties](c)
			if !ok || p.StaticResources == nil {
				return []Row{}
			}
			rows := make([]Row, len(p.StaticResources.Resource))
			for i, r := range p.StaticResources.Resource {
				rows[i] = Row{ID: strconv.Itoa(i), Cells: map[string]Cell{
					"contextPath":  text(r.ContextPath),
					"resourceType": choice(r.ResourceType, []Option{{"FILE", "File"}, {"DIRECTORY", "Directory"}, {"CUSTOM", "Custom"}}),
					"value":        text(r.Value),
					"contentType":  text(r.ContentType),
				}}
			}
			return rows
		},
		apply: func(c *model.Channel, _ int64, rows []Row) *model.Channel {
			res := make([]model.StaticResource, len(rows))
			for i, r := range rows {
				res[i] = model.StaticResource{
					ContextPath:  r.Text("contextPath"),
					ResourceType: r.Text("resourceType"),
					Value:        r.Text("value"),
					ContentType:  r.Text("contentType"),
				}
			}
			return channel.UpdateSource(c, func(p *model.HTTPListenerProperties) {
				p.StaticResources = &model.StaticResources{Resource: res}
			})
		},
	},

	TableSMTPAttachments: {
		columns: []Column{{ID: "name", Title: "Name"}, {ID: "content", Title: "Content"}, {ID: "mimeType", Title: "MIME Type"}},
		rows: func(c *model.Channel, id int64) []Row {
			p, ok := destinationProps[*model.SMTPSenderProperties](c, id)
			if !ok || p.Attachments == nil {
				return []Row{}
			}
			rows := make([]Row, len(p.Attachments.Attachment))
			for i, a := range p.Attachments.Attachment {
				rows[i] = Row{ID: strconv.Itoa(i), Cells: map[string]Cell{
					"name":     text(a.Name),
					"content":  text(a.Content),
					"mimeType": text(a.MimeType),
				}}
			}
			return rows
		},
		apply: func(c *model.Channel, id int64, rows []Row) *model.Channel {
			atts := make([]model.SMTPAttachment, len(rows))
			for i, r := range rows {
				atts[i] = model.SMTPAttachment{Name: r.Text("name"), Content: r.Text("content"), MimeType: r.Text("mimeType")}
			}
			return channel.UpdateDestination(c, id, func(p *model.SMTPSenderProperties) {
				p.Attachments = &model.SMTPAttachments{Attachment: atts}
			})
		},
	},

	TableSMTPHeaders: stringEntryTable(
		func(c *model.Channel, id int64) *model.Map[model.StringEntry] {
			if p, ok := destinationProps[*model.SMTPSenderProperties](c, id); ok {
				return p.Headers
			}
			return nil
		},
		func(c *model.Channel, id int64, m *model.Map[model.StringEntry]) *model.Channel {
			return channel.UpdateDestination(c, id, func(p *model.SMTPSenderProperties) { p.Headers = m })
		},
	),

	// JMS connection properties of the source when target is 0, otherwise of
	// the addressed JMS sender.
	TableJMSConnectionProps: stringEntryTable(
		func(c *model.Channel, id int64) *model.Map[model.StringEntry] {
			if id == channel.SourceTarget {
				if p, ok := sourceProps[*model.JMSListenerProperties](c); ok {
					return p.ConnectionProperties
				}
				return nil
			}
			if p, ok := destinationProps[*model.JMSSenderProperties](c, id); ok {
				return p.ConnectionProperties
			}
			return nil
		},
		func(c *model.Channel, id int64, m *model.Map[model.StringEntry]) *model.Channel {
			if id == channel.SourceTarget {
				return channel.UpdateSource(c, func(p *model.JMSListenerProperties) { p.ConnectionProperties = m })
			}
			return channel.UpdateDestination(c, id, func(p *model.JMSSenderProperties) { p.ConnectionProperties = m })
		},
	),
}

func sourceProps[P model.SourceProperties](c *model.Channel) (P, bool) {
	var zero P
	if c.SourceConnector == nil {
		return zero, false
	}
	p, ok := c.SourceConnector.Properties.(P)
	return p, ok
}

func destinationProps[P model.DestinationProperties](c *model.Channel, id int64) (P, bool) {
	var zero P
	d := c.Destination(id)
	if d == nil {
		return zero, false
	}
	p, ok := d.Properties.(P)
	return p, ok
}

// listEntryTable projects a name to values map with one row per value. Rows
// sharing a name are grouped back into one entry in first-seen order.
func listEntryTable(
	get func(c *model.Channel, target int64) *model.Map[model.ListEntry],
	set func(c *model.Channel, target int64, m *model.Map[model.ListEntry]) *model.Channel,
) tableDef {
	return tableDef{
		columns: []Column{{ID: "name", Title: "Name"}, {ID: "value", Title: "Value"}},
		rows: func(c *model.Channel, target int64) []Row {
			m := get(c, target)
			rows := []Row{}
			if m == nil {
				return rows
			}
			for _, e := range m.Entry {
				var values []string
				if e.List != nil {
					values = e.List.String
				}
				if len(values) == 0 {
					values = []string{""}
				}
				for _, v := range values {
					rows = append(rows, Row{ID: strconv.Itoa(len(rows)), Cells: map[string]Cell{
						"name":  text(e.String),
						"value": text(v),
					}})
				}
			}
			return rows
		},
		apply: func(c *model.Channel, target int64, rows []Row) *model.Channel {
			m := model.NewMap[model.ListEntry]()
			index := map[string]int{}
			for _, r := range rows {
				name := r.Text("name")
				i, ok := index[name]
				if !ok {
					i = len(m.Entry)
					index[name] = i
					m.Entry = append(m.Entry, model.ListEntry{String: name, List: &model.Strings{}})
				}
				m.Entry[i].List.String = append(m.Entry[i].List.String, r.Text("value"))
			}
			return set(c, target, m)
		},
	}
}

func stringEntryTable(
	get func(c *model.Channel, target int64) *model.Map[model.StringEntry],
	set func(c *model.Channel, target int64, m *model.Map[model.StringEntry]) *model.Channel,
) tableDef {
	return tableDef{
		columns: []Column{{ID: "name", Title: "Name"}, {ID: "value", Title: "Value"}},
		rows: func(c *model.Channel, target int64) []Row {
			m := get(c, target)
			if m == nil {
				return []Row{}
			}
			rows := make([]Row, len(m.Entry))
			for i, e := range m.Entry {
				rows[i] = Row{ID: strconv.Itoa(i), Cells: map[string]Cell{
					"name":  text(e.Key()),
					"value": text(e.Value()),
				}}
			}
			return rows
		},
		apply: func(c *model.Channel, target int64, rows []Row) *model.Channel {
			m := model.NewMap[model.StringEntry]()
			for _, r := range rows {
				m.Entry = append(m.Entry, model.StringEntry{String: []string{r.Text("name"), r.Text("value")}})
			}
			return set(c, target, m)
		},
	}
}

// TableNames lists the projected tables, sorted.
func TableNames() []string {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Project builds the named table from c. target is the destination
// metaDataId for per-destination tables and channel.SourceTarget otherwise.
func Project(c *model.Channel, name string, target int64) (*Table, error) {
	def, ok := tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
	return &Table{Name: name, Columns: def.columns, Rows: def.rows(c, target)}, nil
}

// ApplyRows maps edited rows of the named table back onto c.
func ApplyRows(c *model.Channel, name string, target int64, rows []Row) (*model.Channel, error) {
	def, ok := tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
	return def.apply(c, target, rows), nil
}
