package channel

import (
	"sort"

	"github.com/relaycore/channel-console/internal/model"
)

// SourceTarget addresses the source connector in filter and transformer
// operations; destinations are addressed by their metaDataId.
const SourceTarget int64 = 0

// RuleKind tags a filter rule with the elements key of its partition.
type RuleKind string

const (
	RuleJavaScript     RuleKind = model.RuleKindJavaScript
	RuleExternalScript RuleKind = model.RuleKindExternalScript
	RuleBuilder        RuleKind = model.RuleKindRuleBuilder
)

// Rule is one filter rule in the combined collection.
type Rule struct {
	Kind           RuleKind       `json:"kind"`
	Version        string         `json:"version,omitempty"`
	Name           string         `json:"name"`
	SequenceNumber int64          `json:"sequenceNumber"`
	Enabled        bool           `json:"enabled"`
	Operator       string         `json:"operator,omitempty"`
	Script         *string        `json:"script,omitempty"`
	ScriptPath     string         `json:"scriptPath,omitempty"`
	Field          string         `json:"field,omitempty"`
	Condition      string         `json:"condition,omitempty"`
	Values         *model.Strings `json:"values,omitempty"`
}

func (r Rule) base() model.RuleBase {
	return model.RuleBase{
		Version:        r.Version,
		Name:           r.Name,
		SequenceNumber: model.Int(r.SequenceNumber),
		Enabled:        r.Enabled,
		Operator:       r.Operator,
	}
}

func ruleFrom(kind RuleKind, b model.RuleBase) Rule {
	return Rule{
		Kind:           kind,
		Version:        b.Version,
		Name:           b.Name,
		SequenceNumber: int64(b.SequenceNumber),
		Enabled:        b.Enabled,
		Operator:       b.Operator,
	}
}

// FilterRules returns every rule of f across the kind partitions, ordered by
// sequence number.
func FilterRules(f *model.Filter) []Rule {
	if f == nil || f.Elements == nil {
		return nil
	}
	e := f.Elements
	rules := make([]Rule, 0, e.Len())
	for _, r := range e.JavaScriptRules {
		x := ruleFrom(RuleJavaScript, r.RuleBase)
		x.Script = r.Script
		rules = append(rules, x)
	}
	for _, r := range e.ExternalScriptRules {
		x := ruleFrom(RuleExternalScript, r.RuleBase)
		x.ScriptPath = r.ScriptPath
		rules = append(rules, x)
	}
	for _, r := range e.RuleBuilderRules {
		x := ruleFrom(RuleBuilder, r.RuleBase)
		x.Field, x.Condition, x.Values = r.Field, r.Condition, r.Values
		rules = append(rules, x)
	}
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].SequenceNumber < rules[j].SequenceNumber })
	return rules
}

// partition writes rules into the kind arrays of a copy of base. Rules of an
// unknown kind go to the External Script partition.
func partition(rules []Rule, base *model.FilterElements) *model.FilterElements {
	e := &model.FilterElements{}
	if base != nil {
		e.Extra = base.Extra
	}
	for _, r := range rules {
		switch r.Kind {
		case RuleJavaScript:
			e.JavaScriptRules = append(e.JavaScriptRules, model.JavaScriptRule{RuleBase: r.base(), Script: r.Script})
		case RuleBuilder:
			e.RuleBuilderRules = append(e.RuleBuilderRules, model.RuleBuilderRule{
				RuleBase: r.base(), Field: r.Field, Condition: r.Condition, Values: r.Values,
			})
		default:
			e.ExternalScriptRules = append(e.ExternalScriptRules, model.ExternalScriptRule{RuleBase: r.base(), ScriptPath: r.ScriptPath})
		}
	}
	return e
}

func withFilter(c *model.Channel, target int64, fn func(f *model.Filter)) *model.Channel {
	if target == SourceTarget {
		return withSource(c, func(s *model.SourceConnector) {
			f := cp(s.Filter)
			fn(f)
			s.Filter = f
		})
	}
	return UpdateDestinationConnector(c, target, func(d *model.DestinationConnector) {
		f := cp(d.Filter)
		fn(f)
		d.Filter = f
	})
}

func withTransformer(c *model.Channel, target int64, fn func(t *model.Transformer)) *model.Channel {
	if target == SourceTarget {
		return withSource(c, func(s *model.SourceConnector) {
			t := cp(s.Transformer)
			fn(t)
			s.Transformer = t
		})
	}
	return UpdateDestinationConnector(c, target, func(d *model.DestinationConnector) {
		t := cp(d.Transformer)
		fn(t)
		d.Transformer = t
	})
}

// FilterOf returns the filter of the addressed connector.
func FilterOf(c *model.Channel, target int64) *model.Filter {
	if target == SourceTarget {
		if c.SourceConnector == nil {
			return nil
		}
		return c.SourceConnector.Filter
	}
	if d := c.Destination(target); d != nil {
		return d.Filter
	}
	return nil
}

// TransformerOf returns the transformer of the addressed connector.
func TransformerOf(c *model.Channel, target int64) *model.Transformer {
	if target == SourceTarget {
		if c.SourceConnector == nil {
			return nil
		}
		return c.SourceConnector.Transformer
	}
	if d := c.Destination(target); d != nil {
		return d.Transformer
	}
	return nil
}

// SetFilterRules replaces the filter rules of the addressed connector.
func SetFilterRules(c *model.Channel, target int64, rules []Rule) *model.Channel {
	return withFilter(c, target, func(f *model.Filter) {
		f.Elements = partition(rules, f.Elements)
	})
}

// AddFilterRule appends an enabled External Script rule numbered after every
// existing rule.
func AddFilterRule(c *model.Channel, target int64) *model.Channel {
	return withFilter(c, target, func(f *model.Filter) {
		e := cp(f.Elements)
		rule := model.ExternalScriptRule{RuleBase: model.RuleBase{
			Version:        model.ConnectorVersion,
			Name:           "",
			SequenceNumber: model.Int(e.Len()),
			Enabled:        true,
		}}
		list := make(model.List[model.ExternalScriptRule], len(e.ExternalScriptRules), len(e.ExternalScriptRules)+1)
		copy(list, e.ExternalScriptRules)
		e.ExternalScriptRules = append(list, rule)
		f.Elements = e
	})
}

// DeleteFilterRule removes the rule numbered seq from every partition and
// closes the gap: each rule numbered above seq, in any partition, moves down
// by one. Partition membership and order are kept.
func DeleteFilterRule(c *model.Channel, target, seq int64) *model.Channel {
	return withFilter(c, target, func(f *model.Filter) {
		if f.Elements == nil {
			return
		}
		e := cp(f.Elements)
		e.JavaScriptRules = renumber(e.JavaScriptRules, seq, func(r *model.JavaScriptRule) *model.Int { return &r.SequenceNumber })
		e.ExternalScriptRules = renumber(e.ExternalScriptRules, seq, func(r *model.ExternalScriptRule) *model.Int { return &r.SequenceNumber })
		e.RuleBuilderRules = renumber(e.RuleBuilderRules, seq, func(r *model.RuleBuilderRule) *model.Int { return &r.SequenceNumber })
		f.Elements = e
	})
}

// ReplaceFilterRule puts r at sequence number seq. The old rule is removed from
// whichever partition held it and r is appended to the partition of its kind.
func ReplaceFilterRule(c *model.Channel, target, seq int64, r Rule) *model.Channel {
	r.SequenceNumber = seq
	if r.Version == "" {
		r.Version = model.ConnectorVersion
	}
	return withFilter(c, target, func(f *model.Filter) {
		e := cp(f.Elements)
		e.JavaScriptRules = without(e.JavaScriptRules, seq, func(x *model.JavaScriptRule) *model.Int { return &x.SequenceNumber })
		e.ExternalScriptRules = without(e.ExternalScriptRules, seq, func(x *model.ExternalScriptRule) *model.Int { return &x.SequenceNumber })
		e.RuleBuilderRules = without(e.RuleBuilderRules, seq, func(x *model.RuleBuilderRule) *model.Int { return &x.SequenceNumber })
		one := partition([]Rule{r}, nil)
		e.JavaScriptRules = append(e.JavaScriptRules, one.JavaScriptRules...)
		e.ExternalScriptRules = append(e.ExternalScriptRules, one.ExternalScriptRules...)
		e.RuleBuilderRules = append(e.RuleBuilderRules, one.RuleBuilderRules...)
		f.Elements = e
	})
}

// TransformerSteps returns the JavaScript steps of t ordered by sequence number.
func TransformerSteps(t *model.Transformer) []model.JavaScriptStep {
	if t == nil || t.Elements == nil {
		return nil
	}
	steps := append([]model.JavaScriptStep(nil), t.Elements.JavaScriptSteps...)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].SequenceNumber < steps[j].SequenceNumber })
	return steps
}

// SetTransformerSteps replaces the JavaScript steps of the addressed connector.
func SetTransformerSteps(c *model.Channel, target int64, steps []model.JavaScriptStep) *model.Channel {
	return withTransformer(c, target, func(t *model.Transformer) {
		e := cp(t.Elements)
		e.JavaScriptSteps = steps
		t.Elements = e
	})
}

// AddTransformerStep appends an enabled, empty JavaScript step.
func AddTransformerStep(c *model.Channel, target int64) *model.Channel {
	return withTransformer(c, target, func(t *model.Transformer) {
		e := cp(t.Elements)
		step := model.JavaScriptStep{
			Version:        model.ConnectorVersion,
			SequenceNumber: model.Int(len(e.JavaScriptSteps)),
			Enabled:        true,
			Script:         model.String(""),
		}
		list := make(model.List[model.JavaScriptStep], len(e.JavaScriptSteps), len(e.JavaScriptSteps)+1)
		copy(list, e.JavaScriptSteps)
		e.JavaScriptSteps = append(list, step)
		t.Elements = e
	})
}

// DeleteTransformerStep removes step seq and renumbers the steps above it.
func DeleteTransformerStep(c *model.Channel, target, seq int64) *model.Channel {
	return withTransformer(c, target, func(t *model.Transformer) {
		if t.Elements == nil {
			return
		}
		e := cp(t.Elements)
		e.JavaScriptSteps = renumber(e.JavaScriptSteps, seq, func(s *model.JavaScriptStep) *model.Int { return &s.SequenceNumber })
		t.Elements = e
	})
}

// ReplaceTransformerStep puts step at sequence number seq.
func ReplaceTransformerStep(c *model.Channel, target, seq int64, step model.JavaScriptStep) *model.Channel {
	step.SequenceNumber = model.Int(seq)
	if step.Version == "" {
		step.Version = model.ConnectorVersion
	}
	return withTransformer(c, target, func(t *model.Transformer) {
		e := cp(t.Elements)
		steps := make(model.List[model.JavaScriptStep], len(e.JavaScriptSteps))
		copy(steps, e.JavaScriptSteps)
		replaced := false
		for i := range steps {
			if int64(steps[i].SequenceNumber) == seq {
				steps[i] = step
				replaced = true
			}
		}
		if !replaced {
			steps = append(steps, step)
		}
		e.JavaScriptSteps = steps
		t.Elements = e
	})
}

// renumber drops the item numbered seq and decrements every number above it.
// The input is not modified.
func renumber[T any](items model.List[T], seq int64, num func(*T) *model.Int) model.List[T] {
	if items == nil {
		return nil
	}
	out := make(model.List[T], 0, len(items))
	for _, it := range items {
		n := num(&it)
		switch {
		case int64(*n) == seq:
			continue
		case int64(*n) > seq:
			*n--
		}
		out = append(out, it)
	}
	return out
}

func without[T any](items model.List[T], seq int64, num func(*T) *model.Int) model.List[T] {
	out := make(model.List[T], 0, len(items))
	for _, it := range items {
		if int64(*num(&it)) != seq {
			out = append(out, it)
		}
	}
	return out
}

// SetFilterElements replaces the kind-partitioned filter elements of the
// addressed connector as-is.
func SetFilterElements(c *model.Channel, target int64, e *model.FilterElements) *model.Channel {
	return withFilter(c, target, func(f *model.Filter) { f.Elements = e })
}
