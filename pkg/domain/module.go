package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Param describes one configuration parameter of an embedded software module.
type Param struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Unit    string   `json:"unit,omitempty"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Values  []any    `json:"values,omitempty"`
	Default any      `json:"default,omitempty"`
	Pattern string   `json:"pattern,omitempty"`
}

// UnmarshalJSON accepts min and max as numbers or numeric strings. Any other
// bound value is dropped instead of failing the whole document.
func (p *Param) UnmarshalJSON(data []byte) error {
	type plain Param
	var aux struct {
		plain
		Min json.RawMessage `json:"min"`
		Max json.RawMessage `json:"max"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = Param(aux.plain)
	p.Min = lenientBound(aux.Min)
	p.Max = lenientBound(aux.Max)
	return nil
}

func lenientBound(raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return &f
		}
	}
	return nil
}

// Range renders "min – max" when either bound is set.
func (p Param) Range() string {
	if p.Min == nil && p.Max == nil {
		return ""
	}
	var lo, hi string
	if p.Min != nil {
		lo = FormatValue(*p.Min)
	}
	if p.Max != nil {
		hi = FormatValue(*p.Max)
	}
	return lo + " – " + hi
}

// Module is a software component definition grouped by its class.
type Module struct {
	Module string  `json:"module"`
	Class  string  `json:"class"`
	Config []Param `json:"config"`
}

// SameModule identifies modules across dataset replacements by name and class.
func SameModule(a, b Module) bool {
	return a.Module == b.Module && a.Class == b.Class
}

// Haystack concatenates the searchable text of a module: its name, class and
// each parameter's name, type and values.
func (m Module) Haystack() string {
	parts := make([]string, 0, len(m.Config)+2)
	parts = append(parts, m.Module, m.Class)
	for _, p := range m.Config {
		parts = append(parts, p.Name+" "+p.Type+" "+FormatValue(p.Values))
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// ParamTypes returns the distinct parameter types in first-seen order.
func (m Module) ParamTypes() []string {
	seen := make(map[string]struct{}, len(m.Config))
	var out []string
	for _, p := range m.Config {
		if _, dup := seen[p.Type]; dup {
			continue
		}
		seen[p.Type] = struct{}{}
		out = append(out, p.Type)
	}
	return out
}
