// Package model contains domain models passed between layers.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Parameter is one named, bounded numeric value exposed by the CAD side.
type Parameter struct {
	Name        string  `json:"name"`
	Value       float64 `json:"value"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Label       string  `json:"label,omitempty"`
	Description string  `json:"description,omitempty"`
}

// Bounded reports whether the parameter declares a usable [Min, Max] range.
// A degenerate range (Min >= Max) is treated as unbounded.
func (p Parameter) Bounded() bool { return p.Min < p.Max }

// Clamp returns v limited to the parameter's range.
func (p Parameter) Clamp(v float64) float64 {
	if !p.Bounded() {
		return v
	}
	if v < p.Min {
		return p.Min
	}
	if v > p.Max {
		return p.Max
	}
	return v
}

// Schema is the ordered parameter set. It is always replaced wholesale.
type Schema []Parameter

// MarshalJSON encodes a nil schema as an empty list.
func (s Schema) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Parameter(s))
}

// Lookup returns the parameter called name.
func (s Schema) Lookup(name string) (Parameter, bool) {
	for _, p := range s {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// Names returns parameter names in schema order.
func (s Schema) Names() []string {
	out := make([]string, 0, len(s))
	for _, p := range s {
		out = append(out, p.Name)
	}
	return out
}

// Clone returns a copy that shares no backing array with s.
func (s Schema) Clone() Schema {
	if s == nil {
		return nil
	}
	out := make(Schema, len(s))
	copy(out, s)
	return out
}

// Filter keeps only keys present in the schema. When clamp is set, kept
// values are clamped into the declared bounds. The input is not modified.
func (s Schema) Filter(u ParameterUpdate, clamp bool) (kept ParameterUpdate, dropped []string) {
	kept = make(ParameterUpdate, len(u))
	for name, v := range u {
		p, ok := s.Lookup(name)
		if !ok {
			dropped = append(dropped, name)
			continue
		}
		if clamp {
			v = p.Clamp(v)
		}
		kept[name] = v
	}
	return kept, dropped
}

// Apply returns a copy of the schema with values taken from u.
func (s Schema) Apply(u ParameterUpdate) Schema {
	out := s.Clone()
	for i := range out {
		if v, ok := u[out[i].Name]; ok {
			out[i].Value = v
		}
	}
	return out
}

// DecodeSchema parses a JSON parameter list. Every element must be an object
// carrying a non-empty string "name". An empty list decodes to an empty
// schema; callers that require entries check the length themselves.
func DecodeSchema(raw json.RawMessage) (Schema, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: params missing", ErrInvalidSchema)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: params must be a list: %w", ErrInvalidSchema, err)
	}

	out := make(Schema, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(item, &probe); err != nil || probe == nil {
			return nil, fmt.Errorf("%w: params[%d] is not an object", ErrInvalidSchema, i)
		}
		var p Parameter
		if err := json.Unmarshal(item, &p); err != nil {
			return nil, fmt.Errorf("%w: params[%d]: %w", ErrInvalidSchema, i, err)
		}
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return nil, fmt.Errorf("%w: params[%d] has no name", ErrInvalidSchema, i)
		}
		if _, dup := seen[p.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate parameter %q", ErrInvalidSchema, p.Name)
		}
		seen[p.Name] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

// ParameterUpdate maps parameter names to new values. Only changed
// parameters are present; an empty update means "no changes".
type ParameterUpdate map[string]float64

// UnmarshalJSON decodes an update, dropping parameters whose value is null.
// A null parameter means "no change", not zero.
func (u *ParameterUpdate) UnmarshalJSON(b []byte) error {
	var raw map[string]*float64
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == nil {
		*u = nil
		return nil
	}
	out := make(ParameterUpdate, len(raw))
	for name, v := range raw {
		if v != nil {
			out[name] = *v
		}
	}
	*u = out
	return nil
}

// Empty reports whether u carries no changes.
func (u ParameterUpdate) Empty() bool { return len(u) == 0 }

// Clone copies u. A nil update clones to nil.
func (u ParameterUpdate) Clone() ParameterUpdate {
	if u == nil {
		return nil
	}
	out := make(ParameterUpdate, len(u))
	for k, v := range u {
		out[k] = v
	}
	return out
}
