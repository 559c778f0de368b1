package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// View is an ordered field-to-value mapping sent to clients. It encodes
// as a JSON object with fields in insertion order.
type View struct {
	keys   []string
	values map[string]any
}

// NewView returns an empty View.
func NewView() *View {
	return &View{values: make(map[string]any)}
}

// Set assigns a field. Re-setting a field keeps its original position.
func (v *View) Set(field string, value any) *View {
	if _, ok := v.values[field]; !ok {
		v.keys = append(v.keys, field)
	}
	v.values[field] = value
	return v
}

// Get returns a field value.
func (v *View) Get(field string) (any, bool) {
	val, ok := v.values[field]
	return val, ok
}

// Fields returns field names in order.
func (v *View) Fields() []string {
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// Len returns the number of fields.
func (v *View) Len() int { return len(v.keys) }

// Map returns an unordered copy of the fields.
func (v *View) Map() map[string]any {
	out := make(map[string]any, len(v.values))
	for k, val := range v.values {
		out[k] = val
	}
	return out
}

// MarshalJSON encodes the view as an object in field order.
func (v *View) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range v.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(v.values[k])
		if err != nil {
			return nil, fmt.Errorf("encoding field %s: %w", k, err)
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ClientView projects e for clients. A nil entity projects to nil.
func ClientView(e Entity) *View {
	if e == nil {
		return nil
	}
	return e.ClientView()
}

func baseView(b *Base) *View {
	return NewView().
		Set("id", b.ID).
		Set("created", b.Created.UTC().Format(time.RFC3339))
}

// ClientView returns id, created, label, pin and the value key.
// The live value itself is not read.
func (s *Sensor) ClientView() *View {
	return baseView(&s.Base).
		Set("label", s.Label).
		Set("pin", s.Pin).
		Set("key", string(FormatKey(KindSensor, s.ID, memberValue)))
}

// ClientView returns id, created, label, pin, value and the value key.
func (d *Device) ClientView() *View {
	return baseView(&d.Base).
		Set("label", d.Label).
		Set("pin", d.Pin).
		Set("value", d.Value).
		Set("key", string(FormatKey(KindDevice, d.ID, memberValue)))
}

// ClientView returns the rule with conditions in decoded wire form.
func (r *Rule) ClientView() *View {
	return baseView(&r.Base).
		Set("label", r.Label).
		Set("enabled", r.Enabled).
		Set("conditions", WireConditions(r.Conditions))
}
