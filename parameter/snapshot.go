package parameter

import "time"

// Snapshot is a point-in-time record of a parameter.
type Snapshot struct {
	Name       string      `json:"name"`
	Instrument string      `json:"instrument,omitempty"`
	Label      string      `json:"label"`
	Unit       string      `json:"unit,omitempty"`
	Value      interface{} `json:"value"`
	RawValue   interface{} `json:"raw_value"`
	Timestamp  *time.Time  `json:"ts,omitempty"`
	MaxValAge  string      `json:"max_val_age,omitempty"`
}

// Snapshot describes the parameter. With update set and a getter present
// the value is read from the instrument first; otherwise only the cache is
// consulted.
func (p *Parameter) Snapshot(update bool) (Snapshot, error) {
	var value interface{}
	var err error
	if update && p.getter.Present() {
		value, err = p.Get()
	} else {
		value, err = p.cache.Get(false)
	}
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		Name:       p.name,
		Instrument: p.instrument,
		Label:      p.label,
		Unit:       p.unit,
		Value:      value,
		RawValue:   p.cache.RawValue(),
	}
	if ts, ok := p.cache.Timestamp(); ok {
		snap.Timestamp = &ts
	}
	if age, ok := p.cache.MaxValAge(); ok {
		snap.MaxValAge = age.String()
	}
	return snap, nil
}
