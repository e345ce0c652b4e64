package parameter

import (
	"fmt"
	"time"
)

// Cache holds the last known value of a parameter together with the raw
// value and the time it was recorded.
//
// A Cache is owned by exactly one Parameter and is not safe for concurrent
// use; callers serialize access to the parameter.
type Cache struct {
	param *Parameter

	value     interface{}
	raw       interface{}
	timestamp time.Time

	maxValAge    time.Duration
	hasMaxValAge bool
	invalidated  bool
}

func newCache(param *Parameter, maxValAge time.Duration, hasMaxValAge bool) *Cache {
	return &Cache{param: param, maxValAge: maxValAge, hasMaxValAge: hasMaxValAge}
}

// Get returns the cached value if it is valid.
//
// An invalid or unknown value is refreshed through the parameter getter when
// getIfInvalid is true. With getIfInvalid false the stored value is returned
// as is, which is nil if nothing was ever recorded.
func (c *Cache) Get(getIfInvalid bool) (interface{}, error) {
	if c.Valid() {
		return c.value, nil
	}
	if !getIfInvalid {
		return c.value, nil
	}
	p := c.param
	if p.getter.Present() {
		p.collector.IncCacheRefresh(p.FullName())
		return p.Get()
	}
	if c.timestamp.IsZero() {
		return nil, &InvalidStateError{
			Parameter: p.FullName(),
			Reason: fmt.Sprintf("Value of parameter %s is unknown and the parameter does not have a get command. "+
				"Set a value on the parameter before reading it from the cache", p.FullName()),
		}
	}
	if c.hasMaxValAge {
		return nil, &InvalidStateError{
			Parameter: p.FullName(),
			Reason:    fmt.Sprintf("parameter %s: `max_val_age` is not supported for a parameter without get", p.FullName()),
		}
	}
	// Only reachable after Invalidate on a parameter without getter: nothing
	// can refresh the value, so the stale one is all there is.
	return c.value, nil
}

// Valid reports whether the cached value is recorded, not invalidated and
// younger than the configured maximum age. It never triggers I/O.
func (c *Cache) Valid() bool {
	if c.timestamp.IsZero() || c.invalidated {
		return false
	}
	if !c.hasMaxValAge {
		return true
	}
	return c.param.now().Sub(c.timestamp) <= c.maxValAge
}

// Timestamp returns the time of the last update and false if the value was
// never recorded.
func (c *Cache) Timestamp() (time.Time, bool) {
	return c.timestamp, !c.timestamp.IsZero()
}

// RawValue returns the last known raw value or nil.
func (c *Cache) RawValue() interface{} {
	return c.raw
}

// MaxValAge returns the configured maximum value age and whether one is set.
func (c *Cache) MaxValAge() (time.Duration, bool) {
	return c.maxValAge, c.hasMaxValAge
}

// Invalidate marks the stored value stale without discarding it. The next
// Get with getIfInvalid refreshes it through the getter.
func (c *Cache) Invalidate() {
	c.invalidated = true
}

// UpdateWith stores value, raw value and timestamp in one step without any
// instrument I/O.
func (c *Cache) UpdateWith(value, raw interface{}, ts time.Time) {
	c.value = value
	c.raw = raw
	c.timestamp = ts
	c.invalidated = false
}

// SetFromRaw stores a raw value and derives the cooked value through the
// parameter transform. The timestamp is the current time.
func (c *Cache) SetFromRaw(raw interface{}) error {
	value, err := c.param.transform.FromRaw(raw)
	if err != nil {
		return fmt.Errorf("parameter %s: %w", c.param.FullName(), err)
	}
	c.UpdateWith(value, raw, c.param.now())
	return nil
}

// Set validates a cooked value, derives its raw value and stores both
// without touching the instrument.
func (c *Cache) Set(value interface{}) error {
	raw, err := c.param.prepareSet(value)
	if err != nil {
		return err
	}
	c.UpdateWith(value, raw, c.param.now())
	return nil
}
