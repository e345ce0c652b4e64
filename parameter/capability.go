package parameter

// GetFunc reads the raw value from the underlying instrument.
type GetFunc func() (interface{}, error)

// SetFunc writes a raw value to the underlying instrument.
type SetFunc func(raw interface{}) error

// CapabilityMode describes how a parameter performs one direction of I/O.
type CapabilityMode int

const (
	// CapabilityNone means the direction is not supported at all.
	CapabilityNone CapabilityMode = iota
	// CapabilityManual means no instrument I/O: gets return the cached raw
	// value and sets only record the new value.
	CapabilityManual
	// CapabilityFunc means I/O goes through a user supplied function.
	CapabilityFunc
)

func (m CapabilityMode) String() string {
	switch m {
	case CapabilityNone:
		return "none"
	case CapabilityManual:
		return "manual"
	case CapabilityFunc:
		return "func"
	default:
		return "unknown"
	}
}

// Getter is the read capability of a parameter.
type Getter struct {
	mode CapabilityMode
	fn   GetFunc
}

// NoGetter returns the capability of a parameter that cannot be read.
func NoGetter() Getter {
	return Getter{mode: CapabilityNone}
}

// ManualGetter returns a getter that reports the last cached raw value.
func ManualGetter() Getter {
	return Getter{mode: CapabilityManual}
}

// GetterFunc wraps fn as a read capability. A nil fn yields NoGetter.
func GetterFunc(fn GetFunc) Getter {
	if fn == nil {
		return NoGetter()
	}
	return Getter{mode: CapabilityFunc, fn: fn}
}

// Mode reports the capability variant.
func (g Getter) Mode() CapabilityMode {
	return g.mode
}

// Present reports whether the parameter can be read.
func (g Getter) Present() bool {
	return g.mode != CapabilityNone
}

// Setter is the write capability of a parameter.
type Setter struct {
	mode CapabilityMode
	fn   SetFunc
}

// NoSetter returns the capability of a parameter that cannot be written.
func NoSetter() Setter {
	return Setter{mode: CapabilityNone}
}

// ManualSetter returns a setter that only records the value in the cache.
func ManualSetter() Setter {
	return Setter{mode: CapabilityManual}
}

// SetterFunc wraps fn as a write capability. A nil fn yields NoSetter.
func SetterFunc(fn SetFunc) Setter {
	if fn == nil {
		return NoSetter()
	}
	return Setter{mode: CapabilityFunc, fn: fn}
}

// Mode reports the capability variant.
func (s Setter) Mode() CapabilityMode {
	return s.mode
}

// Present reports whether the parameter can be written.
func (s Setter) Present() bool {
	return s.mode != CapabilityNone
}
