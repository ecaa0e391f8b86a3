package audit

import "github.com/rs/zerolog"

// optionalDict accumulates fields for a nested log object that is only
// written when at least one field was set.
type optionalDict struct {
	ev  *zerolog.Event
	set bool
}

func (d *optionalDict) event() *zerolog.Event {
	if d.ev == nil {
		d.ev = zerolog.Dict()
	}
	return d.ev
}

func (d *optionalDict) Str(key, val string) *optionalDict {
	if val == "" {
		return d
	}
	d.event().Str(key, val)
	d.set = true
	return d
}

func (d *optionalDict) Int(key string, val int) *optionalDict {
	if val == 0 {
		return d
	}
	d.event().Int(key, val)
	d.set = true
	return d
}

func (d *optionalDict) Float(key string, val float64) *optionalDict {
	if val == 0 {
		return d
	}
	d.event().Float64(key, val)
	d.set = true
	return d
}

// writeTo adds the dict to parent under key, reporting whether anything was
// written.
func (d *optionalDict) writeTo(parent *zerolog.Event, key string) bool {
	if !d.set {
		return false
	}
	parent.Dict(key, d.event())
	return true
}
