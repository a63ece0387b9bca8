package cascade

// Params is the parameter context forwarded from link to link. The engine
// treats it as opaque: values flow through submissions and continuations
// without interpretation. Values must survive a JSON round trip when a
// durable store or the remote platform is in play.
type Params map[string]any

// Clone returns a shallow copy of p. A nil receiver yields an empty map so
// callers can mutate the result unconditionally.
func (p Params) Clone() Params {
	cp := make(Params, len(p))
	for k, v := range p {
		cp[k] = v
	}
	return cp
}

// Merge returns a new Params combining p with overrides. Keys present in
// overrides win over inherited keys; neither input is mutated.
func (p Params) Merge(overrides Params) Params {
	merged := p.Clone()
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

// String returns the string value stored under key.
func (p Params) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Int returns the integer value stored under key. Values that passed
// through JSON arrive as float64 and are converted.
func (p Params) Int(key string) (int, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// Bool returns the boolean value stored under key.
func (p Params) Bool(key string) (bool, bool) {
	v, ok := p[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Float returns the float value stored under key.
func (p Params) Float(key string) (float64, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
