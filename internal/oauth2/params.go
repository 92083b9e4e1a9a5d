package oauth2

import "net/url"

// Params is the multi-map of form parameters of a token or authorization
// request. The single/multi-valued distinction is the most common validation
// failure surface, so every grant type goes through the same accessors.
type Params map[string][]string

// ParamsFrom wraps parsed form values.
func ParamsFrom(v url.Values) Params {
	return Params(v)
}

// Has reports whether the parameter is present at all.
func (p Params) Has(name string) bool {
	return len(p[name]) > 0
}

// First returns the first value without any multiplicity check. Used only
// for the grant-type probe in converters; validated parameters go through
// Single or Require.
func (p Params) First(name string) string {
	if vs := p[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Single returns the value of an optional single-valued parameter. Empty
// string when absent; invalid_request naming the parameter when it appears
// more than once.
func (p Params) Single(name string) (string, error) {
	vs := p[name]
	switch len(vs) {
	case 0:
		return "", nil
	case 1:
		return vs[0], nil
	default:
		return "", InvalidRequest(name)
	}
}

// Require returns the value of a required single-valued parameter.
// invalid_request naming the parameter when absent, empty or duplicated.
func (p Params) Require(name string) (string, error) {
	vs := p[name]
	if len(vs) != 1 || vs[0] == "" {
		return "", InvalidRequest(name)
	}
	return vs[0], nil
}

// Additional collects the extension parameters: everything except the
// excluded protocol parameters, first value per key. Passed through opaque
// and unvalidated to downstream processors.
func (p Params) Additional(exclude ...string) map[string]string {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}
	out := map[string]string{}
	for name, vs := range p {
		if skip[name] || len(vs) == 0 {
			continue
		}
		out[name] = vs[0]
	}
	return out
}
