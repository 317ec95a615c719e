package http

import "strings"

// Handler turns a request into a response. Handlers run concurrently on
// pool workers and must be safe for concurrent use.
type Handler func(req *Request) *Response

type RouteKind uint8

const (
	RouteLiteral RouteKind = iota
	RouteParameterized
)

func (kind RouteKind) String() string {
	if kind == RouteParameterized {
		return "parameterized"
	}
	return "literal"
}

type Route struct {
	Method  string
	Pattern string
	Kind    RouteKind
	Handler Handler

	segments []segment
}

// segment is one "/"-separated piece of a parameterized pattern: either a
// literal that must match exactly or a {name} placeholder.
type segment struct {
	value       string
	placeholder bool
}

func newRoute(method, pattern string, handler Handler) Route {
	route := Route{
		Method:  method,
		Pattern: pattern,
		Kind:    RouteLiteral,
		Handler: handler,
	}

	if !strings.Contains(pattern, "{") {
		return route
	}

	route.Kind = RouteParameterized
	parts := splitPath(pattern)
	route.segments = make([]segment, len(parts))
	for i, part := range parts {
		if len(part) >= 2 && part[0] == '{' && part[len(part)-1] == '}' {
			route.segments[i] = segment{value: part[1 : len(part)-1], placeholder: true}
		} else {
			route.segments[i] = segment{value: part}
		}
	}

	return route
}

// splitPath splits p on "/" and drops trailing empty segments, so "/a/" and
// "/a" both yield ["", "a"] and "/" yields no segments. Empty segments between
// slashes are kept.
func splitPath(p string) []string {
	parts := strings.Split(p, "/")
	for len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// match binds the request segments against the route's pattern. It reports
// false on any length or literal mismatch.
func (route *Route) match(requestSegments []string) (Params, bool) {
	if len(route.segments) != len(requestSegments) {
		return nil, false
	}

	var params Params
	for i, seg := range route.segments {
		actual := requestSegments[i]
		if seg.placeholder {
			params = params.set(seg.value, actual)
			continue
		}
		if seg.value != actual {
			return nil, false
		}
	}

	if params == nil {
		params = Params{}
	}
	return params, true
}
