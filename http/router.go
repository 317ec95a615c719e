package http

import (
	"net/http"
)

type routeKey struct {
	method  string
	pattern string
}

// Router resolves a method and path to a handler. Literal routes live in a
// map; parameterized routes are tried in registration order.
//
// Registration is not synchronized with Resolve: every route must be
// registered before the server starts accepting connections.
type Router struct {
	literal       map[routeKey]Route
	literalOrder  []routeKey
	parameterized []Route
}

// Match is the outcome of a successful Resolve.
type Match struct {
	Route  Route
	Params Params
}

func NewRouter() *Router {
	return &Router{
		literal:       make(map[routeKey]Route),
		parameterized: make([]Route, 0),
	}
}

func (router *Router) GET(pattern string, handler Handler) {
	router.Register(http.MethodGet, pattern, handler)
}

func (router *Router) HEAD(pattern string, handler Handler) {
	router.Register(http.MethodHead, pattern, handler)
}

func (router *Router) POST(pattern string, handler Handler) {
	router.Register(http.MethodPost, pattern, handler)
}

func (router *Router) PUT(pattern string, handler Handler) {
	router.Register(http.MethodPut, pattern, handler)
}

func (router *Router) PATCH(pattern string, handler Handler) {
	router.Register(http.MethodPatch, pattern, handler)
}

func (router *Router) DELETE(pattern string, handler Handler) {
	router.Register(http.MethodDelete, pattern, handler)
}

func (router *Router) OPTIONS(pattern string, handler Handler) {
	router.Register(http.MethodOptions, pattern, handler)
}

// Register adds a route. A pattern without "{" is literal and replaces any
// earlier literal route with the same method and pattern; anything else is
// appended to the parameterized routes. Patterns are not validated.
func (router *Router) Register(method, pattern string, handler Handler) {
	route := newRoute(method, pattern, handler)

	if route.Kind == RouteLiteral {
		key := routeKey{method: method, pattern: pattern}
		if _, exists := router.literal[key]; !exists {
			router.literalOrder = append(router.literalOrder, key)
		}
		router.literal[key] = route
		return
	}

	router.parameterized = append(router.parameterized, route)
}

// Resolve looks up method and path. Literal routes win over parameterized
// ones; among parameterized routes the first registered match wins.
func (router *Router) Resolve(method, path string) (Match, bool) {
	if route, ok := router.literal[routeKey{method: method, pattern: path}]; ok {
		return Match{Route: route, Params: Params{}}, true
	}

	if len(router.parameterized) == 0 {
		return Match{}, false
	}

	requestSegments := splitPath(path)
	for i := range router.parameterized {
		route := &router.parameterized[i]
		if route.Method != method {
			continue
		}

		if params, ok := route.match(requestSegments); ok {
			return Match{Route: *route, Params: params}, true
		}
	}

	return Match{}, false
}

// Routes returns the registered routes, literal routes first.
func (router *Router) Routes() []Route {
	routes := make([]Route, 0, len(router.literalOrder)+len(router.parameterized))
	for _, key := range router.literalOrder {
		routes = append(routes, router.literal[key])
	}
	return append(routes, router.parameterized...)
}
