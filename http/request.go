package http

import (
	"context"
	"slices"
	"strings"
)

// Param is a single name/value binding, used for query and path parameters.
type Param struct {
	Key   string
	Value string
}

// Params is an insertion-ordered set of bindings. Setting an existing key
// overwrites its value in place.
type Params []Param

func (params Params) Get(key string) (string, bool) {
	for _, p := range params {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

func (params Params) set(key, value string) Params {
	for i := range params {
		if params[i].Key == key {
			params[i].Value = value
			return params
		}
	}
	return append(params, Param{Key: key, Value: value})
}

// Map copies the bindings into a map, losing order.
func (params Params) Map() map[string]string {
	m := make(map[string]string, len(params))
	for _, p := range params {
		m[p.Key] = p.Value
	}
	return m
}

// Header is a single request or response header line.
type Header struct {
	Name  string
	Value string
}

// Headers keeps header lines in the order they were added. Lookups ignore case.
type Headers []Header

func (headers Headers) Get(name string) (string, bool) {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

func (headers Headers) set(name, value string) Headers {
	for i := range headers {
		if strings.EqualFold(headers[i].Name, name) {
			headers[i].Value = value
			return headers
		}
	}
	return append(headers, Header{Name: name, Value: value})
}

// Request is one parsed HTTP request. It is never modified after
// construction; routing produces a derived copy carrying path parameters.
type Request struct {
	method string
	uri    string
	path   string

	headers Headers
	query   Params
	params  Params
	body    []byte

	ctx context.Context
}

// NewRequest builds a request from its raw parts. The path and query
// parameters are derived from uri.
func NewRequest(method, uri string, headers Headers, body []byte) *Request {
	path, rawQuery, _ := strings.Cut(uri, "?")

	var hs Headers
	for _, h := range headers {
		hs = hs.set(h.Name, h.Value)
	}

	if len(body) == 0 {
		body = nil
	}

	return &Request{
		method:  method,
		uri:     uri,
		path:    path,
		headers: hs,
		query:   parseQuery(rawQuery),
		body:    body,
	}
}

func parseQuery(rawQuery string) Params {
	var query Params
	if rawQuery == "" {
		return query
	}
	for _, pair := range strings.Split(rawQuery, "&") {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			continue
		}
		query = query.set(key, value)
	}
	return query
}

func (req *Request) Method() string { return req.method }

// URI returns the request target exactly as received.
func (req *Request) URI() string { return req.uri }

func (req *Request) Path() string { return req.path }

func (req *Request) Header(name string) (string, bool) {
	return req.headers.Get(name)
}

func (req *Request) Headers() Headers { return slices.Clone(req.headers) }

func (req *Request) QueryParam(name string) (string, bool) {
	return req.query.Get(name)
}

func (req *Request) QueryParams() Params { return slices.Clone(req.query) }

func (req *Request) PathParam(name string) (string, bool) {
	return req.params.Get(name)
}

func (req *Request) PathParams() Params { return slices.Clone(req.params) }

// Body returns a copy of the request body, or nil when the request carried
// none.
func (req *Request) Body() []byte { return slices.Clone(req.body) }

func (req *Request) HasBody() bool { return len(req.body) > 0 }

func (req *Request) ContentLength() int { return len(req.body) }

// Context returns the request context. It is never nil.
func (req *Request) Context() context.Context {
	if req.ctx == nil {
		return context.Background()
	}
	return req.ctx
}

// WithContext returns a shallow copy of req with its context replaced.
func (req *Request) WithContext(ctx context.Context) *Request {
	if ctx == nil {
		panic("nil context")
	}
	derived := *req
	derived.ctx = ctx
	return &derived
}

func (req *Request) withPathParams(params Params) *Request {
	derived := *req
	derived.params = params
	return &derived
}
