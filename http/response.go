package http

import (
	"fmt"
	"slices"
)

const contentTypeText = "text/plain"

// Response is one outgoing response. It is never modified after
// construction; Content-Length is computed by the writer.
type Response struct {
	status  int
	reason  string
	headers Headers
	body    string
}

// NewResponse builds a response. An empty reason falls back to the standard
// reason phrase for status.
func NewResponse(status int, reason string, body string, headers ...Header) *Response {
	if reason == "" {
		reason = StatusText(status)
	}

	var hs Headers
	for _, h := range headers {
		hs = hs.set(h.Name, h.Value)
	}

	return &Response{
		status:  status,
		reason:  reason,
		headers: hs,
		body:    body,
	}
}

// Text builds a text/plain response with the standard reason phrase.
func Text(status int, body string) *Response {
	return NewResponse(status, "", body, Header{Name: "Content-Type", Value: contentTypeText})
}

func OK(body string) *Response {
	return Text(StatusOK, body)
}

func BadRequest(body string) *Response {
	return Text(StatusBadRequest, body)
}

func NotFound(body string) *Response {
	return Text(StatusNotFound, body)
}

func InternalServerError() *Response {
	return Text(StatusInternalServerError, "500 Internal Server Error")
}

func ServiceUnavailable() *Response {
	return Text(StatusServiceUnavailable, "503 Service Unavailable")
}

func routeNotFound(method, path string) *Response {
	return NotFound(fmt.Sprintf("Path not found with method: %s %s", method, path))
}

func (res *Response) StatusCode() int { return res.status }

func (res *Response) Reason() string { return res.reason }

func (res *Response) Headers() Headers { return slices.Clone(res.headers) }

func (res *Response) Header(name string) (string, bool) {
	return res.headers.Get(name)
}

func (res *Response) Body() string { return res.body }

// WithHeader returns a copy of res with the header added or replaced.
func (res *Response) WithHeader(name, value string) *Response {
	derived := *res
	derived.headers = slices.Clone(res.headers).set(name, value)
	return &derived
}
