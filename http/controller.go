package http

import (
	"fmt"
	"strings"
)

// Endpoint is one route a Controller exposes.
type Endpoint struct {
	Method  string
	Path    string
	Handler Handler
}

// Controller groups related endpoints, typically methods on a struct that
// share a service.
type Controller interface {
	Routes() []Endpoint
}

// ControllerFunc adapts a plain function to Controller.
type ControllerFunc func() []Endpoint

func (f ControllerFunc) Routes() []Endpoint { return f() }

// Mount registers every endpoint of c. Nothing is registered when any
// endpoint is incomplete.
func (router *Router) Mount(c Controller) error {
	endpoints := c.Routes()
	for i, endpoint := range endpoints {
		if err := endpoint.validate(); err != nil {
			return fmt.Errorf("controller %T endpoint %d: %w", c, i, err)
		}
	}

	for _, endpoint := range endpoints {
		router.Register(endpoint.Method, endpoint.Path, endpoint.Handler)
	}
	return nil
}

func (endpoint Endpoint) validate() error {
	switch {
	case strings.TrimSpace(endpoint.Method) == "":
		return fmt.Errorf("missing method for path %q", endpoint.Path)
	case endpoint.Path == "":
		return fmt.Errorf("missing path for method %s", endpoint.Method)
	case endpoint.Handler == nil:
		return fmt.Errorf("missing handler for %s %s", endpoint.Method, endpoint.Path)
	}
	return nil
}
