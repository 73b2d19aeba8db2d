// Package caller carries the per-operation context: who is calling and any
// read-only values the host attached when the operation arrived.
package caller

import (
	"context"
	"net/http"
)

// Context is built once per operation and never mutated afterwards.
type Context struct {
	identity string
	values   map[string]any
}

// New returns a Context. values is copied.
func New(identity string, values map[string]any) *Context {
	c := &Context{identity: identity}
	if len(values) > 0 {
		c.values = make(map[string]any, len(values))
		for k, v := range values {
			c.values[k] = v
		}
	}
	return c
}

// Anonymous is a Context without identity.
func Anonymous() *Context { return &Context{} }

func (c *Context) Identity() string {
	if c == nil {
		return ""
	}
	return c.identity
}

func (c *Context) Authenticated() bool { return c.Identity() != "" }

func (c *Context) Value(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.values[key]
	return v, ok
}

type key struct{}

// NewContext returns a copy of parent carrying c.
func NewContext(parent context.Context, c *Context) context.Context {
	return context.WithValue(parent, key{}, c)
}

// FromContext returns the Context stored in ctx, or an anonymous one.
func FromContext(ctx context.Context) *Context {
	if c, ok := ctx.Value(key{}).(*Context); ok && c != nil {
		return c
	}
	return Anonymous()
}

// Func builds the operation Context from the transport connection.
type Func func(r *http.Request) *Context

// FromHeader returns a Func that takes the identity from the named header.
func FromHeader(header string) Func {
	return func(r *http.Request) *Context {
		return New(r.Header.Get(header), nil)
	}
}
