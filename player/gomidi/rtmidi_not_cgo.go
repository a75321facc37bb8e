//go:build !cgo

package gomidi

import "github.com/pkg/errors"

// Context is a stand-in used when cgo, and thus rtmidi, is not available.
type Context struct{}

func NewContext() *Context { return &Context{} }

func (c *Context) Inputs() []string { return nil }

func (c *Context) Open(prefix string, r *Router) (string, error) {
	return "", errors.New("MIDI support was not compiled in, rebuild with cgo enabled")
}

func (c *Context) Close() {}
