//go:build cgo

package gomidi

import (
	"strings"

	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// Context owns the rtmidi driver and at most one open input port.
type Context struct {
	driver *rtmididrv.Driver
	in     drivers.In
	stop   func()
}

// NewContext opens the driver. A context without a driver is still usable;
// it just has no inputs.
func NewContext() *Context {
	c := &Context{}
	// there's not much we can do if this fails, so just use c.driver = nil to
	// indicate no driver available
	c.driver, _ = rtmididrv.New()
	return c
}

// Inputs returns the names of the available input ports.
func (c *Context) Inputs() []string {
	if c.driver == nil {
		return nil
	}
	ins, err := c.driver.Ins()
	if err != nil {
		return nil
	}
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	return names
}

// Open starts listening to the first input whose name starts with prefix,
// or to the first input at all if prefix is empty. The currently open input
// is closed first. The returned string is the name of the opened port.
func (c *Context) Open(prefix string, r *Router) (string, error) {
	if c.driver == nil {
		return "", errors.New("no MIDI driver available")
	}
	ins, err := c.driver.Ins()
	if err != nil {
		return "", errors.Wrap(err, "could not list MIDI inputs")
	}
	for _, in := range ins {
		if !strings.HasPrefix(in.String(), prefix) {
			continue
		}
		c.closeInput()
		if err := in.Open(); err != nil {
			return "", errors.Wrapf(err, "opening MIDI input %q failed", in.String())
		}
		r.device = in.String()
		stop, err := midi.ListenTo(in, r.Handle, midi.UseTimeCode())
		if err != nil {
			in.Close()
			return "", errors.Wrapf(err, "listening to MIDI input %q failed", in.String())
		}
		c.in, c.stop = in, stop
		return in.String(), nil
	}
	return "", errors.Errorf("could not find a MIDI input starting with %q", prefix)
}

func (c *Context) closeInput() {
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	if c.in != nil && c.in.IsOpen() {
		c.in.Close()
	}
	c.in = nil
}

func (c *Context) Close() {
	if c.driver == nil {
		return
	}
	c.closeInput()
	c.driver.Close()
}
