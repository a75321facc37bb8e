// Package fx has simple 16-bit stereo effects implementing
// groovebox.Effect, and builds effect chains from kit configuration.
package fx

import (
	"math"
	"strings"

	"github.com/pkg/errors"
	"github.com/vsariola/groovebox"
)

type (
	// param describes one integer parameter of an effect.
	param struct {
		name          string
		min, max, def int
	}

	params struct {
		defs   []param
		values []int
	}

	namedParams interface {
		paramIndex(name string) (int, bool)
	}
)

var ErrUnknownEffect = errors.New("unknown effect")

func newParams(defs ...param) params {
	p := params{defs: defs, values: make([]int, len(defs))}
	for i, d := range defs {
		p.values[i] = d.def
	}
	return p
}

func (p *params) NumParams() int { return len(p.defs) }

func (p *params) Param(index int) int {
	if index < 0 || index >= len(p.values) {
		return 0
	}
	return p.values[index]
}

// SetParam clamps value into the range of the parameter. Out of range
// indices are ignored.
func (p *params) SetParam(index, value int) {
	if index < 0 || index >= len(p.values) {
		return
	}
	d := p.defs[index]
	p.values[index] = min(max(value, d.min), d.max)
}

func saturate(v int32) int16 {
	return int16(min(max(v, -math.MaxInt16), math.MaxInt16))
}

// New creates the effect named by c.Type and applies c.Params in order,
// then c.Settings.
func New(c groovebox.EffectConfig) (groovebox.Effect, error) {
	var e groovebox.Effect
	switch strings.ToLower(c.Type) {
	case "gain":
		e = NewGain()
	case "delay":
		e = NewDelay()
	default:
		return nil, errors.Wrapf(ErrUnknownEffect, "%q", c.Type)
	}
	if len(c.Params) > e.NumParams() {
		return nil, errors.Errorf("effect %v takes %d parameters, got %d", c.Type, e.NumParams(), len(c.Params))
	}
	for i, v := range c.Params {
		e.SetParam(i, v)
	}
	for name, v := range c.Settings {
		i, ok := e.(namedParams).paramIndex(name)
		if !ok {
			return nil, errors.Errorf("effect %v has no parameter %q", c.Type, name)
		}
		e.SetParam(i, v)
	}
	return e, nil
}

// NewChain builds an effect chain from configuration.
func NewChain(configs []groovebox.EffectConfig) (groovebox.EffectChain, error) {
	if len(configs) == 0 {
		return nil, nil
	}
	chain := make(groovebox.EffectChain, len(configs))
	for i, c := range configs {
		e, err := New(c)
		if err != nil {
			return nil, errors.Wrapf(err, "effect %d", i)
		}
		chain[i] = e
	}
	return chain, nil
}

// paramIndex finds a parameter by name, ignoring case.
func (p *params) paramIndex(name string) (int, bool) {
	for i, d := range p.defs {
		if strings.EqualFold(d.name, name) {
			return i, true
		}
	}
	return 0, false
}
