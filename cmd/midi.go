package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/vsariola/groovebox/player/gomidi"
)

// OpenMidi connects the first MIDI input whose name starts with prefix to
// target. The returned context must be closed by the caller, also on error.
// Without cgo no inputs exist and an error is returned.
func OpenMidi(target gomidi.Target, prefix string, log logrus.FieldLogger) (*gomidi.Context, error) {
	ctx := gomidi.NewContext()
	router := gomidi.NewRouter(target, prefix, log)
	name, err := ctx.Open(prefix, router)
	if err != nil {
		log.WithField("available", ctx.Inputs()).Debug("MIDI inputs")
		return ctx, err
	}
	log.WithField("device", name).Info("MIDI input opened")
	return ctx, nil
}
