package cmd

import (
	"io"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"
	"github.com/vsariola/groovebox"
	"github.com/vsariola/groovebox/perf"
	"github.com/vsariola/groovebox/player"
)

// MeterWidth is the number of characters in the master level meter.
const MeterWidth = 10

// DefaultStatusFormat renders a one line summary of the player: row, tempo,
// clock source, a glyph per slot and the master meter.
const DefaultStatusFormat = `row {{printf "%02d" .Row}} | {{printf "%5.1f" .Tempo}} bpm {{if .External}}{{"ext" | upper}}{{else}}int{{end}} | ` +
	`{{range .Slots}}{{glyph .State}}{{end}} | {{repeat .Meter "#"}}{{repeat (sub .Width .Meter | int) "."}}`

type (
	// StatusPrinter formats player.Status with a text/template extended by
	// the sprig function library.
	StatusPrinter struct {
		tmpl *template.Template
	}

	statusData struct {
		player.Status
		Meter int
		Width int
	}
)

func NewStatusPrinter(format string) (*StatusPrinter, error) {
	funcs := sprig.TxtFuncMap()
	funcs["glyph"] = glyph
	tmpl, err := template.New("status").Funcs(funcs).Parse(format)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse status template")
	}
	return &StatusPrinter{tmpl: tmpl}, nil
}

func (s *StatusPrinter) Print(w io.Writer, st player.Status) error {
	level := min(max(st.Levels[groovebox.MaxPrograms], 0), 1)
	data := statusData{Status: st, Meter: int(level * MeterWidth), Width: MeterWidth}
	return s.tmpl.Execute(w, data)
}

func glyph(s perf.State) string {
	switch s {
	case perf.Queued:
		return "+"
	case perf.Playing:
		return "*"
	}
	return "-"
}
