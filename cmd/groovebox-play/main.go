package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
	"github.com/vsariola/groovebox"
	"github.com/vsariola/groovebox/cmd"
	"github.com/vsariola/groovebox/oto"
	"github.com/vsariola/groovebox/player"
	"github.com/vsariola/groovebox/remote"
	"github.com/vsariola/groovebox/trackfile"
	"github.com/vsariola/groovebox/version"
)

func main() {
	tracksDir := flag.StringP("tracks", "t", "", "Directory of .mid/.yml track files. Defaults to the tracks directory next to the kit file.")
	midiInput := flag.StringP("midi", "m", "", "Connect the MIDI input whose name starts with this prefix; an empty prefix picks the first input.")
	httpAddr := flag.String("http", "", "Serve the remote control API on this address, e.g. :8080.")
	bounce := flag.StringP("bounce", "b", "", "Render offline to this .wav file instead of playing.")
	duration := flag.DurationP("duration", "d", 8*time.Second, "Length of the offline render.")
	trigger := flag.IntSlice("trigger", nil, "Slots to trigger at start.")
	latency := flag.Duration("latency", 0, "Audio device buffer size; zero lets the driver choose.")
	statusEvery := flag.Duration("status", 0, "Print a status line at this interval; zero disables it.")
	statusFormat := flag.String("status-format", cmd.DefaultStatusFormat, "text/template for the status line, with sprig functions.")
	dump := flag.Bool("dump", false, "Print the resolved kit and exit.")
	verbose := flag.BoolP("verbose", "V", false, "Log debug messages.")
	versionFlag := flag.BoolP("version", "v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	kitPath := flag.Arg(0)
	kit, err := groovebox.LoadKit(kitPath)
	if err != nil {
		log.WithError(err).Fatal("could not load kit")
	}
	if *dump {
		spew.Dump(kit)
		os.Exit(0)
	}
	kitDir := filepath.Dir(kitPath)
	if *tracksDir == "" {
		*tracksDir = filepath.Join(kitDir, "tracks")
	}
	library := trackfile.NewLibrary()
	names, err := library.LoadDir(*tracksDir)
	if err != nil {
		log.WithError(err).Fatal("could not load tracks")
	}
	log.WithFields(logrus.Fields{"dir": *tracksDir, "tracks": len(names)}).Info("tracks loaded")
	broker := player.NewBroker()
	p, err := player.New(&kit, library, broker)
	if err != nil {
		log.WithError(err).Fatal("could not create player")
	}
	if err := cmd.LoadEngines(p, &kit, kitDir); err != nil {
		log.WithError(err).Fatal("could not load programs")
	}
	for _, slot := range *trigger {
		if err := p.Trigger(slot); err != nil {
			log.WithError(err).WithField("slot", slot).Error("could not trigger slot")
		}
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go player.LogAlerts(ctx, broker.Alerts, log)

	if *bounce != "" {
		if err := render(p, kit.SampleRate, *duration, *bounce); err != nil {
			log.WithError(err).Fatal("offline render failed")
		}
		log.WithField("file", *bounce).Info("rendered")
		return
	}

	if flag.Lookup("midi").Changed {
		midiContext, err := cmd.OpenMidi(p, *midiInput, log)
		defer midiContext.Close()
		if err != nil {
			log.WithError(err).Warn("MIDI input not available")
		}
	}
	if *httpAddr != "" {
		server := remote.New(p, log)
		go func() {
			if err := server.ListenAndServe(*httpAddr); err != nil {
				log.WithError(err).Error("remote control stopped")
			}
		}()
	}
	output, err := oto.NewOutput(kit.SampleRate, *latency)
	if err != nil {
		log.WithError(err).Fatal("could not open audio output")
	}
	defer output.Close()
	if err := output.Play(p); err != nil {
		log.WithError(err).Fatal("could not start playback")
	}
	if *statusEvery > 0 {
		printer, err := cmd.NewStatusPrinter(*statusFormat)
		if err != nil {
			log.WithError(err).Fatal("invalid status format")
		}
		go printStatus(ctx, p, printer, *statusEvery)
	}
	<-ctx.Done()
	p.Panic()
}

// render runs the player offline for d and writes the result as a wave file.
func render(p *player.Player, sampleRate int, d time.Duration, path string) error {
	frames := int(d.Seconds() * float64(sampleRate))
	out := make([]float32, 2*frames)
	p.RenderBlock(out, frames)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := groovebox.WriteWav(f, out, sampleRate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printStatus(ctx context.Context, p *player.Player, printer *cmd.StatusPrinter, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr)
			return
		case <-ticker.C:
			fmt.Fprint(os.Stderr, "\r")
			printer.Print(os.Stderr, p.Status())
		}
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Groovebox player: plays the pads and sequences of a kit, following MIDI clock when available.\nUsage: %s [flags] kit.yml\n", os.Args[0])
	flag.PrintDefaults()
}
