// Package remote exposes a player over HTTP: slot triggering, mix setters
// and a JSON telemetry snapshot.
package remote

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vsariola/groovebox/player"
	"github.com/vsariola/groovebox/version"
)

// Controller is the part of *player.Player the server drives.
type Controller interface {
	Trigger(slot int) error
	Stop(slot int) error
	StopAll() error
	Panic() error
	SetTempo(bpm float64) error
	SetVolume(program int, volume float32) error
	SetPan(program int, pan float32) error
	SetMute(program int, mute bool) error
	Status() player.Status
}

type (
	Server struct {
		router *chi.Mux
		ctrl   Controller
		log    logrus.FieldLogger
	}

	// StatusResponse is the JSON body of GET /status.
	StatusResponse struct {
		Version  string       `json:"version"`
		Pulse    int          `json:"pulse"`
		Row      int          `json:"row"`
		Tempo    float64      `json:"tempo"`
		External bool         `json:"external"`
		Running  bool         `json:"running"`
		Slots    []SlotStatus `json:"slots"`
		Levels   []float32    `json:"levels"`
		Blocks   int64        `json:"blocks"`
		Dropped  int64        `json:"dropped"`
	}

	SlotStatus struct {
		State   string  `json:"state"`
		Phrase  int     `json:"phrase"`
		Program int     `json:"program"`
		Anchor  float64 `json:"anchor"`
	}

	// MixRequest is the body of PUT /programs/{program}. Absent fields are
	// left unchanged.
	MixRequest struct {
		Volume *float32 `json:"volume,omitempty"`
		Pan    *float32 `json:"pan,omitempty"`
		Mute   *bool    `json:"mute,omitempty"`
	}

	TempoRequest struct {
		BPM float64 `json:"bpm"`
	}

	errorResponse struct {
		Error string `json:"error"`
	}
)

func New(ctrl Controller, log logrus.FieldLogger) *Server {
	s := &Server{router: chi.NewRouter(), ctrl: ctrl, log: log}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/status", s.handleStatus)
	r.Post("/slots/{slot}/trigger", s.slotHandler(s.ctrl.Trigger))
	r.Post("/slots/{slot}/stop", s.slotHandler(s.ctrl.Stop))
	r.Post("/stop", s.actionHandler(s.ctrl.StopAll))
	r.Post("/panic", s.actionHandler(s.ctrl.Panic))
	r.Put("/tempo", s.handleTempo)
	r.Put("/programs/{program}", s.handleMix)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until the listener fails.
func (s *Server) ListenAndServe(addr string) error {
	s.log.WithField("addr", addr).Info("remote control listening")
	srv := &http.Server{Addr: addr, Handler: s.router}
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":  r.Method,
			"path":    r.URL.Path,
			"status":  ww.Status(),
			"request": middleware.GetReqID(r.Context()),
		}).Debug("remote request")
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.ctrl.Status()
	resp := StatusResponse{
		Version:  version.VersionOrHash,
		Pulse:    st.Pulse,
		Row:      st.Row,
		Tempo:    st.Tempo,
		External: st.External,
		Running:  st.Running,
		Slots:    make([]SlotStatus, len(st.Slots)),
		Levels:   st.Levels[:],
		Blocks:   st.Blocks,
		Dropped:  st.Dropped,
	}
	for i, slot := range st.Slots {
		resp.Slots[i] = SlotStatus{
			State:   slot.State.String(),
			Phrase:  slot.Phrase,
			Program: slot.Program,
			Anchor:  slot.Anchor,
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) slotHandler(f func(int) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slot, err := strconv.Atoi(chi.URLParam(r, "slot"))
		if err != nil {
			s.writeError(w, errors.Wrap(err, "slot"), http.StatusBadRequest)
			return
		}
		s.respond(w, f(slot))
	}
}

func (s *Server) actionHandler(f func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.respond(w, f())
	}
}

func (s *Server) handleTempo(w http.ResponseWriter, r *http.Request) {
	var req TempoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(err, "decoding tempo"), http.StatusBadRequest)
		return
	}
	s.respond(w, s.ctrl.SetTempo(req.BPM))
}

func (s *Server) handleMix(w http.ResponseWriter, r *http.Request) {
	program, err := strconv.Atoi(chi.URLParam(r, "program"))
	if err != nil {
		s.writeError(w, errors.Wrap(err, "program"), http.StatusBadRequest)
		return
	}
	var req MixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(err, "decoding mix"), http.StatusBadRequest)
		return
	}
	if req.Volume != nil {
		if err := s.ctrl.SetVolume(program, *req.Volume); err != nil {
			s.respond(w, err)
			return
		}
	}
	if req.Pan != nil {
		if err := s.ctrl.SetPan(program, *req.Pan); err != nil {
			s.respond(w, err)
			return
		}
	}
	if req.Mute != nil {
		if err := s.ctrl.SetMute(program, *req.Mute); err != nil {
			s.respond(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// respond maps control errors onto status codes: bad ids are the client's
// fault, a full queue is worth retrying.
func (s *Server) respond(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, player.ErrInvalidSlot), errors.Is(err, player.ErrInvalidProgram):
		s.writeError(w, err, http.StatusNotFound)
	case errors.Is(err, player.ErrQueueFull):
		s.writeError(w, err, http.StatusServiceUnavailable)
	default:
		s.writeError(w, err, http.StatusBadRequest)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error, code int) {
	s.log.WithError(err).WithField("status", code).Warn("remote request failed")
	s.writeJSON(w, code, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("encoding response")
	}
}
