// Package statusserver exposes a small read-only HTTP view over a
// running shell's job table, history, and alias/variable tables, for
// dashboards or external tooling that want to observe a session
// without attaching to its terminal. It is disabled unless a status
// bind address is configured.
package statusserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"github.com/rs/cors"

	"github.com/kazz187/mysh/internal/shell"
	"github.com/kazz187/mysh/pkg/cerr"
	"github.com/kazz187/mysh/pkg/clog"
)

type Server struct {
	addr string
	sh   *shell.Shell
	http *http.Server
}

func New(addr string, sh *shell.Shell) *Server {
	return &Server{addr: addr, sh: sh}
}

// requestIDMiddleware stamps every request with a ULID, sortable by
// creation time unlike a random UUID, useful when correlating status
// server requests against the shell's own log timestamps. The id is added
// to the attribute bag SlogChiMiddleware creates, so it must run after
// that middleware.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ulid.Make().String()
		w.Header().Set("X-Request-Id", id)
		clog.AddAttribute(r.Context(), "request_id", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(clog.SlogChiMiddleware(), requestIDMiddleware, cerr.ChiErrorMiddleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/jobs", s.handleJobs)
	r.Get("/history", s.handleHistory)
	r.Get("/vars", s.handleVars)
	r.Get("/aliases", s.handleAliases)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		cerr.SetNewJSONError(r.Context(), cerr.NotFound, "not found", nil)
	})
	return r
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}).Handler(s.router())

	s.http = &http.Server{
		Addr:        s.addr,
		Handler:     handler,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}

type jobView struct {
	ID       int    `json:"id"`
	Pgid     int    `json:"pgid"`
	Cmdline  string `json:"cmdline"`
	State    string `json:"state"`
	ExitCode int    `json:"exit_code"`
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.sh.Jobs.All()
	views := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, jobView{
			ID:       j.ID,
			Pgid:     j.Pgid,
			Cmdline:  j.Cmdline,
			State:    j.State.String(),
			ExitCode: j.ExitCode,
		})
	}
	writeJSON(w, views)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.sh.History.Entries())
}

func (s *Server) handleVars(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.sh.Env.Vars())
}

func (s *Server) handleAliases(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.sh.Env.Aliases())
}
