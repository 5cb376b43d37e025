// Package web serves the gradebook: the browser page where scores are
// entered, its SSE update stream, and the CSV/JSON exports. It is fed by
// the event bus and reads the submission manager under its lock.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jhartz/gradefast/internal/config"
	"github.com/jhartz/gradefast/internal/events"
	"github.com/jhartz/gradefast/internal/grades"
	"github.com/jhartz/gradefast/internal/submissions"
)

//go:embed templates/*.html
var templateFS embed.FS

// Server is the gradebook HTTP server.
type Server struct {
	settings *config.Settings
	bus      *events.Bus
	subs     *submissions.Manager
	hub      *hub

	// mu serializes client actions so grade mutations are last-writer-
	// wins at action granularity.
	mu   sync.Mutex
	done atomic.Bool

	// liveLogs holds the in-progress HTML log of each submission being
	// graded right now, so the log page works mid-run.
	liveMu   sync.Mutex
	liveLogs map[int]events.LogView

	mux    *http.ServeMux
	tmpl   *template.Template
	server *http.Server
}

// New creates the gradebook server and registers its event handlers on
// the bus.
func New(settings *config.Settings, bus *events.Bus, subs *submissions.Manager) *Server {
	s := &Server{
		settings: settings,
		bus:      bus,
		subs:     subs,
		hub:      newHub(),
		liveLogs: make(map[int]events.LogView),
		mux:      http.NewServeMux(),
	}

	s.tmpl = template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))
	s.registerRoutes()
	s.registerEventHandlers()

	s.server = &http.Server{
		Addr:         net.JoinHostPort(settings.Host, strconv.Itoa(settings.Port)),
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE needs no write timeout
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// URL is the address of the gradebook page.
func (s *Server) URL() string {
	return fmt.Sprintf("http://%s/gradefast/gradebook.HTM", s.server.Addr)
}

// Start begins serving HTTP requests. It blocks until shutdown.
func (s *Server) Start() error {
	log.Printf("gradebook listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server and ends all SSE streams.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.close()
	return s.server.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleRedirect)
	s.mux.HandleFunc("GET /gradefast/{$}", s.handleRedirect)
	s.mux.HandleFunc("GET /gradefast/gradebook.HTM", s.handleGradebook)
	s.mux.HandleFunc("GET /gradefast/log/{id}", s.handleLog)
	s.mux.HandleFunc("POST /gradefast/_update", s.handleUpdate)
	s.mux.HandleFunc("GET /gradefast/grades.csv", s.handleGradesCSV)
	s.mux.HandleFunc("GET /gradefast/grades.json", s.handleGradesJSON)
	s.mux.HandleFunc("GET /gradefast/events.stream", s.handleEventStream)
}

// registerEventHandlers wires the gradebook to the internal bus. All of
// these run inside the bus's serialized dispatch.
func (s *Server) registerEventHandlers() {
	s.bus.Register(events.HandlerFunc{
		AcceptFn: func(e events.Event) bool {
			switch e.(type) {
			case events.NewSubmissionList, events.NewSubmissions,
				events.SubmissionStarted, events.SubmissionFinished,
				events.EndOfSubmissions, events.AuthGranted:
				return true
			}
			return false
		},
		HandleFn: func(e events.Event) {
			switch evt := e.(type) {
			case events.NewSubmissionList:
				s.hub.broadcast(NewListUpdate(evt.Submissions))
			case events.NewSubmissions:
				s.hub.broadcast(NewListUpdate(s.subs.Infos()))
			case events.SubmissionStarted:
				if evt.HTMLLog != nil {
					s.liveMu.Lock()
					s.liveLogs[evt.SubmissionID] = evt.HTMLLog
					s.liveMu.Unlock()
				}
				s.hub.broadcast(NewSubmissionUpdate(evt.SubmissionID))
			case events.SubmissionFinished:
				s.liveMu.Lock()
				delete(s.liveLogs, evt.SubmissionID)
				s.liveMu.Unlock()
				s.hub.broadcast(NewLogUpdate(evt.SubmissionID, evt.LogHTML))
			case events.EndOfSubmissions:
				s.done.Store(true)
				s.hub.broadcast(NewDoneUpdate())
			case events.AuthGranted:
				s.hub.authenticate(evt.AuthEventID)
			}
		},
	})
}

func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/gradefast/gradebook.HTM", http.StatusFound)
}

// handleGradebook renders the client page with its initial state
// embedded: the grade structure, the submission list, and whether
// grading is already done.
func (s *Server) handleGradebook(w http.ResponseWriter, r *http.Request) {
	structure := grades.Build(s.settings.GradeStructure).ToPlainData()
	initial := map[string]any{
		"grade_structure": structure,
		"submissions":     s.subs.Infos(),
		"is_done":         s.done.Load(),
	}
	encoded, err := json.Marshal(initial)
	if err != nil {
		log.Printf("handleGradebook: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	data := struct {
		ProjectName  string
		InitialState template.JS
	}{
		ProjectName:  s.settings.ProjectName,
		InitialState: template.JS(encoded),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "gradebook.html", data); err != nil {
		log.Printf("gradebook.html: %v", err)
	}
}

// handleLog serves the HTML log for one submission, including the
// in-progress log of a submission still being graded.
func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid submission id", http.StatusBadRequest)
		return
	}
	sub := s.subs.Get(id)
	if sub == nil {
		http.Error(w, "no such submission", http.StatusNotFound)
		return
	}

	var content string
	for _, l := range sub.HTMLLogs {
		content += l.Content()
	}

	// A submission being graded right now has its log still attached to
	// the terminal; serve what it has recorded so far. The grader
	// attaches the finished log before announcing the finish, so skip
	// the live view once it shows up among the recorded ones.
	s.liveMu.Lock()
	live := s.liveLogs[id]
	s.liveMu.Unlock()
	if live != nil {
		attached := false
		for _, l := range sub.HTMLLogs {
			if events.LogView(l) == live {
				attached = true
				break
			}
		}
		if !attached {
			content += live.Content()
		}
	}

	data := struct {
		Name    string
		Content template.HTML
	}{
		Name:    sub.Name,
		Content: template.HTML(content),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "log.html", data); err != nil {
		log.Printf("log.html: %v", err)
	}
}

// updateRequest is the body of a POST /gradefast/_update.
type updateRequest struct {
	SubmissionID int          `json:"submission_id"`
	ClientID     string       `json:"client_id"`
	ClientSeq    int64        `json:"client_seq"`
	Action       clientAction `json:"action"`
}

// handleUpdate applies one client action to a submission's grade tree.
// All failures are reported as 200 responses with a status field the
// client can show.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, map[string]any{"status": "Invalid request"})
		return
	}

	sub := s.subs.Get(req.SubmissionID)
	if sub == nil {
		writeJSON(w, map[string]any{"status": "Invalid submission"})
		return
	}

	s.mu.Lock()
	err := applyAction(sub.Grade, req.Action)
	var plain map[string]any
	if err == nil {
		plain = sub.Grade.ToPlainData()
	}
	s.mu.Unlock()

	if err != nil {
		writeJSON(w, map[string]any{"status": statusForActionError(err)})
		return
	}

	writeJSON(w, map[string]any{
		"status":                 "Aight",
		"submission_id":          req.SubmissionID,
		"grade":                  plain,
		"originating_client_id":  req.ClientID,
		"originating_client_seq": req.ClientSeq,
	})
	s.hub.broadcast(NewGradeUpdate(req.SubmissionID, plain, req.ClientID, req.ClientSeq))
}

func statusForActionError(err error) string {
	switch err.(type) {
	case *grades.BadPathError:
		return "Invalid path"
	case *BadSubmissionError:
		return "Invalid submission"
	case *BadActionError:
		return err.Error()
	default:
		log.Printf("update action: %v", err)
		return "Something went wrong"
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("writeJSON: %v", err)
	}
}

// handleEventStream is the SSE endpoint. Each subscriber owns a bounded
// queue; privileged updates flow only after the terminal user approves
// the client.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	sub, unsubscribe := s.hub.subscribe()
	if sub == nil {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	_, _ = fmt.Fprintf(w, "retry: 10000\n\n")
	flusher.Flush()

	// Ask the terminal user whether this client may see grade data. The
	// grader's handler prompts and answers with an AuthGranted event.
	auth := events.AuthRequested{
		Meta:           events.NewMeta(),
		RequestDetails: r.RemoteAddr + " / " + r.UserAgent(),
	}
	s.hub.expectAuth(auth.EventID(), sub.clientID)
	go s.bus.Dispatch(auth)

	if s.done.Load() {
		s.hub.deliver(sub, NewDoneUpdate())
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-sub.queue:
			if !ok {
				return
			}
			if encoded := u.Encode(); encoded != "" {
				_, _ = fmt.Fprint(w, encoded)
				flusher.Flush()
			}
			if u.Event == "done" {
				return
			}
		}
	}
}
