package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/TobiSchelling/tuneiq/internal/database"
	"github.com/TobiSchelling/tuneiq/internal/pipeline"
	"github.com/TobiSchelling/tuneiq/internal/records"
	"github.com/TobiSchelling/tuneiq/internal/report"
)

//go:embed templates/*.html templates/about.md
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// Runner triggers a pipeline run for an artist.
type Runner interface {
	Run(ctx context.Context, artist string) *pipeline.Result
}

// Server is the HTTP server for the run dashboard.
type Server struct {
	db     *database.DB
	runner Runner
	pages  map[string]*template.Template
	mux    *http.ServeMux
}

// New creates a new Server. A nil runner disables triggering runs from the
// dashboard.
func New(db *database.DB, runner Runner) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown":     renderMarkdown,
		"formatPeriod": database.FormatPeriodDisplay,
		"currency":     report.FormatCurrency,
		"currencyPtr":  report.FormatCurrencyPtr,
		"number":       report.FormatNumber,
		"numberPtr":    report.FormatNumberPtr,
		"pct":          report.FormatPct,
		"country":      records.DisplayCountry,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of base so "title" and "content" don't collide.
	pageNames := []string{"index.html", "run.html", "about.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, runner: runner, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/runs", s.handleTrigger)
	s.mux.HandleFunc("/runs/", s.handleRun)
	s.mux.HandleFunc("/api/runs/", s.handleAPIRun)
	s.mux.HandleFunc("/about", s.handleAbout)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	runs, err := s.db.GetAllRuns()
	if err != nil {
		log.Printf("Listing runs: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	stats, err := s.db.GetStats()
	if err != nil {
		log.Printf("Loading stats: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "index.html", map[string]any{
		"Runs":       runs,
		"Stats":      stats,
		"CanTrigger": s.runner != nil,
	})
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	if s.runner == nil {
		http.Error(w, "Runs cannot be triggered from this server", http.StatusServiceUnavailable)
		return
	}

	artist := strings.TrimSpace(r.FormValue("artist"))
	result := s.runner.Run(r.Context(), artist)
	if result.RunID == "" {
		for _, step := range result.Steps {
			if step.Err != nil {
				log.Printf("Run for %q failed at %s: %v", result.Artist, step.Name, step.Err)
			}
		}
		http.Error(w, "Run failed", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/runs/"+result.RunID, http.StatusSeeOther)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/runs/")
	if path == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	id, action, _ := strings.Cut(path, "/")
	switch action {
	case "":
	case "delete":
		if r.Method != http.MethodPost {
			http.Redirect(w, r, "/runs/"+id, http.StatusFound)
			return
		}
		if err := s.db.DeleteRun(id); err != nil {
			log.Printf("Deleting run %s: %v", id, err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	default:
		http.NotFound(w, r)
		return
	}

	run, err := s.db.GetRun(id)
	if err != nil {
		log.Printf("Loading run %s: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.NotFound(w, r)
		return
	}
	under, _ := s.db.GetRunUnderpayment(id)

	s.render(w, "run.html", map[string]any{
		"Run":          run,
		"Underpayment": under,
	})
}

func (s *Server) handleAPIRun(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	run, err := s.db.GetRun(id)
	if err != nil {
		log.Printf("Loading run %s: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.NotFound(w, r)
		return
	}
	under, err := s.db.GetRunUnderpayment(id)
	if err != nil {
		log.Printf("Loading underpayment for %s: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"run":          run,
		"underpayment": under,
	}); err != nil {
		log.Printf("Encoding run %s: %v", id, err)
	}
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	text, err := templateFS.ReadFile("templates/about.md")
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	s.render(w, "about.html", map[string]any{
		"Body": string(text),
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, runner Runner, port int) error {
	srv, err := New(db, runner)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
