// Package web is the local configuration surface: a small html/template
// UI over the same store the scheduler reads. It writes configuration
// values only; the booking loop picks changes up through store events.
package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/fanyu-assistant/internal/auth"
	"github.com/example/fanyu-assistant/internal/booking"
	"github.com/example/fanyu-assistant/internal/scheduler"
)

//go:embed templates/*.html static/*
var fs embed.FS

type Server struct {
	Auth      *auth.Store
	State     *booking.State
	Scheduler *scheduler.Scheduler
	Log       *zap.Logger
}

type tmplData struct {
	Title string
	Flash string

	Processing bool
	RunState   string
	Username   string
	Requests   []booking.BookRequest
	Booked     []booking.BookedCourse
	Request    booking.BookRequest
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/static/", http.FileServer(http.FS(fs)))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)

	mux.Handle("/", s.Auth.RequireAuth(http.HandlerFunc(s.handleHome)))
	mux.Handle("/processing", s.Auth.RequireAuth(http.HandlerFunc(s.handleProcessing)))
	mux.Handle("/account", s.Auth.RequireAuth(http.HandlerFunc(s.handleAccount)))
	mux.Handle("/requests/new", s.Auth.RequireAuth(http.HandlerFunc(s.handleRequestNew)))
	mux.Handle("/requests/create", s.Auth.RequireAuth(http.HandlerFunc(s.handleRequestCreate)))
	mux.Handle("/requests/toggle", s.Auth.RequireAuth(http.HandlerFunc(s.handleRequestToggle)))
	mux.Handle("/requests/delete", s.Auth.RequireAuth(http.HandlerFunc(s.handleRequestDelete)))
	mux.Handle("/booked", s.Auth.RequireAuth(http.HandlerFunc(s.handleBooked)))

	return mux
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, "templates/login.html", tmplData{Title: "Login"})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.Auth.Authenticate(r.Context(), r.FormValue("password")); err != nil {
			s.render(w, "templates/login.html", tmplData{Title: "Login", Flash: "Invalid password"})
			return
		}
		if err := s.Auth.SetSession(w, r); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Auth.ClearSession(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	data := tmplData{Title: "Book Requests", RunState: s.Scheduler.State().String()}

	var err error
	if data.Processing, err = s.State.Processing(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if data.Requests, err = s.State.Requests(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	account, err := s.State.Account(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	data.Username = account.Username
	s.render(w, "templates/home.html", data)
}

func (s *Server) handleProcessing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	on := r.FormValue("enabled") == "1"
	if err := s.State.SetProcessing(r.Context(), on); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		account, err := s.State.Account(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.render(w, "templates/account.html", tmplData{Title: "Account", Username: account.Username})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		account := booking.Account{
			Username: strings.TrimSpace(r.FormValue("username")),
			Password: r.FormValue("password"),
		}
		if err := s.State.SaveAccount(r.Context(), account); err != nil {
			s.Log.Error("save account failed", zap.Error(err))
			s.render(w, "templates/account.html", tmplData{Title: "Account", Flash: "Failed to save account"})
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleRequestNew(w http.ResponseWriter, r *http.Request) {
	s.render(w, "templates/new_request.html", tmplData{
		Title: "New Book Request",
		Request: booking.BookRequest{
			Days:      []int{1},
			TimeRange: [2]booking.TimeOfDay{{Hour: 18}, {Hour: 20}},
			Enable:    true,
		},
	})
}

func (s *Server) handleRequestCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req, err := requestFromForm(r)
	if err != nil {
		s.render(w, "templates/new_request.html", tmplData{Title: "New Book Request", Flash: err.Error(), Request: req})
		return
	}

	requests, err := s.State.Requests(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := s.State.SaveRequests(r.Context(), append(requests, req)); err != nil {
		s.Log.Error("save book requests failed", zap.Error(err))
		s.render(w, "templates/new_request.html", tmplData{Title: "New Book Request", Flash: "Failed to save request", Request: req})
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleRequestToggle(w http.ResponseWriter, r *http.Request) {
	s.mutateRequests(w, r, func(requests []booking.BookRequest, id string) []booking.BookRequest {
		for i := range requests {
			if requests[i].ID == id {
				requests[i].Enable = !requests[i].Enable
			}
		}
		return requests
	})
}

func (s *Server) handleRequestDelete(w http.ResponseWriter, r *http.Request) {
	s.mutateRequests(w, r, func(requests []booking.BookRequest, id string) []booking.BookRequest {
		out := requests[:0]
		for _, req := range requests {
			if req.ID != id {
				out = append(out, req)
			}
		}
		return out
	})
}

func (s *Server) mutateRequests(w http.ResponseWriter, r *http.Request, mutate func([]booking.BookRequest, string) []booking.BookRequest) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	requests, err := s.State.Requests(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := s.State.SaveRequests(r.Context(), mutate(requests, r.FormValue("id"))); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleBooked(w http.ResponseWriter, r *http.Request) {
	booked, err := s.State.Booked(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.render(w, "templates/booked.html", tmplData{Title: "Booked Courses", Booked: booked})
}

func requestFromForm(r *http.Request) (booking.BookRequest, error) {
	req := booking.BookRequest{
		ID:      uuid.NewString(),
		StoreID: strings.TrimSpace(r.FormValue("store_id")),
		Enable:  r.FormValue("enabled") == "1",
	}
	for _, part := range strings.Split(r.FormValue("days"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil {
			return req, fmt.Errorf("invalid weekday %q", part)
		}
		req.Days = append(req.Days, d)
	}
	from, err := booking.ParseTimeOfDay(strings.TrimSpace(r.FormValue("from")))
	if err != nil {
		return req, err
	}
	to, err := booking.ParseTimeOfDay(strings.TrimSpace(r.FormValue("to")))
	if err != nil {
		return req, err
	}
	req.TimeRange = [2]booking.TimeOfDay{from, to}
	return req, req.Validate()
}

func (s *Server) render(w http.ResponseWriter, name string, data tmplData) {
	t, err := template.ParseFS(fs, "templates/base.html", name)
	if err != nil {
		http.Error(w, "template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, "base", data); err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
	}
}

func Start(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return srv.ListenAndServe()
}
