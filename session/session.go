// Package session ties a browser session to the backend: it resolves the
// viewer for every request and runs the login, logout and registration
// flows that are the only writers of that viewer.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/alexedwards/scs/v2"
	"github.com/dimfeld/httptreemux"
	"github.com/go-playground/log"
	"github.com/rexlx/bookify/backend"
	"github.com/rexlx/bookify/viewer"
	"github.com/rexlx/bookify/web"
)

const (
	viewerKey = "viewer"
	credsKey  = "backend_creds"
)

// Backend is the part of backend.Client the session flows use.
type Backend interface {
	Login(ctx context.Context, username, password string) (backend.Credentials, error)
	Logout(ctx context.Context, creds backend.Credentials) error
	Register(ctx context.Context, r backend.Registration) error
	Profile(ctx context.Context, creds backend.Credentials) (*viewer.Viewer, error)
}

type Handlers struct {
	sm     *scs.SessionManager
	api    Backend
	render *web.Renderer
}

func NewHandlers(sm *scs.SessionManager, api Backend, render *web.Renderer) *Handlers {
	return &Handlers{sm: sm, api: api, render: render}
}

// Middleware gives every request its own viewer holder and attaches the
// session's backend cookies to the context. It must run inside
// scs.SessionManager.LoadAndSave.
func (h *Handlers) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		pairs, _ := h.sm.Get(ctx, credsKey).([]string)
		creds := backend.DecodeCredentials(pairs)
		if len(creds) > 0 {
			ctx = backend.WithCredentials(ctx, creds)
		}
		holder := viewer.NewHolder()
		ctx = viewer.WithHolder(ctx, holder)
		h.resolve(ctx, holder, creds)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolve settles holder from the cached viewer or, failing that, from the
// backend profile. A cancelled request leaves the holder loading.
func (h *Handlers) resolve(ctx context.Context, holder *viewer.Holder, creds backend.Credentials) {
	if v, ok := h.sm.Get(ctx, viewerKey).(viewer.Viewer); ok {
		holder.SetViewer(&v)
		return
	}
	if len(creds) == 0 {
		holder.Clear()
		return
	}
	v, err := h.api.Profile(ctx, creds)
	switch {
	case err == nil:
		h.sm.Put(ctx, viewerKey, *v)
		holder.SetViewer(v)
	case ctx.Err() != nil:
	case errors.Is(err, backend.ErrUnauthenticated):
		h.sm.Remove(ctx, credsKey)
		holder.Clear()
	default:
		log.WithFields(log.F("error", err)).Warn("Error fetching profile")
		holder.Clear()
	}
}

func (h *Handlers) RegisterRoutes(mux *httptreemux.ContextMux) {
	mux.GET("/", h.root)
	mux.GET("/login", h.loginForm)
	mux.POST("/login", h.login)
	mux.POST("/logout", h.logout)
	mux.GET("/register", h.registerForm)
	mux.POST("/register", h.register)
	mux.GET("/app/admin", h.dashboard(viewer.Admin))
	mux.GET("/app/author", h.dashboard(viewer.Author))
	mux.GET("/app/reader", h.dashboard(viewer.Reader))
}

func (h *Handlers) page(r *http.Request, title string) web.Page {
	p := web.Page{Title: title, Viewer: viewer.Current(r.Context())}
	web.Pop(h.sm, r.Context(), &p)
	return p
}

func (h *Handlers) root(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (h *Handlers) loginForm(w http.ResponseWriter, r *http.Request) {
	if viewer.Current(r.Context()) != nil {
		http.Redirect(w, r, "/app", http.StatusFound)
		return
	}
	p := h.page(r, "Log in")
	p.Data = ""
	h.render.Render(w, http.StatusOK, "login.html", p)
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	username := strings.TrimSpace(r.PostForm.Get("username"))
	password := r.PostForm.Get("password")
	p := web.Page{Title: "Log in", Data: username}
	if username == "" || password == "" {
		p.Error = "Username and password are required"
		h.render.Render(w, http.StatusUnprocessableEntity, "login.html", p)
		return
	}

	ctx := r.Context()
	creds, err := h.api.Login(ctx, username, password)
	if errors.Is(err, backend.ErrUnauthenticated) {
		p.Error = "Invalid username or password"
		h.render.Render(w, http.StatusUnauthorized, "login.html", p)
		return
	}
	if err == nil {
		err = h.start(ctx, creds)
	}
	if err != nil {
		log.WithFields(log.F("username", username)).Errorf("Error logging in: %s", err)
		p.Error = "Failed to log in, please try again"
		h.render.Render(w, http.StatusBadGateway, "login.html", p)
		return
	}
	log.WithFields(log.F("username", username)).Info("User logged in")
	http.Redirect(w, r, "/app", http.StatusSeeOther)
}

// start stores the backend cookies and the freshly fetched viewer in a
// renewed session.
func (h *Handlers) start(ctx context.Context, creds backend.Credentials) error {
	v, err := h.api.Profile(ctx, creds)
	if err != nil {
		return err
	}
	if err := h.sm.RenewToken(ctx); err != nil {
		return err
	}
	h.sm.Put(ctx, credsKey, creds.Encode())
	h.sm.Put(ctx, viewerKey, *v)
	viewer.FromContext(ctx).SetViewer(v)
	return nil
}

// logout ends the local session whatever the backend answers.
func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if creds := backend.CredentialsFrom(ctx); len(creds) > 0 {
		if err := h.api.Logout(ctx, creds); err != nil {
			log.WithFields(log.F("error", err)).Warn("Backend logout failed")
		}
	}
	viewer.FromContext(ctx).Clear()
	if err := h.sm.Destroy(ctx); err != nil {
		log.Errorf("Error destroying session: %s", err)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *Handlers) registerForm(w http.ResponseWriter, r *http.Request) {
	p := h.page(r, "Register")
	p.Data = backend.Registration{}
	h.render.Render(w, http.StatusOK, "register.html", p)
}

func (h *Handlers) register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	reg := backend.Registration{
		Username: strings.TrimSpace(r.PostForm.Get("username")),
		Email:    strings.TrimSpace(r.PostForm.Get("email")),
		Password: r.PostForm.Get("password"),
	}
	p := web.Page{Title: "Register", Data: backend.Registration{Username: reg.Username, Email: reg.Email}}
	if reg.Username == "" || reg.Email == "" || reg.Password == "" {
		p.Error = "Username, email and password are required"
		h.render.Render(w, http.StatusUnprocessableEntity, "register.html", p)
		return
	}

	ctx := r.Context()
	if err := h.api.Register(ctx, reg); err != nil {
		log.WithFields(log.F("username", reg.Username)).Errorf("Error registering: %s", err)
		p.Error = "Registration failed"
		var se *backend.StatusError
		if errors.As(err, &se) && se.Code < http.StatusInternalServerError {
			p.Error = "Registration failed: " + se.Body
		}
		h.render.Render(w, http.StatusBadGateway, "register.html", p)
		return
	}

	creds, err := h.api.Login(ctx, reg.Username, reg.Password)
	if err == nil {
		err = h.start(ctx, creds)
	}
	if err != nil {
		log.WithFields(log.F("username", reg.Username)).Errorf("Error logging in after registration: %s", err)
		web.FlashInfo(h.sm, ctx, "Account created, please log in")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/app", http.StatusSeeOther)
}

// dashboard renders a role's home. The guard has already checked the role.
func (h *Handlers) dashboard(role viewer.Role) http.HandlerFunc {
	title := Title(role)
	return func(w http.ResponseWriter, r *http.Request) {
		p := h.page(r, title)
		if p.Viewer == nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		p.Sidebar = web.Sidebar(role)
		p.Data = p.Sidebar[1:]
		h.render.Render(w, http.StatusOK, "dashboard.html", p)
	}
}

// Title names the dashboard of r.
func Title(r viewer.Role) string {
	switch r {
	case viewer.Admin:
		return "Admin dashboard"
	case viewer.Author:
		return "Author dashboard"
	case viewer.Reader:
		return "Reader dashboard"
	}
	panic(fmt.Sprintf("unknown role %d", r))
}
