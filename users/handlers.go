package users

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dimfeld/httptreemux"
	"github.com/go-playground/log"
	"github.com/rexlx/bookify/viewer"
	"github.com/rexlx/bookify/web"
)

// Backend is the part of API the handlers use.
type Backend interface {
	Profile(ctx context.Context) (*User, error)
	UpdateProfile(ctx context.Context, u ProfileUpdate) error
	Users(ctx context.Context, f Filter) (*UserList, error)
	Roles(ctx context.Context) ([]string, error)
	SetRole(ctx context.Context, id int64, role string) error
	Delete(ctx context.Context, id int64) error
}

type ProfileViewData struct {
	User   User
	Form   ProfileForm
	Errors ValidationErrors
}

// ListViewData is the data structure for the admin user listing.
type ListViewData struct {
	Filter     Filter
	Roles      []string
	Users      []User
	Pagination web.Pagination
	Prev       string
	Next       string
	Return     string
	Self       int64
}

type Handlers struct {
	api    Backend
	render *web.Renderer
	flash  web.Flasher
	now    func() time.Time
}

func NewHandlers(api Backend, render *web.Renderer, flash web.Flasher) *Handlers {
	return &Handlers{api: api, render: render, flash: flash, now: time.Now}
}

func (h *Handlers) RegisterRoutes(mux *httptreemux.ContextMux) {
	mux.GET("/app/profile", h.profile)
	mux.POST("/app/profile", h.updateProfile)
	mux.GET("/app/admin/users", h.list)
	mux.POST("/app/admin/users/:id/role", h.setRole)
	mux.POST("/app/admin/users/:id/delete", h.delete)
}

func (h *Handlers) page(r *http.Request, title string) web.Page {
	p := web.Page{Title: title, Viewer: viewer.Current(r.Context())}
	web.Pop(h.flash, r.Context(), &p)
	return p
}

func (h *Handlers) profile(w http.ResponseWriter, r *http.Request) {
	p := h.page(r, "Profile")
	u, err := h.api.Profile(r.Context())
	if err != nil {
		log.WithFields(log.F("path", r.URL.Path)).Errorf("Error getting profile: %s", err)
		p.Error = "Failed to load profile"
		h.render.Render(w, http.StatusBadGateway, "profile.html", p)
		return
	}
	p.Data = ProfileViewData{User: *u, Form: FormOf(*u), Errors: ValidationErrors{}}
	h.render.Render(w, http.StatusOK, "profile.html", p)
}

func (h *Handlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	if viewer.Current(r.Context()) == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	f := ParseProfileForm(r.PostForm)
	p := h.page(r, "Profile")

	if err := f.Validate(h.now()); err != nil {
		var verrs ValidationErrors
		errors.As(err, &verrs)
		p.Data = ProfileViewData{Form: f, Errors: verrs}
		h.render.Render(w, http.StatusUnprocessableEntity, "profile.html", p)
		return
	}
	u, err := h.api.Profile(r.Context())
	if err == nil {
		err = h.api.UpdateProfile(r.Context(), f.Update(*u))
	}
	if err != nil {
		log.WithFields(log.F("path", r.URL.Path)).Errorf("Error updating profile: %s", err)
		p.Error = "Failed to update profile"
		p.Data = ProfileViewData{Form: f, Errors: ValidationErrors{}}
		h.render.Render(w, http.StatusBadGateway, "profile.html", p)
		return
	}
	web.FlashInfo(h.flash, r.Context(), "Profile updated")
	http.Redirect(w, r, "/app/profile", http.StatusSeeOther)
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	p := h.page(r, "Users")
	if !p.Viewer.Has(viewer.TagAdmin) {
		p.Error = "You are not authorized to manage users."
		h.render.Render(w, http.StatusForbidden, "users.html", p)
		return
	}
	f := ParseFilter(r.URL.Query())
	data := ListViewData{Filter: f, Return: f.Link(f.Page).Encode()}
	data.Self, _ = strconv.ParseInt(p.Viewer.ID, 10, 64)

	roles, err := h.api.Roles(r.Context())
	if err != nil || len(roles) == 0 {
		log.WithFields(log.F("path", r.URL.Path)).Warnf("Error getting roles: %v", err)
		roles = RoleOrder
	}
	data.Roles = roles

	list, err := h.api.Users(r.Context(), f)
	if err != nil {
		log.WithFields(log.F("path", r.URL.Path)).Errorf("Error getting users: %s", err)
		p.Error = "Failed to load users"
		p.Data = data
		h.render.Render(w, http.StatusBadGateway, "users.html", p)
		return
	}
	data.Users = list.Users
	data.Pagination = web.NewPagination(f.Page, list.TotalCount, PageSize)
	if data.Pagination.HasPrev {
		data.Prev = "/app/admin/users?" + f.Link(data.Pagination.PrevPage).Encode()
	}
	if data.Pagination.HasNext {
		data.Next = "/app/admin/users?" + f.Link(data.Pagination.NextPage).Encode()
	}
	p.Data = data
	h.render.Render(w, http.StatusOK, "users.html", p)
}

// adminForm checks the admin and parses the user id and form shared by the
// listing's POST actions. It returns the listing URL to go back to.
func (h *Handlers) adminForm(w http.ResponseWriter, r *http.Request) (int64, string, bool) {
	if !viewer.Current(r.Context()).Has(viewer.TagAdmin) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return 0, "", false
	}
	id, err := strconv.ParseInt(httptreemux.ContextParams(r.Context())["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return 0, "", false
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return 0, "", false
	}
	// the return query is rebuilt from a parsed filter so it cannot leave the listing
	back, _ := url.ParseQuery(r.PostForm.Get("return"))
	f := ParseFilter(back)
	return id, "/app/admin/users?" + f.Link(f.Page).Encode(), true
}

func (h *Handlers) setRole(w http.ResponseWriter, r *http.Request) {
	id, target, ok := h.adminForm(w, r)
	if !ok {
		return
	}
	role := strings.ToLower(strings.TrimSpace(r.PostForm.Get("role")))
	if !slices.Contains(RoleOrder, role) {
		web.FlashError(h.flash, r.Context(), "Select a valid role")
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	if err := h.api.SetRole(r.Context(), id, role); err != nil {
		log.WithFields(log.F("user", id), log.F("role", role)).Errorf("Error updating role: %s", err)
		web.FlashError(h.flash, r.Context(), "Failed to update role")
	} else {
		log.WithFields(log.F("user", id), log.F("role", role)).Info("Role updated")
		web.FlashInfo(h.flash, r.Context(), "Role updated")
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handlers) delete(w http.ResponseWriter, r *http.Request) {
	id, target, ok := h.adminForm(w, r)
	if !ok {
		return
	}
	if viewer.Current(r.Context()).ID == strconv.FormatInt(id, 10) {
		web.FlashError(h.flash, r.Context(), "You cannot delete your own account")
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	if err := h.api.Delete(r.Context(), id); err != nil {
		log.WithFields(log.F("user", id)).Errorf("Error deleting user: %s", err)
		web.FlashError(h.flash, r.Context(), "Failed to delete user")
	} else {
		log.WithFields(log.F("user", id)).Info("User deleted")
		web.FlashInfo(h.flash, r.Context(), "User deleted")
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
