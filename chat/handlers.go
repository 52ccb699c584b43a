package chat

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dimfeld/httptreemux"
	"github.com/go-playground/log"
	"github.com/rexlx/bookify/backend"
	"github.com/rexlx/bookify/viewer"
	"github.com/rexlx/bookify/web"
)

// InboxEntry is one conversation in the viewer's inbox.
type InboxEntry struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	LastMessage string `json:"last_message"`
	LastTime    Time   `json:"last_time"`
	UnreadCount int    `json:"unread_count"`
}

// Name is the peer's full name, or the username when there is none.
func (e InboxEntry) Name() string {
	if n := strings.TrimSpace(e.FirstName + " " + e.LastName); n != "" {
		return n
	}
	return e.Username
}

// API wraps the chat history endpoints of the backend.
type API struct {
	c *backend.Client
}

func NewAPI(c *backend.Client) *API {
	return &API{c: c}
}

func (a *API) History(ctx context.Context, self, peer int64) ([]Message, error) {
	var out []Message
	err := a.c.GetJSON(ctx, fmt.Sprintf("/private-chat/%d/%d", self, peer), backend.CredentialsFrom(ctx), &out)
	return out, err
}

func (a *API) Inbox(ctx context.Context, self int64) ([]InboxEntry, error) {
	var out []InboxEntry
	err := a.c.GetJSON(ctx, fmt.Sprintf("/chat/inbox/%d", self), backend.CredentialsFrom(ctx), &out)
	return out, err
}

// Backend is the part of API the handlers use.
type Backend interface {
	History(ctx context.Context, self, peer int64) ([]Message, error)
	Inbox(ctx context.Context, self int64) ([]InboxEntry, error)
}

// ViewData is the data structure for the chat page.
type ViewData struct {
	Self     int64
	Peer     int64
	Messages []Message
}

type Handlers struct {
	api    Backend
	relay  *Relay
	render *web.Renderer
}

func NewHandlers(api Backend, relay *Relay, render *web.Renderer) *Handlers {
	return &Handlers{api: api, relay: relay, render: render}
}

func (h *Handlers) RegisterRoutes(mux *httptreemux.ContextMux) {
	mux.GET("/app/inbox", h.inbox)
	mux.GET("/app/chat/:peer", h.show)
	mux.GET("/app/chat/:peer/socket", h.socket)
}

// ids resolves the viewer's and the peer's numeric ids.
func ids(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	v := viewer.Current(r.Context())
	if v == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return 0, 0, false
	}
	self, err := strconv.ParseInt(v.ID, 10, 64)
	if err != nil {
		http.Error(w, "Chat needs a numeric user id", http.StatusBadRequest)
		return 0, 0, false
	}
	peer, err := strconv.ParseInt(httptreemux.ContextParams(r.Context())["peer"], 10, 64)
	if err != nil || peer == self {
		http.NotFound(w, r)
		return 0, 0, false
	}
	return self, peer, true
}

func (h *Handlers) inbox(w http.ResponseWriter, r *http.Request) {
	p := web.Page{Title: "Inbox", Viewer: viewer.Current(r.Context())}
	if p.Viewer == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	self, err := strconv.ParseInt(p.Viewer.ID, 10, 64)
	if err != nil {
		http.Error(w, "Chat needs a numeric user id", http.StatusBadRequest)
		return
	}
	entries, err := h.api.Inbox(r.Context(), self)
	if err != nil {
		log.WithFields(log.F("user", self)).Errorf("Error getting inbox: %s", err)
		p.Error = "Failed to load conversations"
		h.render.Render(w, http.StatusBadGateway, "inbox.html", p)
		return
	}
	p.Data = entries
	h.render.Render(w, http.StatusOK, "inbox.html", p)
}

// show renders the history; the page script then opens the socket.
func (h *Handlers) show(w http.ResponseWriter, r *http.Request) {
	self, peer, ok := ids(w, r)
	if !ok {
		return
	}
	p := web.Page{Title: "Chat", Viewer: viewer.Current(r.Context())}
	data := ViewData{Self: self, Peer: peer}
	history, err := h.api.History(r.Context(), self, peer)
	if err != nil {
		log.WithFields(log.F("user", self), log.F("peer", peer)).Errorf("Error getting chat history: %s", err)
		p.Error = "Failed to load messages"
	}
	data.Messages = history
	p.Data = data
	h.render.Render(w, http.StatusOK, "chat.html", p)
}

func (h *Handlers) socket(w http.ResponseWriter, r *http.Request) {
	self, peer, ok := ids(w, r)
	if !ok {
		return
	}
	history, err := h.api.History(r.Context(), self, peer)
	if err != nil {
		log.WithFields(log.F("user", self), log.F("peer", peer)).Warnf("Error seeding chat history: %s", err)
	}
	h.relay.Serve(w, r, NewConversation(self, peer, history))
}
