package main

import (
	"compress/gzip"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/dimfeld/httptreemux"
	"github.com/go-playground/log"
	"github.com/gorilla/handlers"
	"github.com/gorilla/websocket"
	"github.com/rexlx/bookify/backend"
	"github.com/rexlx/bookify/books"
	"github.com/rexlx/bookify/chat"
	"github.com/rexlx/bookify/config"
	"github.com/rexlx/bookify/events"
	"github.com/rexlx/bookify/forum"
	"github.com/rexlx/bookify/guard"
	"github.com/rexlx/bookify/session"
	"github.com/rexlx/bookify/users"
	"github.com/rexlx/bookify/web"
)

func handlePanic(w http.ResponseWriter, r *http.Request, err interface{}) {
	http.Error(w, fmt.Sprintf("500 %s", err), http.StatusInternalServerError)
	log.WithFields(log.F("path", r.URL.Path)).Errorf("server: %#v\n%s", err, debug.Stack())
}

func text404(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "404 page not found", http.StatusNotFound)
}

// createRouter wires every page handler behind the session and the access
// guard. Separated from main for testability.
func createRouter(cfg config.Config, sm *scs.SessionManager, c *backend.Client, render *web.Renderer, loc *time.Location) http.Handler {
	r := httptreemux.NewContextMux()
	r.NotFoundHandler = text404
	r.PanicHandler = handlePanic

	r.GET("/static/*path", web.Static().ServeHTTP)

	sessions := session.NewHandlers(sm, c, render)
	sessions.RegisterRoutes(r)
	r.GET("/app", guard.DashboardSwitcher)

	forum.NewHandlers(forum.NewAPI(c), render, sm, cfg.ForumPageSize).RegisterRoutes(r)
	books.NewHandlers(books.NewAPI(c), render, sm, cfg.RatingConcurrency).RegisterRoutes(r)
	events.NewHandlers(events.NewAPI(c), render, sm, loc).RegisterRoutes(r)
	chat.NewHandlers(chat.NewAPI(c), chat.NewRelay(c), render).RegisterRoutes(r)
	users.NewHandlers(users.NewAPI(c), render, sm).RegisterRoutes(r)

	h := guardApp(r)
	h = sessions.Middleware(h)
	return withSession(sm, h, cfg.Gzip)
}

// guardApp runs the access guard on /app and everything below it.
func guardApp(next http.Handler) http.Handler {
	guarded := guard.Middleware(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/app" || strings.HasPrefix(r.URL.Path, "/app/") {
			guarded.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withSession loads the scs session for every request. WebSocket upgrades
// only read it, since the relay hijacks the connection and nothing can be
// written back.
func withSession(sm *scs.SessionManager, next http.Handler, compress bool) http.Handler {
	saving := sm.LoadAndSave(next)
	if compress {
		saving = handlers.CompressHandlerLevel(saving, gzip.DefaultCompression)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !websocket.IsWebSocketUpgrade(r) {
			saving.ServeHTTP(w, r)
			return
		}
		var token string
		if ck, err := r.Cookie(sm.Cookie.Name); err == nil {
			token = ck.Value
		}
		ctx, err := sm.Load(r.Context(), token)
		if err != nil {
			log.WithFields(log.F("path", r.URL.Path)).Errorf("Error loading session: %s", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
