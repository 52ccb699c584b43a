package main

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-playground/log"
	"github.com/go-playground/log/handlers/console"
	"github.com/gorilla/websocket"
	"github.com/rexlx/bookify/backend"
	"github.com/rexlx/bookify/config"
	"github.com/rexlx/bookify/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.AddHandler(console.New(true), log.AllLevels...)
}

// fakeBackend accepts ana/secret and reports the user as an author.
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		if r.PostForm.Get("username") != "ana" || r.PostForm.Get("password") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "tok"})
	})
	mux.HandleFunc("/users/profile", func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("session"); err != nil || ck.Value != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":7,"username":"ana","email":"ana@example.com","first_name":"Ana","roles":[{"id":2,"name":"Author"}]}`)
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type client struct {
	*http.Client
	base string
}

func newApp(t *testing.T, gzip bool) *client {
	t.Helper()
	be := fakeBackend(t)
	c, err := backend.New(be.URL, time.Second)
	require.NoError(t, err)
	render, err := web.NewRenderer()
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Gzip = gzip
	srv := httptest.NewServer(createRouter(cfg, scs.New(), c, render, time.UTC))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{
		Client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
			Transport: &http.Transport{DisableCompression: true},
		},
		base: srv.URL,
	}
}

func (c *client) get(t *testing.T, path string) *http.Response {
	t.Helper()
	res, err := c.Get(c.base + path)
	require.NoError(t, err)
	res.Body.Close()
	return res
}

func (c *client) post(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	res, err := c.PostForm(c.base+path, form)
	require.NoError(t, err)
	res.Body.Close()
	return res
}

func assertRedirect(t *testing.T, res *http.Response, location string) {
	t.Helper()
	assert.Contains(t, []int{http.StatusFound, http.StatusSeeOther}, res.StatusCode)
	assert.Equal(t, location, res.Header.Get("Location"))
}

func TestAnonymousIsSentToLogin(t *testing.T) {
	app := newApp(t, false)

	assertRedirect(t, app.get(t, "/"), "/login")
	for _, path := range []string{"/app", "/app/events", "/app/admin", "/app/books/3", "/app/forum/topics/1"} {
		assertRedirect(t, app.get(t, path), "/login")
	}
	assert.Equal(t, http.StatusOK, app.get(t, "/login").StatusCode)
	assert.Equal(t, http.StatusOK, app.get(t, "/static/app.css").StatusCode)
	assert.Equal(t, http.StatusNotFound, app.get(t, "/nowhere").StatusCode)
}

func TestRoleRouting(t *testing.T) {
	app := newApp(t, false)
	assertRedirect(t, app.post(t, "/login", url.Values{"username": {"ana"}, "password": {"secret"}}), "/app")

	assertRedirect(t, app.get(t, "/app"), "/app/author")
	assertRedirect(t, app.get(t, "/app/admin"), "/app/author")
	assertRedirect(t, app.get(t, "/app/reader"), "/app/author")
	assertRedirect(t, app.get(t, "/app/admin/users"), "/app/author")
	assertRedirect(t, app.post(t, "/app/admin/users/7/role", url.Values{"role": {"admin"}}), "/app/author")
	assertRedirect(t, app.get(t, "/app/reader/favourites"), "/app/author")
	assert.Equal(t, http.StatusOK, app.get(t, "/app/profile").StatusCode)
	assert.Equal(t, http.StatusOK, app.get(t, "/app/author").StatusCode)
	assert.Equal(t, http.StatusOK, app.get(t, "/app/author/upload").StatusCode)
	assert.Equal(t, http.StatusOK, app.get(t, "/app/events/new").StatusCode)

	assertRedirect(t, app.post(t, "/logout", nil), "/login")
	assertRedirect(t, app.get(t, "/app/author"), "/login")
}

func TestGzip(t *testing.T) {
	app := newApp(t, true)
	req, err := http.NewRequest(http.MethodGet, app.base+"/login", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")
	res, err := app.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, "gzip", res.Header.Get("Content-Encoding"))
}

func TestSocketIsGuarded(t *testing.T) {
	app := newApp(t, true)
	_, res, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(app.base, "http")+"/app/chat/9/socket", nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, "/login", res.Header.Get("Location"))
}
