package forum

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/alexedwards/scs/v2"
	"github.com/dimfeld/httptreemux"
	"github.com/rexlx/bookify/viewer"
	"github.com/rexlx/bookify/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeForum struct {
	mu      sync.Mutex
	posts   []Post
	fail    bool
	created []NewPost
	votes   map[int64]int
	deleted []int64
}

var errDown = errors.New("backend down")

func (f *fakeForum) Categories(context.Context) ([]Category, error) {
	if f.fail {
		return nil, errDown
	}
	return []Category{{ID: 1, Name: "General"}}, nil
}

func (f *fakeForum) Topics(_ context.Context, id int64) ([]Topic, error) {
	if f.fail {
		return nil, errDown
	}
	return []Topic{{ID: 3, CategoryID: id, Title: "Favourite openings"}}, nil
}

func (f *fakeForum) Posts(context.Context, int64) ([]Post, error) {
	if f.fail {
		return nil, errDown
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Post(nil), f.posts...), nil
}

func (f *fakeForum) CreatePost(_ context.Context, p NewPost) (*Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, p)
	out := Post{ID: int64(100 + len(f.created)), TopicID: p.TopicID, Content: p.Content, ReplyTo: p.ReplyTo}
	f.posts = append(f.posts, out)
	return &out, nil
}

func (f *fakeForum) Vote(_ context.Context, id int64, vote int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.votes == nil {
		f.votes = map[int64]int{}
	}
	f.votes[id] += vote
	return nil
}

func (f *fakeForum) DeletePost(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

type harness struct {
	api     *fakeForum
	handler http.Handler
	v       *viewer.Viewer
}

func newHarness(t *testing.T, v *viewer.Viewer) *harness {
	t.Helper()
	render, err := web.NewRenderer()
	require.NoError(t, err)
	sm := scs.New()
	api := &fakeForum{}
	h := &harness{api: api, v: v}

	mux := httptreemux.NewContextMux()
	NewHandlers(api, render, sm, 2).RegisterRoutes(mux)

	withViewer := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		holder := viewer.NewHolder()
		holder.SetViewer(h.v)
		mux.ServeHTTP(w, r.WithContext(viewer.WithHolder(r.Context(), holder)))
	})
	h.handler = sm.LoadAndSave(withViewer)
	return h
}

func (h *harness) do(method, target string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func reply(id, parent int64, content string) Post {
	p := post(id, parent)
	p.TopicID = 3
	p.Content = content
	return p
}

func TestShowTopicRendersNestedReplies(t *testing.T) {
	h := newHarness(t, &viewer.Viewer{ID: "1", Username: "ana", Roles: []string{"reader"}})
	h.api.posts = []Post{
		reply(1, 0, "first root"),
		reply(2, 1, "reply to first"),
		reply(3, 2, "nested reply"),
		reply(4, 99, "orphaned reply"),
		reply(5, 0, "second root"),
		reply(6, 0, "third root"),
	}

	rec := h.do(http.MethodGet, "/app/forum/topics/3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "first root")
	assert.Contains(t, body, "reply to first")
	assert.Contains(t, body, "nested reply")
	assert.Contains(t, body, "second root")
	assert.NotContains(t, body, "third root")
	assert.NotContains(t, body, "orphaned reply")
	assert.NotContains(t, body, "Delete")
	assert.Less(t, strings.Index(body, "reply to first"), strings.Index(body, "nested reply"))
	assert.Less(t, strings.Index(body, "nested reply"), strings.Index(body, "second root"))

	rec = h.do(http.MethodGet, "/app/forum/topics/3?page=2", nil)
	body = rec.Body.String()
	assert.Contains(t, body, "third root")
	assert.NotContains(t, body, "first root")
	rec = h.do(http.MethodGet, "/app/forum/topics/3?page=9223372036854775807", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body = rec.Body.String()
	assert.NotContains(t, body, "first root")
	assert.NotContains(t, body, "third root")
	assert.Contains(t, body, "No posts in this topic.")
	assert.Contains(t, body, `href="?page=2"`)
}

func TestShowTopicModeratorSeesDelete(t *testing.T) {
	h := newHarness(t, &viewer.Viewer{ID: "1", Roles: []string{"forum_moderator"}})
	h.api.posts = []Post{reply(1, 0, "root"), reply(2, 1, "child")}
	rec := h.do(http.MethodGet, "/app/forum/topics/3", nil)
	assert.Equal(t, 2, strings.Count(rec.Body.String(), "/delete"))
}

func TestShowTopicBackendFailure(t *testing.T) {
	h := newHarness(t, &viewer.Viewer{ID: "1", Roles: []string{"reader"}})
	h.api.fail = true
	rec := h.do(http.MethodGet, "/app/forum/topics/3", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to load posts")

	rec = h.do(http.MethodGet, "/app/forum", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to load forum categories")
}

func TestListPages(t *testing.T) {
	h := newHarness(t, &viewer.Viewer{ID: "1", Roles: []string{"reader"}})
	rec := h.do(http.MethodGet, "/app/forum", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/app/forum/categories/1")

	rec = h.do(http.MethodGet, "/app/forum/categories/1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Favourite openings")

	rec = h.do(http.MethodGet, "/app/forum/categories/abc", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateReply(t *testing.T) {
	h := newHarness(t, &viewer.Viewer{ID: "7", Roles: []string{"reader"}})
	h.api.posts = []Post{reply(1, 0, "root")}

	rec := h.do(http.MethodPost, "/app/forum/topics/3/posts", url.Values{"content": {"  a reply  "}, "reply_to": {"1"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/app/forum/topics/3", rec.Header().Get("Location"))
	require.Len(t, h.api.created, 1)
	assert.Equal(t, "a reply", h.api.created[0].Content)
	assert.Equal(t, "7", h.api.created[0].UserID)
	require.NotNil(t, h.api.created[0].ReplyTo)
	assert.Equal(t, int64(1), *h.api.created[0].ReplyTo)

	// the forest is rebuilt from the new fetch
	rec = h.do(http.MethodGet, "/app/forum/topics/3", nil)
	assert.Contains(t, rec.Body.String(), "a reply")
}

func TestCreateEmptyPostNeverReachesBackend(t *testing.T) {
	h := newHarness(t, &viewer.Viewer{ID: "7", Roles: []string{"reader"}})
	rec := h.do(http.MethodPost, "/app/forum/topics/3/posts", url.Values{"content": {"   "}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Empty(t, h.api.created)

	rec = h.do(http.MethodGet, "/app/forum/topics/3", nil, rec.Result().Cookies()...)
	assert.Contains(t, rec.Body.String(), "Content is required")

	rec = h.do(http.MethodPost, "/app/forum/topics/3/posts", url.Values{"content": {"x"}, "reply_to": {"nope"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, h.api.created)
}

func TestVote(t *testing.T) {
	h := newHarness(t, &viewer.Viewer{ID: "7", Roles: []string{"reader"}})
	rec := h.do(http.MethodPost, "/app/forum/posts/5/vote", url.Values{"vote": {"-1"}, "topic": {"3"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/app/forum/topics/3#post-5", rec.Header().Get("Location"))
	assert.Equal(t, -1, h.api.votes[5])

	rec = h.do(http.MethodPost, "/app/forum/posts/5/vote", url.Values{"vote": {"3"}, "topic": {"3"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, -1, h.api.votes[5])
}

func TestDeleteRequiresModerator(t *testing.T) {
	h := newHarness(t, &viewer.Viewer{ID: "7", Roles: []string{"author", "reader"}})
	rec := h.do(http.MethodPost, "/app/forum/posts/5/delete", url.Values{"topic": {"3"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, h.api.deleted)

	h.v = &viewer.Viewer{ID: "1", Roles: []string{"admin"}}
	rec = h.do(http.MethodPost, "/app/forum/posts/5/delete", url.Values{"topic": {"3"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, []int64{5}, h.api.deleted)
}
