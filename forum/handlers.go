// forum/handlers.go
package forum

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dimfeld/httptreemux"
	"github.com/go-playground/log"
	"github.com/rexlx/bookify/viewer"
	"github.com/rexlx/bookify/web"
)

// DefaultPageSize is the number of root posts per topic page.
const DefaultPageSize = 10

// Backend is the part of API the handlers use.
type Backend interface {
	Categories(ctx context.Context) ([]Category, error)
	Topics(ctx context.Context, categoryID int64) ([]Topic, error)
	Posts(ctx context.Context, topicID int64) ([]Post, error)
	CreatePost(ctx context.Context, p NewPost) (*Post, error)
	Vote(ctx context.Context, postID int64, vote int) error
	DeletePost(ctx context.Context, postID int64) error
}

// TopicsViewData is the data structure for a category's topic list.
type TopicsViewData struct {
	CategoryID int64
	Topics     []Topic
}

// PostView is a render tree node plus what the viewer may do with it.
type PostView struct {
	Post     Post
	Depth    int
	Guide    bool
	Moderate bool
	Children []*PostView
}

// TopicViewData is the data structure for the single topic page.
type TopicViewData struct {
	TopicID    int64
	Nodes      []*PostView
	Pagination web.Pagination
}

type Handlers struct {
	api      Backend
	render   *web.Renderer
	flash    web.Flasher
	pageSize int
}

func NewHandlers(api Backend, render *web.Renderer, flash web.Flasher, pageSize int) *Handlers {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Handlers{api: api, render: render, flash: flash, pageSize: pageSize}
}

func (h *Handlers) RegisterRoutes(mux *httptreemux.ContextMux) {
	mux.GET("/app/forum", h.listCategories)
	mux.GET("/app/forum/categories/:id", h.listTopics)
	mux.GET("/app/forum/topics/:id", h.showTopic)
	mux.POST("/app/forum/topics/:id/posts", h.createPost)
	mux.POST("/app/forum/posts/:id/vote", h.votePost)
	mux.POST("/app/forum/posts/:id/delete", h.deletePost)
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(httptreemux.ContextParams(r.Context())["id"], 10, 64)
}

func (h *Handlers) page(r *http.Request, title string) web.Page {
	p := web.Page{Title: title, Viewer: viewer.Current(r.Context())}
	web.Pop(h.flash, r.Context(), &p)
	return p
}

func (h *Handlers) listCategories(w http.ResponseWriter, r *http.Request) {
	p := h.page(r, "Forum")
	categories, err := h.api.Categories(r.Context())
	if err != nil {
		log.WithFields(log.F("path", r.URL.Path)).Errorf("Error getting categories: %s", err)
		p.Error = "Failed to load forum categories"
		h.render.Render(w, http.StatusBadGateway, "forum.html", p)
		return
	}
	p.Data = categories
	h.render.Render(w, http.StatusOK, "forum.html", p)
}

func (h *Handlers) listTopics(w http.ResponseWriter, r *http.Request) {
	categoryID, err := idParam(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	p := h.page(r, "Topics")
	data := TopicsViewData{CategoryID: categoryID}
	p.Data = data
	topics, err := h.api.Topics(r.Context(), categoryID)
	if err != nil {
		log.WithFields(log.F("path", r.URL.Path)).Errorf("Error getting topics: %s", err)
		p.Error = "Failed to load topics"
		h.render.Render(w, http.StatusBadGateway, "topics.html", p)
		return
	}
	data.Topics = topics
	p.Data = data
	h.render.Render(w, http.StatusOK, "topics.html", p)
}

// showTopic fetches the topic's posts, rebuilds the forest from scratch and
// renders one page of root posts with all their replies.
func (h *Handlers) showTopic(w http.ResponseWriter, r *http.Request) {
	topicID, err := idParam(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	p := h.page(r, fmt.Sprintf("Topic #%d", topicID))
	data := TopicViewData{TopicID: topicID}

	posts, err := h.api.Posts(r.Context(), topicID)
	if err != nil {
		log.WithFields(log.F("path", r.URL.Path)).Errorf("Error getting posts: %s", err)
		p.Error = "Failed to load posts"
		p.Data = data
		h.render.Render(w, http.StatusBadGateway, "topic.html", p)
		return
	}

	forest := Build(posts)
	roots, pagination := PageRoots(forest, web.PageParam(r), h.pageSize)
	data.Nodes = toViews(forest.Nodes(roots), p.Viewer.CanModerate())
	data.Pagination = pagination
	p.Data = data
	h.render.Render(w, http.StatusOK, "topic.html", p)
}

func toViews(nodes []*Node, moderate bool) []*PostView {
	out := make([]*PostView, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &PostView{
			Post:     n.Post,
			Depth:    n.Depth,
			Guide:    n.Guide,
			Moderate: moderate,
			Children: toViews(n.Children, moderate),
		})
	}
	return out
}

func topicURL(topicID int64) string {
	return fmt.Sprintf("/app/forum/topics/%d", topicID)
}

func (h *Handlers) createPost(w http.ResponseWriter, r *http.Request) {
	topicID, err := idParam(r)
	if err != nil {
		http.Error(w, "Invalid topic ID", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	v := viewer.Current(r.Context())
	if v == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	post := NewPost{
		TopicID: topicID,
		UserID:  v.ID,
		Content: strings.TrimSpace(r.FormValue("content")),
	}
	if s := r.FormValue("reply_to"); s != "" {
		parent, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			http.Error(w, "Invalid reply target", http.StatusBadRequest)
			return
		}
		post.ReplyTo = &parent
	}
	if post.Content == "" {
		web.FlashError(h.flash, r.Context(), "Content is required")
		http.Redirect(w, r, topicURL(topicID), http.StatusSeeOther)
		return
	}
	if _, err := h.api.CreatePost(r.Context(), post); err != nil {
		log.WithFields(log.F("topic", topicID)).Errorf("Error creating post: %s", err)
		web.FlashError(h.flash, r.Context(), "Failed to create post")
	}
	http.Redirect(w, r, topicURL(topicID), http.StatusSeeOther)
}

// formTopic reads the topic to return to after a post action.
func formTopic(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.FormValue("topic"), 10, 64)
}

func (h *Handlers) votePost(w http.ResponseWriter, r *http.Request) {
	postID, err := idParam(r)
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	topicID, err := formTopic(r)
	if err != nil {
		http.Error(w, "Invalid topic ID", http.StatusBadRequest)
		return
	}
	vote, err := strconv.Atoi(r.FormValue("vote"))
	if err != nil || (vote != 1 && vote != -1) {
		http.Error(w, "Vote must be 1 or -1", http.StatusBadRequest)
		return
	}
	if err := h.api.Vote(r.Context(), postID, vote); err != nil {
		log.WithFields(log.F("post", postID)).Errorf("Error voting: %s", err)
		web.FlashError(h.flash, r.Context(), "Failed to register vote")
	}
	http.Redirect(w, r, topicURL(topicID)+fmt.Sprintf("#post-%d", postID), http.StatusSeeOther)
}

func (h *Handlers) deletePost(w http.ResponseWriter, r *http.Request) {
	postID, err := idParam(r)
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	topicID, err := formTopic(r)
	if err != nil {
		http.Error(w, "Invalid topic ID", http.StatusBadRequest)
		return
	}
	if !viewer.Current(r.Context()).CanModerate() {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if err := h.api.DeletePost(r.Context(), postID); err != nil {
		log.WithFields(log.F("post", postID)).Errorf("Error deleting post: %s", err)
		web.FlashError(h.flash, r.Context(), "Failed to delete post")
	} else {
		web.FlashInfo(h.flash, r.Context(), "Post deleted")
	}
	http.Redirect(w, r, topicURL(topicID), http.StatusSeeOther)
}
