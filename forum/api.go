package forum

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rexlx/bookify/backend"
)

// API wraps the forum endpoints of the backend.
type API struct {
	c *backend.Client
}

func NewAPI(c *backend.Client) *API {
	return &API{c: c}
}

func (a *API) Categories(ctx context.Context) ([]Category, error) {
	var out []Category
	err := a.c.GetJSON(ctx, "/forum/categories", backend.CredentialsFrom(ctx), &out)
	return out, err
}

func (a *API) Topics(ctx context.Context, categoryID int64) ([]Topic, error) {
	var out []Topic
	err := a.c.GetJSON(ctx, fmt.Sprintf("/forum/categories/%d/topics", categoryID), backend.CredentialsFrom(ctx), &out)
	return out, err
}

// Posts returns the flat post list of a topic in server order.
func (a *API) Posts(ctx context.Context, topicID int64) ([]Post, error) {
	var out []Post
	err := a.c.GetJSON(ctx, fmt.Sprintf("/forum/topics/%d/posts", topicID), backend.CredentialsFrom(ctx), &out)
	return out, err
}

func (a *API) CreatePost(ctx context.Context, p NewPost) (*Post, error) {
	var out Post
	if err := a.c.SendJSON(ctx, http.MethodPost, "/forum/posts", backend.CredentialsFrom(ctx), p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Vote sends +1 or -1 for a post.
func (a *API) Vote(ctx context.Context, postID int64, vote int) error {
	body := map[string]int{"vote": vote}
	return a.c.SendJSON(ctx, http.MethodPatch, fmt.Sprintf("/forum/posts/%d/vote", postID), backend.CredentialsFrom(ctx), body, nil)
}

func (a *API) DeletePost(ctx context.Context, postID int64) error {
	return a.c.SendJSON(ctx, http.MethodDelete, fmt.Sprintf("/forum/posts/%d", postID), backend.CredentialsFrom(ctx), nil, nil)
}
