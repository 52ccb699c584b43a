package events

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rexlx/bookify/backend"
)

// API wraps the event endpoints of the backend.
type API struct {
	c *backend.Client
}

func NewAPI(c *backend.Client) *API {
	return &API{c: c}
}

func (a *API) Events(ctx context.Context) ([]Event, error) {
	var out []Event
	err := a.c.GetJSON(ctx, "/events/", backend.CredentialsFrom(ctx), &out)
	return out, err
}

func (a *API) Event(ctx context.Context, id int64) (*Event, error) {
	var out Event
	if err := a.c.GetJSON(ctx, fmt.Sprintf("/events/%d", id), backend.CredentialsFrom(ctx), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) Create(ctx context.Context, e NewEvent) (*Event, error) {
	var out Event
	if err := a.c.SendJSON(ctx, http.MethodPost, "/events/", backend.CredentialsFrom(ctx), e, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) Analytics(ctx context.Context, id int64) (*Analytics, error) {
	var out Analytics
	if err := a.c.GetJSON(ctx, fmt.Sprintf("/events/%d/analytics", id), backend.CredentialsFrom(ctx), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Calendar opens the ics feed of kind. The caller closes the response body.
func (a *API) Calendar(ctx context.Context, kind string) (*http.Response, error) {
	return a.c.Stream(ctx, fmt.Sprintf("/events/calendar/%s.ics", kind), backend.CredentialsFrom(ctx))
}
