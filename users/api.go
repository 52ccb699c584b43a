package users

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rexlx/bookify/backend"
)

// API wraps the user endpoints of the backend.
type API struct {
	c *backend.Client
}

func NewAPI(c *backend.Client) *API {
	return &API{c: c}
}

func (a *API) Profile(ctx context.Context) (*User, error) {
	var out User
	if err := a.c.GetJSON(ctx, "/users/profile", backend.CredentialsFrom(ctx), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) UpdateProfile(ctx context.Context, u ProfileUpdate) error {
	return a.c.SendJSON(ctx, http.MethodPost, "/users/profile", backend.CredentialsFrom(ctx), u, nil)
}

func (a *API) Users(ctx context.Context, f Filter) (*UserList, error) {
	var out UserList
	if err := a.c.GetJSON(ctx, "/users/admin/users?"+f.Query().Encode(), backend.CredentialsFrom(ctx), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Roles returns the assignable roles in RoleOrder.
func (a *API) Roles(ctx context.Context) ([]string, error) {
	var out roleList
	if err := a.c.GetJSON(ctx, "/users/roles", backend.CredentialsFrom(ctx), &out); err != nil {
		return nil, err
	}
	SortRoles(out)
	return out, nil
}

func (a *API) SetRole(ctx context.Context, id int64, role string) error {
	return a.c.SendJSON(ctx, http.MethodPut, fmt.Sprintf("/users/admin/%d/role", id), backend.CredentialsFrom(ctx), RoleChange{Role: role}, nil)
}

func (a *API) Delete(ctx context.Context, id int64) error {
	return a.c.SendJSON(ctx, http.MethodDelete, fmt.Sprintf("/users/admin/%d", id), backend.CredentialsFrom(ctx), nil, nil)
}
