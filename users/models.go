package users

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"

	"github.com/rexlx/bookify/viewer"
)

// Roles decodes a role list sent either as tags or as {id, name} objects.
type Roles []string

func (r *Roles) UnmarshalJSON(b []byte) error {
	*r = viewer.Tags(b)
	return nil
}

// User is a backend user record, as returned by the profile and the admin
// listing endpoints.
type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth"`
	Icon        string `json:"icon"`
	Roles       Roles  `json:"roles"`
}

// Name is the full name, or the username when neither part is set.
func (u User) Name() string {
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return u.Username
}

// Role is the role shown in the admin listing: the first one the backend
// reports.
func (u User) Role() string {
	if len(u.Roles) == 0 {
		return ""
	}
	return u.Roles[0]
}

// UserList is one page of the admin user listing.
type UserList struct {
	Users      []User `json:"users"`
	TotalCount int    `json:"total_count"`
}

// ProfileUpdate is the body of POST /users/profile.
type ProfileUpdate struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	DateOfBirth string `json:"date_of_birth"`
}

// RoleChange is the body of PUT /users/admin/{id}/role.
type RoleChange struct {
	Role string `json:"role"`
}

// RoleOrder is the order roles are offered in. It is also the set of roles
// an admin may assign.
var RoleOrder = []string{
	viewer.TagAdmin,
	viewer.TagAuthor,
	viewer.TagReader,
	viewer.TagForumAdmin,
	viewer.TagForumModerator,
}

// SortRoles orders roles by RoleOrder. Unknown roles keep their relative
// order after the known ones.
func SortRoles(roles []string) {
	rank := func(r string) int {
		if i := slices.Index(RoleOrder, r); i >= 0 {
			return i
		}
		return len(RoleOrder)
	}
	slices.SortStableFunc(roles, func(a, b string) int { return rank(a) - rank(b) })
}

// roleList accepts GET /users/roles as a bare array or wrapped in {"roles": [...]}.
type roleList []string

func (l *roleList) UnmarshalJSON(b []byte) error {
	if t := bytes.TrimSpace(b); len(t) > 0 && t[0] == '{' {
		var wrapped struct {
			Roles json.RawMessage `json:"roles"`
		}
		if err := json.Unmarshal(t, &wrapped); err != nil {
			return err
		}
		b = wrapped.Roles
	}
	*l = viewer.Tags(b)
	return nil
}
