// viewer/viewer.go
package viewer

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Role is one of the three dashboard roles a viewer can land on.
type Role int

const (
	Reader Role = iota
	Author
	Admin
)

// Role tags as the backend spells them.
const (
	TagAdmin          = "admin"
	TagAuthor         = "author"
	TagReader         = "reader"
	TagForumAdmin     = "forum_admin"
	TagForumModerator = "forum_moderator"
)

func (r Role) String() string {
	switch r {
	case Admin:
		return TagAdmin
	case Author:
		return TagAuthor
	default:
		return TagReader
	}
}

// Path is the role-home path of r.
func (r Role) Path() string {
	return "/app/" + r.String()
}

// ParseRole maps a reserved path token onto a Role. Only admin, author and
// reader are reserved.
func ParseRole(s string) (Role, bool) {
	switch s {
	case TagAdmin:
		return Admin, true
	case TagAuthor:
		return Author, true
	case TagReader:
		return Reader, true
	}
	return Reader, false
}

// Viewer is the locally held record of the signed in user.
type Viewer struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

func init() {
	// scs encodes session values with gob
	gob.Register(Viewer{})
}

// Has reports whether the viewer holds the role tag.
func (v *Viewer) Has(tag string) bool {
	if v == nil {
		return false
	}
	for _, r := range v.Roles {
		if r == tag {
			return true
		}
	}
	return false
}

// Home resolves the role-home with the fixed precedence admin > author >
// reader. A viewer without any roles lands on reader.
func (v *Viewer) Home() Role {
	switch {
	case v.Has(TagAdmin):
		return Admin
	case v.Has(TagAuthor):
		return Author
	default:
		return Reader
	}
}

// CanModerate reports whether the viewer may delete forum posts.
func (v *Viewer) CanModerate() bool {
	return v.Has(TagAdmin) || v.Has(TagForumModerator) || v.Has(TagForumAdmin)
}

// Clone returns a deep copy so holders never share the role slice.
func (v *Viewer) Clone() *Viewer {
	if v == nil {
		return nil
	}
	c := *v
	c.Roles = append([]string(nil), v.Roles...)
	return &c
}

func (v *Viewer) MarshalBinary() ([]byte, error) {
	return json.Marshal(v)
}

func (v *Viewer) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, v)
}

// profile is the raw shape of GET /users/profile. The id may be a number or
// a string and roles may be tags or {id, name} objects.
type profile struct {
	ID       json.RawMessage `json:"id"`
	Username string          `json:"username"`
	Email    string          `json:"email"`
	Roles    json.RawMessage `json:"roles"`
}

// Decode parses a profile response body into a normalized Viewer.
func Decode(body []byte) (*Viewer, error) {
	var p profile
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	id, err := decodeID(p.ID)
	if err != nil {
		return nil, err
	}
	return &Viewer{
		ID:       id,
		Username: p.Username,
		Email:    p.Email,
		Roles:    Normalize(p.Roles),
	}, nil
}

func decodeID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", fmt.Errorf("profile has no id")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("invalid profile id %s: %w", raw, err)
	}
	return n.String(), nil
}

// Normalize turns the raw roles value into a tag list holding at least one
// dashboard role. Anything that is not an array becomes [reader], and reader
// is added when none of admin, author or reader is present.
func Normalize(raw json.RawMessage) []string {
	roles, ok := tags(raw)
	if !ok {
		return []string{TagReader}
	}
	if !slices.Contains(roles, TagAdmin) && !slices.Contains(roles, TagAuthor) && !slices.Contains(roles, TagReader) {
		roles = append(roles, TagReader)
	}
	return roles
}

// Tags returns the lower cased, deduplicated role tags of raw as the backend
// sent them, without adding a dashboard role.
func Tags(raw json.RawMessage) []string {
	roles, _ := tags(raw)
	return roles
}

func tags(raw json.RawMessage) ([]string, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return []string{}, false
	}
	roles := make([]string, 0, len(items))
	for _, item := range items {
		tag := roleTag(item)
		if tag == "" || slices.Contains(roles, tag) {
			continue
		}
		roles = append(roles, tag)
	}
	return roles, true
}

func roleTag(item json.RawMessage) string {
	var s string
	if err := json.Unmarshal(item, &s); err == nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(item, &obj); err == nil {
		return strings.ToLower(strings.TrimSpace(obj.Name))
	}
	return ""
}
