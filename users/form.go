package users

import (
	"net/mail"
	"net/url"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"
)

// PageSize is the number of users per admin listing page.
const PageSize = 10

// Filter is the admin listing query.
type Filter struct {
	Username string
	Email    string
	Roles    []string
	Page     int
}

func ParseFilter(q url.Values) Filter {
	f := Filter{
		Username: strings.TrimSpace(q.Get("username")),
		Email:    strings.TrimSpace(q.Get("email")),
		Page:     1,
	}
	for _, r := range q["roles"] {
		r = strings.ToLower(strings.TrimSpace(r))
		if slices.Contains(RoleOrder, r) && !slices.Contains(f.Roles, r) {
			f.Roles = append(f.Roles, r)
		}
	}
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 1 {
		f.Page = p
	}
	return f
}

// Query is the backend query string for f.
func (f Filter) Query() url.Values {
	q := f.Link(f.Page)
	q.Set("limit", strconv.Itoa(PageSize))
	return q
}

// Link is the listing query for another page of the same filter.
func (f Filter) Link(page int) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	if f.Username != "" {
		q.Set("username", f.Username)
	}
	if f.Email != "" {
		q.Set("email", f.Email)
	}
	for _, r := range f.Roles {
		q.Add("roles", r)
	}
	return q
}

func (f Filter) HasRole(r string) bool {
	return slices.Contains(f.Roles, r)
}

// ProfileForm is the profile edit form as submitted.
type ProfileForm struct {
	FirstName   string
	LastName    string
	Email       string
	DateOfBirth string
}

func ParseProfileForm(v url.Values) ProfileForm {
	return ProfileForm{
		FirstName:   strings.TrimSpace(v.Get("first_name")),
		LastName:    strings.TrimSpace(v.Get("last_name")),
		Email:       strings.TrimSpace(v.Get("email")),
		DateOfBirth: strings.TrimSpace(v.Get("date_of_birth")),
	}
}

// FormOf prefills the edit form with the stored profile.
func FormOf(u User) ProfileForm {
	return ProfileForm{FirstName: u.FirstName, LastName: u.LastName, Email: u.Email, DateOfBirth: u.DateOfBirth}
}

// ValidationErrors maps form fields to their message.
type ValidationErrors map[string]string

func (e ValidationErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e[k]
	}
	return strings.Join(parts, "; ")
}

// Validate checks the fields that are set. Blank fields keep their stored
// value.
func (f ProfileForm) Validate(now time.Time) error {
	errs := ValidationErrors{}
	if f.Email != "" {
		if a, err := mail.ParseAddress(f.Email); err != nil || a.Address != f.Email {
			errs["email"] = "Enter a valid email address"
		}
	}
	if f.DateOfBirth != "" {
		if d, err := time.Parse(time.DateOnly, f.DateOfBirth); err != nil {
			errs["date_of_birth"] = "Date of birth must be YYYY-MM-DD"
		} else if d.After(now) {
			errs["date_of_birth"] = "Date of birth cannot be in the future"
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Update merges the form over the stored profile.
func (f ProfileForm) Update(u User) ProfileUpdate {
	pick := func(v, stored string) string {
		if v != "" {
			return v
		}
		return stored
	}
	return ProfileUpdate{
		FirstName:   pick(f.FirstName, u.FirstName),
		LastName:    pick(f.LastName, u.LastName),
		Email:       pick(f.Email, u.Email),
		DateOfBirth: pick(f.DateOfBirth, u.DateOfBirth),
	}
}
