package books

import (
	"cmp"
	"net/url"
	"slices"
	"strings"
)

// SortFields are the accepted values of ?sort=.
var SortFields = []string{"title", "rating", "downloads", "reviews"}

// Filter is the catalog query. The zero value matches everything and keeps
// server order.
type Filter struct {
	Genres   []string
	Author   string
	Keywords string
	SortBy   string
	Desc     bool
}

// ParseFilter reads genre (repeated), author, keywords, sort and direction.
// An unknown sort field is ignored.
func ParseFilter(q url.Values) Filter {
	f := Filter{
		Author:   strings.TrimSpace(q.Get("author")),
		Keywords: strings.TrimSpace(q.Get("keywords")),
		Desc:     q.Get("direction") == "desc",
	}
	for _, g := range q["genre"] {
		if g = strings.TrimSpace(g); g != "" {
			f.Genres = append(f.Genres, g)
		}
	}
	if s := q.Get("sort"); slices.Contains(SortFields, s) {
		f.SortBy = s
	}
	return f
}

// Match reports whether b passes every criterion of f.
func (f Filter) Match(b Book) bool {
	for _, g := range f.Genres {
		if !slices.ContainsFunc(b.Categories, func(c Category) bool { return strings.EqualFold(c.Name, g) }) {
			return false
		}
	}
	if f.Author != "" && !containsFold(b.Author.Username, f.Author) {
		return false
	}
	if f.Keywords != "" {
		for _, word := range strings.Fields(f.Keywords) {
			if !containsFold(b.Title, word) && !containsFold(b.Description, word) {
				return false
			}
		}
	}
	return true
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// Apply returns the matching books, sorted when SortBy is set. The input is
// left untouched.
func (f Filter) Apply(list []Book) []Book {
	out := make([]Book, 0, len(list))
	for _, b := range list {
		if f.Match(b) {
			out = append(out, b)
		}
	}
	if f.SortBy == "" {
		return out
	}
	slices.SortStableFunc(out, f.compare)
	return out
}

func (f Filter) compare(a, b Book) int {
	dir := 1
	if f.Desc {
		dir = -1
	}
	switch f.SortBy {
	case "title":
		return dir * cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	case "downloads":
		return dir * cmp.Compare(a.Downloads, b.Downloads)
	case "reviews":
		return dir * cmp.Compare(a.reviews(), b.reviews())
	case "rating":
		ra, okA := a.score()
		rb, okB := b.score()
		// unrated books go last in both directions
		switch {
		case !okA && !okB:
			return 0
		case !okA:
			return 1
		case !okB:
			return -1
		}
		return dir * cmp.Compare(ra, rb)
	}
	return 0
}
