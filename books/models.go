// Package books serves the catalog: listing with filters, book details,
// reviews, favourites and the author's uploads.
package books

import (
	"fmt"
	"time"
)

type Author struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"category"`
}

// Book mirrors the backend's book display.
type Book struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Path          string     `json:"path"`
	Downloads     int        `json:"num_of_downloads"`
	Description   string     `json:"description"`
	Author        Author     `json:"author"`
	AverageRating *float64   `json:"average_rating"`
	ReviewCount   *int       `json:"review_count"`
	Categories    []Category `json:"categories"`

	// Rating is filled in by AttachRatings.
	Rating Rating `json:"-"`
}

// Rating is an average that may have failed to load.
type Rating struct {
	Value float64
	Known bool
}

func (r Rating) String() string {
	if !r.Known {
		return "N/A"
	}
	return fmt.Sprintf("%.1f", r.Value)
}

func ratingOf(avg *float64) Rating {
	if avg == nil {
		return Rating{}
	}
	return Rating{Value: *avg, Known: true}
}

// score is the rating used for sorting.
func (b Book) score() (float64, bool) {
	if b.Rating.Known {
		return b.Rating.Value, true
	}
	if b.AverageRating != nil {
		return *b.AverageRating, true
	}
	return 0, false
}

func (b Book) reviews() int {
	if b.ReviewCount == nil {
		return 0
	}
	return *b.ReviewCount
}

type Review struct {
	ID        int64     `json:"id"`
	BookID    int64     `json:"book_id"`
	UserID    int64     `json:"user_id"`
	Rating    int       `json:"rating"`
	Content   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// NewReview is the body of a review submission.
type NewReview struct {
	Rating  int     `json:"rating"`
	Comment *string `json:"comment"`
	UserID  string  `json:"user_id"`
}

// Upload is a validated book file ready to be proxied.
type Upload struct {
	Title       string
	Description string
	Categories  []string
	Filename    string
	ContentType string
	Size        int64
}
