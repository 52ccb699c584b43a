package books

import (
	"context"

	"github.com/go-playground/log"
	"golang.org/x/sync/errgroup"
)

// DefaultRatingConcurrency caps in-flight average-rating requests.
const DefaultRatingConcurrency = 4

// RatingFetcher loads one book's average rating. A nil average means the
// book has no reviews yet.
type RatingFetcher interface {
	AverageRating(ctx context.Context, bookID int64) (*float64, error)
}

// AttachRatings fills Rating on every book with at most limit requests in
// flight. A failed fetch leaves that book's rating unknown and never
// affects the others.
func AttachRatings(ctx context.Context, f RatingFetcher, list []Book, limit int) {
	if limit <= 0 {
		limit = DefaultRatingConcurrency
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i := range list {
		b := &list[i]
		g.Go(func() error {
			avg, err := f.AverageRating(ctx, b.ID)
			if err != nil {
				log.WithFields(log.F("book", b.ID)).Warnf("failed to fetch rating: %s", err)
				b.Rating = Rating{}
				return nil
			}
			b.Rating = ratingOf(avg)
			return nil
		})
	}
	g.Wait()
}
