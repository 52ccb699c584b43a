package books

import (
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// MaxUploadSize is the largest accepted book file.
const MaxUploadSize = 10 << 20

// ValidationError rejects a submission before it reaches the backend.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidateUpload checks an upload is a titled PDF of at most MaxUploadSize.
func ValidateUpload(u Upload) error {
	if strings.TrimSpace(u.Title) == "" {
		return &ValidationError{"title", "Title is required"}
	}
	if u.Filename == "" {
		return &ValidationError{"file", "Please choose a book file"}
	}
	pdf := u.ContentType == "application/pdf" ||
		(u.ContentType == "" || u.ContentType == "application/octet-stream") && strings.EqualFold(filepath.Ext(u.Filename), ".pdf")
	if !pdf {
		return &ValidationError{"file", "Please choose a PDF file"}
	}
	if u.Size > MaxUploadSize {
		return &ValidationError{"file", "File is too large. The maximum size is 10MB"}
	}
	return nil
}

// MaxReviewLength bounds the optional review text, in runes.
const MaxReviewLength = 2000

// ValidateReview requires a rating between 1 and 5. The text is optional.
func ValidateReview(rating int, text string) error {
	if rating < 1 || rating > 5 {
		return &ValidationError{"rating", "Please select a rating (1-5)"}
	}
	if utf8.RuneCountInString(text) > MaxReviewLength {
		return &ValidationError{"content", "Review is too long"}
	}
	return nil
}
