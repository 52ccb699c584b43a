package books

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/rexlx/bookify/backend"
)

// API wraps the book, review and category endpoints of the backend.
type API struct {
	c *backend.Client
}

func NewAPI(c *backend.Client) *API {
	return &API{c: c}
}

func (a *API) Books(ctx context.Context) ([]Book, error) {
	var out []Book
	err := a.c.GetJSON(ctx, "/books/", backend.CredentialsFrom(ctx), &out)
	return out, err
}

func (a *API) Book(ctx context.Context, id int64) (*Book, error) {
	var out Book
	if err := a.c.GetJSON(ctx, fmt.Sprintf("/books/%d", id), backend.CredentialsFrom(ctx), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Categories returns the genre names.
func (a *API) Categories(ctx context.Context) ([]string, error) {
	var out []string
	err := a.c.GetJSON(ctx, "/categories/", backend.CredentialsFrom(ctx), &out)
	return out, err
}

func (a *API) Reviews(ctx context.Context, bookID int64) ([]Review, error) {
	var out []Review
	err := a.c.GetJSON(ctx, fmt.Sprintf("/books/%d/reviews", bookID), backend.CredentialsFrom(ctx), &out)
	return out, err
}

func (a *API) AverageRating(ctx context.Context, bookID int64) (*float64, error) {
	var out struct {
		BookID        int64    `json:"book_id"`
		AverageRating *float64 `json:"average_rating"`
	}
	if err := a.c.GetJSON(ctx, fmt.Sprintf("/books/%d/average-rating", bookID), backend.CredentialsFrom(ctx), &out); err != nil {
		return nil, err
	}
	return out.AverageRating, nil
}

func (a *API) CreateReview(ctx context.Context, bookID int64, r NewReview) error {
	return a.c.SendJSON(ctx, http.MethodPost, fmt.Sprintf("/reviews/%d", bookID), backend.CredentialsFrom(ctx), r, nil)
}

// CountDownload bumps the download counter and returns the file URL.
func (a *API) CountDownload(ctx context.Context, b *Book) (string, error) {
	if err := a.c.SendJSON(ctx, http.MethodPost, fmt.Sprintf("/books/%d/increment-download", b.ID), backend.CredentialsFrom(ctx), nil, nil); err != nil {
		return "", err
	}
	return a.c.URL(b.Path), nil
}

// Upload re-encodes the validated file as the backend's multipart form.
func (a *API) Upload(ctx context.Context, u Upload, file io.Reader) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("title", u.Title)
	mw.WriteField("description", u.Description)
	for _, c := range u.Categories {
		mw.WriteField("categories", c)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="book_file"; filename=%q`, u.Filename))
	h.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, io.LimitReader(file, MaxUploadSize+1)); err != nil {
		return fmt.Errorf("failed to read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return a.c.Upload(ctx, "/books/testZaUpload", backend.CredentialsFrom(ctx), mw.FormDataContentType(), &buf)
}

// Authored returns the signed in author's books.
func (a *API) Authored(ctx context.Context) ([]Book, error) {
	var out []Book
	err := a.c.GetJSON(ctx, "/books/authored", backend.CredentialsFrom(ctx), &out)
	return out, err
}

// Favourites returns the ids of the viewer's favourite books.
func (a *API) Favourites(ctx context.Context) ([]int64, error) {
	var out []int64
	err := a.c.GetJSON(ctx, "/books/favourites", backend.CredentialsFrom(ctx), &out)
	return out, err
}

func (a *API) SetFavourite(ctx context.Context, bookID int64, on bool) error {
	method := http.MethodDelete
	if on {
		method = http.MethodPost
	}
	return a.c.SendJSON(ctx, method, fmt.Sprintf("/books/favourites/%d", bookID), backend.CredentialsFrom(ctx), nil, nil)
}
