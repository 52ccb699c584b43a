package books

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/dimfeld/httptreemux"
	"github.com/go-playground/log"
	"github.com/rexlx/bookify/backend"
	"github.com/rexlx/bookify/viewer"
	"github.com/rexlx/bookify/web"
)

// Backend is the part of API the handlers use.
type Backend interface {
	RatingFetcher
	Books(ctx context.Context) ([]Book, error)
	Book(ctx context.Context, id int64) (*Book, error)
	Categories(ctx context.Context) ([]string, error)
	Reviews(ctx context.Context, bookID int64) ([]Review, error)
	CreateReview(ctx context.Context, bookID int64, r NewReview) error
	CountDownload(ctx context.Context, b *Book) (string, error)
	Upload(ctx context.Context, u Upload, file io.Reader) error
	Authored(ctx context.Context) ([]Book, error)
	Favourites(ctx context.Context) ([]int64, error)
	SetFavourite(ctx context.Context, bookID int64, on bool) error
}

type CategoryOption struct {
	Name     string
	Selected bool
}

// ListViewData is the data structure for the catalog page.
type ListViewData struct {
	Categories []CategoryOption
	Filter     Filter
	SortFields []string
	Books      []Book
}

// DetailViewData is the data structure for a single book.
type DetailViewData struct {
	Book      Book
	Download  string
	Reviews   []Review
	Stars     []int
	Favourite bool
}

// ShelfViewData is a plain list of books, used for favourites and the
// author's own books.
type ShelfViewData struct {
	Heading    string
	Empty      string
	Books      []Book
	Favourites bool
}

type UploadViewData struct {
	Categories  []string
	Title       string
	Description string
}

type Handlers struct {
	api         Backend
	render      *web.Renderer
	flash       web.Flasher
	concurrency int
}

func NewHandlers(api Backend, render *web.Renderer, flash web.Flasher, concurrency int) *Handlers {
	if concurrency <= 0 {
		concurrency = DefaultRatingConcurrency
	}
	return &Handlers{api: api, render: render, flash: flash, concurrency: concurrency}
}

func (h *Handlers) RegisterRoutes(mux *httptreemux.ContextMux) {
	mux.GET("/app/books", h.list)
	mux.GET("/app/books/:id", h.show)
	mux.GET("/app/books/:id/download", h.download)
	mux.POST("/app/books/:id/reviews", h.review)
	mux.POST("/app/books/:id/favourite", h.favourite)
	mux.GET("/app/reader/favourites", h.favourites)
	mux.GET("/app/author/books", h.authored)
	mux.GET("/app/author/upload", h.uploadForm)
	mux.POST("/app/author/upload", h.upload)
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(httptreemux.ContextParams(r.Context())["id"], 10, 64)
}

func bookURL(id int64) string {
	return fmt.Sprintf("/app/books/%d", id)
}

func (h *Handlers) page(r *http.Request, title string) web.Page {
	p := web.Page{Title: title, Viewer: viewer.Current(r.Context())}
	web.Pop(h.flash, r.Context(), &p)
	return p
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	p := h.page(r, "Books")
	f := ParseFilter(r.URL.Query())
	data := ListViewData{Filter: f, SortFields: SortFields}

	genres, err := h.api.Categories(r.Context())
	if err != nil {
		log.WithFields(log.F("path", r.URL.Path)).Warnf("Error getting categories: %s", err)
	}
	for _, g := range genres {
		data.Categories = append(data.Categories, CategoryOption{Name: g, Selected: slices.Contains(f.Genres, g)})
	}

	all, err := h.api.Books(r.Context())
	if err != nil {
		log.WithFields(log.F("path", r.URL.Path)).Errorf("Error getting books: %s", err)
		p.Error = "Failed to load books"
		p.Data = data
		h.render.Render(w, http.StatusBadGateway, "books.html", p)
		return
	}

	// filter first so only visible books cost a rating request
	unsorted := f
	unsorted.SortBy = ""
	matched := unsorted.Apply(all)
	AttachRatings(r.Context(), h.api, matched, h.concurrency)
	data.Books = f.Apply(matched)
	p.Data = data
	h.render.Render(w, http.StatusOK, "books.html", p)
}

func (h *Handlers) load(w http.ResponseWriter, r *http.Request) (*Book, bool) {
	id, err := idParam(r)
	if err != nil {
		http.NotFound(w, r)
		return nil, false
	}
	b, err := h.api.Book(r.Context(), id)
	if err != nil {
		if backend.IsNotFound(err) {
			http.NotFound(w, r)
			return nil, false
		}
		log.WithFields(log.F("book", id)).Errorf("Error getting book: %s", err)
		p := h.page(r, "Book")
		p.Error = "Failed to load book"
		h.render.Render(w, http.StatusBadGateway, "book.html", p)
		return nil, false
	}
	return b, true
}

func (h *Handlers) show(w http.ResponseWriter, r *http.Request) {
	b, ok := h.load(w, r)
	if !ok {
		return
	}
	p := h.page(r, b.Title)
	data := DetailViewData{
		Download: bookURL(b.ID) + "/download",
		Stars:    []int{5, 4, 3, 2, 1},
	}

	avg, err := h.api.AverageRating(r.Context(), b.ID)
	if err != nil {
		log.WithFields(log.F("book", b.ID)).Warnf("Error getting rating: %s", err)
	} else {
		b.Rating = ratingOf(avg)
	}
	data.Book = *b

	reviews, err := h.api.Reviews(r.Context(), b.ID)
	if err != nil {
		log.WithFields(log.F("book", b.ID)).Errorf("Error getting reviews: %s", err)
		p.Error = "Failed to load reviews"
	}
	data.Reviews = reviews

	favs, err := h.api.Favourites(r.Context())
	if err != nil {
		log.WithFields(log.F("book", b.ID)).Warnf("Error getting favourites: %s", err)
	}
	data.Favourite = slices.Contains(favs, b.ID)
	p.Data = data
	h.render.Render(w, http.StatusOK, "book.html", p)
}

func (h *Handlers) favourites(w http.ResponseWriter, r *http.Request) {
	p := h.page(r, "Favourites")
	data := ShelfViewData{Heading: "Favourite books", Empty: "You have no favourite books yet.", Favourites: true}

	ids, err := h.api.Favourites(r.Context())
	var all []Book
	if err == nil && len(ids) > 0 {
		all, err = h.api.Books(r.Context())
	}
	if err != nil {
		log.WithFields(log.F("path", r.URL.Path)).Errorf("Error getting favourites: %s", err)
		p.Error = "Failed to load favourite books"
		p.Data = data
		h.render.Render(w, http.StatusBadGateway, "shelf.html", p)
		return
	}
	for _, b := range all {
		if slices.Contains(ids, b.ID) {
			data.Books = append(data.Books, b)
		}
	}
	AttachRatings(r.Context(), h.api, data.Books, h.concurrency)
	p.Data = data
	h.render.Render(w, http.StatusOK, "shelf.html", p)
}

func (h *Handlers) authored(w http.ResponseWriter, r *http.Request) {
	p := h.page(r, "My books")
	data := ShelfViewData{Heading: "My books", Empty: "You have not uploaded any books yet."}

	list, err := h.api.Authored(r.Context())
	if err != nil {
		log.WithFields(log.F("path", r.URL.Path)).Errorf("Error getting authored books: %s", err)
		p.Error = "Failed to load your books."
		p.Data = data
		h.render.Render(w, http.StatusBadGateway, "shelf.html", p)
		return
	}
	AttachRatings(r.Context(), h.api, list, h.concurrency)
	data.Books = list
	p.Data = data
	h.render.Render(w, http.StatusOK, "shelf.html", p)
}

// favourite adds or removes a book. The form's "from" field picks where the
// browser goes back to.
func (h *Handlers) favourite(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, "Invalid book ID", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	if viewer.Current(r.Context()) == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	target := bookURL(id)
	if r.PostForm.Get("from") == "favourites" {
		target = "/app/reader/favourites"
	}
	on := r.PostForm.Get("action") != "remove"
	if err := h.api.SetFavourite(r.Context(), id, on); err != nil {
		log.WithFields(log.F("book", id), log.F("on", on)).Errorf("Error updating favourite: %s", err)
		web.FlashError(h.flash, r.Context(), "Failed to update favourites")
	} else if on {
		web.FlashInfo(h.flash, r.Context(), "Added to favourites")
	} else {
		web.FlashInfo(h.flash, r.Context(), "Removed from favourites")
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handlers) download(w http.ResponseWriter, r *http.Request) {
	b, ok := h.load(w, r)
	if !ok {
		return
	}
	if b.Path == "" {
		http.NotFound(w, r)
		return
	}
	target, err := h.api.CountDownload(r.Context(), b)
	if err != nil {
		log.WithFields(log.F("book", b.ID)).Errorf("Error counting download: %s", err)
		web.FlashError(h.flash, r.Context(), "An error occurred while trying to download the book")
		http.Redirect(w, r, bookURL(b.ID), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handlers) review(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.Error(w, "Invalid book ID", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	v := viewer.Current(r.Context())
	if v == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	rating, _ := strconv.Atoi(r.FormValue("rating"))
	text := strings.TrimSpace(r.FormValue("content"))
	if err := ValidateReview(rating, text); err != nil {
		web.FlashError(h.flash, r.Context(), err.(*ValidationError).Message)
		http.Redirect(w, r, bookURL(id), http.StatusSeeOther)
		return
	}
	review := NewReview{Rating: rating, UserID: v.ID}
	if text != "" {
		review.Comment = &text
	}
	if err := h.api.CreateReview(r.Context(), id, review); err != nil {
		log.WithFields(log.F("book", id)).Errorf("Error creating review: %s", err)
		web.FlashError(h.flash, r.Context(), "Failed to submit review")
	} else {
		web.FlashInfo(h.flash, r.Context(), "Review submitted successfully!")
	}
	http.Redirect(w, r, bookURL(id), http.StatusSeeOther)
}

func (h *Handlers) uploadPage(r *http.Request, data UploadViewData) web.Page {
	p := h.page(r, "Upload a book")
	categories, err := h.api.Categories(r.Context())
	if err != nil {
		log.WithFields(log.F("path", r.URL.Path)).Warnf("Error getting categories: %s", err)
	}
	data.Categories = categories
	p.Data = data
	return p
}

func (h *Handlers) uploadForm(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, http.StatusOK, "upload.html", h.uploadPage(r, UploadViewData{}))
}

func (h *Handlers) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			p := h.uploadPage(r, UploadViewData{})
			p.Error = "File is too large. The maximum size is 10MB"
			h.render.Render(w, http.StatusRequestEntityTooLarge, "upload.html", p)
			return
		}
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	u := Upload{
		Title:       strings.TrimSpace(r.FormValue("title")),
		Description: strings.TrimSpace(r.FormValue("description")),
		Categories:  r.MultipartForm.Value["categories"],
	}
	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		u.Filename = header.Filename
		u.ContentType = header.Header.Get("Content-Type")
		u.Size = header.Size
	}
	if err := ValidateUpload(u); err != nil {
		p := h.uploadPage(r, UploadViewData{Title: u.Title, Description: u.Description})
		p.Error = err.(*ValidationError).Message
		h.render.Render(w, http.StatusUnprocessableEntity, "upload.html", p)
		return
	}
	if err := h.api.Upload(r.Context(), u, file); err != nil {
		log.WithFields(log.F("title", u.Title)).Errorf("Error uploading book: %s", err)
		p := h.uploadPage(r, UploadViewData{Title: u.Title, Description: u.Description})
		p.Error = "Failed to upload book"
		h.render.Render(w, http.StatusBadGateway, "upload.html", p)
		return
	}
	web.FlashInfo(h.flash, r.Context(), fmt.Sprintf("Book %q uploaded", u.Title))
	http.Redirect(w, r, "/app/author/upload", http.StatusSeeOther)
}
