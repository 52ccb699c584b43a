package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dimfeld/httptreemux"
	"github.com/go-playground/log"
	"github.com/rexlx/bookify/backend"
	"github.com/rexlx/bookify/calendar"
	"github.com/rexlx/bookify/viewer"
	"github.com/rexlx/bookify/web"
)

// Backend is the part of API the handlers use.
type Backend interface {
	Events(ctx context.Context) ([]Event, error)
	Event(ctx context.Context, id int64) (*Event, error)
	Create(ctx context.Context, e NewEvent) (*Event, error)
	Analytics(ctx context.Context, id int64) (*Analytics, error)
	Calendar(ctx context.Context, kind string) (*http.Response, error)
}

// CalendarKinds are the exportable feeds.
var CalendarKinds = []string{"my-events", "my-registrations"}

// Cell is a month grid day with its events.
type Cell struct {
	Date    time.Time
	InMonth bool
	Today   bool
	Events  []Event
}

type DayEvents struct {
	Date   time.Time
	Events []Event
}

// ListViewData is the data structure for the list and calendar views.
type ListViewData struct {
	View   string
	Year   int
	Month  int
	Anchor string
	Weeks  [][]Cell
	Days   []DayEvents
	Hours  []int
	Events []Event
	Kinds  []string
}

type FormViewData struct {
	Form   Form
	Errors ValidationErrors
}

type AnalyticsViewData struct {
	Event     Event
	Analytics Analytics
}

type Handlers struct {
	api    Backend
	render *web.Renderer
	flash  web.Flasher
	loc    *time.Location
	now    func() time.Time
}

func NewHandlers(api Backend, render *web.Renderer, flash web.Flasher, loc *time.Location) *Handlers {
	if loc == nil {
		loc = time.Local
	}
	return &Handlers{api: api, render: render, flash: flash, loc: loc, now: time.Now}
}

func (h *Handlers) RegisterRoutes(mux *httptreemux.ContextMux) {
	mux.GET("/app/events", h.list)
	mux.GET("/app/events/new", h.newForm)
	mux.POST("/app/events/new", h.create)
	mux.GET("/app/events/calendar/:file", h.export)
	mux.GET("/app/events/:id", h.show)
	mux.GET("/app/events/:id/analytics", h.analytics)
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(httptreemux.ContextParams(r.Context())["id"], 10, 64)
}

func (h *Handlers) page(r *http.Request, title string) web.Page {
	p := web.Page{Title: title, Viewer: viewer.Current(r.Context())}
	web.Pop(h.flash, r.Context(), &p)
	return p
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	p := h.page(r, "Events")
	q := r.URL.Query()
	today := h.now().In(h.loc)
	data := ListViewData{
		View:  q.Get("view"),
		Year:  today.Year(),
		Month: int(today.Month()),
		Kinds: CalendarKinds,
	}
	if y, err := strconv.Atoi(q.Get("year")); err == nil && y > 0 {
		data.Year = y
	}
	if m, err := strconv.Atoi(q.Get("month")); err == nil && m >= 1 && m <= 12 {
		data.Month = m
	}
	anchor := today
	if d, err := time.ParseInLocation(time.DateOnly, q.Get("date"), h.loc); err == nil {
		anchor = d
	}
	data.Anchor = anchor.Format(time.DateOnly)

	evs, err := h.api.Events(r.Context())
	if err != nil {
		log.WithFields(log.F("path", r.URL.Path)).Errorf("Error getting events: %s", err)
		p.Error = "Failed to load events"
		p.Data = data
		h.render.Render(w, http.StatusBadGateway, "events.html", p)
		return
	}
	for i := range evs {
		evs[i].StartDate = evs[i].StartDate.In(h.loc)
		evs[i].EndDate = evs[i].EndDate.In(h.loc)
	}

	switch data.View {
	case "month":
		grid := calendar.MonthGrid(data.Year, time.Month(data.Month), h.loc)
		cells := make([]Cell, len(grid))
		for i, d := range grid {
			cells[i] = Cell{Date: d.Date, InMonth: d.InMonth, Today: calendar.SameDay(d.Date, today), Events: on(evs, d.Date)}
		}
		for i := 0; i+7 <= len(cells); i += 7 {
			data.Weeks = append(data.Weeks, cells[i:i+7])
		}
	case "week":
		for _, d := range calendar.WeekDays(anchor) {
			data.Days = append(data.Days, DayEvents{Date: d, Events: on(evs, d)})
		}
		data.Hours = calendar.Hours()
	default:
		data.View = "list"
		data.Events = evs
	}
	p.Data = data
	h.render.Render(w, http.StatusOK, "events.html", p)
}

// on returns the events starting on day, in input order.
func on(evs []Event, day time.Time) []Event {
	var out []Event
	for _, e := range evs {
		if calendar.SameDay(e.StartDate, day) {
			out = append(out, e)
		}
	}
	return out
}

func (h *Handlers) load(w http.ResponseWriter, r *http.Request) (*Event, bool) {
	id, err := idParam(r)
	if err != nil {
		http.NotFound(w, r)
		return nil, false
	}
	e, err := h.api.Event(r.Context(), id)
	if err != nil {
		if backend.IsNotFound(err) {
			http.NotFound(w, r)
			return nil, false
		}
		log.WithFields(log.F("event", id)).Errorf("Error getting event: %s", err)
		p := h.page(r, "Event")
		p.Error = "Failed to load event"
		h.render.Render(w, http.StatusBadGateway, "event.html", p)
		return nil, false
	}
	e.StartDate = e.StartDate.In(h.loc)
	e.EndDate = e.EndDate.In(h.loc)
	return e, true
}

func (h *Handlers) show(w http.ResponseWriter, r *http.Request) {
	e, ok := h.load(w, r)
	if !ok {
		return
	}
	p := h.page(r, e.Title)
	p.Data = *e
	h.render.Render(w, http.StatusOK, "event.html", p)
}

func (h *Handlers) newForm(w http.ResponseWriter, r *http.Request) {
	p := h.page(r, "Create event")
	p.Data = FormViewData{Form: NewForm(), Errors: ValidationErrors{}}
	h.render.Render(w, http.StatusOK, "event_new.html", p)
}

func (h *Handlers) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	v := viewer.Current(r.Context())
	if v == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	f := ParseForm(r.PostForm)
	p := h.page(r, "Create event")

	if err := f.Validate(); err != nil {
		var verrs ValidationErrors
		errors.As(err, &verrs)
		p.Data = FormViewData{Form: f, Errors: verrs}
		h.render.Render(w, http.StatusUnprocessableEntity, "event_new.html", p)
		return
	}
	body, err := f.Event(v.ID, h.loc)
	if err != nil {
		p.Data = FormViewData{Form: f, Errors: ValidationErrors{"event_date": err.Error()}}
		h.render.Render(w, http.StatusUnprocessableEntity, "event_new.html", p)
		return
	}
	created, err := h.api.Create(r.Context(), body)
	if err != nil {
		log.WithFields(log.F("title", f.Title)).Errorf("Error creating event: %s", err)
		p.Error = "Failed to create event"
		p.Data = FormViewData{Form: f, Errors: ValidationErrors{}}
		h.render.Render(w, http.StatusBadGateway, "event_new.html", p)
		return
	}
	web.FlashInfo(h.flash, r.Context(), "Event created")
	http.Redirect(w, r, fmt.Sprintf("/app/events/%d", created.ID), http.StatusSeeOther)
}

func (h *Handlers) analytics(w http.ResponseWriter, r *http.Request) {
	e, ok := h.load(w, r)
	if !ok {
		return
	}
	p := h.page(r, "Analytics")
	if v := p.Viewer; v == nil || (v.ID != strconv.FormatInt(e.OrganizerID, 10) && !v.Has(viewer.TagAdmin)) {
		p.Error = "You are not authorized to view analytics for this event."
		h.render.Render(w, http.StatusForbidden, "analytics.html", p)
		return
	}
	a, err := h.api.Analytics(r.Context(), e.ID)
	if err != nil {
		log.WithFields(log.F("event", e.ID)).Errorf("Error getting analytics: %s", err)
		p.Error = "Failed to load event analytics."
		h.render.Render(w, http.StatusBadGateway, "analytics.html", p)
		return
	}
	p.Data = AnalyticsViewData{Event: *e, Analytics: *a}
	h.render.Render(w, http.StatusOK, "analytics.html", p)
}

// export streams an ics feed from the backend as a download.
func (h *Handlers) export(w http.ResponseWriter, r *http.Request) {
	file := httptreemux.ContextParams(r.Context())["file"]
	kind, ok := strings.CutSuffix(file, ".ics")
	if !ok || !slices.Contains(CalendarKinds, kind) {
		http.NotFound(w, r)
		return
	}
	res, err := h.api.Calendar(r.Context(), kind)
	if err != nil {
		log.WithFields(log.F("kind", kind)).Errorf("Error getting calendar: %s", err)
		web.FlashError(h.flash, r.Context(), "Failed to download calendar")
		http.Redirect(w, r, "/app/events", http.StatusSeeOther)
		return
	}
	defer res.Body.Close()

	ct := res.Header.Get("Content-Type")
	if ct == "" {
		ct = "text/calendar; charset=utf-8"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.ics"`, strings.ReplaceAll(kind, "-", "_")))
	if _, err := io.Copy(w, res.Body); err != nil {
		log.WithFields(log.F("kind", kind)).Warnf("calendar stream interrupted: %s", err)
	}
}
