package events

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/dimfeld/httptreemux"
	"github.com/rexlx/bookify/backend"
	"github.com/rexlx/bookify/viewer"
	"github.com/rexlx/bookify/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validForm() Form {
	return Form{Title: "Book club", Date: "2024-03-04", StartTime: "18:30", Duration: "1.5", Format: FormatInPerson}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validForm().Validate())

	tests := []struct {
		name  string
		mod   func(*Form)
		field string
	}{
		{"title", func(f *Form) { f.Title = "" }, "title"},
		{"date", func(f *Form) { f.Date = "" }, "event_date"},
		{"bad date", func(f *Form) { f.Date = "04/03/2024" }, "event_date"},
		{"start", func(f *Form) { f.StartTime = "" }, "start_time"},
		{"zero duration", func(f *Form) { f.Duration = "0" }, "duration"},
		{"missing duration", func(f *Form) { f.Duration = "" }, "duration"},
		{"NaN duration", func(f *Form) { f.Duration = "NaN" }, "duration"},
		{"infinite duration", func(f *Form) { f.Duration = "Inf" }, "duration"},
		{"negative infinite duration", func(f *Form) { f.Duration = "-Inf" }, "duration"},
		{"negative duration", func(f *Form) { f.Duration = "-1" }, "duration"},
		{"duration over a week", func(f *Form) { f.Duration = "1e9" }, "duration"},
		{"virtual needs link", func(f *Form) { f.Format = FormatVirtual }, "meeting_link"},
		{"guest limit", func(f *Form) { f.GuestLimit = "-2" }, "guest_limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validForm()
			tt.mod(&f)
			err := f.Validate()
			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.Contains(t, verrs, tt.field)
			assert.Len(t, verrs, 1)
		})
	}

	week := validForm()
	week.Duration = "168"
	assert.NoError(t, week.Validate())
	start, end, err := week.Times(time.UTC)
	require.NoError(t, err)
	assert.True(t, end.After(start))

	virtual := validForm()
	virtual.Format = FormatVirtual
	virtual.MeetingLink = "https://meet.example.com/x"
	assert.NoError(t, virtual.Validate())
}

func TestValidateCollectsAll(t *testing.T) {
	err := Form{Format: FormatVirtual}.Validate()
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 5)
	assert.Equal(t, "duration: Duration must be greater than 0; event_date: Event date is required; "+
		"meeting_link: Meeting link is required for virtual events; start_time: Start time is required; title: Title is required", err.Error())
}

func TestTimesAndEvent(t *testing.T) {
	f := validForm()
	f.GuestLimit = "20"
	f.Tags = "fantasy, classics ,fantasy,"
	start, end, err := f.Times(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 4, 18, 30, 0, 0, time.UTC), start)
	assert.Equal(t, 90*time.Minute, end.Sub(start))

	e, err := f.Event("7", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "7", e.OrganizerID)
	assert.Nil(t, e.Description)
	assert.Nil(t, e.MeetingLink)
	require.NotNil(t, e.GuestLimit)
	assert.Equal(t, 20, *e.GuestLimit)
	assert.Equal(t, []string{"fantasy", "classics"}, e.TagNames)
}

func TestParseFormDefaultsFormat(t *testing.T) {
	f := ParseForm(url.Values{"title": {" Club "}, "format": {"underwater"}})
	assert.Equal(t, "Club", f.Title)
	assert.Equal(t, FormatInPerson, f.Format)
	assert.Equal(t, FormatHybrid, ParseForm(url.Values{"format": {"hybrid"}}).Format)
}

func TestEventOnline(t *testing.T) {
	assert.False(t, Event{Format: FormatInPerson, MeetingLink: "x"}.Online())
	assert.False(t, Event{Format: FormatVirtual}.Online())
	assert.True(t, Event{Format: FormatHybrid, MeetingLink: "x"}.Online())
}

type fakeEvents struct {
	mu      sync.Mutex
	events  []Event
	fail    bool
	created []NewEvent
	kinds   []string
}

var errDown = errors.New("backend down")

func (f *fakeEvents) Events(context.Context) ([]Event, error) {
	if f.fail {
		return nil, errDown
	}
	return append([]Event(nil), f.events...), nil
}

func (f *fakeEvents) Event(_ context.Context, id int64) (*Event, error) {
	for _, e := range f.events {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, &backend.StatusError{Code: http.StatusNotFound}
}

func (f *fakeEvents) Create(_ context.Context, e NewEvent) (*Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, e)
	return &Event{ID: 42, Title: e.Title}, nil
}

func (f *fakeEvents) Analytics(context.Context, int64) (*Analytics, error) {
	return &Analytics{TotalParticipants: 12, ConfirmedCount: 9, ResponseRate: 75,
		RSVPBreakdown: []Count{{Status: "registered", Count: 3}, {Status: "confirmed", Count: 9}}}, nil
}

func (f *fakeEvents) Calendar(_ context.Context, kind string) (*http.Response, error) {
	f.mu.Lock()
	f.kinds = append(f.kinds, kind)
	f.mu.Unlock()
	if f.fail {
		return nil, errDown
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": {"text/calendar"}},
		Body:       io.NopCloser(strings.NewReader("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")),
	}, nil
}

type harness struct {
	api     *fakeEvents
	handler http.Handler
}

func newHarness(t *testing.T, v *viewer.Viewer) *harness {
	t.Helper()
	render, err := web.NewRenderer()
	require.NoError(t, err)
	sm := scs.New()
	api := &fakeEvents{events: []Event{
		{ID: 1, Title: "Book club", OrganizerID: 7, Format: FormatInPerson, Location: "Library",
			StartDate: time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC), EndDate: time.Date(2024, 3, 4, 20, 0, 0, 0, time.UTC)},
		{ID: 2, Title: "Author Q&A", OrganizerID: 9, Format: FormatVirtual, MeetingLink: "https://meet.example.com/qa",
			StartDate: time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC), EndDate: time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)},
	}}
	handlers := NewHandlers(api, render, sm, time.UTC)
	handlers.now = func() time.Time { return time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC) }

	mux := httptreemux.NewContextMux()
	handlers.RegisterRoutes(mux)
	handler := sm.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		holder := viewer.NewHolder()
		holder.SetViewer(v)
		mux.ServeHTTP(w, r.WithContext(viewer.WithHolder(r.Context(), holder)))
	}))
	return &harness{api: api, handler: handler}
}

func (h *harness) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

var organizer = &viewer.Viewer{ID: "7", Username: "ana", Roles: []string{"author"}}

func TestListView(t *testing.T) {
	h := newHarness(t, organizer)
	rec := h.do(http.MethodGet, "/app/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Book club")
	assert.Contains(t, body, "Mon, Mar 4 · 6:00 PM - 8:00 PM")
	assert.Contains(t, body, "/app/events/calendar/my-events.ics")
}

func TestMonthView(t *testing.T) {
	h := newHarness(t, organizer)
	rec := h.do(http.MethodGet, "/app/events?view=month&year=2024&month=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `class="calendar month"`)
	assert.Contains(t, body, "Book club")
	assert.Contains(t, body, "Author Q&amp;A")
	assert.Equal(t, 6, strings.Count(body, "<tr><td"))
	assert.Contains(t, body, " today")
}

func TestWeekView(t *testing.T) {
	h := newHarness(t, organizer)
	rec := h.do(http.MethodGet, "/app/events?view=week&date=2024-03-05", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Mon 4")
	assert.Contains(t, body, "Sun 10")
	assert.Contains(t, body, "Book club")
	assert.NotContains(t, body, "Author Q&amp;A")
}

func TestListFailure(t *testing.T) {
	h := newHarness(t, organizer)
	h.api.fail = true
	rec := h.do(http.MethodGet, "/app/events", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to load events")
}

func TestShow(t *testing.T) {
	h := newHarness(t, organizer)
	rec := h.do(http.MethodGet, "/app/events/2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://meet.example.com/qa")
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/app/events/404", nil).Code)
}

func TestCreate(t *testing.T) {
	h := newHarness(t, organizer)
	rec := h.do(http.MethodGet, "/app/events/new", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodPost, "/app/events/new", url.Values{"title": {"Club"}, "format": {"virtual"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Meeting link is required for virtual events")
	assert.Contains(t, rec.Body.String(), `value="Club"`)
	assert.Empty(t, h.api.created)

	rec = h.do(http.MethodPost, "/app/events/new", url.Values{
		"title": {"Club"}, "event_date": {"2024-04-01"}, "start_time": {"10:00"}, "duration": {"2"}, "format": {"in-person"},
	})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/app/events/42", rec.Header().Get("Location"))
	require.Len(t, h.api.created, 1)
	assert.Equal(t, time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC), h.api.created[0].EndDate)
}

func TestAnalyticsOrganizerOnly(t *testing.T) {
	h := newHarness(t, organizer)
	rec := h.do(http.MethodGet, "/app/events/1/analytics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "75.0%")
	assert.Contains(t, rec.Body.String(), "confirmed: 9")

	rec = h.do(http.MethodGet, "/app/events/2/analytics", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "You are not authorized")

	admin := newHarness(t, &viewer.Viewer{ID: "1", Roles: []string{"admin"}})
	assert.Equal(t, http.StatusOK, admin.do(http.MethodGet, "/app/events/2/analytics", nil).Code)
}

func TestExportStreamsCalendar(t *testing.T) {
	h := newHarness(t, organizer)
	rec := h.do(http.MethodGet, "/app/events/calendar/my-registrations.ics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/calendar", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="my_registrations.ics"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/app/events/calendar/everything.ics", nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/app/events/calendar/my-events", nil).Code)
	assert.Equal(t, []string{"my-registrations"}, h.api.kinds)

	h.api.fail = true
	rec = h.do(http.MethodGet, "/app/events/calendar/my-events.ics", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}
