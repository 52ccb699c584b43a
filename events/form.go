package events

import (
	"fmt"
	"math"
	"net/url"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Form is the event creation form as submitted.
type Form struct {
	Title       string
	Description string
	Date        string
	StartTime   string
	Duration    string
	Format      string
	Location    string
	MeetingLink string
	GuestLimit  string
	Tags        string
}

// DefaultDuration is the prefilled duration in hours.
const DefaultDuration = "2"

// MaxDuration caps an event's length in hours.
const MaxDuration = 7 * 24

func NewForm() Form {
	return Form{Duration: DefaultDuration, Format: FormatInPerson}
}

func ParseForm(v url.Values) Form {
	f := Form{
		Title:       strings.TrimSpace(v.Get("title")),
		Description: strings.TrimSpace(v.Get("description")),
		Date:        strings.TrimSpace(v.Get("event_date")),
		StartTime:   strings.TrimSpace(v.Get("start_time")),
		Duration:    strings.TrimSpace(v.Get("duration")),
		Format:      v.Get("format"),
		Location:    strings.TrimSpace(v.Get("location")),
		MeetingLink: strings.TrimSpace(v.Get("meeting_link")),
		GuestLimit:  strings.TrimSpace(v.Get("guest_limit")),
		Tags:        strings.TrimSpace(v.Get("tags")),
	}
	if f.Format != FormatVirtual && f.Format != FormatHybrid {
		f.Format = FormatInPerson
	}
	return f
}

// ValidationErrors maps form fields to their message.
type ValidationErrors map[string]string

func (e ValidationErrors) Error() string {
	fields := make([]string, 0, len(e))
	for k := range e {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, k := range fields {
		parts = append(parts, k+": "+e[k])
	}
	return strings.Join(parts, "; ")
}

// Validate returns nil or a ValidationErrors.
func (f Form) Validate() error {
	errs := ValidationErrors{}
	if f.Title == "" {
		errs["title"] = "Title is required"
	}
	if f.Date == "" {
		errs["event_date"] = "Event date is required"
	} else if _, err := time.Parse(time.DateOnly, f.Date); err != nil {
		errs["event_date"] = "Event date is invalid"
	}
	if f.StartTime == "" {
		errs["start_time"] = "Start time is required"
	} else if _, err := time.Parse("15:04", f.StartTime); err != nil {
		errs["start_time"] = "Start time is invalid"
	}
	if d, err := strconv.ParseFloat(f.Duration, 64); err != nil || math.IsNaN(d) || d <= 0 {
		errs["duration"] = "Duration must be greater than 0"
	} else if d > MaxDuration {
		errs["duration"] = fmt.Sprintf("Duration must be at most %d hours", MaxDuration)
	}
	if f.Format == FormatVirtual && f.MeetingLink == "" {
		errs["meeting_link"] = "Meeting link is required for virtual events"
	}
	if f.GuestLimit != "" {
		if n, err := strconv.Atoi(f.GuestLimit); err != nil || n <= 0 {
			errs["guest_limit"] = "Guest limit must be a positive number"
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Times derives start and end in loc from the date, start time and
// duration in hours. Call after Validate.
func (f Form) Times(loc *time.Location) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(time.DateOnly+" 15:04", f.Date+" "+f.StartTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	hours, err := strconv.ParseFloat(f.Duration, 64)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, start.Add(time.Duration(hours * float64(time.Hour))), nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Event builds the creation body. Call after Validate.
func (f Form) Event(organizerID string, loc *time.Location) (NewEvent, error) {
	start, end, err := f.Times(loc)
	if err != nil {
		return NewEvent{}, err
	}
	e := NewEvent{
		Title:       f.Title,
		Description: optional(f.Description),
		StartDate:   start,
		EndDate:     end,
		Location:    optional(f.Location),
		Format:      f.Format,
		MeetingLink: optional(f.MeetingLink),
		OrganizerID: organizerID,
		TagNames:    []string{},
	}
	if f.GuestLimit != "" {
		n, _ := strconv.Atoi(f.GuestLimit)
		e.GuestLimit = &n
	}
	for _, t := range strings.Split(f.Tags, ",") {
		if t = strings.TrimSpace(t); t != "" && !slices.Contains(e.TagNames, t) {
			e.TagNames = append(e.TagNames, t)
		}
	}
	return e, nil
}
