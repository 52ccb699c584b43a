// Package events serves the event list, calendar views, event creation,
// organizer analytics and calendar export.
package events

import (
	"time"

	"github.com/rexlx/bookify/calendar"
)

const (
	FormatInPerson = "in-person"
	FormatVirtual  = "virtual"
	FormatHybrid   = "hybrid"
)

type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Event mirrors the backend's event display.
type Event struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Location    string    `json:"location"`
	Format      string    `json:"format"`
	MeetingLink string    `json:"meeting_link"`
	CoverImage  string    `json:"cover_image"`
	GuestLimit  *int      `json:"guest_limit"`
	OrganizerID int64     `json:"organizer_id"`
	Tags        []Tag     `json:"tags"`
}

// Online reports whether the event has a meeting link to join.
func (e Event) Online() bool {
	return e.Format != FormatInPerson && e.MeetingLink != ""
}

func (e Event) When() string {
	return calendar.FormatRange(e.StartDate, e.EndDate)
}

// NewEvent is the body of an event creation.
type NewEvent struct {
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Location    *string   `json:"location"`
	Format      string    `json:"format"`
	MeetingLink *string   `json:"meeting_link"`
	GuestLimit  *int      `json:"guest_limit"`
	OrganizerID string    `json:"organizer_id"`
	TagNames    []string  `json:"tag_names"`
}

type Count struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Analytics is the organizer's view of one event.
type Analytics struct {
	TotalParticipants    int          `json:"total_participants"`
	ConfirmedCount       int          `json:"confirmed_count"`
	ResponseRate         float64      `json:"response_rate"`
	RSVPBreakdown        []Count      `json:"rsvp_breakdown"`
	RegistrationTimeline []DailyCount `json:"registration_timeline"`
}
