package calendar

import (
	"errors"
	"strings"
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

// ErrInvalidInput marks event input rejected before any API call.
var ErrInvalidInput = errors.New("invalid event input")

// EventInput represents the input for creating a calendar event
type EventInput struct {
	Summary string
	Start   time.Time
	End     time.Time
}

// Event is the representation of a calendar event returned to callers.
type Event struct {
	ID       string    `json:"id,omitempty"`
	Summary  string    `json:"summary"`
	Status   string    `json:"status,omitempty"`
	HTMLLink string    `json:"htmlLink,omitempty"`
	Start    EventTime `json:"start"`
	End      EventTime `json:"end"`
}

// EventTime is a point in time with the zone it should be shown in.
// All-day events carry Date instead of DateTime.
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// InputError describes why event input was rejected.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return ErrInvalidInput.Error() + ": " + e.Message
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

// RequiredFields must be present on every created event.
var RequiredFields = []string{"summary", "start", "end"}

// MissingFields returns the required fields absent from payload.
func MissingFields(payload map[string]any) []string {
	var missing []string
	for _, field := range RequiredFields {
		if stringField(payload, field) == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

// ParseEventInput validates a create payload.
// summary, start and end are required; start and end must be RFC 3339.
func ParseEventInput(payload map[string]any) (EventInput, error) {
	if missing := MissingFields(payload); len(missing) > 0 {
		return EventInput{}, &InputError{Message: "missing required fields: " + strings.Join(missing, ", ")}
	}

	start, err := time.Parse(time.RFC3339, stringField(payload, "start"))
	if err != nil {
		return EventInput{}, &InputError{Message: "start must be an RFC 3339 timestamp"}
	}
	end, err := time.Parse(time.RFC3339, stringField(payload, "end"))
	if err != nil {
		return EventInput{}, &InputError{Message: "end must be an RFC 3339 timestamp"}
	}
	if !end.After(start) {
		return EventInput{}, &InputError{Message: "end must be after start"}
	}

	return EventInput{Summary: stringField(payload, "summary"), Start: start, End: end}, nil
}

// stringField reads a string field, accepting {"dateTime": "..."} objects
// for start and end the way the Calendar API shapes them.
func stringField(payload map[string]any, key string) string {
	switch v := payload[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		if dt, ok := v["dateTime"].(string); ok {
			return strings.TrimSpace(dt)
		}
	}
	return ""
}

func toEvent(event *calendar.Event) Event {
	return Event{
		ID:       event.Id,
		Summary:  event.Summary,
		Status:   event.Status,
		HTMLLink: event.HtmlLink,
		Start:    toEventTime(event.Start),
		End:      toEventTime(event.End),
	}
}

func toEventTime(dt *calendar.EventDateTime) EventTime {
	if dt == nil {
		return EventTime{}
	}
	return EventTime{
		DateTime: dt.DateTime,
		Date:     dt.Date,
		TimeZone: dt.TimeZone,
	}
}
