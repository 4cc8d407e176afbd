package booking

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock hour and minute with no date attached.
// Book request time ranges are stored as TimeOfDay regardless of the
// shape the configuration surface produced.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

func (t TimeOfDay) Before(o TimeOfDay) bool {
	return t.Hour < o.Hour || (t.Hour == o.Hour && t.Minute < o.Minute)
}

// On anchors the time of day to a calendar date.
func (t TimeOfDay) On(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour, t.Minute, 0, 0, date.Location())
}

// timeOfDayLayouts are tried in order by ParseTimeOfDay. Configuration
// surfaces have historically produced full timestamps, date-only
// values and bare clock strings; all collapse to hour and minute here.
var timeOfDayLayouts = []string{
	"15:04",
	"15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02", // midnight
}

// ParseTimeOfDay is the single coercion point for time range values.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range timeOfDayLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{Hour: ts.Hour(), Minute: ts.Minute()}, nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("unrecognized time of day %q", s)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
