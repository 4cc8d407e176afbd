// Package booking holds the domain model: the account, the user's
// recurring book requests, the remote course snapshots and the booked
// record that guards against double booking.
package booking

import (
	"fmt"
	"time"
)

// Account is the remote platform credential pair. Both fields must be
// set for the polling loop to run.
type Account struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a Account) Complete() bool { return a.Username != "" && a.Password != "" }

// BookRequest is one recurring preference: book any joinable course at
// StoreID whose start falls on one of Days inside TimeRange.
// Days use ISO numbering, Monday=1 through Sunday=7.
type BookRequest struct {
	ID        string       `json:"id"`
	StoreID   string       `json:"storeId"`
	Days      []int        `json:"days"`
	TimeRange [2]TimeOfDay `json:"timeRange"`
	Enable    bool         `json:"enable"`
}

func (r BookRequest) Validate() error {
	if r.StoreID == "" {
		return fmt.Errorf("storeId required")
	}
	if len(r.Days) == 0 {
		return fmt.Errorf("at least one weekday required")
	}
	for _, d := range r.Days {
		if d < 1 || d > 7 {
			return fmt.Errorf("weekday %d out of range (want 1-7, Monday=1)", d)
		}
	}
	if r.TimeRange[1].Before(r.TimeRange[0]) {
		return fmt.Errorf("time range end %s before start %s", r.TimeRange[1], r.TimeRange[0])
	}
	return nil
}

// NamedRef is a nested name-only reference in remote payloads.
type NamedRef struct {
	Name string `json:"name"`
}

// Course is a remote schedule entry. Field names follow the platform's
// wire format; snapshots are never mutated locally.
type Course struct {
	ID        string   `json:"id"`
	StoreID   string   `json:"storeId"`
	Date      string   `json:"beginTime_D"` // yyyy-MM-dd
	StartTime string   `json:"beginTime_"`  // HH:mm
	CanJoin   bool     `json:"canJoin"`
	Course    NamedRef `json:"course"`
	Store     NamedRef `json:"store"`
}

// StartsAt resolves the course's full start timestamp from its own
// calendar date.
func (c Course) StartsAt() (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", c.Date+" "+c.StartTime, time.Local)
}

// BookedCourse is the appended-only record of a successful booking and
// the sole durable guard against booking a course twice.
type BookedCourse struct {
	Course
	BookedAt time.Time `json:"bookedAt"`
}

// Card is a payment/membership card, fetched fresh each cycle.
type Card struct {
	ID     string `json:"id"`
	CanUse bool   `json:"canUse"`
}

// FirstUsable returns the first card eligible for booking.
func FirstUsable(cards []Card) (Card, bool) {
	for _, c := range cards {
		if c.CanUse {
			return c, true
		}
	}
	return Card{}, false
}

// ISOWeekday converts Go's Sunday-based weekday to ISO numbering.
func ISOWeekday(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}
