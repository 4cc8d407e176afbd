// Package notify surfaces booking events to the user. The scheduler
// only sees the Notifier interface; what "surfacing" means is up to
// the wiring in cmd.
package notify

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/example/fanyu-assistant/internal/booking"
)

// Notifier receives one event per matched course, just before the
// booking attempt.
type Notifier interface {
	CourseMatched(course booking.Course, req booking.BookRequest)
}

// Log writes match events to the application log.
type Log struct {
	Logger *zap.Logger
}

func (n Log) CourseMatched(course booking.Course, req booking.BookRequest) {
	n.Logger.Info("booking course",
		zap.String("course", course.Course.Name),
		zap.String("date", course.Date),
		zap.String("time", course.StartTime),
		zap.String("store", course.Store.Name),
		zap.String("requestId", req.ID))
}

// Exec runs a user-configured command (e.g. notify-send) with a title
// and body argument. Failures are logged, never propagated.
type Exec struct {
	Command string
	Logger  *zap.Logger
}

func (n Exec) CourseMatched(course booking.Course, req booking.BookRequest) {
	title := "Booking course"
	body := fmt.Sprintf("Course: %s\nTime: %s %s\nStore: %s",
		course.Course.Name, course.Date, course.StartTime, course.Store.Name)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := exec.CommandContext(ctx, n.Command, title, body).Run(); err != nil {
		n.Logger.Warn("notify command failed", zap.String("command", n.Command), zap.Error(err))
	}
}

// Multi fans one event out to several notifiers in order.
type Multi []Notifier

func (m Multi) CourseMatched(course booking.Course, req booking.BookRequest) {
	for _, n := range m {
		n.CourseMatched(course, req)
	}
}
