package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Source identifies the feed a notification belongs to.
type Source string

const (
	SourceAppointment  Source = "appointment"
	SourceDiseaseAlert Source = "disease_alert"
	SourceWeatherAlert Source = "weather_alert"
	SourceGeneric      Source = "generic"
)

func (s Source) Valid() bool {
	switch s {
	case SourceAppointment, SourceDiseaseAlert, SourceWeatherAlert, SourceGeneric:
		return true
	}
	return false
}

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
	SeverityExtreme Severity = "extreme"
)

func (s Severity) Valid() bool {
	switch s {
	case "", SeverityInfo, SeverityWarning, SeverityDanger, SeverityExtreme:
		return true
	}
	return false
}

type Notification struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Source    Source    `json:"source" db:"source"`
	Severity  Severity  `json:"severity,omitempty" db:"severity"`
	Title     string    `json:"title" db:"title"`
	Message   string    `json:"message" db:"message"`
	Link      *string   `json:"link,omitempty" db:"link"`
	IsRead    bool      `json:"is_read" db:"is_read"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ListFilter narrows a user's notifications. An empty Source matches all.
type ListFilter struct {
	Source Source
	Limit  int
	Offset int
}

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidSource        = errors.New("invalid notification source")
	ErrInvalidSeverity      = errors.New("invalid notification severity")
	ErrEmptyMessage         = errors.New("notification message is required")
)
