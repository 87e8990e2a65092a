package domain

import "time"

// Source is the origin feed of a notification.
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

// Severity is only set on alert-sourced notifications.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
	SeverityExtreme Severity = "extreme"
)

// Notification is the cross-feed record held by an inbox. Read only moves
// from false to true, except when an unconfirmed optimistic read is rolled
// back.
type Notification struct {
	ID        string    `json:"id"`
	Source    Source    `json:"source"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Read      bool      `json:"read"`
	Severity  Severity  `json:"severity,omitempty"`
}

// SourceResult is one feed's contribution to a load.
type SourceResult struct {
	Source Source
	Items  []Notification
}
