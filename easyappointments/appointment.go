package easyappointments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-playground/validator/v10"
)

// DateTimeLayout is the date-time format the server uses for appointments.
const DateTimeLayout = "2006-01-02 15:04:05"

// Status is the booking status of an appointment.
type Status string

const (
	// StatusBooked is an active appointment
	StatusBooked Status = "Booked"
	// StatusCancelled is a cancelled appointment
	StatusCancelled Status = "Cancelled"
)

// ParseStatus matches s against the known statuses case-insensitively.
// An empty string is StatusBooked.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "booked":
		return StatusBooked, nil
	case "cancelled", "canceled":
		return StatusCancelled, nil
	default:
		return "", fmt.Errorf("invalid status %q: must be Booked or Cancelled", s)
	}
}

// UnmarshalJSON accepts any casing and treats null or "" as Booked.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("status must be a string: %w", err)
	}
	status, err := ParseStatus(derefString(raw))
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// Appointment represents a booking of a service with a provider.
type Appointment struct {
	ID               int64  `json:"id,omitempty"`
	Start            string `json:"start" validate:"required,ea_datetime"`
	End              string `json:"end" validate:"required,ea_datetime"`
	Location         string `json:"location,omitempty"`
	Notes            string `json:"notes,omitempty"`
	CustomerID       int64  `json:"customerId" validate:"required"`
	ProviderID       int64  `json:"providerId" validate:"required"`
	ServiceID        int64  `json:"serviceId" validate:"required"`
	Hash             string `json:"hash,omitempty"`
	GoogleCalendarID string `json:"googleCalendarId,omitempty"`
	Status           Status `json:"status,omitempty" validate:"omitempty,ea_status"`
}

// NewAppointment builds an appointment for the given participants and
// period, formatted the way the server expects.
func NewAppointment(customerID, providerID, serviceID int64, start, end time.Time) *Appointment {
	return &Appointment{
		Start:      FormatDateTime(start),
		End:        FormatDateTime(end),
		CustomerID: customerID,
		ProviderID: providerID,
		ServiceID:  serviceID,
		Status:     StatusBooked,
	}
}

// FormatDateTime formats t using DateTimeLayout.
func FormatDateTime(t time.Time) string {
	return t.Format(DateTimeLayout)
}

// ParseDateTime parses the date-time formats the server may return
// (DateTimeLayout, ISO 8601 and RFC 3339 variants).
func ParseDateTime(s string) (time.Time, error) {
	return dateparse.ParseStrict(s)
}

// StartTime parses Start.
func (a *Appointment) StartTime() (time.Time, error) {
	return ParseDateTime(a.Start)
}

// EndTime parses End.
func (a *Appointment) EndTime() (time.Time, error) {
	return ParseDateTime(a.End)
}

// Duration returns End minus Start.
func (a *Appointment) Duration() (time.Duration, error) {
	start, err := a.StartTime()
	if err != nil {
		return 0, err
	}
	end, err := a.EndTime()
	if err != nil {
		return 0, err
	}
	return end.Sub(start), nil
}

// Reschedule moves the appointment to start, keeping its duration.
func (a *Appointment) Reschedule(start time.Time) error {
	d, err := a.Duration()
	if err != nil {
		return err
	}
	a.Start = FormatDateTime(start)
	a.End = FormatDateTime(start.Add(d))
	return nil
}

// IsCancelled reports whether the appointment has been cancelled.
func (a *Appointment) IsCancelled() bool {
	return a.Status == StatusCancelled
}

func (a *Appointment) resourceID() int64 { return a.ID }
func (a *Appointment) clearID()          { a.ID = 0 }

// normalize fills the server's implicit default status.
func (a *Appointment) normalize() {
	if a.Status == "" {
		a.Status = StatusBooked
	}
}

// appointmentStructLevel rejects appointments that end before they start.
func appointmentStructLevel(sl validator.StructLevel) {
	a := sl.Current().Interface().(Appointment)
	start, err := ParseDateTime(a.Start)
	if err != nil {
		return
	}
	end, err := ParseDateTime(a.End)
	if err != nil {
		return
	}
	if !end.After(start) {
		sl.ReportError(a.End, "end", "End", "ea_after_start", "")
	}
}

// AppointmentsService manages appointments at /appointments.
type AppointmentsService struct {
	*ResourceService[Appointment, *Appointment]
}

// Book creates a booked appointment starting at start that lasts as long
// as the service does.
func (s *AppointmentsService) Book(ctx context.Context, customerID, providerID, serviceID int64, start time.Time) (*Appointment, error) {
	svc, err := s.client.Services.Get(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up service %d: %w", serviceID, err)
	}
	end := start.Add(time.Duration(svc.Duration) * time.Minute)
	return s.Create(ctx, NewAppointment(customerID, providerID, serviceID, start, end))
}

// Reschedule moves appointment id to start, keeping its duration.
func (s *AppointmentsService) Reschedule(ctx context.Context, id int64, start time.Time) (*Appointment, error) {
	appt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := appt.Reschedule(start); err != nil {
		return nil, validationError(fmt.Sprintf("appointment %d has unparseable times: %v", id, err), nil)
	}
	return s.Update(ctx, id, appt)
}

// Cancel marks appointment id as cancelled. Cancelling an already
// cancelled appointment sends no update.
func (s *AppointmentsService) Cancel(ctx context.Context, id int64) (*Appointment, error) {
	appt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.IsCancelled() {
		return appt, nil
	}
	appt.Status = StatusCancelled
	return s.Update(ctx, id, appt)
}
