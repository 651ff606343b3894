package easyappointments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DateLayout is the date format of availability queries.
const DateLayout = "2006-01-02"

// TimeSlot is a free period on a provider's calendar. Times use HH:MM.
type TimeSlot struct {
	Start string `json:"start" validate:"required,ea_clock"`
	End   string `json:"end" validate:"required,ea_clock"`
}

// Availability lists the free slots of a provider for one service and day.
type Availability struct {
	Date       string     `json:"date,omitempty"`
	ProviderID int64      `json:"providerId,omitempty"`
	ServiceID  int64      `json:"serviceId,omitempty"`
	Available  []TimeSlot `json:"available" validate:"dive"`
}

// HasSlots reports whether any slot is free.
func (a *Availability) HasSlots() bool {
	return len(a.Available) > 0
}

// StartTimes returns the start of each slot on the availability's date in
// loc. Slots that do not parse are skipped.
func (a *Availability) StartTimes(loc *time.Location) []time.Time {
	if loc == nil {
		loc = time.Local
	}
	out := make([]time.Time, 0, len(a.Available))
	for _, slot := range a.Available {
		t, err := time.ParseInLocation(DateLayout+" 15:04", a.Date+" "+slot.Start[:min(len(slot.Start), 5)], loc)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out
}

// AvailabilityQuery selects the provider, service and day to check. A zero
// Date asks the server for today.
type AvailabilityQuery struct {
	ProviderID int64
	ServiceID  int64
	Date       time.Time
}

func (q AvailabilityQuery) values() url.Values {
	v := url.Values{}
	v.Set("providerId", strconv.FormatInt(q.ProviderID, 10))
	v.Set("serviceId", strconv.FormatInt(q.ServiceID, 10))
	if !q.Date.IsZero() {
		v.Set("date", q.Date.Format(DateLayout))
	}
	return v
}

// AvailabilitiesService queries free time slots at /availabilities.
type AvailabilitiesService struct {
	client *Client
}

// Get returns the free slots for q. The server answers with a list of
// HH:MM start times; consecutive entries become one slot each.
func (s *AvailabilitiesService) Get(ctx context.Context, q AvailabilityQuery) (*Availability, error) {
	fields := map[string][]string{}
	if q.ProviderID <= 0 {
		fields["providerId"] = []string{"must be positive"}
	}
	if q.ServiceID <= 0 {
		fields["serviceId"] = []string{"must be positive"}
	}
	if len(fields) > 0 {
		return nil, validationError(formatFields(fields), fields)
	}

	resp, err := s.client.do(ctx, http.MethodGet, "/availabilities", q.values(), nil)
	if err != nil {
		return nil, err
	}

	slots, err := decodeSlots(resp.Body)
	if err != nil {
		return nil, err
	}

	date := q.Date
	if date.IsZero() {
		date = time.Now()
	}
	avail := &Availability{
		Date:       date.Format(DateLayout),
		ProviderID: q.ProviderID,
		ServiceID:  q.ServiceID,
		Available:  slots,
	}
	if err := validateModel(avail); err != nil {
		return nil, err
	}

	s.client.logger.Debug().
		Int64("provider_id", q.ProviderID).
		Int64("service_id", q.ServiceID).
		Str("date", avail.Date).
		Int("slots", len(slots)).
		Msg("Retrieved availability")
	return avail, nil
}

// decodeSlots accepts ["09:00","09:15",...], [{"start","end"},...] and
// {"available":[{"start","end"},...]}.
func decodeSlots(data []byte) ([]TimeSlot, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	decodeErr := func(err error) error {
		return &Error{Kind: KindValidation, Message: fmt.Sprintf("failed to decode availabilities: %v", err), Body: data, Err: err}
	}

	if trimmed[0] == '{' {
		var env struct {
			Available []TimeSlot `json:"available"`
		}
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, decodeErr(err)
		}
		return env.Available, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, decodeErr(err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	if bytes.HasPrefix(bytes.TrimSpace(raw[0]), []byte("{")) {
		slots := make([]TimeSlot, 0, len(raw))
		for _, r := range raw {
			var slot TimeSlot
			if err := json.Unmarshal(r, &slot); err != nil {
				return nil, decodeErr(err)
			}
			slots = append(slots, slot)
		}
		return slots, nil
	}

	var times []string
	if err := json.Unmarshal(trimmed, &times); err != nil {
		return nil, decodeErr(err)
	}
	if len(times) < 2 {
		return nil, nil
	}
	slots := make([]TimeSlot, 0, len(times)-1)
	for i := 0; i < len(times)-1; i++ {
		slots = append(slots, TimeSlot{Start: times[i], End: times[i+1]})
	}
	return slots, nil
}
