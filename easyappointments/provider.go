package easyappointments

import (
	"context"
	"encoding/json"
)

// Break is a pause inside a working day. Times use HH:MM.
type Break struct {
	Start string `json:"start" validate:"required,ea_clock"`
	End   string `json:"end" validate:"required,ea_clock"`
}

// WorkingDay describes the hours of one weekday. A day with an empty
// Start is a day off and is sent to the server as null.
type WorkingDay struct {
	Start  string  `json:"start" validate:"omitempty,ea_clock"`
	End    string  `json:"end" validate:"omitempty,ea_clock"`
	Breaks []Break `json:"breaks" validate:"dive"`
}

type wireWorkingDay struct {
	Start  *string `json:"start"`
	End    *string `json:"end"`
	Breaks []Break `json:"breaks"`
}

// IsWorking reports whether the day has working hours.
func (d WorkingDay) IsWorking() bool {
	return d.Start != "" && d.End != ""
}

// MarshalJSON encodes empty hours as null and nil breaks as [].
func (d WorkingDay) MarshalJSON() ([]byte, error) {
	w := wireWorkingDay{
		Start:  nullString(d.Start),
		End:    nullString(d.End),
		Breaks: d.Breaks,
	}
	if w.Breaks == nil {
		w.Breaks = []Break{}
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts null hours and normalises empty breaks to nil.
func (d *WorkingDay) UnmarshalJSON(data []byte) error {
	var w wireWorkingDay
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	d.Start = derefString(w.Start)
	d.End = derefString(w.End)
	d.Breaks = nil
	if len(w.Breaks) > 0 {
		d.Breaks = w.Breaks
	}
	return nil
}

// WorkingPlan is a provider's weekly schedule.
type WorkingPlan struct {
	Sunday    WorkingDay `json:"sunday"`
	Monday    WorkingDay `json:"monday"`
	Tuesday   WorkingDay `json:"tuesday"`
	Wednesday WorkingDay `json:"wednesday"`
	Thursday  WorkingDay `json:"thursday"`
	Friday    WorkingDay `json:"friday"`
	Saturday  WorkingDay `json:"saturday"`
}

// WeekdayPlan returns a plan working start-end Monday to Friday with the
// given breaks, and off at the weekend.
func WeekdayPlan(start, end string, breaks ...Break) *WorkingPlan {
	day := func() WorkingDay {
		var b []Break
		if len(breaks) > 0 {
			b = append([]Break(nil), breaks...)
		}
		return WorkingDay{Start: start, End: end, Breaks: b}
	}
	return &WorkingPlan{
		Monday:    day(),
		Tuesday:   day(),
		Wednesday: day(),
		Thursday:  day(),
		Friday:    day(),
	}
}

// ProviderSettings holds the account settings of a provider. Password is
// only sent on create/update; the server never returns it.
type ProviderSettings struct {
	Username      string       `json:"username" validate:"required"`
	Password      string       `json:"password,omitempty"`
	Notifications bool         `json:"notifications"`
	CalendarView  string       `json:"calendarView,omitempty" validate:"omitempty,oneof=default table"`
	WorkingPlan   *WorkingPlan `json:"workingPlan,omitempty"`
}

// Provider represents a service provider.
type Provider struct {
	ID        int64             `json:"id,omitempty"`
	FirstName string            `json:"firstName" validate:"required"`
	LastName  string            `json:"lastName" validate:"required"`
	Email     string            `json:"email" validate:"required,email"`
	Mobile    string            `json:"mobile,omitempty"`
	Phone     string            `json:"phone,omitempty"`
	Address   string            `json:"address,omitempty"`
	City      string            `json:"city,omitempty"`
	State     string            `json:"state,omitempty"`
	Zip       string            `json:"zip,omitempty"`
	Notes     string            `json:"notes,omitempty"`
	Timezone  string            `json:"timezone,omitempty"`
	Language  string            `json:"language,omitempty"`
	Settings  *ProviderSettings `json:"settings,omitempty"`
	Services  []int64           `json:"services"`
}

// MarshalJSON always sends services, as [] when there are none.
func (p Provider) MarshalJSON() ([]byte, error) {
	type wireProvider Provider
	w := wireProvider(p)
	if w.Services == nil {
		w.Services = []int64{}
	}
	return json.Marshal(w)
}

// FullName returns the provider's first and last name.
func (p *Provider) FullName() string {
	return joinName(p.FirstName, p.LastName)
}

// OffersService reports whether serviceID is among the provider's services.
func (p *Provider) OffersService(serviceID int64) bool {
	for _, id := range p.Services {
		if id == serviceID {
			return true
		}
	}
	return false
}

func (p *Provider) resourceID() int64 { return p.ID }
func (p *Provider) clearID()          { p.ID = 0 }

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ProvidersService manages service providers at /providers.
type ProvidersService struct {
	*ResourceService[Provider, *Provider]
}

// ListForService returns every provider offering serviceID.
func (s *ProvidersService) ListForService(ctx context.Context, serviceID int64) ([]Provider, error) {
	all, err := s.ListAll(ctx, nil)
	if err != nil {
		return nil, err
	}
	var out []Provider
	for _, p := range all {
		if p.OffersService(serviceID) {
			out = append(out, p)
		}
	}
	return out, nil
}
