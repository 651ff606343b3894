package easyappointments

import (
	"context"
	"strings"
)

// CustomerSettings holds optional customer preferences.
type CustomerSettings struct {
	Username      string `json:"username,omitempty"`
	Notifications bool   `json:"notifications"`
	Timezone      string `json:"timezone,omitempty"`
	CalendarView  string `json:"calendarView,omitempty"`
	DateFormat    string `json:"dateFormat,omitempty" validate:"omitempty,oneof=DMY MDY YMD"`
}

// Customer represents a customer who books appointments.
type Customer struct {
	ID        int64             `json:"id,omitempty"`
	FirstName string            `json:"firstName" validate:"required"`
	LastName  string            `json:"lastName" validate:"required"`
	Email     string            `json:"email" validate:"required,email"`
	Phone     string            `json:"phone,omitempty"`
	Mobile    string            `json:"mobile,omitempty"`
	Address   string            `json:"address,omitempty"`
	City      string            `json:"city,omitempty"`
	State     string            `json:"state,omitempty"`
	Zip       string            `json:"zipCode,omitempty"`
	Notes     string            `json:"notes,omitempty"`
	Timezone  string            `json:"timezone,omitempty"`
	Language  string            `json:"language,omitempty"`
	Settings  *CustomerSettings `json:"settings,omitempty"`
}

// FullName returns the customer's first and last name.
func (c *Customer) FullName() string {
	return joinName(c.FirstName, c.LastName)
}

func (c *Customer) resourceID() int64 { return c.ID }
func (c *Customer) clearID()          { c.ID = 0 }

// CustomersService manages customers at /customers.
type CustomersService struct {
	*ResourceService[Customer, *Customer]
}

// FindByEmail searches for the customer with the given email address,
// compared case-insensitively.
func (s *CustomersService) FindByEmail(ctx context.Context, email string) (*Customer, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, validationError("email is required", map[string][]string{"email": {"is required"}})
	}

	page, err := s.List(ctx, &ListOptions{Query: email, Length: maxPageLength})
	if err != nil {
		return nil, err
	}
	for i := range page.Results {
		if strings.EqualFold(page.Results[i].Email, email) {
			return &page.Results[i], nil
		}
	}
	return nil, &Error{Kind: KindNotFound, Message: "no customer with email " + email}
}
