package easyappointments

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// Amount is a price that the server may encode as a number or a string.
type Amount float64

// UnmarshalJSON accepts numbers, numeric strings, "" and null.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case nil:
		*a = 0
	case float64:
		*a = Amount(val)
	case string:
		if val == "" {
			*a = 0
			return nil
		}
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("amount: cannot parse %q: %w", val, err)
		}
		*a = Amount(parsed)
	default:
		return fmt.Errorf("amount: unexpected type %T", v)
	}
	return nil
}

// Float64 returns the amount as a float64.
func (a Amount) Float64() float64 {
	return float64(a)
}

// Availabilities types control how the server offers time slots.
const (
	AvailabilitiesFlexible = "flexible"
	AvailabilitiesFixed    = "fixed"
)

// Service is a bookable service.
type Service struct {
	ID                 int64  `json:"id,omitempty"`
	Name               string `json:"name" validate:"required"`
	Duration           int    `json:"duration" validate:"required,gte=5"`
	Price              Amount `json:"price" validate:"gte=0"`
	Currency           string `json:"currency,omitempty"`
	Description        string `json:"description,omitempty"`
	Location           string `json:"location,omitempty"`
	Color              string `json:"color,omitempty"`
	AvailabilitiesType string `json:"availabilitiesType,omitempty" validate:"omitempty,oneof=flexible fixed"`
	AttendantsNumber   int    `json:"attendantsNumber,omitempty" validate:"gte=0"`
	IsPrivate          bool   `json:"isPrivate"`
	CategoryID         *int64 `json:"categoryId,omitempty"`
}

func (s *Service) resourceID() int64 { return s.ID }
func (s *Service) clearID()          { s.ID = 0 }

// ServicesService manages bookable services at /services.
type ServicesService struct {
	*ResourceService[Service, *Service]
}

// ListByCategory returns every service in the given category.
func (s *ServicesService) ListByCategory(ctx context.Context, categoryID int64) ([]Service, error) {
	all, err := s.ListAll(ctx, nil)
	if err != nil {
		return nil, err
	}
	var out []Service
	for _, svc := range all {
		if svc.CategoryID != nil && *svc.CategoryID == categoryID {
			out = append(out, svc)
		}
	}
	return out, nil
}
