package easyappointments

import (
	"context"
)

// Resource is the CRUD surface shared by every resource service. The
// CLI is written against it so each resource gets the same commands.
type Resource[T any] interface {
	List(ctx context.Context, opts *ListOptions) (*Page[T], error)
	ListAll(ctx context.Context, opts *ListOptions) ([]T, error)
	Get(ctx context.Context, id int64) (*T, error)
	Create(ctx context.Context, item *T) (*T, error)
	Update(ctx context.Context, id int64, item *T) (*T, error)
	Delete(ctx context.Context, id int64) error
	GetMany(ctx context.Context, ids []int64) ([]*T, error)
	DeleteMany(ctx context.Context, ids []int64) ([]int64, error)
}

// AvailabilityChecker looks up free time slots
type AvailabilityChecker interface {
	Get(ctx context.Context, q AvailabilityQuery) (*Availability, error)
}

var (
	_ Resource[Admin]       = (*AdminsService)(nil)
	_ Resource[Provider]    = (*ProvidersService)(nil)
	_ Resource[Customer]    = (*CustomersService)(nil)
	_ Resource[Appointment] = (*AppointmentsService)(nil)
	_ Resource[Service]     = (*ServicesService)(nil)
	_ Resource[Category]    = (*CategoriesService)(nil)
	_ AvailabilityChecker   = (*AvailabilitiesService)(nil)
)
