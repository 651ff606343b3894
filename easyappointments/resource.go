package easyappointments

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
)

// model is implemented by pointers to the resource types.
type model[T any] interface {
	*T
	resourceID() int64
	clearID()
}

// ResourceService implements the CRUD operations shared by every resource.
// It is embedded by the typed services such as AdminsService.
type ResourceService[T any, PT model[T]] struct {
	client *Client
	path   string
	name   string
}

func newResourceService[T any, PT model[T]](c *Client, path, name string) *ResourceService[T, PT] {
	return &ResourceService[T, PT]{client: c, path: path, name: name}
}

func (s *ResourceService[T, PT]) itemPath(id int64) string {
	return s.path + "/" + strconv.FormatInt(id, 10)
}

func (s *ResourceService[T, PT]) checkID(id int64) error {
	if id <= 0 {
		return validationError(fmt.Sprintf("%s id must be positive, got %d", s.name, id),
			map[string][]string{"id": {"must be positive"}})
	}
	return nil
}

// List returns one page of resources. A nil opts lists the first page.
func (s *ResourceService[T, PT]) List(ctx context.Context, opts *ListOptions) (*Page[T], error) {
	o := opts.normalized()
	resp, err := s.client.do(ctx, http.MethodGet, s.path, o.values(), nil)
	if err != nil {
		return nil, err
	}
	page, err := decodePage[T, PT](resp.Body, o, s.client.logger)
	if err != nil {
		return nil, err
	}

	s.client.logger.Debug().
		Str("resource", s.name).
		Int("page", page.Page).
		Int("count", len(page.Results)).
		Int("total", page.Total).
		Msg("Listed resources")
	return page, nil
}

// Get returns the resource with the given id. A missing resource is a
// KindNotFound error.
func (s *ResourceService[T, PT]) Get(ctx context.Context, id int64) (*T, error) {
	if err := s.checkID(id); err != nil {
		return nil, err
	}
	resp, err := s.client.do(ctx, http.MethodGet, s.itemPath(id), nil, nil)
	if err != nil {
		return nil, err
	}
	return s.decode(resp)
}

// Create validates item and posts it. The returned value carries the ID
// assigned by the server; item itself is not modified.
func (s *ResourceService[T, PT]) Create(ctx context.Context, item *T) (*T, error) {
	payload, err := s.payload(item)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.do(ctx, http.MethodPost, s.path, nil, payload)
	if err != nil {
		return nil, err
	}
	created, err := s.decode(resp)
	if err != nil {
		return nil, err
	}

	s.client.logger.Info().
		Str("resource", s.name).
		Int64("id", PT(created).resourceID()).
		Msg("Created resource")
	return created, nil
}

// Update replaces the resource with the given id.
func (s *ResourceService[T, PT]) Update(ctx context.Context, id int64, item *T) (*T, error) {
	if err := s.checkID(id); err != nil {
		return nil, err
	}
	payload, err := s.payload(item)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.do(ctx, http.MethodPut, s.itemPath(id), nil, payload)
	if err != nil {
		return nil, err
	}
	return s.decode(resp)
}

// Delete removes the resource with the given id.
func (s *ResourceService[T, PT]) Delete(ctx context.Context, id int64) error {
	if err := s.checkID(id); err != nil {
		return err
	}
	if _, err := s.client.do(ctx, http.MethodDelete, s.itemPath(id), nil, nil); err != nil {
		return err
	}

	s.client.logger.Info().
		Str("resource", s.name).
		Int64("id", id).
		Msg("Deleted resource")
	return nil
}

// payload validates item and returns a copy without its ID, which belongs
// in the path.
func (s *ResourceService[T, PT]) payload(item *T) (*T, error) {
	if item == nil {
		return nil, validationError(s.name+" must not be nil", nil)
	}
	if err := validateModel(item); err != nil {
		return nil, err
	}
	cp := *item
	PT(&cp).clearID()
	return &cp, nil
}

func (s *ResourceService[T, PT]) decode(resp *response) (*T, error) {
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil, &Error{
			Kind:       KindGeneric,
			StatusCode: resp.StatusCode,
			Message:    "empty response body for " + s.name,
			RequestID:  resp.RequestID,
			Err:        ErrUnexpected,
		}
	}
	var out T
	if err := decodeModel(resp.Body, PT(&out)); err != nil {
		return nil, err
	}
	return &out, nil
}
