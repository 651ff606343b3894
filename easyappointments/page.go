package easyappointments

import (
	"bytes"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/rs/zerolog"
)

const (
	defaultPageLength = 10
	maxPageLength     = 100
	defaultSort       = "-id"
)

// ListOptions controls list requests. The zero value asks for the first
// page of ten items, newest first.
type ListOptions struct {
	// Page is 1-based.
	Page int
	// Length is clamped to 1..100.
	Length int
	// Sort is a field name, prefixed with - for descending order.
	Sort string
	// Query is a free-text search term (q).
	Query string
	// Fields limits the returned attributes.
	Fields []string
	// With expands related resources.
	With []string
	// Filters are exact-match filters. Keys may be snake_case and are sent
	// in camelCase.
	Filters map[string]string
}

// normalized returns a copy with defaults applied and bounds enforced.
func (o *ListOptions) normalized() ListOptions {
	var n ListOptions
	if o != nil {
		n = *o
	}
	if n.Page < 1 {
		n.Page = 1
	}
	switch {
	case n.Length < 1:
		if n.Length == 0 {
			n.Length = defaultPageLength
		} else {
			n.Length = 1
		}
	case n.Length > maxPageLength:
		n.Length = maxPageLength
	}
	if n.Sort == "" {
		n.Sort = defaultSort
	}
	return n
}

// values encodes the options as query parameters.
func (o ListOptions) values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(o.Page))
	v.Set("length", strconv.Itoa(o.Length))
	v.Set("sort", o.Sort)
	if o.Query != "" {
		v.Set("q", o.Query)
	}
	if len(o.Fields) > 0 {
		v.Set("fields", joinCamel(o.Fields))
	}
	if len(o.With) > 0 {
		v.Set("with", joinCamel(o.With))
	}

	keys := make([]string, 0, len(o.Filters))
	for k := range o.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v.Set(strcase.ToLowerCamel(k), o.Filters[k])
	}
	return v
}

func joinCamel(names []string) string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, strcase.ToLowerCamel(n))
		}
	}
	return strings.Join(out, ",")
}

// Page is one page of a list endpoint.
type Page[T any] struct {
	Results  []T
	Total    int
	Next     string
	Previous string
	Page     int
	Length   int

	totalKnown bool
	fetched    int
}

// HasNext reports whether another page may exist. Without a next link or
// a server total, a full page is taken as a hint that more items follow.
func (p *Page[T]) HasNext() bool {
	if p.Next != "" {
		return true
	}
	if p.Length <= 0 {
		return false
	}
	if p.totalKnown {
		return p.Page*p.Length < p.Total
	}
	return p.fetched >= p.Length
}

type pageEnvelope struct {
	Results  []json.RawMessage `json:"results"`
	Total    *int              `json:"total"`
	Next     *string           `json:"next"`
	Previous *string           `json:"previous"`
}

// decodePage decodes a bare JSON array or a {results,total,next,previous}
// envelope. Items that fail to decode are logged and skipped.
func decodePage[T any, PT model[T]](data []byte, opts ListOptions, logger zerolog.Logger) (*Page[T], error) {
	page := &Page[T]{Page: opts.Page, Length: opts.Length}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return page, nil
	}

	var env pageEnvelope
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &env.Results); err != nil {
			return nil, &Error{Kind: KindValidation, Message: "failed to decode list response: " + err.Error(), Body: data, Err: err}
		}
	case '{':
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, &Error{Kind: KindValidation, Message: "failed to decode list response: " + err.Error(), Body: data, Err: err}
		}
	default:
		return nil, &Error{Kind: KindValidation, Message: "unexpected list response", Body: data}
	}

	page.fetched = len(env.Results)
	page.Results = make([]T, 0, len(env.Results))
	for i, raw := range env.Results {
		var item T
		if err := decodeModel(raw, PT(&item)); err != nil {
			logger.Warn().Err(err).Int("index", i).Msg("Failed to parse item in results, skipping")
			continue
		}
		page.Results = append(page.Results, item)
	}

	page.Total = len(page.Results)
	if env.Total != nil {
		page.totalKnown = true
		if *env.Total > page.Total {
			page.Total = *env.Total
		}
	}
	page.Next = derefString(env.Next)
	page.Previous = derefString(env.Previous)
	return page, nil
}
