package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	ErrUnknownKind   = errors.New("unknown record kind")
	ErrInvalidRecord = errors.New("invalid record")
)

// Record is any backend-owned entity shown in a list view or edited by a wizard.
type Record interface {
	RecordID() string
	RecordStatus() string
	SetStatus(status string)
	// SearchFields returns the designated text fields matched by free-text search.
	SearchFields() []string
	// FilterValue exposes extra filter dimensions such as category or priority.
	FilterValue(field string) (string, bool)
	// SortValue returns a string, float64, int or time.Time for the given key.
	SortValue(key string) (any, bool)
	Meta() *Base
}

// Parent is implemented by records that render expandable child rows.
type Parent interface {
	ChildCount() int
}

// Base carries the fields every record kind shares.
type Base struct {
	ID        string    `json:"id" validate:"required"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Base) RecordID() string { return b.ID }

func (b *Base) Meta() *Base { return b }

// baseSortValue resolves the sort keys every kind supports.
func (b *Base) baseSortValue(key string) (any, bool) {
	switch key {
	case "id":
		return b.ID, true
	case "created_at":
		return b.CreatedAt, true
	case "updated_at":
		return b.UpdatedAt, true
	}
	return nil, false
}

// SortType tells the backend how to order a JSON payload field.
type SortType int

const (
	SortText SortType = iota
	SortNumeric
	SortTime
)

// Kind describes one resource exposed by the backend.
type Kind struct {
	Resource string
	Statuses []string
	SortKeys map[string]SortType
	New      func() Record
}

// DefaultStatus is the status assigned to a new record that omits one.
func (k Kind) DefaultStatus() string {
	return k.Statuses[0]
}

// ValidStatus reports whether status belongs to the kind's enum.
func (k Kind) ValidStatus(status string) bool {
	for _, s := range k.Statuses {
		if s == status {
			return true
		}
	}
	return false
}

var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

var kinds = map[string]Kind{}

func register(k Kind) {
	base := map[string]SortType{
		"created_at": SortTime,
		"updated_at": SortTime,
	}
	for key, t := range k.SortKeys {
		base[key] = t
	}
	k.SortKeys = base
	kinds[k.Resource] = k
}

// LookupKind returns the kind registered under a resource name.
func LookupKind(resource string) (Kind, bool) {
	k, ok := kinds[resource]
	return k, ok
}

// Resources lists every registered resource name in alphabetical order.
func Resources() []string {
	names := make([]string, 0, len(kinds))
	for name := range kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks struct tags and the status enum of a record.
func Validate(resource string, r Record) error {
	k, ok := LookupKind(resource)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, resource)
	}
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	if !k.ValidStatus(r.RecordStatus()) {
		return fmt.Errorf("%w: status %q is not one of %s", ErrInvalidRecord, r.RecordStatus(), strings.Join(k.Statuses, ", "))
	}
	return nil
}

// Decode parses raw JSON into the concrete type registered for resource.
// The result is not validated; call Validate once server-assigned fields are set.
func Decode(resource string, data []byte) (Record, error) {
	k, ok := LookupKind(resource)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, resource)
	}
	r := k.New()
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("failed to decode %s record: %w", resource, err)
	}
	return r, nil
}

// SearchText joins the searchable fields of a record for storage-side matching.
func SearchText(r Record) string {
	return strings.ToLower(strings.Join(r.SearchFields(), " "))
}
