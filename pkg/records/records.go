// Package records defines the managed record shapes exchanged with the
// residence backend, their create/edit drafts, and client-side validation.
// Every record exposes a policy.Record view so the authorization predicate
// can be evaluated without knowing the concrete type.
package records

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/residenciauni/residencia/pkg/identity"
	"github.com/residenciauni/residencia/pkg/policy"
)

// Record is implemented by every managed record
type Record interface {
	// RecordID returns the backend id
	RecordID() string
	// PolicyRecord returns the view used by the authorization predicate
	PolicyRecord() policy.Record
	// SortTime is the recency key used for display ordering
	SortTime() time.Time
}

// Draft is the editable form of a record. Validate runs before any network call.
type Draft interface {
	Validate() error
}

// ScopedDraft is a draft whose audience (general or floor) is chosen by the user
type ScopedDraft interface {
	Draft
	DesiredScope() (policy.Scope, *int)
	ApplyScope(scope policy.Scope, floor *int)
}

// StatusChange is a status transition payload
type StatusChange interface {
	Validate() error
}

// ValidationError reports a draft field that failed client-side checks
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: "es obligatorio"}
	}
	return nil
}

func validateScope(scope policy.Scope, floor *int) error {
	switch scope {
	case policy.ScopeGeneral, policy.ScopeNone:
		return nil
	case policy.ScopeFloor:
		if floor == nil || *floor < 1 {
			return &ValidationError{Field: "floor", Message: "debe indicar un piso válido"}
		}
		return nil
	default:
		return &ValidationError{Field: "type", Message: fmt.Sprintf("tipo desconocido %q", scope)}
	}
}

// Author is the creator of a record. The backend sends either a bare id
// string or a populated object.
type Author struct {
	ID       string        `json:"_id,omitempty"`
	FullName string        `json:"fullName,omitempty"`
	Role     identity.Role `json:"role,omitempty"`
}

func (a *Author) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*a = Author{ID: id}
		return nil
	}
	type plain Author
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = Author(p)
	return nil
}

// DisplayName returns the author's name, falling back to the id
func (a *Author) DisplayName() string {
	if a == nil {
		return "Desconocido"
	}
	if a.FullName != "" {
		return a.FullName
	}
	if a.ID != "" {
		return a.ID
	}
	return "Desconocido"
}

func (a *Author) policyAuthor() *policy.Author {
	if a == nil {
		return nil
	}
	return &policy.Author{ID: a.ID, Role: identity.ParseRole(string(a.Role))}
}

// Timestamp is a time field that tolerates the formats the backend emits:
// RFC 3339, bare dates, empty strings and null.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses s with any accepted layout
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognized time %q", s)
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("time must be a string: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// FlexInt is an integer the backend may send as a number or numeric string
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("expected integer, got %s", data)
	}
	*f = FlexInt(v)
	return nil
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
