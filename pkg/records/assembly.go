package records

import (
	"fmt"
	"strings"
	"time"

	"github.com/residenciauni/residencia/pkg/policy"
)

// AssemblyStatus is the lifecycle state of an assembly
type AssemblyStatus string

const (
	AssemblyScheduled AssemblyStatus = "Programada"
	AssemblyCompleted AssemblyStatus = "Completada"
	AssemblyPostponed AssemblyStatus = "Aplazada"
	AssemblyCancelled AssemblyStatus = "Cancelada"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Attendance counts people present at an assembly
type Attendance struct {
	Present int `json:"present"`
	Total   int `json:"total"`
}

// Assembly is a scheduled meeting of the residence or one floor
type Assembly struct {
	ID                 string         `json:"_id"`
	Title              string         `json:"title"`
	Description        string         `json:"description,omitempty"`
	Date               string         `json:"date"`
	Time               string         `json:"time"`
	Urgent             bool           `json:"urgent,omitempty"`
	Location           string         `json:"location"`
	Attendance         *Attendance    `json:"attendance,omitempty"`
	Status             AssemblyStatus `json:"status,omitempty"`
	Type               policy.Scope   `json:"type,omitempty"`
	Floor              *int           `json:"floor,omitempty"`
	CreatedBy          *Author        `json:"createdBy,omitempty"`
	PostponementReason string         `json:"postponementReason,omitempty"`
	NewDate            string         `json:"newDate,omitempty"`
	NewTime            string         `json:"newTime,omitempty"`
}

func (a Assembly) RecordID() string { return a.ID }

// SortTime orders assemblies by their date; a malformed date sorts last
func (a Assembly) SortTime() time.Time {
	ts, err := ParseTimestamp(a.Date)
	if err != nil {
		return time.Time{}
	}
	return ts.Time
}

func (a Assembly) PolicyRecord() policy.Record {
	return policy.Record{
		ID:        a.ID,
		Scope:     a.Type,
		Floor:     copyInt(a.Floor),
		CreatedBy: a.CreatedBy.policyAuthor(),
	}
}

// StatusLabel returns the status, defaulting to scheduled
func (a Assembly) StatusLabel() AssemblyStatus {
	if a.Status == "" {
		return AssemblyScheduled
	}
	return a.Status
}

// AssemblyDraft is the create/edit form for assemblies
type AssemblyDraft struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Date        string       `json:"date"`
	Time        string       `json:"time"`
	Location    string       `json:"location"`
	Urgent      bool         `json:"urgent"`
	Type        policy.Scope `json:"type,omitempty"`
	Floor       *int         `json:"floor,omitempty"`
}

// AssemblyDraftFrom prefills a draft from an existing record
func AssemblyDraftFrom(a Assembly) *AssemblyDraft {
	date := a.Date
	if len(date) > len(dateLayout) {
		date = date[:len(dateLayout)]
	}
	return &AssemblyDraft{
		Title:       a.Title,
		Description: a.Description,
		Date:        date,
		Time:        a.Time,
		Location:    a.Location,
		Urgent:      a.Urgent,
		Type:        a.Type,
		Floor:       copyInt(a.Floor),
	}
}

func (d *AssemblyDraft) Validate() error {
	for _, f := range []struct{ name, value string }{
		{"title", d.Title},
		{"date", d.Date},
		{"time", d.Time},
		{"location", d.Location},
	} {
		if err := required(f.name, f.value); err != nil {
			return err
		}
	}
	if err := validateDate("date", d.Date); err != nil {
		return err
	}
	if err := validateClock("time", d.Time); err != nil {
		return err
	}
	return validateScope(d.Type, d.Floor)
}

func (d *AssemblyDraft) DesiredScope() (policy.Scope, *int) {
	return d.Type, d.Floor
}

func (d *AssemblyDraft) ApplyScope(scope policy.Scope, floor *int) {
	d.Type = scope
	if scope == policy.ScopeFloor {
		d.Floor = copyInt(floor)
	} else {
		d.Floor = nil
	}
}

// AssemblyStatusChange moves an assembly to completed, postponed or cancelled
type AssemblyStatusChange struct {
	Status             AssemblyStatus `json:"status"`
	PostponementReason string         `json:"postponementReason,omitempty"`
	NewDate            string         `json:"newDate,omitempty"`
	NewTime            string         `json:"newTime,omitempty"`
}

// CompleteAssembly marks an assembly as held
func CompleteAssembly() *AssemblyStatusChange {
	return &AssemblyStatusChange{Status: AssemblyCompleted}
}

// CancelAssembly marks an assembly as cancelled
func CancelAssembly() *AssemblyStatusChange {
	return &AssemblyStatusChange{Status: AssemblyCancelled}
}

// PostponeAssembly postpones an assembly. newDate and newTime are optional.
func PostponeAssembly(reason, newDate, newTime string) *AssemblyStatusChange {
	return &AssemblyStatusChange{
		Status:             AssemblyPostponed,
		PostponementReason: strings.TrimSpace(reason),
		NewDate:            strings.TrimSpace(newDate),
		NewTime:            strings.TrimSpace(newTime),
	}
}

func (c *AssemblyStatusChange) Validate() error {
	switch c.Status {
	case AssemblyCompleted, AssemblyCancelled:
		return nil
	case AssemblyPostponed:
		if strings.TrimSpace(c.PostponementReason) == "" {
			return &ValidationError{Field: "postponementReason", Message: "debes proporcionar un motivo para el aplazamiento"}
		}
		if c.NewDate != "" {
			if err := validateDate("newDate", c.NewDate); err != nil {
				return err
			}
		}
		if c.NewTime != "" {
			if err := validateClock("newTime", c.NewTime); err != nil {
				return err
			}
		}
		return nil
	default:
		return &ValidationError{Field: "status", Message: fmt.Sprintf("estado no permitido %q", c.Status)}
	}
}

func validateDate(field, value string) error {
	if _, err := time.Parse(dateLayout, value); err != nil {
		return &ValidationError{Field: field, Message: "debe tener formato AAAA-MM-DD"}
	}
	return nil
}

func validateClock(field, value string) error {
	if _, err := time.Parse(timeLayout, value); err != nil {
		return &ValidationError{Field: field, Message: "debe tener formato HH:MM"}
	}
	return nil
}
