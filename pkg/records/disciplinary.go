package records

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/residenciauni/residencia/pkg/policy"
)

// MeasureStatus is the state of a disciplinary measure
type MeasureStatus string

const (
	MeasureActive   MeasureStatus = "Activa"
	MeasureResolved MeasureStatus = "Resuelta"
)

// ParseMeasureStatus accepts the Spanish labels or their English equivalents
func ParseMeasureStatus(s string) (MeasureStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "activa", "active":
		return MeasureActive, true
	case "resuelta", "resolved":
		return MeasureResolved, true
	default:
		return "", false
	}
}

// ResidentRef points at a resident. The backend sends an id or a populated object.
type ResidentRef struct {
	ID       string `json:"_id,omitempty"`
	FullName string `json:"fullName,omitempty"`
}

func (r *ResidentRef) UnmarshalJSON(data []byte) error {
	var a Author
	if err := a.UnmarshalJSON(data); err != nil {
		return err
	}
	*r = ResidentRef{ID: a.ID, FullName: a.FullName}
	return nil
}

// DisciplinaryMeasure is a sanction recorded against a resident
type DisciplinaryMeasure struct {
	ID          string        `json:"_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      MeasureStatus `json:"status"`
	Resident    *ResidentRef  `json:"residentId,omitempty"`
	StudentCode *FlexInt      `json:"studentCode,omitempty"`
	CreatedAt   Timestamp     `json:"createdAt"`
	CreatedBy   *Author       `json:"createdBy,omitempty"`
}

func (m DisciplinaryMeasure) RecordID() string { return m.ID }

func (m DisciplinaryMeasure) SortTime() time.Time { return m.CreatedAt.Time }

func (m DisciplinaryMeasure) PolicyRecord() policy.Record {
	return policy.Record{
		ID:        m.ID,
		CreatedBy: m.CreatedBy.policyAuthor(),
	}
}

// Active reports whether the measure is still in force
func (m DisciplinaryMeasure) Active() bool {
	return m.Status == MeasureActive
}

// DisciplinaryDraft is the create/edit form for disciplinary measures.
// StudentCode is kept as typed text and sent as a JSON number.
type DisciplinaryDraft struct {
	Title       string
	Description string
	StudentCode string
	Status      MeasureStatus
}

// DisciplinaryDraftFrom prefills a draft from an existing record
func DisciplinaryDraftFrom(m DisciplinaryMeasure) *DisciplinaryDraft {
	d := &DisciplinaryDraft{
		Title:       m.Title,
		Description: m.Description,
		Status:      m.Status,
	}
	if m.StudentCode != nil {
		d.StudentCode = strconv.Itoa(int(*m.StudentCode))
	}
	return d
}

func (d *DisciplinaryDraft) Validate() error {
	if err := required("title", d.Title); err != nil {
		return err
	}
	if err := required("description", d.Description); err != nil {
		return err
	}
	if err := required("studentCode", d.StudentCode); err != nil {
		return err
	}
	if _, err := d.studentCode(); err != nil {
		return err
	}
	if d.Status != "" && d.Status != MeasureActive && d.Status != MeasureResolved {
		return &ValidationError{Field: "status", Message: fmt.Sprintf("estado no permitido %q", d.Status)}
	}
	return nil
}

func (d *DisciplinaryDraft) studentCode() (int64, error) {
	code, err := strconv.ParseInt(strings.TrimSpace(d.StudentCode), 10, 64)
	if err != nil {
		return 0, &ValidationError{Field: "studentCode", Message: "debe ser un número"}
	}
	return code, nil
}

type disciplinaryPayload struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	StudentCode int64         `json:"studentCode"`
	Status      MeasureStatus `json:"status,omitempty"`
}

func (d *DisciplinaryDraft) MarshalJSON() ([]byte, error) {
	code, err := d.studentCode()
	if err != nil {
		return nil, err
	}
	return json.Marshal(disciplinaryPayload{
		Title:       strings.TrimSpace(d.Title),
		Description: strings.TrimSpace(d.Description),
		StudentCode: code,
		Status:      d.Status,
	})
}

// MeasureStatusChange toggles a measure between active and resolved
type MeasureStatusChange struct {
	Status MeasureStatus `json:"status"`
}

// ResolveMeasure marks a measure as resolved
func ResolveMeasure() *MeasureStatusChange {
	return &MeasureStatusChange{Status: MeasureResolved}
}

// ReopenMeasure marks a measure as active again
func ReopenMeasure() *MeasureStatusChange {
	return &MeasureStatusChange{Status: MeasureActive}
}

func (c *MeasureStatusChange) Validate() error {
	if c.Status != MeasureActive && c.Status != MeasureResolved {
		return &ValidationError{Field: "status", Message: fmt.Sprintf("estado no permitido %q", c.Status)}
	}
	return nil
}

// FilterMeasures keeps measures in the given status; an empty status keeps all
func FilterMeasures(measures []DisciplinaryMeasure, status MeasureStatus) []DisciplinaryMeasure {
	if status == "" {
		return measures
	}
	out := make([]DisciplinaryMeasure, 0, len(measures))
	for _, m := range measures {
		if m.Status == status {
			out = append(out, m)
		}
	}
	return out
}
