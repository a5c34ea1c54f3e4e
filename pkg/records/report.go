package records

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/residenciauni/residencia/pkg/policy"
)

// Room is a resident's room
type Room struct {
	Number int `json:"number"`
	Floor  int `json:"floor"`
}

// ReportResident is the resident a maintenance report is about
type ReportResident struct {
	ID       string `json:"_id,omitempty"`
	FullName string `json:"fullName"`
	Room     *Room  `json:"room,omitempty"`
}

// UnmarshalJSON accepts a bare resident id as well as the populated object
func (r *ReportResident) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = ReportResident{ID: id}
		return nil
	}
	type plain ReportResident
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = ReportResident(p)
	return nil
}

// Report is a maintenance or conduct report
type Report struct {
	ID          string          `json:"_id"`
	Reason      string          `json:"reason"`
	ActionTaken bool            `json:"actionTaken"`
	Urgent      bool            `json:"urgent,omitempty"`
	Date        Timestamp       `json:"date"`
	Resident    *ReportResident `json:"resident,omitempty"`
	CreatedBy   *Author         `json:"createdBy,omitempty"`
}

func (r Report) RecordID() string { return r.ID }

func (r Report) SortTime() time.Time { return r.Date.Time }

func (r Report) PolicyRecord() policy.Record {
	return policy.Record{
		ID:        r.ID,
		CreatedBy: r.CreatedBy.policyAuthor(),
	}
}

// ReportStatus is the display status of a report
type ReportStatus string

const (
	ReportUrgent   ReportStatus = "Urgente"
	ReportFinished ReportStatus = "Finalizado"
	ReportPending  ReportStatus = "Pendiente"
)

// Status derives the display status. Urgency wins over completion.
func (r Report) Status() ReportStatus {
	switch {
	case r.Urgent:
		return ReportUrgent
	case r.ActionTaken:
		return ReportFinished
	default:
		return ReportPending
	}
}

// ReportCounts summarizes a list of reports
type ReportCounts struct {
	Total   int
	Urgent  int
	Pending int
}

// CountReports tallies urgent and pending reports
func CountReports(reports []Report) ReportCounts {
	c := ReportCounts{Total: len(reports)}
	for _, r := range reports {
		if r.Urgent {
			c.Urgent++
		}
		if !r.ActionTaken {
			c.Pending++
		}
	}
	return c
}

// ReportDraft is the create/edit form for reports
type ReportDraft struct {
	Reason      string    `json:"reason"`
	Urgent      bool      `json:"urgent"`
	ActionTaken bool      `json:"actionTaken"`
	Date        Timestamp `json:"date"`
	ResidentID  string    `json:"resident,omitempty"`

	now func() time.Time
}

// ReportDraftFrom prefills a draft from an existing record. The resident is
// left empty so an edit only sends it when it is reassigned.
func ReportDraftFrom(r Report) *ReportDraft {
	return &ReportDraft{
		Reason:      r.Reason,
		Urgent:      r.Urgent,
		ActionTaken: r.ActionTaken,
		Date:        r.Date,
	}
}

// Validate checks the reason and fills a missing date with the current time
func (d *ReportDraft) Validate() error {
	if err := required("reason", d.Reason); err != nil {
		return err
	}
	if d.Date.IsZero() {
		now := time.Now
		if d.now != nil {
			now = d.now
		}
		d.Date = Timestamp{Time: now().UTC()}
	}
	return nil
}

// ReportCompletion marks a report as handled
type ReportCompletion struct {
	ActionTaken bool `json:"actionTaken"`
}

// CompleteReport marks the report's action as taken
func CompleteReport() *ReportCompletion {
	return &ReportCompletion{ActionTaken: true}
}

func (c *ReportCompletion) Validate() error {
	return nil
}
