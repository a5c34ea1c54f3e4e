package records

import (
	"time"

	"github.com/residenciauni/residencia/pkg/policy"
)

// News is an announcement published to the whole residence or one floor
type News struct {
	ID          string       `json:"_id"`
	Title       string       `json:"title"`
	Content     string       `json:"content"`
	PublishedAt Timestamp    `json:"publishedAt"`
	CreatedBy   *Author      `json:"createdBy,omitempty"`
	Type        policy.Scope `json:"type,omitempty"`
	Floor       *int         `json:"floor,omitempty"`
}

func (n News) RecordID() string { return n.ID }

func (n News) SortTime() time.Time { return n.PublishedAt.Time }

func (n News) PolicyRecord() policy.Record {
	return policy.Record{
		ID:        n.ID,
		Scope:     n.Type,
		Floor:     copyInt(n.Floor),
		CreatedBy: n.CreatedBy.policyAuthor(),
	}
}

// NewsDraft is the create/edit form for News
type NewsDraft struct {
	Title   string       `json:"title"`
	Content string       `json:"content"`
	Type    policy.Scope `json:"type,omitempty"`
	Floor   *int         `json:"floor,omitempty"`
}

// NewsDraftFrom prefills a draft from an existing record
func NewsDraftFrom(n News) *NewsDraft {
	return &NewsDraft{
		Title:   n.Title,
		Content: n.Content,
		Type:    n.Type,
		Floor:   copyInt(n.Floor),
	}
}

func (d *NewsDraft) Validate() error {
	if err := required("title", d.Title); err != nil {
		return err
	}
	if err := required("content", d.Content); err != nil {
		return err
	}
	return validateScope(d.Type, d.Floor)
}

func (d *NewsDraft) DesiredScope() (policy.Scope, *int) {
	return d.Type, d.Floor
}

func (d *NewsDraft) ApplyScope(scope policy.Scope, floor *int) {
	d.Type = scope
	if scope == policy.ScopeFloor {
		d.Floor = copyInt(floor)
	} else {
		d.Floor = nil
	}
}
