package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// FamilyStatus is the lifecycle state of a family.
type FamilyStatus string

const (
	FamilyStatusCurrent  FamilyStatus = "current"
	FamilyStatusFinished FamilyStatus = "finished"
)

// Valid reports whether st is a known status.
func (st FamilyStatus) Valid() bool {
	return st == FamilyStatusCurrent || st == FamilyStatusFinished
}

// Relationship describes a child's relation inside a family unit.
type Relationship string

const (
	RelationshipSon      Relationship = "son"
	RelationshipDaughter Relationship = "daughter"
)

// Family is the persisted write model. Slots hold bare student ids only.
type Family struct {
	ID                string         `db:"id" json:"id"`
	Title             string         `db:"title" json:"title"`
	Location          string         `db:"location" json:"location"`
	Batch             string         `db:"batch" json:"batch"`
	AllowOtherBatches bool           `db:"allow_other_batches" json:"allow_other_batches"`
	FamilyDate        *time.Time     `db:"family_date" json:"family_date,omitempty"`
	FamilyLeaderID    string         `db:"family_leader_id" json:"family_leader"`
	FamilyCoLeaderID  string         `db:"family_co_leader_id" json:"family_co_leader"`
	FamilySecretaryID string         `db:"family_secretary_id" json:"family_secretary"`
	Status            FamilyStatus   `db:"status" json:"status"`
	GrandParentsJSON  types.JSONText `db:"grand_parents" json:"-"`
	Version           int            `db:"version" json:"version"`
	CreatedBy         *string        `db:"created_by" json:"created_by,omitempty"`
	UpdatedBy         *string        `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`

	GrandParents []GrandParentRecord `db:"-" json:"grand_parents"`
}

// GrandParentRecord is a titled sub-group of a family.
type GrandParentRecord struct {
	Title         string             `json:"title"`
	GrandFatherID *string            `json:"grand_father,omitempty"`
	GrandMotherID *string            `json:"grand_mother,omitempty"`
	Families      []FamilyUnitRecord `json:"families"`
}

// FamilyUnitRecord is a father and mother pair with their children.
type FamilyUnitRecord struct {
	Father    ParentRecord  `json:"father"`
	Mother    ParentRecord  `json:"mother"`
	Children  []ChildRecord `json:"children"`
	CreatedAt time.Time     `json:"created_at"`
}

// ParentRecord references a student plus the contact overrides kept on the write side.
type ParentRecord struct {
	StudentID  string `json:"student"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
	Occupation string `json:"occupation,omitempty"`
}

// ChildRecord references a student placed as a child.
type ChildRecord struct {
	StudentID    string       `json:"student"`
	Relationship Relationship `json:"relationship"`
	BirthOrder   *int         `json:"birth_order,omitempty"`
	AddedAt      time.Time    `json:"added_at"`
}

// StudentIDs lists every student referenced by the family, leaders first.
func (f *Family) StudentIDs() []string {
	ids := make([]string, 0, 3)
	add := func(id string) {
		if id != "" {
			ids = append(ids, id)
		}
	}
	add(f.FamilyLeaderID)
	add(f.FamilyCoLeaderID)
	add(f.FamilySecretaryID)
	for _, gp := range f.GrandParents {
		if gp.GrandFatherID != nil {
			add(*gp.GrandFatherID)
		}
		if gp.GrandMotherID != nil {
			add(*gp.GrandMotherID)
		}
		for _, unit := range gp.Families {
			add(unit.Father.StudentID)
			add(unit.Mother.StudentID)
			for _, child := range unit.Children {
				add(child.StudentID)
			}
		}
	}
	return ids
}

// FamilyFilter defines list criteria for families.
type FamilyFilter struct {
	Search   string
	Batch    string
	Status   FamilyStatus
	Page     int
	PageSize int
}
