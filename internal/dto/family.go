package dto

import (
	"time"

	"github.com/noah-isme/family-console-api/internal/assignment"
	"github.com/noah-isme/family-console-api/internal/models"
)

// FamilyDraftRequest is the builder payload. Slots carry student ids only.
// Status is read on create; updates keep the stored status.
type FamilyDraftRequest struct {
	Title             string                    `json:"title"`
	Location          string                    `json:"location"`
	Batch             string                    `json:"batch"`
	AllowOtherBatches bool                      `json:"allow_other_batches"`
	FamilyDate        *time.Time                `json:"family_date,omitempty"`
	FamilyLeader      string                    `json:"family_leader"`
	FamilyCoLeader    string                    `json:"family_co_leader"`
	FamilySecretary   string                    `json:"family_secretary"`
	Status            models.FamilyStatus       `json:"status,omitempty"`
	GrandParents      []GrandParentDraftRequest `json:"grand_parents" validate:"dive"`
	Version           int                       `json:"version,omitempty"`
}

// GrandParentDraftRequest is a grandparent unit in a draft.
type GrandParentDraftRequest struct {
	Title       string                   `json:"title"`
	GrandFather string                   `json:"grand_father,omitempty"`
	GrandMother string                   `json:"grand_mother,omitempty"`
	Families    []FamilyUnitDraftRequest `json:"families" validate:"dive"`
}

// FamilyUnitDraftRequest is a father and mother pair in a draft.
type FamilyUnitDraftRequest struct {
	Father    ParentDraftRequest  `json:"father"`
	Mother    ParentDraftRequest  `json:"mother"`
	Children  []ChildDraftRequest `json:"children" validate:"dive"`
	CreatedAt *time.Time          `json:"created_at,omitempty"`
}

// ParentDraftRequest references a parent student with optional overrides.
type ParentDraftRequest struct {
	Student    string `json:"student"`
	Phone      string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Email      string `json:"email,omitempty" validate:"omitempty,email"`
	Occupation string `json:"occupation,omitempty" validate:"omitempty,max=128"`
}

// ChildDraftRequest references a child student.
type ChildDraftRequest struct {
	Student      string              `json:"student"`
	Relationship models.Relationship `json:"relationship,omitempty" validate:"omitempty,oneof=son daughter"`
	BirthOrder   *int                `json:"birth_order,omitempty" validate:"omitempty,min=1"`
	AddedAt      *time.Time          `json:"added_at,omitempty"`
}

// StudentIDs lists every non-empty student id in the request.
func (r FamilyDraftRequest) StudentIDs() []string {
	ids := make([]string, 0, 8)
	add := func(id string) {
		if id != "" {
			ids = append(ids, id)
		}
	}
	add(r.FamilyLeader)
	add(r.FamilyCoLeader)
	add(r.FamilySecretary)
	for _, gp := range r.GrandParents {
		add(gp.GrandFather)
		add(gp.GrandMother)
		for _, unit := range gp.Families {
			add(unit.Father.Student)
			add(unit.Mother.Student)
			for _, child := range unit.Children {
				add(child.Student)
			}
		}
	}
	return ids
}

// FamilyStatusRequest toggles the family lifecycle.
type FamilyStatusRequest struct {
	Status models.FamilyStatus `json:"status" validate:"required,oneof=current finished"`
}

// CandidateRequest asks for the legal occupants of one slot. The slot's
// current occupant is read from the draft.
type CandidateRequest struct {
	Slot  assignment.SlotPath `json:"slot"`
	Draft FamilyDraftRequest  `json:"draft"`
}

// AssignSlotRequest places a student into a slot of a draft.
type AssignSlotRequest struct {
	Draft     FamilyDraftRequest  `json:"draft"`
	Slot      assignment.SlotPath `json:"slot"`
	StudentID string              `json:"student_id"`
}

// ValidationResponse reports a dry-run validation outcome.
type ValidationResponse struct {
	Valid     bool                  `json:"valid"`
	Family    *models.Family        `json:"family,omitempty"`
	Violation *assignment.Violation `json:"violation,omitempty"`
}

// StudentSummary is the hydrated display form of a student reference.
type StudentSummary struct {
	ID         string        `json:"id"`
	FullName   string        `json:"full_name"`
	Gender     models.Gender `json:"gender"`
	Batch      string        `json:"batch"`
	Phone      string        `json:"phone,omitempty"`
	Email      string        `json:"email,omitempty"`
	Department string        `json:"department,omitempty"`
	Photo      string        `json:"photo,omitempty"`
}

// NewStudentSummary maps a student to its summary. Nil yields nil.
func NewStudentSummary(s *models.Student) *StudentSummary {
	if s == nil {
		return nil
	}
	return &StudentSummary{
		ID:         s.ID,
		FullName:   s.FullName(),
		Gender:     s.Gender,
		Batch:      s.Batch,
		Phone:      s.Phone,
		Email:      s.Email,
		Department: s.Department,
		Photo:      s.Photo,
	}
}

// FamilyView is the read model with every reference re-hydrated.
type FamilyView struct {
	ID                string              `json:"id"`
	Title             string              `json:"title"`
	Location          string              `json:"location"`
	Batch             string              `json:"batch"`
	AllowOtherBatches bool                `json:"allow_other_batches"`
	FamilyDate        *time.Time          `json:"family_date,omitempty"`
	Status            models.FamilyStatus `json:"status"`
	FamilyLeader      *StudentSummary     `json:"family_leader"`
	FamilyCoLeader    *StudentSummary     `json:"family_co_leader"`
	FamilySecretary   *StudentSummary     `json:"family_secretary"`
	GrandParents      []GrandParentView   `json:"grand_parents"`
	Version           int                 `json:"version"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// GrandParentView is a hydrated grandparent unit.
type GrandParentView struct {
	Title       string           `json:"title"`
	GrandFather *StudentSummary  `json:"grand_father,omitempty"`
	GrandMother *StudentSummary  `json:"grand_mother,omitempty"`
	Families    []FamilyUnitView `json:"families"`
}

// FamilyUnitView is a hydrated family unit.
type FamilyUnitView struct {
	Father    ParentView  `json:"father"`
	Mother    ParentView  `json:"mother"`
	Children  []ChildView `json:"children"`
	CreatedAt time.Time   `json:"created_at"`
}

// ParentView pairs the student with write-side overrides.
type ParentView struct {
	Student    *StudentSummary `json:"student"`
	Phone      string          `json:"phone,omitempty"`
	Email      string          `json:"email,omitempty"`
	Occupation string          `json:"occupation,omitempty"`
}

// ChildView is a hydrated child entry.
type ChildView struct {
	Student      *StudentSummary     `json:"student"`
	Relationship models.Relationship `json:"relationship"`
	BirthOrder   *int                `json:"birth_order,omitempty"`
	AddedAt      time.Time           `json:"added_at"`
}

// AutoAssignRequest starts an auto-assign run for a batch.
type AutoAssignRequest struct {
	Batch string `json:"batch" validate:"required"`
}

// AutoAssignRun reports an auto-assign run.
type AutoAssignRun struct {
	ID                string     `json:"id"`
	Batch             string     `json:"batch"`
	Status            string     `json:"status"`
	FamilyCount       int        `json:"family_count"`
	AvailableStudents int        `json:"available_students"`
	Error             string     `json:"error,omitempty"`
	RequestedAt       time.Time  `json:"requested_at"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
}
