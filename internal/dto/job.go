package dto

import "github.com/noah-isme/family-console-api/internal/assignment"

// CreateJobRequest assigns a student to a new, unclassified job.
type CreateJobRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Class     string `json:"class,omitempty" validate:"omitempty,max=128"`
}

// UpdateJobRequest sets the sub-class, type and background of a job.
type UpdateJobRequest struct {
	Class      *string `json:"class,omitempty" validate:"omitempty,max=128"`
	SubClass   string  `json:"sub_class" validate:"max=128"`
	Type       string  `json:"type" validate:"omitempty,oneof=member leader sub_leader Secretary"`
	Background string  `json:"background" validate:"max=2000"`
}

// JobTypeOptionsResponse lists job types with availability for a sub-class.
type JobTypeOptionsResponse struct {
	SubClass string                  `json:"sub_class"`
	Options  []assignment.TypeOption `json:"options"`
}
