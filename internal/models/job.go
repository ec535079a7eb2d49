package models

import "time"

// Job assigns one student to a class context with an optional role type.
type Job struct {
	ID         string    `db:"id" json:"id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	Class      string    `db:"class" json:"class"`
	SubClass   string    `db:"sub_class" json:"sub_class"`
	Type       string    `db:"type" json:"type,omitempty"`
	Background string    `db:"background" json:"background,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// JobDetail joins the owning student's display fields.
type JobDetail struct {
	Job
	StudentName  string `db:"student_name" json:"student_name"`
	StudentBatch string `db:"student_batch" json:"student_batch"`
}

// JobFilter defines list criteria for jobs.
type JobFilter struct {
	Class     string
	SubClass  string
	Type      string
	StudentID string
	Page      int
	PageSize  int
}
