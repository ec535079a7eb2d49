package models

import "time"

// Gender is the recorded gender of a student.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Valid reports whether g is a known gender.
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// Student represents a member registered in the organization.
type Student struct {
	ID          string    `db:"id" json:"id"`
	FirstName   string    `db:"first_name" json:"first_name"`
	MiddleName  string    `db:"middle_name" json:"middle_name,omitempty"`
	LastName    string    `db:"last_name" json:"last_name"`
	Gender      Gender    `db:"gender" json:"gender"`
	Batch       string    `db:"batch" json:"batch"`
	University  string    `db:"university" json:"university,omitempty"`
	College     string    `db:"college" json:"college,omitempty"`
	Department  string    `db:"department" json:"department,omitempty"`
	Phone       string    `db:"phone" json:"phone,omitempty"`
	Email       string    `db:"email" json:"email,omitempty"`
	Photo       string    `db:"photo" json:"photo,omitempty"`
	NumberOfJob int       `db:"number_of_job" json:"number_of_job"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins the non-empty name parts.
func (s Student) FullName() string {
	name := s.FirstName
	for _, part := range []string{s.MiddleName, s.LastName} {
		if part == "" {
			continue
		}
		if name != "" {
			name += " "
		}
		name += part
	}
	return name
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Batch     string
	Gender    Gender
	Active    *bool
	MaxJobs   *int
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
