package assignment

import "github.com/noah-isme/family-console-api/internal/models"

// DefaultMaxJobs is the default number of concurrent jobs a student may hold.
const DefaultMaxJobs = 3

// JobTypeSet is a set of job types.
type JobTypeSet map[JobType]struct{}

// Has reports whether t is in the set.
func (s JobTypeSet) Has(t JobType) bool {
	_, ok := s[t]
	return ok
}

// AssignedExclusiveTypes returns the exclusive types already taken inside
// subClass. The job identified by excludeJobID is skipped so it can keep its
// own type. Exclusivity only applies to non-empty sub-class values.
func AssignedExclusiveTypes(jobs []models.Job, subClass, excludeJobID string) JobTypeSet {
	assigned := make(JobTypeSet)
	if subClass == "" {
		return assigned
	}
	for _, job := range jobs {
		if job.SubClass != subClass || (excludeJobID != "" && job.ID == excludeJobID) {
			continue
		}
		t, ok := ParseJobType(job.Type)
		if !ok || !t.Exclusive() {
			continue
		}
		assigned[t] = struct{}{}
	}
	return assigned
}

// IsTypeAvailable reports whether t may be assigned given the taken set.
// Member is always available.
func IsTypeAvailable(t JobType, assigned JobTypeSet) bool {
	if !t.Exclusive() {
		return true
	}
	return !assigned.Has(t)
}

// TypeOption is a job type with its availability. Unavailable options are
// meant to be shown disabled, never hidden.
type TypeOption struct {
	Type      JobType `json:"type"`
	Available bool    `json:"available"`
}

// TypeOptions lists every job type with its availability against assigned.
func TypeOptions(assigned JobTypeSet) []TypeOption {
	options := make([]TypeOption, 0, len(JobTypes))
	for _, t := range JobTypes {
		options = append(options, TypeOption{Type: t, Available: IsTypeAvailable(t, assigned)})
	}
	return options
}

// JobCountGuard gates new job assignments on a student's current job count.
type JobCountGuard struct {
	Max int
}

// NewJobCountGuard builds a guard, falling back to DefaultMaxJobs.
func NewJobCountGuard(max int) JobCountGuard {
	if max <= 0 {
		max = DefaultMaxJobs
	}
	return JobCountGuard{Max: max}
}

// CanAssignNewJob reports whether the student is below the cap.
func (g JobCountGuard) CanAssignNewJob(student models.Student) bool {
	return student.NumberOfJob < g.limit()
}

// Eligible keeps only the students that can take another job.
func (g JobCountGuard) Eligible(students []models.Student) []models.Student {
	out := make([]models.Student, 0, len(students))
	for _, s := range students {
		if g.CanAssignNewJob(s) {
			out = append(out, s)
		}
	}
	return out
}

func (g JobCountGuard) limit() int {
	if g.Max <= 0 {
		return DefaultMaxJobs
	}
	return g.Max
}

// CanAssignNewJob applies the default cap.
func CanAssignNewJob(student models.Student) bool {
	return NewJobCountGuard(DefaultMaxJobs).CanAssignNewJob(student)
}
