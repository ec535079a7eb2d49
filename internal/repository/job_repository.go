package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/family-console-api/internal/assignment"
	"github.com/noah-isme/family-console-api/internal/models"
)

const jobColumns = "id, student_id, class, sub_class, type, background, created_at, updated_at"

// ErrUniqueViolation is returned when a write trips a unique constraint.
var ErrUniqueViolation = errors.New("unique constraint violation")

// ErrJobLimit is returned when the guarded counter increment matches no row.
var ErrJobLimit = errors.New("student job limit reached")

// JobRepository persists jobs and keeps the owning student's job counter in step.
type JobRepository struct {
	db      *sqlx.DB
	maxJobs int
}

// NewJobRepository builds a repository whose counter increment refuses to go
// past maxJobs. A non-positive maxJobs falls back to assignment.DefaultMaxJobs.
func NewJobRepository(db *sqlx.DB, maxJobs int) *JobRepository {
	if maxJobs <= 0 {
		maxJobs = assignment.DefaultMaxJobs
	}
	return &JobRepository{db: db, maxJobs: maxJobs}
}

// List returns jobs joined with their student matching the filter.
func (r *JobRepository) List(ctx context.Context, filter models.JobFilter) ([]models.JobDetail, int, error) {
	args := []interface{}{}
	conditions := []string{"1=1"}
	if filter.Class != "" {
		conditions = append(conditions, fmt.Sprintf("j.class = $%d", len(args)+1))
		args = append(args, filter.Class)
	}
	if filter.SubClass != "" {
		conditions = append(conditions, fmt.Sprintf("j.sub_class = $%d", len(args)+1))
		args = append(args, filter.SubClass)
	}
	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("j.type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("j.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	base := "FROM jobs j JOIN students s ON s.id = j.student_id WHERE " + strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT j.id, j.student_id, j.class, j.sub_class, j.type, j.background, j.created_at, j.updated_at,
        TRIM(s.first_name || ' ' || s.last_name) AS student_name, s.batch AS student_batch
        %s ORDER BY j.class, j.sub_class, j.created_at LIMIT %d OFFSET %d`, base, size, offset)
	var jobs []models.JobDetail
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}
	return jobs, total, nil
}

// FindByID fetches a job by ID.
func (r *JobRepository) FindByID(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	if err := r.db.GetContext(ctx, &job, fmt.Sprintf("SELECT %s FROM jobs WHERE id = $1", jobColumns), id); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListBySubClass returns every job recorded under subClass.
func (r *JobRepository) ListBySubClass(ctx context.Context, subClass string) ([]models.Job, error) {
	var jobs []models.Job
	if err := r.db.SelectContext(ctx, &jobs, fmt.Sprintf("SELECT %s FROM jobs WHERE sub_class = $1", jobColumns), subClass); err != nil {
		return nil, fmt.Errorf("list jobs by sub class: %w", err)
	}
	return jobs, nil
}

// Create inserts job and increments the student's counter in one transaction.
// The student row is locked first and handed to check, which may veto the
// insert. A missing student yields sql.ErrNoRows.
func (r *JobRepository) Create(ctx context.Context, job *models.Job, check func(models.Student) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create job: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var student models.Student
	if err = tx.GetContext(ctx, &student, fmt.Sprintf("SELECT %s FROM students WHERE id = $1 FOR UPDATE", studentColumns), job.StudentID); err != nil {
		return err
	}
	if check != nil {
		if err = check(student); err != nil {
			return err
		}
	}

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	const insert = `INSERT INTO jobs (id, student_id, class, sub_class, type, background, created_at, updated_at)
        VALUES (:id, :student_id, :class, :sub_class, :type, :background, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insert, job); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE students SET number_of_job = number_of_job + 1, updated_at = $2 WHERE id = $1 AND number_of_job < $3`, job.StudentID, now, r.maxJobs)
	if err != nil {
		return fmt.Errorf("increment job count: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment job count: %w", err)
	}
	if affected == 0 {
		err = ErrJobLimit
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create job: %w", err)
	}
	return nil
}

// Update rewrites a job. The jobs sharing the target sub-class are locked and
// handed to check before the write so concurrent updates cannot both claim
// the same exclusive type.
func (r *JobRepository) Update(ctx context.Context, job *models.Job, check func([]models.Job) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update job: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	siblings := []models.Job{}
	if job.SubClass != "" {
		if err = tx.SelectContext(ctx, &siblings, fmt.Sprintf("SELECT %s FROM jobs WHERE sub_class = $1 FOR UPDATE", jobColumns), job.SubClass); err != nil {
			return fmt.Errorf("lock sub class jobs: %w", err)
		}
	}
	if check != nil {
		if err = check(siblings); err != nil {
			return err
		}
	}

	job.UpdatedAt = time.Now().UTC()
	const update = `UPDATE jobs SET class = :class, sub_class = :sub_class, type = :type, background = :background, updated_at = :updated_at WHERE id = :id`
	res, err := tx.NamedExecContext(ctx, update, job)
	if err != nil {
		if isUniqueViolation(err) {
			err = ErrUniqueViolation
			return err
		}
		return fmt.Errorf("update job: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		err = sql.ErrNoRows
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update job: %w", err)
	}
	return nil
}

// Delete removes a job and decrements the student's counter, never below zero.
func (r *JobRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete job: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var studentID string
	if err = tx.GetContext(ctx, &studentID, `DELETE FROM jobs WHERE id = $1 RETURNING student_id`, id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `UPDATE students SET number_of_job = GREATEST(number_of_job - 1, 0), updated_at = $2 WHERE id = $1`, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("decrement job count: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete job: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
