package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/family-console-api/internal/models"
)

const studentColumns = "id, first_name, middle_name, last_name, gender, batch, university, college, department, phone, email, photo, number_of_job, active, created_at, updated_at"

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.Batch != "" {
		conditions = append(conditions, fmt.Sprintf("batch = $%d", len(args)+1))
		args = append(args, filter.Batch)
	}
	if filter.Gender != "" {
		conditions = append(conditions, fmt.Sprintf("gender = $%d", len(args)+1))
		args = append(args, filter.Gender)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.MaxJobs != nil {
		conditions = append(conditions, fmt.Sprintf("number_of_job < $%d", len(args)+1))
		args = append(args, *filter.MaxJobs)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(first_name || ' ' || middle_name || ' ' || last_name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base := "FROM students WHERE " + strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"first_name":    "first_name",
		"batch":         "batch",
		"number_of_job": "number_of_job",
		"created_at":    "created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", studentColumns, base, column, order, size, offset)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// ListActive returns every active student ordered by name. It backs the
// candidate pool used by the family builder.
func (r *StudentRepository) ListActive(ctx context.Context) ([]models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE active = true ORDER BY first_name, last_name", studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list active students: %w", err)
	}
	return students, nil
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByIDs fetches every student whose id is listed. Unknown ids are skipped.
func (r *StudentRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Student, error) {
	if len(ids) == 0 {
		return []models.Student{}, nil
	}
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = ANY($1)", studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find students by ids: %w", err)
	}
	return students, nil
}

// Create inserts a new student record with a zero job count.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	student.NumberOfJob = 0
	const query = `INSERT INTO students (id, first_name, middle_name, last_name, gender, batch, university, college, department, phone, email, photo, number_of_job, active, created_at, updated_at)
        VALUES (:id, :first_name, :middle_name, :last_name, :gender, :batch, :university, :college, :department, :phone, :email, :photo, :number_of_job, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies the profile fields of a student. The job counter is owned
// by the job repository and is never written here.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET first_name = :first_name, middle_name = :middle_name, last_name = :last_name, gender = :gender, batch = :batch,
        university = :university, college = :college, department = :department, phone = :phone, email = :email, photo = :photo, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Deactivate marks a student as inactive.
func (r *StudentRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE students SET active = false, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate student: %w", err)
	}
	return nil
}
