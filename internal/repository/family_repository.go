package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/family-console-api/internal/models"
)

const familyColumns = "id, title, location, batch, allow_other_batches, family_date, family_leader_id, family_co_leader_id, family_secretary_id, status, grand_parents, version, created_by, updated_by, created_at, updated_at"

// ErrStaleVersion is returned when an update carries an outdated version.
var ErrStaleVersion = errors.New("stale family version")

// FamilyRepository persists families with their grandparent tree as JSONB.
type FamilyRepository struct {
	db *sqlx.DB
}

// NewFamilyRepository constructs a FamilyRepository.
func NewFamilyRepository(db *sqlx.DB) *FamilyRepository {
	return &FamilyRepository{db: db}
}

// List returns families matching the filter.
func (r *FamilyRepository) List(ctx context.Context, filter models.FamilyFilter) ([]models.Family, int, error) {
	args := []interface{}{}
	conditions := []string{"1=1"}
	if filter.Batch != "" {
		conditions = append(conditions, fmt.Sprintf("batch = $%d", len(args)+1))
		args = append(args, filter.Batch)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(location) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	base := "FROM families WHERE " + strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", familyColumns, base, size, offset)
	var families []models.Family
	if err := r.db.SelectContext(ctx, &families, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list families: %w", err)
	}
	if err := decodeFamilies(families); err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count families: %w", err)
	}
	return families, total, nil
}

// ListByStatus returns every family in the given lifecycle state.
func (r *FamilyRepository) ListByStatus(ctx context.Context, status models.FamilyStatus) ([]models.Family, error) {
	var families []models.Family
	query := fmt.Sprintf("SELECT %s FROM families WHERE status = $1 ORDER BY created_at", familyColumns)
	if err := r.db.SelectContext(ctx, &families, query, status); err != nil {
		return nil, fmt.Errorf("list families by status: %w", err)
	}
	if err := decodeFamilies(families); err != nil {
		return nil, err
	}
	return families, nil
}

// FindByID fetches a family by ID.
func (r *FamilyRepository) FindByID(ctx context.Context, id string) (*models.Family, error) {
	var family models.Family
	if err := r.db.GetContext(ctx, &family, fmt.Sprintf("SELECT %s FROM families WHERE id = $1", familyColumns), id); err != nil {
		return nil, err
	}
	if err := decodeFamily(&family); err != nil {
		return nil, err
	}
	return &family, nil
}

// Create inserts a new family at version 1.
func (r *FamilyRepository) Create(ctx context.Context, family *models.Family) error {
	if family.ID == "" {
		family.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	family.CreatedAt = now
	family.UpdatedAt = now
	family.Version = 1
	if err := encodeFamily(family); err != nil {
		return err
	}
	const query = `INSERT INTO families (id, title, location, batch, allow_other_batches, family_date, family_leader_id, family_co_leader_id, family_secretary_id, status, grand_parents, version, created_by, updated_by, created_at, updated_at)
        VALUES (:id, :title, :location, :batch, :allow_other_batches, :family_date, :family_leader_id, :family_co_leader_id, :family_secretary_id, :status, :grand_parents, :version, :created_by, :updated_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, family); err != nil {
		return fmt.Errorf("create family: %w", err)
	}
	return nil
}

// Update replaces a family when family.Version still matches the stored one.
// On success the version is bumped. A mismatch yields ErrStaleVersion.
func (r *FamilyRepository) Update(ctx context.Context, family *models.Family) error {
	if err := encodeFamily(family); err != nil {
		return err
	}
	family.UpdatedAt = time.Now().UTC()
	const query = `UPDATE families SET title = :title, location = :location, batch = :batch, allow_other_batches = :allow_other_batches, family_date = :family_date,
        family_leader_id = :family_leader_id, family_co_leader_id = :family_co_leader_id, family_secretary_id = :family_secretary_id, status = :status,
        grand_parents = :grand_parents, version = version + 1, updated_by = :updated_by, updated_at = :updated_at
        WHERE id = :id AND version = :version`
	res, err := r.db.NamedExecContext(ctx, query, family)
	if err != nil {
		return fmt.Errorf("update family: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrStaleVersion
	}
	family.Version++
	return nil
}

// UpdateStatus sets the lifecycle status and bumps the version.
func (r *FamilyRepository) UpdateStatus(ctx context.Context, id string, status models.FamilyStatus, updatedBy *string) error {
	const query = `UPDATE families SET status = $2, updated_by = $3, version = version + 1, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, updatedBy, time.Now().UTC()); err != nil {
		return fmt.Errorf("update family status: %w", err)
	}
	return nil
}

func encodeFamily(family *models.Family) error {
	tree := family.GrandParents
	if tree == nil {
		tree = []models.GrandParentRecord{}
	}
	payload, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("encode grand parents: %w", err)
	}
	family.GrandParentsJSON = types.JSONText(payload)
	return nil
}

func decodeFamily(family *models.Family) error {
	family.GrandParents = []models.GrandParentRecord{}
	if len(family.GrandParentsJSON) == 0 {
		return nil
	}
	if err := family.GrandParentsJSON.Unmarshal(&family.GrandParents); err != nil {
		return fmt.Errorf("decode grand parents of %s: %w", family.ID, err)
	}
	return nil
}

func decodeFamilies(families []models.Family) error {
	for i := range families {
		if err := decodeFamily(&families[i]); err != nil {
			return err
		}
	}
	return nil
}
