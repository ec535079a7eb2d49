package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/family-console-api/internal/models"
)

func familyRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "title", "location", "batch", "allow_other_batches", "family_date", "family_leader_id", "family_co_leader_id", "family_secretary_id", "status", "grand_parents", "version", "created_by", "updated_by", "created_at", "updated_at"})
}

func TestFamilyRepositoryFindByIDDecodesTree(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFamilyRepository(db)

	now := time.Now()
	tree := `[{"title":"Abrham","grand_father":"g1","families":[{"father":{"student":"f1"},"mother":{"student":"m1","phone":"0911"},"children":[{"student":"c1","relationship":"son","added_at":"2024-01-01T00:00:00Z"}],"created_at":"2024-01-01T00:00:00Z"}]}]`
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+familyColumns+" FROM families WHERE id = $1")).
		WithArgs("fam1").
		WillReturnRows(familyRows().AddRow("fam1", "Bethel", "Hall A", "2023/2024", false, nil, "l1", "l2", "l3", "current", []byte(tree), 4, nil, nil, now, now))

	family, err := repo.FindByID(context.Background(), "fam1")
	require.NoError(t, err)
	require.Len(t, family.GrandParents, 1)
	gp := family.GrandParents[0]
	require.NotNil(t, gp.GrandFatherID)
	assert.Equal(t, "g1", *gp.GrandFatherID)
	assert.Nil(t, gp.GrandMotherID)
	assert.Equal(t, "0911", gp.Families[0].Mother.Phone)
	assert.Equal(t, models.RelationshipSon, gp.Families[0].Children[0].Relationship)
	assert.Equal(t, []string{"l1", "l2", "l3", "g1", "f1", "m1", "c1"}, family.StudentIDs())
	assert.Equal(t, 4, family.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFamilyRepositoryCreateEncodesTree(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFamilyRepository(db)

	mock.ExpectExec("INSERT INTO families").WillReturnResult(sqlmock.NewResult(1, 1))

	family := &models.Family{Title: "Bethel", Location: "Hall A", Batch: "2023/2024", Status: models.FamilyStatusCurrent}
	require.NoError(t, repo.Create(context.Background(), family))
	assert.NotEmpty(t, family.ID)
	assert.Equal(t, 1, family.Version)
	assert.JSONEq(t, `[]`, string(family.GrandParentsJSON))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFamilyRepositoryUpdateBumpsVersion(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFamilyRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $")).WillReturnResult(sqlmock.NewResult(0, 1))

	family := &models.Family{ID: "fam1", Version: 2}
	require.NoError(t, repo.Update(context.Background(), family))
	assert.Equal(t, 3, family.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFamilyRepositoryUpdateStaleVersion(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFamilyRepository(db)

	mock.ExpectExec("UPDATE families SET").WillReturnResult(sqlmock.NewResult(0, 0))

	family := &models.Family{ID: "fam1", Version: 1}
	err := repo.Update(context.Background(), family)
	assert.ErrorIs(t, err, ErrStaleVersion)
	assert.Equal(t, 1, family.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFamilyRepositoryListByStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFamilyRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM families WHERE status = $1")).
		WithArgs(models.FamilyStatusCurrent).
		WillReturnRows(familyRows().AddRow("fam1", "Bethel", "Hall A", "2023/2024", false, nil, "l1", "l2", "l3", "current", []byte(`[]`), 1, nil, nil, now, now))

	families, err := repo.ListByStatus(context.Background(), models.FamilyStatusCurrent)
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Empty(t, families[0].GrandParents)
	assert.NoError(t, mock.ExpectationsWereMet())
}
