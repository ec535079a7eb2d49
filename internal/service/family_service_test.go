package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/family-console-api/internal/assignment"
	"github.com/noah-isme/family-console-api/internal/dto"
	"github.com/noah-isme/family-console-api/internal/models"
	"github.com/noah-isme/family-console-api/internal/repository"
	appErrors "github.com/noah-isme/family-console-api/pkg/errors"
)

type mockFamilyRepo struct {
	families map[string]models.Family
	listed   int
	stale    bool
}

func newMockFamilyRepo() *mockFamilyRepo {
	return &mockFamilyRepo{families: make(map[string]models.Family)}
}

func (m *mockFamilyRepo) List(ctx context.Context, filter models.FamilyFilter) ([]models.Family, int, error) {
	m.listed++
	out := make([]models.Family, 0, len(m.families))
	for _, f := range m.families {
		out = append(out, f)
	}
	return out, len(out), nil
}

func (m *mockFamilyRepo) ListByStatus(ctx context.Context, status models.FamilyStatus) ([]models.Family, error) {
	out := []models.Family{}
	for _, f := range m.families {
		if f.Status == status {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *mockFamilyRepo) FindByID(ctx context.Context, id string) (*models.Family, error) {
	if f, ok := m.families[id]; ok {
		return &f, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFamilyRepo) Create(ctx context.Context, family *models.Family) error {
	family.ID = "fam1"
	family.Version = 1
	m.families[family.ID] = *family
	return nil
}

func (m *mockFamilyRepo) Update(ctx context.Context, family *models.Family) error {
	if m.stale {
		return repository.ErrStaleVersion
	}
	family.Version++
	m.families[family.ID] = *family
	return nil
}

func (m *mockFamilyRepo) UpdateStatus(ctx context.Context, id string, status models.FamilyStatus, updatedBy *string) error {
	f := m.families[id]
	f.Status = status
	f.Version++
	m.families[id] = f
	return nil
}

func familyStudents() *mockStudentRepo {
	return newMockStudentRepo(
		mkStudent("l1", models.GenderMale, "2022/2023", 0),
		mkStudent("l2", models.GenderFemale, "2022/2023", 0),
		mkStudent("l3", models.GenderMale, "2022/2023", 0),
		mkStudent("g1", models.GenderMale, "2021/2022", 0),
		mkStudent("g2", models.GenderFemale, "2021/2022", 0),
		mkStudent("f1", models.GenderMale, "2022/2023", 0),
		mkStudent("m1", models.GenderFemale, "2022/2023", 0),
		mkStudent("c1", models.GenderFemale, "2023/2024", 0),
		mkStudent("c2", models.GenderMale, "2023/2024", 0),
		mkStudent("c3", models.GenderMale, "2022/2023", 0),
	)
}

func validDraftRequest() dto.FamilyDraftRequest {
	return dto.FamilyDraftRequest{
		Title:           " Bethel ",
		Location:        "Hall A",
		Batch:           "2023/2024",
		FamilyLeader:    "l1",
		FamilyCoLeader:  "l2",
		FamilySecretary: "l3",
		GrandParents: []dto.GrandParentDraftRequest{{
			Title:       "Abrham",
			GrandFather: "g1",
			GrandMother: "g2",
			Families: []dto.FamilyUnitDraftRequest{{
				Father:   dto.ParentDraftRequest{Student: "f1"},
				Mother:   dto.ParentDraftRequest{Student: "m1", Phone: "0911"},
				Children: []dto.ChildDraftRequest{{Student: "c1"}},
			}},
		}},
	}
}

func newFamilyService(repo *mockFamilyRepo, students *mockStudentRepo, cache *memCache) (*FamilyService, *MetricsService) {
	metrics := NewMetricsService()
	cacheSvc := NewCacheService(cache, metrics, time.Minute, zap.NewNop(), cache != nil)
	studentSvc := NewStudentService(students, cacheSvc, StudentServiceConfig{}, validator.New(), zap.NewNop())
	svc := NewFamilyService(repo, studentSvc, cacheSvc, metrics, time.Minute, validator.New(), zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return svc, metrics
}

func TestFamilyServiceCreateNormalizes(t *testing.T) {
	repo := newMockFamilyRepo()
	svc, _ := newFamilyService(repo, familyStudents(), nil)

	family, err := svc.Create(context.Background(), validDraftRequest(), "admin")
	require.NoError(t, err)
	assert.Equal(t, "Bethel", family.Title)
	assert.Equal(t, models.FamilyStatusCurrent, family.Status)
	require.NotNil(t, family.CreatedBy)
	assert.Equal(t, "admin", *family.CreatedBy)

	unit := family.GrandParents[0].Families[0]
	assert.Equal(t, "0911", unit.Mother.Phone)
	assert.Equal(t, models.RelationshipDaughter, unit.Children[0].Relationship)
	assert.Equal(t, svc.now(), unit.CreatedAt)
	assert.Equal(t, svc.now(), unit.Children[0].AddedAt)
	assert.Contains(t, repo.families, "fam1")
}

func TestFamilyServiceCreateRejectsViolations(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*dto.FamilyDraftRequest)
		code   assignment.ViolationCode
	}{
		{"missing secretary", func(r *dto.FamilyDraftRequest) { r.FamilySecretary = "" }, assignment.CodeMissingField},
		{"grandparent without members", func(r *dto.FamilyDraftRequest) {
			r.GrandParents[0].GrandFather = ""
			r.GrandParents[0].GrandMother = ""
		}, assignment.CodeGrandParentIncomplete},
		{"missing mother", func(r *dto.FamilyDraftRequest) { r.GrandParents[0].Families[0].Mother.Student = "" }, assignment.CodeParentMissing},
		{"female father", func(r *dto.FamilyDraftRequest) { r.GrandParents[0].Families[0].Father.Student = "c1" }, assignment.CodeGenderMismatch},
		{"duplicate student", func(r *dto.FamilyDraftRequest) {
			r.GrandParents[0].Families[0].Children = append(r.GrandParents[0].Families[0].Children, dto.ChildDraftRequest{Student: "l1"})
		}, assignment.CodeDuplicateStudent},
		{"child from other batch", func(r *dto.FamilyDraftRequest) {
			r.GrandParents[0].Families[0].Children[0].Student = "c3"
		}, assignment.CodeBatchMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMockFamilyRepo()
			svc, metrics := newFamilyService(repo, familyStudents(), nil)
			req := validDraftRequest()
			tc.mutate(&req)

			_, err := svc.Create(context.Background(), req, "admin")
			require.Error(t, err)
			appErr := appErrors.FromError(err)
			assert.Equal(t, string(tc.code), appErr.Code)
			assert.Equal(t, 400, appErr.Status)
			assert.Empty(t, repo.families)
			assert.Equal(t, uint64(1), metrics.Snapshot().Violations[string(tc.code)])
		})
	}
}

func TestFamilyServiceAllowOtherBatches(t *testing.T) {
	svc, _ := newFamilyService(newMockFamilyRepo(), familyStudents(), nil)
	req := validDraftRequest()
	req.GrandParents[0].Families[0].Children[0].Student = "c3"
	req.AllowOtherBatches = true

	res, err := svc.Validate(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Nil(t, res.Violation)
}

func TestFamilyServiceValidateUnknownStudent(t *testing.T) {
	svc, _ := newFamilyService(newMockFamilyRepo(), familyStudents(), nil)
	req := validDraftRequest()
	req.FamilyLeader = "ghost"

	_, err := svc.Validate(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestFamilyServiceUpdateVersioning(t *testing.T) {
	repo := newMockFamilyRepo()
	svc, _ := newFamilyService(repo, familyStudents(), nil)
	created, err := svc.Create(context.Background(), validDraftRequest(), "admin")
	require.NoError(t, err)

	req := validDraftRequest()
	_, err = svc.Update(context.Background(), created.ID, req, "admin")
	require.Error(t, err, "version is required")

	req.Version = 7
	_, err = svc.Update(context.Background(), created.ID, req, "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrVersionConflict.Code, appErrors.FromError(err).Code)

	req.Version = 1
	req.Title = "Bethel II"
	updated, err := svc.Update(context.Background(), created.ID, req, "editor")
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "Bethel II", updated.Title)
	assert.Equal(t, "admin", *updated.CreatedBy)

	repo.stale = true
	req.Version = 2
	_, err = svc.Update(context.Background(), created.ID, req, "editor")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrVersionConflict.Code, appErrors.FromError(err).Code)
}

func TestFamilyServiceUpdateStatus(t *testing.T) {
	repo := newMockFamilyRepo()
	svc, _ := newFamilyService(repo, familyStudents(), nil)
	created, err := svc.Create(context.Background(), validDraftRequest(), "admin")
	require.NoError(t, err)

	family, err := svc.UpdateStatus(context.Background(), created.ID, dto.FamilyStatusRequest{Status: models.FamilyStatusFinished}, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.FamilyStatusFinished, family.Status)

	_, err = svc.UpdateStatus(context.Background(), created.ID, dto.FamilyStatusRequest{Status: "archived"}, "admin")
	require.Error(t, err)
}

func TestFamilyServiceUpdateKeepsStatus(t *testing.T) {
	repo := newMockFamilyRepo()
	svc, _ := newFamilyService(repo, familyStudents(), nil)
	created, err := svc.Create(context.Background(), validDraftRequest(), "admin")
	require.NoError(t, err)

	finished, err := svc.UpdateStatus(context.Background(), created.ID, dto.FamilyStatusRequest{Status: models.FamilyStatusFinished}, "admin")
	require.NoError(t, err)

	req := validDraftRequest()
	req.Version = finished.Version
	updated, err := svc.Update(context.Background(), created.ID, req, "editor")
	require.NoError(t, err)
	assert.Equal(t, models.FamilyStatusFinished, updated.Status)
	assert.Equal(t, models.FamilyStatusFinished, repo.families[created.ID].Status)

	req.Version = updated.Version
	req.Status = models.FamilyStatusCurrent
	updated, err = svc.Update(context.Background(), created.ID, req, "editor")
	require.NoError(t, err)
	assert.Equal(t, models.FamilyStatusFinished, updated.Status)
}

func TestFamilyServiceViewHydrates(t *testing.T) {
	repo := newMockFamilyRepo()
	students := familyStudents()
	svc, _ := newFamilyService(repo, students, nil)
	created, err := svc.Create(context.Background(), validDraftRequest(), "admin")
	require.NoError(t, err)
	delete(students.students, "g2")

	view, err := svc.View(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, view.FamilyLeader)
	assert.Equal(t, "L1", view.FamilyLeader.FullName)
	gp := view.GrandParents[0]
	assert.Equal(t, "g1", gp.GrandFather.ID)
	assert.Nil(t, gp.GrandMother)
	assert.Equal(t, "c1", gp.Families[0].Children[0].Student.ID)

	_, err = svc.View(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func candidateIDs(students []models.Student) []string {
	ids := make([]string, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.ID)
	}
	return ids
}

func TestFamilyServiceCandidates(t *testing.T) {
	svc, _ := newFamilyService(newMockFamilyRepo(), familyStudents(), nil)
	draft := validDraftRequest()

	candidates, err := svc.Candidates(context.Background(), dto.CandidateRequest{Slot: assignment.ChildSlot(0, 0, 1), Draft: draft})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c2"}, candidateIDs(candidates))

	candidates, err = svc.Candidates(context.Background(), dto.CandidateRequest{Slot: assignment.LeaderSlot(assignment.RoleFamilyLeader), Draft: draft})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"l1", "c2", "c3"}, candidateIDs(candidates))

	_, err = svc.Candidates(context.Background(), dto.CandidateRequest{Slot: assignment.ChildSlot(0, 4, 0), Draft: draft})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Candidates(context.Background(), dto.CandidateRequest{Draft: draft})
	require.Error(t, err)
}

func TestFamilyServiceCandidatesRetainsOnlyTheSlotOccupant(t *testing.T) {
	svc, _ := newFamilyService(newMockFamilyRepo(), familyStudents(), nil)
	draft := validDraftRequest()

	candidates, err := svc.Candidates(context.Background(), dto.CandidateRequest{Slot: assignment.LeaderSlot(assignment.RoleFamilyCoLeader), Draft: draft})
	require.NoError(t, err)
	ids := candidateIDs(candidates)
	assert.Contains(t, ids, "l2")
	assert.NotContains(t, ids, "l1")
	assert.NotContains(t, ids, "l3")

	draft.FamilyCoLeader = ""
	candidates, err = svc.Candidates(context.Background(), dto.CandidateRequest{Slot: assignment.LeaderSlot(assignment.RoleFamilyCoLeader), Draft: draft})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"l2", "c2", "c3"}, candidateIDs(candidates))
}

func TestFamilyServiceAssignSlot(t *testing.T) {
	svc, _ := newFamilyService(newMockFamilyRepo(), familyStudents(), nil)
	draft := validDraftRequest()

	next, err := svc.AssignSlot(context.Background(), dto.AssignSlotRequest{Draft: draft, Slot: assignment.ChildSlot(0, 0, 1), StudentID: "c2"})
	require.NoError(t, err)
	children := next.GrandParents[0].Families[0].Children
	require.Len(t, children, 2)
	assert.Equal(t, "c2", children[1].Student)
	assert.Equal(t, models.RelationshipSon, children[1].Relationship)
	assert.Len(t, draft.GrandParents[0].Families[0].Children, 1)

	_, err = svc.AssignSlot(context.Background(), dto.AssignSlotRequest{Draft: draft, Slot: assignment.ChildSlot(0, 0, 1), StudentID: "l1"})
	require.Error(t, err)
	assert.Equal(t, string(assignment.CodeDuplicateStudent), appErrors.FromError(err).Code)

	cleared, err := svc.AssignSlot(context.Background(), dto.AssignSlotRequest{Draft: draft, Slot: assignment.LeaderSlot(assignment.RoleFamilySecretary)})
	require.NoError(t, err)
	assert.Empty(t, cleared.FamilySecretary)
}

func TestFamilyServiceListUsesCache(t *testing.T) {
	repo := newMockFamilyRepo()
	cache := newMemCache()
	svc, _ := newFamilyService(repo, familyStudents(), cache)
	_, err := svc.Create(context.Background(), validDraftRequest(), "admin")
	require.NoError(t, err)

	filter := models.FamilyFilter{Batch: "2023/2024"}
	first, _, cached, err := svc.List(context.Background(), filter)
	require.NoError(t, err)
	assert.False(t, cached)
	second, page, cached, err := svc.List(context.Background(), filter)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 1, repo.listed)
	assert.Len(t, second, len(first))
	assert.Equal(t, 1, page.TotalCount)

	svc.InvalidateCache(context.Background())
	_, _, _, err = svc.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listed)
}

func TestFamilyServiceCurrentSelections(t *testing.T) {
	repo := newMockFamilyRepo()
	svc, _ := newFamilyService(repo, familyStudents(), nil)
	_, err := svc.Create(context.Background(), validDraftRequest(), "admin")
	require.NoError(t, err)

	selected, families, err := svc.CurrentSelections(context.Background())
	require.NoError(t, err)
	assert.Len(t, families, 1)
	assert.Len(t, selected, 8)
	assert.Contains(t, selected, "c1")
}
