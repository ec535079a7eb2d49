package service

import (
	"context"
	"database/sql"
	"testing"

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

type mockJobRepo struct {
	jobs      map[string]models.Job
	students  map[string]models.Student
	updateErr error
	createErr error
	created   int
}

func newMockJobRepo() *mockJobRepo {
	return &mockJobRepo{jobs: make(map[string]models.Job), students: make(map[string]models.Student)}
}

func (m *mockJobRepo) List(ctx context.Context, filter models.JobFilter) ([]models.JobDetail, int, error) {
	out := make([]models.JobDetail, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, models.JobDetail{Job: j})
	}
	return out, len(out), nil
}

func (m *mockJobRepo) FindByID(ctx context.Context, id string) (*models.Job, error) {
	if j, ok := m.jobs[id]; ok {
		return &j, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockJobRepo) ListBySubClass(ctx context.Context, subClass string) ([]models.Job, error) {
	out := []models.Job{}
	for _, j := range m.jobs {
		if j.SubClass == subClass {
			out = append(out, j)
		}
	}
	return out, nil
}

func (m *mockJobRepo) Create(ctx context.Context, job *models.Job, check func(models.Student) error) error {
	s, ok := m.students[job.StudentID]
	if !ok {
		return sql.ErrNoRows
	}
	if err := check(s); err != nil {
		return err
	}
	if m.createErr != nil {
		return m.createErr
	}
	m.created++
	job.ID = "new"
	s.NumberOfJob++
	m.students[s.ID] = s
	m.jobs[job.ID] = *job
	return nil
}

func (m *mockJobRepo) Update(ctx context.Context, job *models.Job, check func([]models.Job) error) error {
	siblings, _ := m.ListBySubClass(ctx, job.SubClass)
	if err := check(siblings); err != nil {
		return err
	}
	if m.updateErr != nil {
		return m.updateErr
	}
	m.jobs[job.ID] = *job
	return nil
}

func (m *mockJobRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.jobs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.jobs, id)
	return nil
}

func newJobService(repo *mockJobRepo) *JobService {
	return NewJobService(repo, nil, NewMetricsService(), 3, validator.New(), zap.NewNop())
}

func TestJobServiceCreateRespectsCap(t *testing.T) {
	repo := newMockJobRepo()
	repo.students["s1"] = mkStudent("s1", models.GenderMale, "2023/2024", 2)
	svc := newJobService(repo)

	job, err := svc.Create(context.Background(), dto.CreateJobRequest{StudentID: "s1", Class: "Choir"})
	require.NoError(t, err)
	assert.Equal(t, "Choir", job.Class)
	assert.Equal(t, 3, repo.students["s1"].NumberOfJob)

	_, err = svc.Create(context.Background(), dto.CreateJobRequest{StudentID: "s1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrJobLimitReached.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 1, repo.created)
}

func TestJobServiceCreateMapsGuardedIncrement(t *testing.T) {
	repo := newMockJobRepo()
	repo.students["s1"] = mkStudent("s1", models.GenderMale, "2023/2024", 1)
	repo.createErr = repository.ErrJobLimit
	svc := newJobService(repo)

	_, err := svc.Create(context.Background(), dto.CreateJobRequest{StudentID: "s1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrJobLimitReached.Code, appErrors.FromError(err).Code)
	assert.Zero(t, repo.created)
}

func TestJobServiceCreateUnknownStudent(t *testing.T) {
	_, err := newJobService(newMockJobRepo()).Create(context.Background(), dto.CreateJobRequest{StudentID: "ghost"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestJobServiceUpdateRejectsTakenExclusiveType(t *testing.T) {
	repo := newMockJobRepo()
	repo.jobs["j1"] = models.Job{ID: "j1", StudentID: "s1", SubClass: "Timhrt", Type: "leader"}
	repo.jobs["j2"] = models.Job{ID: "j2", StudentID: "s2"}
	svc := newJobService(repo)

	_, err := svc.Update(context.Background(), "j2", dto.UpdateJobRequest{SubClass: "Timhrt", Type: "leader"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrJobTypeUnavailable.Code, appErrors.FromError(err).Code)

	job, err := svc.Update(context.Background(), "j2", dto.UpdateJobRequest{SubClass: "Timhrt", Type: "member"})
	require.NoError(t, err)
	assert.Equal(t, "member", job.Type)

	job, err = svc.Update(context.Background(), "j1", dto.UpdateJobRequest{SubClass: "Timhrt", Type: "leader", Background: "kept"})
	require.NoError(t, err)
	assert.Equal(t, "kept", job.Background)
}

func TestJobServiceUpdateDefaultsToMember(t *testing.T) {
	repo := newMockJobRepo()
	repo.jobs["j1"] = models.Job{ID: "j1", StudentID: "s1"}

	job, err := newJobService(repo).Update(context.Background(), "j1", dto.UpdateJobRequest{SubClass: "Timhrt"})
	require.NoError(t, err)
	assert.Equal(t, string(assignment.JobTypeMember), job.Type)
}

func TestJobServiceUpdateMapsUniqueViolation(t *testing.T) {
	repo := newMockJobRepo()
	repo.jobs["j1"] = models.Job{ID: "j1", StudentID: "s1"}
	repo.updateErr = repository.ErrUniqueViolation

	_, err := newJobService(repo).Update(context.Background(), "j1", dto.UpdateJobRequest{SubClass: "Timhrt", Type: "Secretary"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrJobTypeUnavailable.Code, appErrors.FromError(err).Code)
}

func TestJobServiceTypeOptions(t *testing.T) {
	repo := newMockJobRepo()
	repo.jobs["j1"] = models.Job{ID: "j1", SubClass: "Timhrt", Type: "leader"}
	svc := newJobService(repo)

	res, err := svc.TypeOptions(context.Background(), "Timhrt", "")
	require.NoError(t, err)
	available := map[assignment.JobType]bool{}
	for _, opt := range res.Options {
		available[opt.Type] = opt.Available
	}
	assert.Len(t, res.Options, len(assignment.JobTypes))
	assert.False(t, available[assignment.JobTypeLeader])
	assert.True(t, available[assignment.JobTypeMember])
	assert.True(t, available[assignment.JobTypeSubLeader])

	res, err = svc.TypeOptions(context.Background(), "Timhrt", "j1")
	require.NoError(t, err)
	for _, opt := range res.Options {
		assert.True(t, opt.Available)
	}
}

func TestJobServiceDeleteMissing(t *testing.T) {
	err := newJobService(newMockJobRepo()).Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
