package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/family-console-api/internal/models"
)

type brokenCache struct{}

func (brokenCache) Get(ctx context.Context, key string, dest interface{}) error {
	return errors.New("connection reset")
}

func (brokenCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return errors.New("connection reset")
}

func (brokenCache) DeleteByPattern(ctx context.Context, pattern string) error {
	return errors.New("connection reset")
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	var nilSvc *CacheService
	hit, err := nilSvc.Get(context.Background(), "k", &struct{}{})
	assert.False(t, hit)
	assert.NoError(t, err)

	svc := NewCacheService(newMemCache(), nil, 0, nil, false)
	assert.False(t, svc.Enabled())
	require.NoError(t, svc.Set(context.Background(), "k", 1, 0))
	hit, _ = svc.Get(context.Background(), "k", new(int))
	assert.False(t, hit)
}

func TestCacheServiceRoundTripRecordsMetrics(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewCacheService(newMemCache(), metrics, time.Minute, nil, true)
	ctx := context.Background()

	var out []string
	hit, err := svc.Get(ctx, studentPoolKey, &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, studentPoolKey, []string{"s1"}, 0))
	hit, err = svc.Get(ctx, studentPoolKey, &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"s1"}, out)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, uint64(1), snap.CacheMisses)

	svc.InvalidateStudents(ctx)
	hit, _ = svc.Get(ctx, studentPoolKey, &out)
	assert.False(t, hit)
}

func TestCacheServiceSurfacesBackendErrors(t *testing.T) {
	svc := NewCacheService(brokenCache{}, nil, time.Minute, nil, true)
	ctx := context.Background()

	hit, err := svc.Get(ctx, "k", new(int))
	assert.False(t, hit)
	assert.Error(t, err)
	assert.Error(t, svc.Set(ctx, "k", 1, 0))
	assert.Error(t, svc.Invalidate(ctx, "k*"))
}

func TestFamilyListKeyVariesByFilter(t *testing.T) {
	a := familyListKey(models.FamilyFilter{Batch: "2023", Page: 1, PageSize: 20})
	b := familyListKey(models.FamilyFilter{Batch: "2023", Page: 2, PageSize: 20})
	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "families:")
}
