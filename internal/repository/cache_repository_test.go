package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/family-console-api/pkg/errors"
)

func TestCacheRepositoryKeyNamespace(t *testing.T) {
	assert.Equal(t, "family-console:students:pool", NewCacheRepository(nil, "family-console", nil).key("students:pool"))
	assert.Equal(t, "students:pool", NewCacheRepository(nil, "", nil).key("students:pool"))
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "ns", nil)
	ctx := context.Background()

	var dest map[string]string
	assert.ErrorIs(t, repo.Get(ctx, "families:list", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "families:list", map[string]string{"a": "b"}, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(ctx, "families:*"))
	assert.NoError(t, repo.Close())
}
