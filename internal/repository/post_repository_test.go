package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/broadcast-link/internal/model"
)

func TestPostGetNotFound(t *testing.T) {
	repo := NewPostRepository(setupTestDB(t))
	_, err := repo.Get(context.Background(), 1, 999)
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestPostGetScopedToBlog(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	post := &model.Post{BlogID: 1, Title: "t", Status: model.PostStatusPublish}
	require.NoError(t, repo.Create(ctx, post))

	got, err := repo.Get(ctx, 1, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "t", got.Title)

	// 同一 post id 在别的博客下不可见
	_, err = repo.Get(ctx, 2, post.ID)
	assert.ErrorIs(t, err, ErrPostNotFound)
}
