package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/broadcast-link/internal/linkdata"
	"github.com/d60-Lab/broadcast-link/internal/model"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Post{}, &model.PostMeta{}, &model.BroadcastRow{}, &model.BroadcastJob{},
	))
	return db
}

func rowCount(t *testing.T, db *gorm.DB, blogID, postID int64) int64 {
	t.Helper()
	var cnt int64
	require.NoError(t, db.Model(&model.BroadcastRow{}).
		Where("blog_id = ? AND post_id = ?", blogID, postID).
		Count(&cnt).Error)
	return cnt
}

func TestGetNeverWrittenReturnsEmptyRecord(t *testing.T) {
	repo := NewBroadcastRepository(setupTestDB(t))
	bd, err := repo.Get(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.True(t, bd.IsEmpty())
	assert.False(t, bd.IsModified())
	assert.Zero(t, bd.RowID())
}

func TestPutGetRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBroadcastRepository(db)
	ctx := context.Background()

	bd := linkdata.New()
	bd.SetLinkedParent(1, 10)
	bd.AddLinkedChild(2, 20)
	require.NoError(t, repo.Put(ctx, 2, 21, bd))
	assert.NotZero(t, bd.RowID())
	assert.False(t, bd.IsModified())

	loaded, err := repo.Get(ctx, 2, 21)
	require.NoError(t, err)
	parent, ok := loaded.LinkedParent()
	require.True(t, ok)
	assert.Equal(t, linkdata.PostRef{BlogID: 1, PostID: 10}, parent)
	assert.Equal(t, map[int64]int64{2: 20}, loaded.LinkedChildren())
	assert.Equal(t, bd.RowID(), loaded.RowID())
}

func TestPutUnmodifiedIsNoop(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBroadcastRepository(db)
	ctx := context.Background()

	bd := linkdata.New()
	bd.AddLinkedChild(2, 20)
	require.NoError(t, repo.Put(ctx, 1, 10, bd))

	// 直接改掉底层行；未修改的 Put 不应把旧内容写回去
	other := linkdata.New()
	other.AddLinkedChild(3, 30)
	raw, err := other.Marshal()
	require.NoError(t, err)
	require.NoError(t, db.Model(&model.BroadcastRow{}).
		Where("id = ?", bd.RowID()).
		Update("data", string(raw)).Error)

	require.NoError(t, repo.Put(ctx, 1, 10, bd))

	loaded, err := repo.Get(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{3: 30}, loaded.LinkedChildren())
}

func TestPutEmptyRecordDeletesRow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBroadcastRepository(db)
	ctx := context.Background()

	bd := linkdata.New()
	bd.AddLinkedChild(2, 20)
	require.NoError(t, repo.Put(ctx, 1, 10, bd))
	assert.Equal(t, int64(1), rowCount(t, db, 1, 10))

	bd.RemoveLinkedChild(2)
	assert.True(t, bd.IsEmpty())
	require.NoError(t, repo.Put(ctx, 1, 10, bd))
	assert.Equal(t, int64(0), rowCount(t, db, 1, 10))
	assert.Zero(t, bd.RowID())
}

func TestPutUpdatesExistingRowInPlace(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBroadcastRepository(db)
	ctx := context.Background()

	bd := linkdata.New()
	bd.AddLinkedChild(2, 20)
	require.NoError(t, repo.Put(ctx, 1, 10, bd))
	firstRowID := bd.RowID()

	bd.AddLinkedChild(3, 30)
	require.NoError(t, repo.Put(ctx, 1, 10, bd))
	assert.Equal(t, firstRowID, bd.RowID())
	assert.Equal(t, int64(1), rowCount(t, db, 1, 10))
}

func TestGetCorruptPayload(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBroadcastRepository(db)

	require.NoError(t, db.Create(&model.BroadcastRow{BlogID: 1, PostID: 10, Data: "garbage"}).Error)

	_, err := repo.Get(context.Background(), 1, 10)
	assert.ErrorIs(t, err, linkdata.ErrCorruptPayload)
}

func TestGetDuplicateRowsFirstByIDWins(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBroadcastRepository(db)
	ctx := context.Background()

	first := linkdata.New()
	first.AddLinkedChild(2, 20)
	firstRaw, _ := first.Marshal()
	second := linkdata.New()
	second.AddLinkedChild(2, 99)
	secondRaw, _ := second.Marshal()

	require.NoError(t, db.Create(&model.BroadcastRow{BlogID: 1, PostID: 10, Data: string(firstRaw)}).Error)
	require.NoError(t, db.Create(&model.BroadcastRow{BlogID: 1, PostID: 10, Data: string(secondRaw)}).Error)

	loaded, err := repo.Get(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{2: 20}, loaded.LinkedChildren())
}

func TestGetMany(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBroadcastRepository(db)
	ctx := context.Background()

	for _, postID := range []int64{10, 11, 12} {
		bd := linkdata.New()
		bd.AddLinkedChild(2, postID*10)
		require.NoError(t, repo.Put(ctx, 1, postID, bd))
	}

	got, corrupt, err := repo.GetMany(ctx, 1, []int64{10, 11, 12, 13, 14})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Empty(t, corrupt)
	assert.Equal(t, map[int64]int64{2: 110}, got[11].LinkedChildren())
	assert.NotContains(t, got, int64(13))
}

func TestGetManyReportsCorruptRows(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBroadcastRepository(db)
	ctx := context.Background()

	good := linkdata.New()
	good.AddLinkedChild(2, 100)
	require.NoError(t, repo.Put(ctx, 1, 10, good))
	require.NoError(t, db.Create(&model.BroadcastRow{BlogID: 1, PostID: 11, Data: "garbage"}).Error)

	got, corrupt, err := repo.GetMany(ctx, 1, []int64{10, 11})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got, int64(10))
	// 损坏行不能折叠成"无链接"，调用方必须能区分
	assert.Equal(t, []int64{11}, corrupt)
}
