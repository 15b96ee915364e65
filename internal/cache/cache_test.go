package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/broadcast-link/internal/linkdata"
	"github.com/d60-Lab/broadcast-link/internal/model"
	"github.com/d60-Lab/broadcast-link/internal/repository"
)

// countingRepo 统计底层仓储被调用的次数，验证缓存确实拦截了查询
type countingRepo struct {
	repository.BroadcastRepository
	db       *gorm.DB
	gets     int
	getManys int
}

func (c *countingRepo) Get(ctx context.Context, blogID, postID int64) (*linkdata.BroadcastData, error) {
	c.gets++
	return c.BroadcastRepository.Get(ctx, blogID, postID)
}

func (c *countingRepo) GetMany(ctx context.Context, blogID int64, postIDs []int64) (map[int64]*linkdata.BroadcastData, []int64, error) {
	c.getManys++
	return c.BroadcastRepository.GetMany(ctx, blogID, postIDs)
}

func newCountingRepo(t *testing.T) *countingRepo {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.BroadcastRow{}))
	return &countingRepo{BroadcastRepository: repository.NewBroadcastRepository(db), db: db}
}

func seed(t *testing.T, repo repository.BroadcastRepository, blogID, postID, childBlog, childPost int64) {
	t.Helper()
	bd := linkdata.New()
	bd.AddLinkedChild(childBlog, childPost)
	require.NoError(t, repo.Put(context.Background(), blogID, postID, bd))
}

func TestGetForReturnsSameInstance(t *testing.T) {
	repo := newCountingRepo(t)
	seed(t, repo.BroadcastRepository, 1, 10, 2, 20)
	cc := NewBroadcastCache(repo)
	ctx := context.Background()

	first, err := cc.GetFor(ctx, 1, 10)
	require.NoError(t, err)
	second, err := cc.GetFor(ctx, 1, 10)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, repo.gets)

	// 通过一个句柄的修改必须从另一个句柄可见
	first.AddLinkedChild(3, 30)
	assert.True(t, second.HasLinkedChildOnBlog(3))
}

func TestGetForUnknownPairCachesEmptyRecord(t *testing.T) {
	repo := newCountingRepo(t)
	cc := NewBroadcastCache(repo)
	ctx := context.Background()

	bd, err := cc.GetFor(ctx, 1, 99)
	require.NoError(t, err)
	assert.True(t, bd.IsEmpty())

	again, err := cc.GetFor(ctx, 1, 99)
	require.NoError(t, err)
	assert.Same(t, bd, again)
	assert.Equal(t, 1, repo.gets)
}

func TestExpectPostsBulkPreload(t *testing.T) {
	repo := newCountingRepo(t)
	ids := make([]int64, 0, 10)
	for i := int64(1); i <= 10; i++ {
		seed(t, repo.BroadcastRepository, 1, i, 2, i*10)
		ids = append(ids, i)
	}
	// 11 没有存储行，预热后也应得到空记录而不再单查
	ids = append(ids, 11)

	cc := NewBroadcastCache(repo)
	cc.ExpectPosts(1, ids)
	ctx := context.Background()

	for _, id := range ids {
		bd, err := cc.GetFor(ctx, 1, id)
		require.NoError(t, err)
		if id == 11 {
			assert.True(t, bd.IsEmpty())
		} else {
			assert.True(t, bd.HasLinkedChildOnBlog(2))
		}
	}
	assert.Equal(t, 1, repo.getManys)
	assert.Equal(t, 0, repo.gets)
}

func TestExpectPostsLeavesCorruptRowsUncached(t *testing.T) {
	repo := newCountingRepo(t)
	seed(t, repo.BroadcastRepository, 1, 1, 2, 10)
	require.NoError(t, repo.db.Create(&model.BroadcastRow{BlogID: 1, PostID: 2, Data: "garbage"}).Error)

	cc := NewBroadcastCache(repo)
	cc.ExpectPosts(1, []int64{1, 2})
	ctx := context.Background()

	bd, err := cc.GetFor(ctx, 1, 1)
	require.NoError(t, err)
	assert.True(t, bd.HasLinkedChildOnBlog(2))

	// 预热不把损坏行伪装成空记录；落到单行读取并上抛解码错误
	_, err = cc.GetFor(ctx, 1, 2)
	assert.ErrorIs(t, err, linkdata.ErrCorruptPayload)
	assert.Equal(t, 1, repo.getManys)
	assert.Equal(t, 1, repo.gets)
}

func TestExpectPostsDoesNotAffectOtherBlogs(t *testing.T) {
	repo := newCountingRepo(t)
	seed(t, repo.BroadcastRepository, 2, 5, 3, 50)
	cc := NewBroadcastCache(repo)
	cc.ExpectPosts(1, []int64{1, 2, 3})

	_, err := cc.GetFor(context.Background(), 2, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.gets)
	assert.Equal(t, 0, repo.getManys)
}

func TestSetForSeedsEntry(t *testing.T) {
	repo := newCountingRepo(t)
	cc := NewBroadcastCache(repo)

	fresh := linkdata.New()
	cc.SetFor(1, 10, fresh)

	got, err := cc.GetFor(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Same(t, fresh, got)
	assert.Equal(t, 0, repo.gets)
}

func TestEquivalenceResolver(t *testing.T) {
	repo := newCountingRepo(t)
	seed(t, repo.BroadcastRepository, 1, 10, 2, 20)
	cc := NewBroadcastCache(repo)
	r := NewEquivalenceResolver(cc)
	ctx := context.Background()

	childPost, found, err := r.Get(ctx, 1, 10, 2)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(20), childPost)

	// 未链接的博客：not found，不是错误
	_, found, err = r.Get(ctx, 1, 10, 9)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEquivalenceResolverFirstWriteWins(t *testing.T) {
	repo := newCountingRepo(t)
	cc := NewBroadcastCache(repo)
	r := NewEquivalenceResolver(cc)

	r.Set(1, 10, 2, 20)
	r.Set(1, 10, 2, 99) // 后写不覆盖先确认的映射

	childPost, found, err := r.Get(context.Background(), 1, 10, 2)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(20), childPost)
}
