package check

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/broadcast-link/internal/linkdata"
	"github.com/d60-Lab/broadcast-link/internal/model"
)

func setupRunner(t *testing.T, quota int) (*Runner, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Post{}, &model.BroadcastRow{}))
	return newRunnerFor(t, db, quota), db
}

func newRunnerFor(t *testing.T, db *gorm.DB, quota int) *Runner {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRunner(db, NewRedisStateStore(rdb, 0), quota)
}

func seedPost(t *testing.T, db *gorm.DB, blogID, postID int64) {
	t.Helper()
	require.NoError(t, db.Create(&model.Post{
		ID: postID, BlogID: blogID, Title: "p", Status: model.PostStatusPublish,
	}).Error)
}

func seedRow(t *testing.T, db *gorm.DB, blogID, postID int64, build func(*linkdata.BroadcastData)) {
	t.Helper()
	bd := linkdata.New()
	if build != nil {
		build(bd)
	}
	raw, err := bd.Marshal()
	require.NoError(t, err)
	require.NoError(t, db.Create(&model.BroadcastRow{BlogID: blogID, PostID: postID, Data: string(raw)}).Error)
}

// runScan 驱动扫描直到 results，返回报告
func runScan(t *testing.T, r *Runner) *Report {
	t.Helper()
	ctx := context.Background()
	state, err := r.Start(ctx)
	require.NoError(t, err)
	for i := 0; state.Phase != PhaseResults; i++ {
		require.Less(t, i, 100, "scan did not converge")
		state, err = r.Step(ctx, state.ID)
		require.NoError(t, err)
	}
	report, err := r.Results(ctx, state.ID)
	require.NoError(t, err)
	return report
}

func TestScanCleanPair(t *testing.T) {
	r, db := setupRunner(t, 10)
	seedPost(t, db, 1, 10)
	seedPost(t, db, 2, 20)
	seedRow(t, db, 1, 10, func(bd *linkdata.BroadcastData) { bd.AddLinkedChild(2, 20) })
	seedRow(t, db, 2, 20, func(bd *linkdata.BroadcastData) { bd.SetLinkedParent(1, 10) })

	report := runScan(t, r)
	assert.True(t, report.Clean)
	assert.Empty(t, report.Anomalies)
	assert.Equal(t, 2, report.TotalRows)
}

func TestScanChildWithoutBacklink(t *testing.T) {
	r, db := setupRunner(t, 10)
	seedPost(t, db, 1, 10)
	seedPost(t, db, 2, 20)
	seedRow(t, db, 1, 10, func(bd *linkdata.BroadcastData) { bd.AddLinkedChild(2, 20) })
	// 子侧没有任何记录：父记录声称的链接是单向的

	report := runScan(t, r)
	assert.False(t, report.Clean)
	require.Len(t, report.Anomalies, 1)
	a := report.Anomalies[0]
	assert.Equal(t, KindChildUnlinked, a.Kind)
	assert.Equal(t, int64(1), a.BlogID)
	assert.Equal(t, int64(10), a.PostID)
	assert.Equal(t, int64(2), a.OtherBlogID)
	assert.Equal(t, int64(20), a.OtherPostID)
}

func TestScanParentWithoutBacklink(t *testing.T) {
	r, db := setupRunner(t, 10)
	seedPost(t, db, 1, 10)
	seedPost(t, db, 2, 20)
	// 子记录指向父，但父记录没有列出该子
	seedRow(t, db, 2, 20, func(bd *linkdata.BroadcastData) { bd.SetLinkedParent(1, 10) })

	report := runScan(t, r)
	require.Len(t, report.Anomalies, 1)
	a := report.Anomalies[0]
	assert.Equal(t, KindParentUnlinked, a.Kind)
	assert.Equal(t, int64(2), a.BlogID)
	assert.Equal(t, int64(20), a.PostID)
	assert.Equal(t, int64(1), a.OtherBlogID)
	assert.Equal(t, int64(10), a.OtherPostID)
}

func TestScanDuplicateRowsLaterIDFlagged(t *testing.T) {
	r, db := setupRunner(t, 10)
	seedPost(t, db, 1, 10)
	seedRow(t, db, 1, 10, nil)
	seedRow(t, db, 1, 10, nil)

	report := runScan(t, r)
	require.Equal(t, 1, report.Counts[KindDuplicate])
	var dup *Anomaly
	for i := range report.Anomalies {
		if report.Anomalies[i].Kind == KindDuplicate {
			dup = &report.Anomalies[i]
		}
	}
	require.NotNil(t, dup)
	// id 较大的行被标记，较小的为规范行
	assert.Equal(t, int64(2), dup.RowID)
	assert.Contains(t, dup.Detail, "canonical row 1")
}

func TestScanMissingPostSkipsRelationCheck(t *testing.T) {
	r, db := setupRunner(t, 10)
	// post (1,999) 不存在；行里还有子链接，但不应产生关系类异常
	seedRow(t, db, 1, 999, func(bd *linkdata.BroadcastData) { bd.AddLinkedChild(2, 20) })

	report := runScan(t, r)
	require.Len(t, report.Anomalies, 1)
	assert.Equal(t, KindMissingPost, report.Anomalies[0].Kind)
	assert.Equal(t, int64(999), report.Anomalies[0].PostID)
}

func TestScanCorruptPayload(t *testing.T) {
	r, db := setupRunner(t, 10)
	seedPost(t, db, 1, 10)
	require.NoError(t, db.Create(&model.BroadcastRow{BlogID: 1, PostID: 10, Data: "garbage"}).Error)

	report := runScan(t, r)
	require.Len(t, report.Anomalies, 1)
	assert.Equal(t, KindBroken, report.Anomalies[0].Kind)
	assert.NotEmpty(t, report.Anomalies[0].Detail)
}

func TestScanMissingChildAndParent(t *testing.T) {
	r, db := setupRunner(t, 10)
	seedPost(t, db, 1, 10)
	seedPost(t, db, 2, 20)
	// 子链接指向不存在的文章；父链接指向不存在的文章
	seedRow(t, db, 1, 10, func(bd *linkdata.BroadcastData) { bd.AddLinkedChild(3, 300) })
	seedRow(t, db, 2, 20, func(bd *linkdata.BroadcastData) { bd.SetLinkedParent(4, 400) })

	report := runScan(t, r)
	assert.Equal(t, 1, report.Counts[KindMissingChild])
	assert.Equal(t, 1, report.Counts[KindMissingParent])
	assert.Len(t, report.Anomalies, 2)
}

func TestScanStepsAreBounded(t *testing.T) {
	r, db := setupRunner(t, 2)
	for i := int64(1); i <= 5; i++ {
		seedPost(t, db, 1, i)
		seedRow(t, db, 1, i, nil)
	}
	ctx := context.Background()

	state, err := r.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, PhaseCheckIDs, state.Phase)
	assert.Equal(t, 5, state.Remaining())

	state, err = r.Step(ctx, state.ID)
	require.NoError(t, err)
	assert.Equal(t, PhaseCheckIDs, state.Phase)
	// 处理 2 行，其中 2 行进入关系队列
	assert.Equal(t, 3+2, state.Remaining())

	// 状态在 Redis 中持久化，换一个 Runner 实例也能继续
	report := runScan2(t, r, state.ID)
	assert.True(t, report.Clean)
}

func runScan2(t *testing.T, r *Runner, scanID string) *Report {
	t.Helper()
	ctx := context.Background()
	for i := 0; ; i++ {
		require.Less(t, i, 100)
		state, err := r.Step(ctx, scanID)
		require.NoError(t, err)
		if state.Phase == PhaseResults {
			break
		}
	}
	report, err := r.Results(ctx, scanID)
	require.NoError(t, err)
	return report
}

func TestStartRepairsMissingIDColumn(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Post{}))
	// 历史遗留表结构：没有自增 id 列
	require.NoError(t, db.Exec("CREATE TABLE broadcast_data (blog_id integer, post_id integer, data text)").Error)

	seedPost(t, db, 1, 10)
	bd := linkdata.New()
	bd.AddLinkedChild(2, 20)
	raw, err := bd.Marshal()
	require.NoError(t, err)
	require.NoError(t, db.Exec(
		"INSERT INTO broadcast_data (blog_id, post_id, data) VALUES (?, ?, ?)",
		1, 10, string(raw)).Error)

	r := newRunnerFor(t, db, 10)
	ctx := context.Background()

	state, err := r.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, PhaseResults, state.Phase)
	require.Len(t, state.Anomalies, 1)
	assert.Equal(t, KindIDColumnMissing, state.Anomalies[0].Kind)

	report, err := r.Results(ctx, state.ID)
	require.NoError(t, err)
	assert.False(t, report.Clean)
	assert.Equal(t, 1, report.Counts[KindIDColumnMissing])

	// 自愈后 id 列存在且已回填，既有行能被正常枚举和检查
	var ids []int64
	require.NoError(t, db.Model(&model.BroadcastRow{}).Order("id").Pluck("id", &ids).Error)
	assert.Equal(t, []int64{1}, ids)

	report = runScan(t, r)
	assert.Equal(t, 1, report.TotalRows)
	require.Len(t, report.Anomalies, 1)
	assert.Equal(t, KindMissingChild, report.Anomalies[0].Kind)
}

func TestStepUnknownScan(t *testing.T) {
	r, _ := setupRunner(t, 10)
	_, err := r.Step(context.Background(), "no-such-scan")
	assert.ErrorIs(t, err, ErrScanNotFound)
}

func TestResultsBeforeFinishNotClean(t *testing.T) {
	r, db := setupRunner(t, 1)
	seedPost(t, db, 1, 1)
	seedRow(t, db, 1, 1, nil)

	state, err := r.Start(context.Background())
	require.NoError(t, err)

	report, err := r.Results(context.Background(), state.ID)
	require.NoError(t, err)
	assert.False(t, report.Clean)
	assert.Equal(t, PhaseCheckIDs, report.Phase)
}
