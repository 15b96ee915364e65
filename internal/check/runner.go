package check

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/broadcast-link/internal/linkdata"
	"github.com/d60-Lab/broadcast-link/internal/model"
	"github.com/d60-Lab/broadcast-link/pkg/logger"
)

// DefaultStepQuota 每步处理的行数上限
const DefaultStepQuota = 100

// Runner 一致性检查执行器。绕过请求级缓存直接读表（必须看见底层真实数据），
// 每次 Step 只处理有限配额的行，适合由轮询驱动。
//
// 单行的解码失败、文章缺失都只记异常不中断；只有存储本身不可用会让当前步骤
// 立即报错返回。
type Runner struct {
	db     *gorm.DB
	states StateStore
	quota  int
}

func NewRunner(db *gorm.DB, states StateStore, quota int) *Runner {
	if quota <= 0 {
		quota = DefaultStepQuota
	}
	return &Runner{db: db, states: states, quota: quota}
}

// Start 建立新扫描：校验表结构，枚举全部行 id（按 id 升序，保证
// "同键先插入者为准" 的重复判定），进入 check_ids 阶段。
// 缺少 id 列时记录异常并自愈（补列），随后直接进入 results。
func (r *Runner) Start(ctx context.Context) (*ScanState, error) {
	state := &ScanState{
		ID:        uuid.New().String(),
		Phase:     PhaseStart,
		Quota:     r.quota,
		Seen:      map[string]int64{},
		StartedAt: time.Now(),
	}

	hasID, err := r.hasIDColumn(ctx)
	if err != nil {
		return nil, fmt.Errorf("check: inspect schema: %w", err)
	}
	if !hasID {
		state.record(Anomaly{Kind: KindIDColumnMissing, Detail: "broadcast_data.id column missing, added"})
		if err := r.addIDColumn(ctx); err != nil {
			return nil, fmt.Errorf("check: add id column: %w", err)
		}
		state.Phase = PhaseResults
		now := time.Now()
		state.FinishedAt = &now
		if err := r.states.Save(ctx, state); err != nil {
			return nil, err
		}
		return state, nil
	}

	var ids []int64
	if err := r.db.WithContext(ctx).
		Model(&model.BroadcastRow{}).
		Order("id").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	state.PendingIDs = ids
	state.TotalRows = len(ids)
	state.Phase = PhaseCheckIDs
	if err := r.states.Save(ctx, state); err != nil {
		return nil, err
	}
	logger.Info("consistency scan started",
		zap.String("scan_id", state.ID), zap.Int("rows", state.TotalRows))
	return state, nil
}

// hasIDColumn 按实际列集合判断 id 列是否存在。不能用 Migrator().HasColumn：
// sqlite 方言靠匹配 sqlite_master 里的建表语句文本实现，blog_id / post_id
// 会让 "id" 恒为真。
func (r *Runner) hasIDColumn(ctx context.Context) (bool, error) {
	cols, err := r.db.WithContext(ctx).Migrator().ColumnTypes(&model.BroadcastRow{})
	if err != nil {
		return false, err
	}
	for _, col := range cols {
		if strings.EqualFold(col.Name(), "id") {
			return true, nil
		}
	}
	return false, nil
}

// addIDColumn 给 broadcast_data 补自增 id 列。sqlite 不允许 ALTER TABLE
// 追加主键列，退化为普通整型列并用内置 rowid 回填，保持既有行的插入顺序。
func (r *Runner) addIDColumn(ctx context.Context) error {
	db := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		return db.Exec("ALTER TABLE broadcast_data ADD COLUMN id BIGSERIAL PRIMARY KEY").Error
	}
	if err := db.Exec("ALTER TABLE broadcast_data ADD COLUMN id INTEGER").Error; err != nil {
		return err
	}
	return db.Exec("UPDATE broadcast_data SET id = rowid").Error
}

// Step 推进扫描一步（最多处理 quota 行），写回状态后返回。
// 已到 results 的扫描再 Step 是无害的 no-op。
func (r *Runner) Step(ctx context.Context, scanID string) (*ScanState, error) {
	state, err := r.states.Load(ctx, scanID)
	if err != nil {
		return nil, err
	}

	switch state.Phase {
	case PhaseCheckIDs:
		if err := r.stepCheckIDs(ctx, state); err != nil {
			return nil, err
		}
	case PhaseCheckRelations:
		if err := r.stepCheckRelations(ctx, state); err != nil {
			return nil, err
		}
	case PhaseResults:
		return state, nil
	default:
		return nil, fmt.Errorf("check: scan %s in unexpected phase %q", scanID, state.Phase)
	}

	if err := r.states.Save(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Results 返回汇总报告；扫描未到 results 阶段时 Clean 恒为 false。
func (r *Runner) Results(ctx context.Context, scanID string) (*Report, error) {
	state, err := r.states.Load(ctx, scanID)
	if err != nil {
		return nil, err
	}
	return buildReport(state), nil
}

func pairKey(blogID, postID int64) string {
	return fmt.Sprintf("%d:%d", blogID, postID)
}

// stepCheckIDs 逐行解码并做行级校验：损坏、重复、悬空（文章已删）。
// 通过校验的行进入 check_relations 队列。
func (r *Runner) stepCheckIDs(ctx context.Context, state *ScanState) error {
	n := state.Quota
	if n > len(state.PendingIDs) {
		n = len(state.PendingIDs)
	}
	batch := state.PendingIDs[:n]
	state.PendingIDs = state.PendingIDs[n:]

	for _, rowID := range batch {
		var row model.BroadcastRow
		err := r.db.WithContext(ctx).First(&row, rowID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 枚举之后被删掉了，不算异常
			continue
		}
		if err != nil {
			return err
		}

		if _, decodeErr := linkdata.Unmarshal([]byte(row.Data)); decodeErr != nil {
			state.record(Anomaly{
				Kind: KindBroken, RowID: row.ID,
				BlogID: row.BlogID, PostID: row.PostID,
				Detail: decodeErr.Error(),
			})
			continue
		}

		key := pairKey(row.BlogID, row.PostID)
		if canonical, dup := state.Seen[key]; dup {
			state.record(Anomaly{
				Kind: KindDuplicate, RowID: row.ID,
				BlogID: row.BlogID, PostID: row.PostID,
				Detail: fmt.Sprintf("canonical row %d", canonical),
			})
			continue
		}

		exists, err := r.postExists(ctx, row.BlogID, row.PostID)
		if err != nil {
			return err
		}
		if !exists {
			// 文章已物理删除但链路行残留；不再进入关系校验
			state.record(Anomaly{
				Kind: KindMissingPost, RowID: row.ID,
				BlogID: row.BlogID, PostID: row.PostID,
			})
			continue
		}

		state.Seen[key] = row.ID
		state.PendingRelations = append(state.PendingRelations, row.ID)
	}

	if len(state.PendingIDs) == 0 {
		state.Phase = PhaseCheckRelations
	}
	return nil
}

// stepCheckRelations 校验双向链接约定：父方必须回列本文章为子，
// 子方必须回指本文章为父。
func (r *Runner) stepCheckRelations(ctx context.Context, state *ScanState) error {
	n := state.Quota
	if n > len(state.PendingRelations) {
		n = len(state.PendingRelations)
	}
	batch := state.PendingRelations[:n]
	state.PendingRelations = state.PendingRelations[n:]

	for _, rowID := range batch {
		var row model.BroadcastRow
		err := r.db.WithContext(ctx).First(&row, rowID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		bd, decodeErr := linkdata.Unmarshal([]byte(row.Data))
		if decodeErr != nil {
			// check_ids 已经标记过，这里直接跳过
			continue
		}

		if parent, ok := bd.LinkedParent(); ok {
			if err := r.checkParentSide(ctx, state, &row, parent); err != nil {
				return err
			}
		}
		for childBlog, childPost := range bd.LinkedChildren() {
			if err := r.checkChildSide(ctx, state, &row, childBlog, childPost); err != nil {
				return err
			}
		}
	}

	if len(state.PendingRelations) == 0 {
		state.Phase = PhaseResults
		now := time.Now()
		state.FinishedAt = &now
		logger.Info("consistency scan finished",
			zap.String("scan_id", state.ID), zap.Int("anomalies", len(state.Anomalies)))
	}
	return nil
}

func (r *Runner) checkParentSide(ctx context.Context, state *ScanState, row *model.BroadcastRow, parent linkdata.PostRef) error {
	exists, err := r.postExists(ctx, parent.BlogID, parent.PostID)
	if err != nil {
		return err
	}
	if !exists {
		state.record(Anomaly{
			Kind: KindMissingParent, RowID: row.ID,
			BlogID: row.BlogID, PostID: row.PostID,
			OtherBlogID: parent.BlogID, OtherPostID: parent.PostID,
		})
		return nil
	}
	parentBD, found, err := r.loadPair(ctx, parent.BlogID, parent.PostID)
	if err != nil {
		return err
	}
	linked := false
	if found && parentBD != nil {
		if childPost, ok := parentBD.LinkedChildOnBlog(row.BlogID); ok && childPost == row.PostID {
			linked = true
		}
	}
	if !linked {
		state.record(Anomaly{
			Kind: KindParentUnlinked, RowID: row.ID,
			BlogID: row.BlogID, PostID: row.PostID,
			OtherBlogID: parent.BlogID, OtherPostID: parent.PostID,
		})
	}
	return nil
}

func (r *Runner) checkChildSide(ctx context.Context, state *ScanState, row *model.BroadcastRow, childBlog, childPost int64) error {
	exists, err := r.postExists(ctx, childBlog, childPost)
	if err != nil {
		return err
	}
	if !exists {
		state.record(Anomaly{
			Kind: KindMissingChild, RowID: row.ID,
			BlogID: row.BlogID, PostID: row.PostID,
			OtherBlogID: childBlog, OtherPostID: childPost,
		})
		return nil
	}
	childBD, found, err := r.loadPair(ctx, childBlog, childPost)
	if err != nil {
		return err
	}
	linked := false
	if found && childBD != nil {
		if parent, ok := childBD.LinkedParent(); ok &&
			parent.BlogID == row.BlogID && parent.PostID == row.PostID {
			linked = true
		}
	}
	if !linked {
		state.record(Anomaly{
			Kind: KindChildUnlinked, RowID: row.ID,
			BlogID: row.BlogID, PostID: row.PostID,
			OtherBlogID: childBlog, OtherPostID: childPost,
		})
	}
	return nil
}

// loadPair 直接读表取某 (blog, post) 的规范行（id 最小者）并解码。
// found 为 false 表示没有行；行存在但解码失败时返回 (nil, true, nil)，
// 该行自身的 broken 异常由 check_ids 阶段负责。
func (r *Runner) loadPair(ctx context.Context, blogID, postID int64) (*linkdata.BroadcastData, bool, error) {
	var row model.BroadcastRow
	err := r.db.WithContext(ctx).
		Where("blog_id = ? AND post_id = ?", blogID, postID).
		Order("id").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	bd, decodeErr := linkdata.Unmarshal([]byte(row.Data))
	if decodeErr != nil {
		return nil, true, nil
	}
	return bd, true, nil
}

func (r *Runner) postExists(ctx context.Context, blogID, postID int64) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).
		Model(&model.Post{}).
		Where("blog_id = ? AND id = ?", blogID, postID).
		Count(&cnt).Error
	if err != nil {
		return false, err
	}
	return cnt > 0, nil
}
