package repository

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/broadcast-link/internal/linkdata"
	"github.com/d60-Lab/broadcast-link/internal/model"
	"github.com/d60-Lab/broadcast-link/pkg/logger"
)

// BroadcastRepository 广播链路数据仓储。
// Get 对不存在的 (blog, post) 返回全新空记录；Put 只在记录 modified 时落库，
// 空记录按删除处理（见 linkdata.BroadcastData.IsEmpty）。
type BroadcastRepository interface {
	Get(ctx context.Context, blogID, postID int64) (*linkdata.BroadcastData, error)
	// GetMany 批量读取，按 post_id 返回；用于列表页避免逐行查询。
	// 无行的 post 不出现在结果里；规范行损坏的 post 归入 corrupt 返回，
	// 不能当作空记录，与单行 Get 的上抛口径保持一致。
	GetMany(ctx context.Context, blogID int64, postIDs []int64) (found map[int64]*linkdata.BroadcastData, corrupt []int64, err error)
	Put(ctx context.Context, blogID, postID int64, bd *linkdata.BroadcastData) error
	Delete(ctx context.Context, blogID, postID int64) error
}

type broadcastRepository struct {
	db *gorm.DB
}

func NewBroadcastRepository(db *gorm.DB) BroadcastRepository { return &broadcastRepository{db: db} }

func (r *broadcastRepository) Get(ctx context.Context, blogID, postID int64) (*linkdata.BroadcastData, error) {
	var row model.BroadcastRow
	err := r.db.WithContext(ctx).
		Where("blog_id = ? AND post_id = ?", blogID, postID).
		Order("id").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return linkdata.New(), nil
	}
	if err != nil {
		return nil, err
	}
	bd, err := linkdata.Unmarshal([]byte(row.Data))
	if err != nil {
		// 损坏载荷必须显式上抛，不能当空记录返回
		return nil, fmt.Errorf("broadcast row %d (blog %d post %d): %w", row.ID, blogID, postID, err)
	}
	bd.SetRowID(row.ID)
	return bd, nil
}

func (r *broadcastRepository) GetMany(ctx context.Context, blogID int64, postIDs []int64) (map[int64]*linkdata.BroadcastData, []int64, error) {
	out := make(map[int64]*linkdata.BroadcastData, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil, nil
	}
	var rows []model.BroadcastRow
	err := r.db.WithContext(ctx).
		Where("blog_id = ? AND post_id IN ?", blogID, postIDs).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}
	var corrupt []int64
	seen := make(map[int64]bool, len(postIDs))
	for _, row := range rows {
		if seen[row.PostID] {
			// 重复行：id 较小者为准，与一致性检查的判定保持一致
			continue
		}
		seen[row.PostID] = true
		bd, err := linkdata.Unmarshal([]byte(row.Data))
		if err != nil {
			logger.Warn("corrupt broadcast row in batch read",
				zap.Int64("row_id", row.ID), zap.Int64("blog_id", row.BlogID), zap.Int64("post_id", row.PostID))
			corrupt = append(corrupt, row.PostID)
			continue
		}
		bd.SetRowID(row.ID)
		out[row.PostID] = bd
	}
	return out, corrupt, nil
}

func (r *broadcastRepository) Put(ctx context.Context, blogID, postID int64, bd *linkdata.BroadcastData) error {
	if !bd.IsModified() {
		return nil
	}
	if bd.IsEmpty() {
		if err := r.Delete(ctx, blogID, postID); err != nil {
			return err
		}
		bd.SetRowID(0)
		bd.ClearModified()
		return nil
	}
	data, err := bd.Marshal()
	if err != nil {
		return err
	}
	if id := bd.RowID(); id != 0 {
		err = r.db.WithContext(ctx).
			Model(&model.BroadcastRow{}).
			Where("id = ?", id).
			Update("data", string(data)).Error
	} else {
		row := model.BroadcastRow{BlogID: blogID, PostID: postID, Data: string(data)}
		if err = r.db.WithContext(ctx).Create(&row).Error; err == nil {
			bd.SetRowID(row.ID)
		}
	}
	if err != nil {
		return err
	}
	bd.ClearModified()
	return nil
}

func (r *broadcastRepository) Delete(ctx context.Context, blogID, postID int64) error {
	return r.db.WithContext(ctx).
		Where("blog_id = ? AND post_id = ?", blogID, postID).
		Delete(&model.BroadcastRow{}).Error
}
