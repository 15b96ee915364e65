package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/broadcast-link/internal/cache"
	"github.com/d60-Lab/broadcast-link/internal/model"
	"github.com/d60-Lab/broadcast-link/internal/repository"
	"github.com/d60-Lab/broadcast-link/pkg/logger"
)

// Propagator 从 broadcast_jobs 外发盒认领任务，把父文章的最新内容
// 推送到全部已链接的子文章。每个任务是一个独立工作单元，使用自己的缓存。
type Propagator struct {
	db         *gorm.DB
	posts      repository.PostRepository
	broadcasts repository.BroadcastRepository

	workers      int
	claimLimit   int
	pollInterval time.Duration
}

func NewPropagator(db *gorm.DB, posts repository.PostRepository, broadcasts repository.BroadcastRepository, workers, claimLimit int, pollInterval time.Duration) *Propagator {
	if workers <= 0 {
		workers = 2
	}
	if claimLimit <= 0 {
		claimLimit = 32
	}
	if pollInterval <= 0 {
		pollInterval = 200 * time.Millisecond
	}
	return &Propagator{
		db: db, posts: posts, broadcasts: broadcasts,
		workers: workers, claimLimit: claimLimit, pollInterval: pollInterval,
	}
}

// Start 启动轮询 worker；返回停止函数。
func (p *Propagator) Start() func(context.Context) error {
	stop := make(chan struct{})
	for i := 0; i < p.workers; i++ {
		go p.loop(stop)
	}
	return func(ctx context.Context) error { close(stop); return nil }
}

func (p *Propagator) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := p.ProcessOnce(context.Background()); err != nil {
				logger.Warn("propagator pass failed", zap.Error(err))
			}
		}
	}
}

// ProcessOnce 认领一批 pending 任务并处理，返回处理的任务数。
// 认领用 FOR UPDATE SKIP LOCKED，多实例下同一任务不会被处理两次。
func (p *Propagator) ProcessOnce(ctx context.Context) (int, error) {
	type job struct {
		ID     string
		BlogID int64
		PostID int64
	}
	claimSQL := `
		SELECT id, blog_id, post_id
		FROM broadcast_jobs
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT ?`
	if p.db.Dialector.Name() == "postgres" {
		claimSQL += " FOR UPDATE SKIP LOCKED"
	}

	var batch []job
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Raw(claimSQL, p.claimLimit).Scan(&batch).Error; err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		ids := make([]string, len(batch))
		for i, b := range batch {
			ids[i] = b.ID
		}
		return tx.Model(&model.BroadcastJob{}).
			Where("id IN ?", ids).
			Update("status", model.JobStatusProcessing).Error
	})
	if err != nil {
		return 0, err
	}

	for _, b := range batch {
		count, err := p.propagate(ctx, b.BlogID, b.PostID)
		if err != nil {
			logger.Warn("propagate failed, job left in processing",
				zap.String("job_id", b.ID),
				zap.Int64("blog_id", b.BlogID), zap.Int64("post_id", b.PostID),
				zap.Error(err))
			continue
		}
		now := time.Now()
		if err := p.db.WithContext(ctx).Model(&model.BroadcastJob{}).
			Where("id = ?", b.ID).
			Updates(map[string]any{
				"status": model.JobStatusDone, "processed_at": now, "child_count": count,
			}).Error; err != nil {
			return 0, err
		}
	}
	return len(batch), nil
}

// propagate 把 (blogID, postID) 的当前内容覆盖到每个已链接子文章
func (p *Propagator) propagate(ctx context.Context, blogID, postID int64) (int64, error) {
	cc := cache.NewBroadcastCache(p.broadcasts)
	bd, err := cc.GetFor(ctx, blogID, postID)
	if err != nil {
		return 0, err
	}
	if !bd.HasLinkedChildren() {
		return 0, nil
	}
	parent, err := p.posts.Get(ctx, blogID, postID)
	if err != nil {
		return 0, err
	}
	metas, err := p.posts.ListMeta(ctx, blogID, postID)
	if err != nil {
		return 0, err
	}

	var count int64
	for childBlog, childPost := range bd.LinkedChildren() {
		child, err := p.posts.Get(ctx, childBlog, childPost)
		if errors.Is(err, repository.ErrPostNotFound) {
			// 子文章失踪属于链路异常，由一致性检查上报，这里跳过
			logger.Warn("linked child missing during propagation",
				zap.Int64("child_blog", childBlog), zap.Int64("child_post", childPost))
			continue
		}
		if err != nil {
			return count, err
		}
		child.Title = parent.Title
		child.Content = parent.Content
		if err := p.posts.Update(ctx, child); err != nil {
			return count, err
		}
		if err := p.posts.ReplaceMeta(ctx, childBlog, childPost, metas); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
