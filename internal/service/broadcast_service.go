package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/d60-Lab/broadcast-link/internal/cache"
	"github.com/d60-Lab/broadcast-link/internal/linkdata"
	"github.com/d60-Lab/broadcast-link/internal/model"
	"github.com/d60-Lab/broadcast-link/internal/repository"
)

var (
	ErrBroadcastToSelf = errors.New("cannot broadcast a post to its own blog")
	ErrNotLinked       = errors.New("post has no such link")
)

// BroadcastService 广播编排：复制文章与自定义字段到子博客，并通过请求级缓存
// 维护双向链接。缓存对象由调用方按工作单元构造并显式传入（一个请求一个）。
//
// 跨记录的双向一致性靠成对写入维持，不做多行事务；事后由一致性检查兜底，
// 与整体设计一致（行级原子即可）。
type BroadcastService interface {
	// Broadcast 把父文章推送到若干子博客，返回 child blog -> child post。
	// 已链接的子博客做覆盖更新而不是新建。
	Broadcast(ctx context.Context, cc *cache.BroadcastCache, parentBlog, parentPost int64, childBlogs []int64) (map[int64]int64, error)
	// UpdatePost 更新父文章并在同一事务内落传播任务（outbox）
	UpdatePost(ctx context.Context, blogID, postID int64, title, content string) error

	UnlinkChild(ctx context.Context, cc *cache.BroadcastCache, parentBlog, parentPost, childBlog int64) error
	UnlinkParent(ctx context.Context, cc *cache.BroadcastCache, childBlog, childPost int64) error
	UnlinkChildren(ctx context.Context, cc *cache.BroadcastCache, parentBlog, parentPost int64) error

	// Trash / Restore 状态传播到全部已链接子文章
	Trash(ctx context.Context, cc *cache.BroadcastCache, blogID, postID int64) error
	Restore(ctx context.Context, cc *cache.BroadcastCache, blogID, postID int64) error
	// Delete 物理删除文章：摘除两侧链接、删除本文章的链路行。
	// deleteChildren 为 true 时连子文章一并删除。
	Delete(ctx context.Context, cc *cache.BroadcastCache, blogID, postID int64, deleteChildren bool) error
}

type broadcastService struct {
	db         *gorm.DB
	posts      repository.PostRepository
	broadcasts repository.BroadcastRepository
}

func NewBroadcastService(db *gorm.DB, posts repository.PostRepository, broadcasts repository.BroadcastRepository) BroadcastService {
	return &broadcastService{db: db, posts: posts, broadcasts: broadcasts}
}

func (s *broadcastService) Broadcast(ctx context.Context, cc *cache.BroadcastCache, parentBlog, parentPost int64, childBlogs []int64) (map[int64]int64, error) {
	for _, childBlog := range childBlogs {
		if childBlog == parentBlog {
			return nil, ErrBroadcastToSelf
		}
	}
	parent, err := s.posts.Get(ctx, parentBlog, parentPost)
	if err != nil {
		return nil, err
	}
	metas, err := s.posts.ListMeta(ctx, parentBlog, parentPost)
	if err != nil {
		return nil, err
	}
	parentBD, err := cc.GetFor(ctx, parentBlog, parentPost)
	if err != nil {
		return nil, err
	}

	result := make(map[int64]int64, len(childBlogs))
	for _, childBlog := range childBlogs {
		childID, err := s.copyToBlog(ctx, parent, metas, parentBD, childBlog)
		if err != nil {
			return nil, err
		}
		parentBD.AddLinkedChild(childBlog, childID)

		childBD, err := cc.GetFor(ctx, childBlog, childID)
		if err != nil {
			return nil, err
		}
		childBD.SetLinkedParent(parentBlog, parentPost)
		if err := s.broadcasts.Put(ctx, childBlog, childID, childBD); err != nil {
			return nil, err
		}
		result[childBlog] = childID
	}

	if err := s.broadcasts.Put(ctx, parentBlog, parentPost, parentBD); err != nil {
		return nil, err
	}
	return result, nil
}

// copyToBlog 在子博客上创建或覆盖子文章并同步自定义字段
func (s *broadcastService) copyToBlog(ctx context.Context, parent *model.Post, metas []*model.PostMeta, parentBD *linkdata.BroadcastData, childBlog int64) (int64, error) {
	if childID, ok := parentBD.LinkedChildOnBlog(childBlog); ok {
		// 重复广播：覆盖已链接的子文章
		child, err := s.posts.Get(ctx, childBlog, childID)
		if err == nil {
			child.Title = parent.Title
			child.Content = parent.Content
			child.Status = parent.Status
			if err := s.posts.Update(ctx, child); err != nil {
				return 0, err
			}
			if err := s.posts.ReplaceMeta(ctx, childBlog, childID, metas); err != nil {
				return 0, err
			}
			return childID, nil
		}
		if !errors.Is(err, repository.ErrPostNotFound) {
			return 0, err
		}
		// 链接指向的子文章已不存在，走新建；残留链接由一致性检查上报
	}
	child := &model.Post{
		BlogID:  childBlog,
		Title:   parent.Title,
		Content: parent.Content,
		Status:  parent.Status,
	}
	if err := s.posts.Create(ctx, child); err != nil {
		return 0, err
	}
	if err := s.posts.ReplaceMeta(ctx, childBlog, child.ID, metas); err != nil {
		return 0, err
	}
	return child.ID, nil
}

func (s *broadcastService) UpdatePost(ctx context.Context, blogID, postID int64, title, content string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Post{}).
			Where("blog_id = ? AND id = ?", blogID, postID).
			Updates(map[string]any{"title": title, "content": content})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("blog %d post %d: %w", blogID, postID, repository.ErrPostNotFound)
		}
		job := &model.BroadcastJob{
			ID:        uuid.New().String(),
			BlogID:    blogID,
			PostID:    postID,
			CreatedAt: time.Now(),
			Status:    model.JobStatusPending,
		}
		return tx.Create(job).Error
	})
}

func (s *broadcastService) UnlinkChild(ctx context.Context, cc *cache.BroadcastCache, parentBlog, parentPost, childBlog int64) error {
	parentBD, err := cc.GetFor(ctx, parentBlog, parentPost)
	if err != nil {
		return err
	}
	childPost, ok := parentBD.LinkedChildOnBlog(childBlog)
	if !ok {
		return ErrNotLinked
	}
	parentBD.RemoveLinkedChild(childBlog)
	if err := s.broadcasts.Put(ctx, parentBlog, parentPost, parentBD); err != nil {
		return err
	}
	childBD, err := cc.GetFor(ctx, childBlog, childPost)
	if err != nil {
		return err
	}
	childBD.RemoveLinkedParent()
	return s.broadcasts.Put(ctx, childBlog, childPost, childBD)
}

func (s *broadcastService) UnlinkParent(ctx context.Context, cc *cache.BroadcastCache, childBlog, childPost int64) error {
	childBD, err := cc.GetFor(ctx, childBlog, childPost)
	if err != nil {
		return err
	}
	parent, ok := childBD.LinkedParent()
	if !ok {
		return ErrNotLinked
	}
	childBD.RemoveLinkedParent()
	if err := s.broadcasts.Put(ctx, childBlog, childPost, childBD); err != nil {
		return err
	}
	parentBD, err := cc.GetFor(ctx, parent.BlogID, parent.PostID)
	if err != nil {
		return err
	}
	parentBD.RemoveLinkedChild(childBlog)
	return s.broadcasts.Put(ctx, parent.BlogID, parent.PostID, parentBD)
}

func (s *broadcastService) UnlinkChildren(ctx context.Context, cc *cache.BroadcastCache, parentBlog, parentPost int64) error {
	parentBD, err := cc.GetFor(ctx, parentBlog, parentPost)
	if err != nil {
		return err
	}
	for childBlog, childPost := range parentBD.LinkedChildren() {
		childBD, err := cc.GetFor(ctx, childBlog, childPost)
		if err != nil {
			return err
		}
		childBD.RemoveLinkedParent()
		if err := s.broadcasts.Put(ctx, childBlog, childPost, childBD); err != nil {
			return err
		}
	}
	parentBD.RemoveLinkedChildren()
	return s.broadcasts.Put(ctx, parentBlog, parentPost, parentBD)
}

func (s *broadcastService) Trash(ctx context.Context, cc *cache.BroadcastCache, blogID, postID int64) error {
	return s.propagateStatus(ctx, cc, blogID, postID, model.PostStatusTrash)
}

func (s *broadcastService) Restore(ctx context.Context, cc *cache.BroadcastCache, blogID, postID int64) error {
	return s.propagateStatus(ctx, cc, blogID, postID, model.PostStatusPublish)
}

func (s *broadcastService) propagateStatus(ctx context.Context, cc *cache.BroadcastCache, blogID, postID int64, status string) error {
	if err := s.posts.UpdateStatus(ctx, blogID, postID, status); err != nil {
		return err
	}
	bd, err := cc.GetFor(ctx, blogID, postID)
	if err != nil {
		return err
	}
	for childBlog, childPost := range bd.LinkedChildren() {
		if err := s.posts.UpdateStatus(ctx, childBlog, childPost, status); err != nil {
			return err
		}
	}
	return nil
}

func (s *broadcastService) Delete(ctx context.Context, cc *cache.BroadcastCache, blogID, postID int64, deleteChildren bool) error {
	bd, err := cc.GetFor(ctx, blogID, postID)
	if err != nil {
		return err
	}

	// 子侧：摘掉各子文章的父指针（或连文章一起删）
	for childBlog, childPost := range bd.LinkedChildren() {
		childBD, err := cc.GetFor(ctx, childBlog, childPost)
		if err != nil {
			return err
		}
		childBD.RemoveLinkedParent()
		if err := s.broadcasts.Put(ctx, childBlog, childPost, childBD); err != nil {
			return err
		}
		if deleteChildren {
			if err := s.posts.Delete(ctx, childBlog, childPost); err != nil {
				return err
			}
			if err := s.broadcasts.Delete(ctx, childBlog, childPost); err != nil {
				return err
			}
			cc.SetFor(childBlog, childPost, linkdata.New())
		}
	}

	// 父侧：从父记录的子表里摘掉本文章
	if parent, ok := bd.LinkedParent(); ok {
		parentBD, err := cc.GetFor(ctx, parent.BlogID, parent.PostID)
		if err != nil {
			return err
		}
		parentBD.RemoveLinkedChild(blogID)
		if err := s.broadcasts.Put(ctx, parent.BlogID, parent.PostID, parentBD); err != nil {
			return err
		}
	}

	if err := s.posts.Delete(ctx, blogID, postID); err != nil {
		return err
	}
	// 文章物理删除后链路行无条件删除
	if err := s.broadcasts.Delete(ctx, blogID, postID); err != nil {
		return err
	}
	cc.SetFor(blogID, postID, linkdata.New())
	return nil
}
