package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/d60-Lab/broadcast-link/internal/model"
)

// ErrPostNotFound 文章不存在；Get 统一上抛此错误，服务层和 handler 用它判断
var ErrPostNotFound = errors.New("post not found")

// PostRepository 文章仓储。存在性检查是链路校验的协作接口：
// 回收站中的文章仍视为存在，只有物理删除才算不存在。
type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	Get(ctx context.Context, blogID, postID int64) (*model.Post, error)
	Exists(ctx context.Context, blogID, postID int64) (bool, error)
	Update(ctx context.Context, post *model.Post) error
	UpdateStatus(ctx context.Context, blogID, postID int64, status string) error
	Delete(ctx context.Context, blogID, postID int64) error
	List(ctx context.Context, blogID int64, offset, limit int) ([]*model.Post, error)

	ListMeta(ctx context.Context, blogID, postID int64) ([]*model.PostMeta, error)
	// ReplaceMeta 先清后写，保证子文章字段与父文章一致
	ReplaceMeta(ctx context.Context, blogID, postID int64, metas []*model.PostMeta) error
}

type postRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository { return &postRepository{db: db} }

func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *postRepository) Get(ctx context.Context, blogID, postID int64) (*model.Post, error) {
	var post model.Post
	err := r.db.WithContext(ctx).
		Where("blog_id = ? AND id = ?", blogID, postID).
		First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("blog %d post %d: %w", blogID, postID, ErrPostNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) Exists(ctx context.Context, blogID, postID int64) (bool, error) {
	var cnt int64
	if err := r.db.WithContext(ctx).
		Model(&model.Post{}).
		Where("blog_id = ? AND id = ?", blogID, postID).
		Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (r *postRepository) Update(ctx context.Context, post *model.Post) error {
	return r.db.WithContext(ctx).Save(post).Error
}

func (r *postRepository) UpdateStatus(ctx context.Context, blogID, postID int64, status string) error {
	return r.db.WithContext(ctx).
		Model(&model.Post{}).
		Where("blog_id = ? AND id = ?", blogID, postID).
		Update("status", status).Error
}

func (r *postRepository) Delete(ctx context.Context, blogID, postID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("blog_id = ? AND post_id = ?", blogID, postID).
			Delete(&model.PostMeta{}).Error; err != nil {
			return err
		}
		return tx.Where("blog_id = ? AND id = ?", blogID, postID).
			Delete(&model.Post{}).Error
	})
}

func (r *postRepository) List(ctx context.Context, blogID int64, offset, limit int) ([]*model.Post, error) {
	var res []*model.Post
	err := r.db.WithContext(ctx).
		Where("blog_id = ?", blogID).
		Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&res).Error
	return res, err
}

func (r *postRepository) ListMeta(ctx context.Context, blogID, postID int64) ([]*model.PostMeta, error) {
	var res []*model.PostMeta
	err := r.db.WithContext(ctx).
		Where("blog_id = ? AND post_id = ?", blogID, postID).
		Order("id").
		Find(&res).Error
	return res, err
}

func (r *postRepository) ReplaceMeta(ctx context.Context, blogID, postID int64, metas []*model.PostMeta) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("blog_id = ? AND post_id = ?", blogID, postID).
			Delete(&model.PostMeta{}).Error; err != nil {
			return err
		}
		if len(metas) == 0 {
			return nil
		}
		rows := make([]model.PostMeta, 0, len(metas))
		for _, m := range metas {
			rows = append(rows, model.PostMeta{
				BlogID:    blogID,
				PostID:    postID,
				MetaKey:   m.MetaKey,
				MetaValue: m.MetaValue,
			})
		}
		return tx.Create(&rows).Error
	})
}

