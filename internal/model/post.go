package model

import "time"

// 文章状态
const (
	PostStatusPublish = "publish"
	PostStatusDraft   = "draft"
	PostStatusTrash   = "trash"
)

// Post 文章主体（按 blog_id 分租户；仅保留广播所需字段）
type Post struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	BlogID    int64  `gorm:"index:idx_post_blog;not null"`
	Title     string `gorm:"type:varchar(255)"`
	Content   string `gorm:"type:text"`
	Status    string `gorm:"type:varchar(16);index;default:publish"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Post) TableName() string { return "posts" }
