package model

// PostMeta 文章自定义字段（随广播整体复制到子文章）
// idx_meta_post = (blog_id, post_id)
type PostMeta struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	BlogID    int64  `gorm:"index:idx_meta_post;not null"`
	PostID    int64  `gorm:"index:idx_meta_post;not null"`
	MetaKey   string `gorm:"type:varchar(255)"`
	MetaValue string `gorm:"type:text"`
}

func (PostMeta) TableName() string { return "post_meta" }
