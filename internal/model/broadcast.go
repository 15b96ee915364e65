package model

// BroadcastRow 广播链路数据行，每个 (blog_id, post_id) 应当只有一行。
// 复合索引刻意不加唯一约束：重复行是可检测的异常态，由一致性检查上报，
// 不由 schema 拦截（与历史数据兼容）。
// idx_broadcast_pair = (blog_id, post_id)
type BroadcastRow struct {
	ID     int64  `gorm:"primaryKey;autoIncrement"`
	BlogID int64  `gorm:"index:idx_broadcast_pair;not null"`
	PostID int64  `gorm:"index:idx_broadcast_pair;not null"`
	Data   string `gorm:"type:text"`
}

func (BroadcastRow) TableName() string { return "broadcast_data" }
