package model

import "time"

// 任务状态
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusDone       = "done"
)

// BroadcastJob 更新传播外发盒：父文章编辑后在同一事务内落一条 pending 任务，
// 由 Propagator 轮询认领并推送到各子文章。
type BroadcastJob struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)"`
	BlogID      int64     `gorm:"index:idx_job_post;not null"`
	PostID      int64     `gorm:"index:idx_job_post;not null"`
	CreatedAt   time.Time `gorm:"index"`
	Status      string    `gorm:"type:varchar(16);index"` // pending, processing, done
	ProcessedAt *time.Time
	ChildCount  int64
}

func (BroadcastJob) TableName() string { return "broadcast_jobs" }
