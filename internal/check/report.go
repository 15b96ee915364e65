package check

import "time"

// Phase 扫描状态机所处阶段
type Phase string

const (
	PhaseStart          Phase = "start"
	PhaseCheckIDs       Phase = "check_ids"
	PhaseCheckRelations Phase = "check_relations"
	PhaseResults        Phase = "results"
)

// Kind 异常类别；除 id_column_missing 外一律只上报不修复，
// 修复策略（删链接还是重建文章）不在本组件职权内。
type Kind string

const (
	KindBroken          Kind = "broken"             // 载荷无法解码
	KindDuplicate       Kind = "duplicate"          // 同一 (blog, post) 出现多行，id 较小者为准
	KindMissingPost     Kind = "missing_post"       // 行指向的文章已被物理删除
	KindMissingParent   Kind = "missing_parent"     // 父指针指向不存在的文章
	KindParentUnlinked  Kind = "parent_is_unlinked" // 父记录未回指本文章
	KindMissingChild    Kind = "missing_child"      // 子指针指向不存在的文章
	KindChildUnlinked   Kind = "child_is_unlinked"  // 子记录未回指本文章
	KindIDColumnMissing Kind = "id_column_missing"  // 表缺少自增主键列（start 阶段自愈）
)

// Anomaly 单条异常，携带足够定位信息供人工处置
type Anomaly struct {
	Kind        Kind   `json:"kind"`
	RowID       int64  `json:"row_id,omitempty"`
	BlogID      int64  `json:"blog_id,omitempty"`
	PostID      int64  `json:"post_id,omitempty"`
	OtherBlogID int64  `json:"other_blog_id,omitempty"`
	OtherPostID int64  `json:"other_post_id,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// ScanState 扫描的全部可恢复状态，步与步之间整体持久化，
// 因此轮询方可以停在任意一步之后再继续。
type ScanState struct {
	ID               string           `json:"id"`
	Phase            Phase            `json:"phase"`
	Quota            int              `json:"quota"`
	PendingIDs       []int64          `json:"pending_ids"`
	PendingRelations []int64          `json:"pending_relations"`
	Seen             map[string]int64 `json:"seen"` // "blog:post" -> canonical row id
	Anomalies        []Anomaly        `json:"anomalies"`
	TotalRows        int              `json:"total_rows"`
	StartedAt        time.Time        `json:"started_at"`
	FinishedAt       *time.Time       `json:"finished_at,omitempty"`
}

// Remaining 剩余待处理条目数（两个队列之和）
func (s *ScanState) Remaining() int {
	return len(s.PendingIDs) + len(s.PendingRelations)
}

func (s *ScanState) record(a Anomaly) {
	s.Anomalies = append(s.Anomalies, a)
}

// Report 终态汇总：按类别计数 + 全量异常明细
type Report struct {
	ScanID    string       `json:"scan_id"`
	Phase     Phase        `json:"phase"`
	Clean     bool         `json:"clean"`
	TotalRows int          `json:"total_rows"`
	Counts    map[Kind]int `json:"counts"`
	Anomalies []Anomaly    `json:"anomalies"`
}

func buildReport(s *ScanState) *Report {
	rep := &Report{
		ScanID:    s.ID,
		Phase:     s.Phase,
		Clean:     s.Phase == PhaseResults && len(s.Anomalies) == 0,
		TotalRows: s.TotalRows,
		Counts:    map[Kind]int{},
		Anomalies: s.Anomalies,
	}
	for _, a := range s.Anomalies {
		rep.Counts[a.Kind]++
	}
	return rep
}
