package linkdata

// PostRef 指向某个博客上的一篇文章
type PostRef struct {
	BlogID int64 `json:"blog_id"`
	PostID int64 `json:"post_id"`
}

// BroadcastData 一篇文章的广播链路数据：最多一个父指针，每个子博客最多一个子指针。
// 所有操作均为内存操作；modified 标记用于存储层跳过无效写入。
type BroadcastData struct {
	version  int
	parent   *PostRef
	children map[int64]int64 // child blog id -> child post id

	rowID    int64 // 落库后的自增主键，0 表示尚未持久化
	modified bool
}

// New 构造一条空记录（无父无子，version=CurrentVersion）。
func New() *BroadcastData {
	return &BroadcastData{version: CurrentVersion, children: map[int64]int64{}}
}

func (d *BroadcastData) Version() int { return d.version }

// RowID 返回存储层的自增主键；未持久化时为 0。
func (d *BroadcastData) RowID() int64      { return d.rowID }
func (d *BroadcastData) SetRowID(id int64) { d.rowID = id }

// LinkedParent 返回父指针；第二个返回值表示是否存在。
func (d *BroadcastData) LinkedParent() (PostRef, bool) {
	if d.parent == nil {
		return PostRef{}, false
	}
	return *d.parent, true
}

// SetLinkedParent 覆盖父指针
func (d *BroadcastData) SetLinkedParent(blogID, postID int64) {
	d.parent = &PostRef{BlogID: blogID, PostID: postID}
	d.modified = true
}

// RemoveLinkedParent 清除父指针；即使原本没有也会置 modified
func (d *BroadcastData) RemoveLinkedParent() {
	d.parent = nil
	d.modified = true
}

// LinkedChildren 返回子指针映射的拷贝，调用方修改不影响记录本身。
func (d *BroadcastData) LinkedChildren() map[int64]int64 {
	out := make(map[int64]int64, len(d.children))
	for b, p := range d.children {
		out[b] = p
	}
	return out
}

// AddLinkedChild 新增或覆盖某个子博客的子指针（同一博客重复广播不产生重复项）
func (d *BroadcastData) AddLinkedChild(blogID, postID int64) {
	d.children[blogID] = postID
	d.modified = true
}

// RemoveLinkedChild 删除某个子博客的子指针
func (d *BroadcastData) RemoveLinkedChild(blogID int64) {
	delete(d.children, blogID)
	d.modified = true
}

// RemoveLinkedChildren 清空全部子指针
func (d *BroadcastData) RemoveLinkedChildren() {
	d.children = map[int64]int64{}
	d.modified = true
}

func (d *BroadcastData) HasLinkedChildren() bool { return len(d.children) > 0 }

// HasLinkedChildOnBlog 该子博客上是否已有链接的子文章
func (d *BroadcastData) HasLinkedChildOnBlog(blogID int64) bool {
	_, ok := d.children[blogID]
	return ok
}

// LinkedChildOnBlog 返回该子博客上链接的子文章 ID
func (d *BroadcastData) LinkedChildOnBlog(blogID int64) (int64, bool) {
	p, ok := d.children[blogID]
	return p, ok
}

// IsModified 自构造/加载以来是否调用过任何修改操作
func (d *BroadcastData) IsModified() bool { return d.modified }

// ClearModified 写回成功后由存储层调用
func (d *BroadcastData) ClearModified() { d.modified = false }

// IsEmpty 无父无子即为空记录；空记录持久化时按删除处理（见存储层）
func (d *BroadcastData) IsEmpty() bool {
	return d.parent == nil && len(d.children) == 0
}
