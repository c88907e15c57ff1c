// 包 model 定义书单记录、抓取得到的部分字段以及合并规则。
package model

// 连载状态。除下列取值外，抓取到的其他标签原样保存。
const (
	StatusOngoing   = "连载中"
	StatusCompleted = "已完结"
	// StatusRemoved 表示源站确认书籍已不存在（404 或下架页面）。
	StatusRemoved = "已下架"
)

// WaitingBook 为尚未开始上传的书。
type WaitingBook struct {
	VITitle         string  `json:"vi_title"`
	DesiredChapters int     `json:"desired_chapters"`
	FanqieID        string  `json:"fanqie_id"`
	CurrentChapters *int    `json:"current_chapters"`
	Status          *string `json:"status"`
	LastUpdated     *string `json:"last_updated"`
}

// UploadingBook 为正在上传的书。
// UploadedChapters 只由外部命令维护，抓取流程从不写入。
type UploadingBook struct {
	VITitle          *string `json:"vi_title"`
	WikiID           *string `json:"wiki_id"`
	FanqieID         string  `json:"fanqie_id"`
	UploadedChapters int     `json:"uploaded_chapters"`
	FanqieChapters   *int    `json:"fanqie_chapters"`
	Status           *string `json:"status"`
	LastUpdated      *string `json:"last_updated"`
}

// Partial 为一次书页抓取得到的字段，nil 表示本次未观察到。
type Partial struct {
	Chapters    *int
	Status      *string
	LastUpdated *string
}

// WikiPartial 为一次 wiki 页面抓取得到的字段。
type WikiPartial struct {
	Title *string
}

// Removed 返回仅携带下架状态的 Partial。
func Removed() Partial {
	return Partial{Status: String(StatusRemoved)}
}

// IsRemoved 判断 Partial 是否为下架结果。
func (p Partial) IsRemoved() bool {
	return p.Status != nil && *p.Status == StatusRemoved
}

// Empty 表示页面中没有找到任何预期字段。
func (p Partial) Empty() bool {
	return p.Chapters == nil && p.Status == nil && p.LastUpdated == nil
}

// Apply 按字段合并：只有非 nil 的字段覆盖原值。
func (b *WaitingBook) Apply(p Partial) {
	mergeInt(&b.CurrentChapters, p.Chapters)
	mergeString(&b.Status, p.Status)
	mergeString(&b.LastUpdated, p.LastUpdated)
}

// Apply 合并书页字段；章节数写入 FanqieChapters。
func (b *UploadingBook) Apply(p Partial) {
	mergeInt(&b.FanqieChapters, p.Chapters)
	mergeString(&b.Status, p.Status)
	mergeString(&b.LastUpdated, p.LastUpdated)
}

// ApplyWiki 合并 wiki 标题。
func (b *UploadingBook) ApplyWiki(p WikiPartial) {
	mergeString(&b.VITitle, p.Title)
}

// NeedsTitle 判断是否需要补抓 wiki 标题：有 wiki_id 且尚无标题。
func (b *UploadingBook) NeedsTitle() bool {
	return b.WikiID != nil && *b.WikiID != "" && (b.VITitle == nil || *b.VITitle == "")
}

func mergeInt(dst **int, src *int) {
	if src == nil {
		return
	}
	v := *src
	*dst = &v
}

func mergeString(dst **string, src *string) {
	if src == nil {
		return
	}
	v := *src
	*dst = &v
}

// String 返回 s 的指针。
func String(s string) *string { return &s }
// Int 返回 n 的指针。
func Int(n int) *int          { return &n }

// Deref 返回指针指向的值，nil 时返回零值，便于日志与表格输出。
func Deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
