// 包 ledger 维护重试台账：上一次抓取在重试耗尽后仍失败的书籍 ID 集合。
// 台账不是累积日志，持久化的内容始终是"下次运行需要重试的书"。
package ledger

// Ledger 为保持插入顺序的 ID 集合。零值不可用，请使用 New。
type Ledger struct {
	ids   []string
	index map[string]int
}

// New 以给定 ID 创建台账，重复与空 ID 会被忽略。
func New(ids ...string) *Ledger {
	l := &Ledger{index: make(map[string]int, len(ids))}
	for _, id := range ids {
		l.Add(id)
	}
	return l
}

// Has 判断 id 是否在台账中。
func (l *Ledger) Has(id string) bool {
	if l == nil {
		return false
	}
	_, ok := l.index[id]
	return ok
}

// Add 追加 ID；已存在时保持原有位置。
func (l *Ledger) Add(id string) {
	if id == "" || l.Has(id) {
		return
	}
	l.index[id] = len(l.ids)
	l.ids = append(l.ids, id)
}

// Remove 删除 ID，不存在时无操作。
func (l *Ledger) Remove(id string) {
	i, ok := l.index[id]
	if !ok {
		return
	}
	l.ids = append(l.ids[:i], l.ids[i+1:]...)
	delete(l.index, id)
	for j := i; j < len(l.ids); j++ {
		l.index[l.ids[j]] = j
	}
}

// IDs 返回副本，顺序为插入顺序。
func (l *Ledger) IDs() []string {
	if l == nil {
		return []string{}
	}
	out := make([]string, len(l.ids))
	copy(out, l.ids)
	return out
}

// Len 返回台账中的 id 数量。
func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	return len(l.ids)
}

// Close 计算一轮结束后的台账：(prev ∪ failed) \ cleared。
// 结果先保留 prev 的顺序，再按出现顺序追加新失败的 ID。
func Close(prev *Ledger, failed, cleared []string) *Ledger {
	next := New(prev.IDs()...)
	for _, id := range failed {
		next.Add(id)
	}
	for _, id := range cleared {
		next.Remove(id)
	}
	return next
}
