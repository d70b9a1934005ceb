package importer

import "sort"

// Ledger 记录本次导入实际创建或更新过的主机与模板。
// 删除缺失对象与子对象处理都只作用于这里登记过的宿主。
type Ledger struct {
	hosts     map[string]struct{}
	templates map[string]struct{}
}

func NewLedger() *Ledger {
	return &Ledger{hosts: make(map[string]struct{}), templates: make(map[string]struct{})}
}

func (l *Ledger) AddHostIDs(ids ...string) {
	for _, id := range ids {
		l.hosts[id] = struct{}{}
	}
}

func (l *Ledger) AddTemplateIDs(ids ...string) {
	for _, id := range ids {
		l.templates[id] = struct{}{}
	}
}

func (l *Ledger) HostIDs() []string     { return keys(l.hosts) }
func (l *Ledger) TemplateIDs() []string { return keys(l.templates) }

func (l *Ledger) IsHostProcessed(id string) bool {
	_, ok := l.hosts[id]
	return ok
}

func (l *Ledger) IsTemplateProcessed(id string) bool {
	_, ok := l.templates[id]
	return ok
}

// IsProcessed 判断 id 是否是已处理的主机或模板。
func (l *Ledger) IsProcessed(id string) bool {
	return l.IsHostProcessed(id) || l.IsTemplateProcessed(id)
}

// OwnerIDs 返回全部已处理的主机与模板 id。
func (l *Ledger) OwnerIDs() []string {
	out := append(l.HostIDs(), l.TemplateIDs()...)
	sort.Strings(out)
	return out
}

// Covers 判断 ids 是否全部属于已处理的宿主，空集合不算被覆盖。
func (l *Ledger) Covers(ids []string) bool {
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		if !l.IsProcessed(id) {
			return false
		}
	}
	return true
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
