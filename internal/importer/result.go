package importer

import (
	"sort"
	"time"
)

// Stat 是一类对象的变更计数。
type Stat struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

// Result 是一次成功导入的统计信息。
type Result struct {
	RunID     string           `json:"run_id"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration"`
	Stats     map[string]*Stat `json:"stats"`
}

func newResult(runID string) *Result {
	return &Result{RunID: runID, StartedAt: time.Now(), Stats: make(map[string]*Stat)}
}

func (r *Result) stat(kind string) *Stat {
	s, ok := r.Stats[kind]
	if !ok {
		s = &Stat{}
		r.Stats[kind] = s
	}
	return s
}

// Totals 汇总全部类型的计数。
func (r *Result) Totals() Stat {
	var total Stat
	for _, s := range r.Stats {
		total.Created += s.Created
		total.Updated += s.Updated
		total.Deleted += s.Deleted
	}
	return total
}

// Kinds 返回有计数的对象类型，按名称排序。
func (r *Result) Kinds() []string {
	out := make([]string, 0, len(r.Stats))
	for k := range r.Stats {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// 统计中使用的对象类型名。
const (
	KindGroups            = "groups"
	KindTemplates         = "templates"
	KindHosts             = "hosts"
	KindMacros            = "macros"
	KindApplications      = "applications"
	KindItems             = "items"
	KindDiscoveryRules    = "discoveryRules"
	KindItemPrototypes    = "itemPrototypes"
	KindHostPrototypes    = "hostPrototypes"
	KindTriggers          = "triggers"
	KindTriggerPrototypes = "triggerPrototypes"
	KindGraphs            = "graphs"
	KindGraphPrototypes   = "graphPrototypes"
	KindImages            = "images"
	KindMaps              = "maps"
	KindScreens           = "screens"
	KindTemplateScreens   = "templateScreens"
)
