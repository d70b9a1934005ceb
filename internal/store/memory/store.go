package memory

import (
	"context"
	"fmt"

	"confimport/internal/domain"
	"confimport/internal/store"
)

// TriggerTable 在 Table 的基础上支持设置依赖。
type TriggerTable struct {
	*Table[domain.Trigger, *domain.Trigger]
}

// SetDependencies 覆盖每个触发器的依赖列表，被依赖的触发器必须存在。
func (t *TriggerTable) SetDependencies(ctx context.Context, deps []domain.TriggerDependency) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, dep := range deps {
		if _, ok := t.rows[dep.TriggerID]; !ok {
			return fmt.Errorf("设置触发器依赖失败: id %q 不存在", dep.TriggerID)
		}
		for _, target := range dep.DependsOn {
			if _, ok := t.rows[target]; !ok {
				return fmt.Errorf("设置触发器依赖失败: 被依赖的 id %q 不存在", target)
			}
		}
	}
	for _, dep := range deps {
		row := t.rows[dep.TriggerID]
		row.DependencyIDs = append([]string(nil), dep.DependsOn...)
		t.rows[dep.TriggerID] = row
	}
	return nil
}

// Store 是全部实体表的集合。
type Store struct {
	Groups          *Table[domain.Group, *domain.Group]
	Templates       *Table[domain.Template, *domain.Template]
	Hosts           *Table[domain.Host, *domain.Host]
	Macros          *Table[domain.Macro, *domain.Macro]
	Proxies         *Table[domain.Proxy, *domain.Proxy]
	ValueMaps       *Table[domain.ValueMap, *domain.ValueMap]
	IconMaps        *Table[domain.IconMap, *domain.IconMap]
	Applications    *Table[domain.Application, *domain.Application]
	Items           *Table[domain.Item, *domain.Item]
	HostPrototypes  *Table[domain.HostPrototype, *domain.HostPrototype]
	Triggers        *TriggerTable
	Graphs          *Table[domain.Graph, *domain.Graph]
	Images          *Table[domain.Image, *domain.Image]
	Maps            *Table[domain.Map, *domain.Map]
	Screens         *Table[domain.Screen, *domain.Screen]
	TemplateScreens *Table[domain.Screen, *domain.Screen]
}

// New 创建空的内存存储。
func New() *Store {
	return &Store{
		Groups:          NewTable[domain.Group]("groups"),
		Templates:       NewTable[domain.Template]("templates"),
		Hosts:           NewTable[domain.Host]("hosts"),
		Macros:          NewTable[domain.Macro]("macros"),
		Proxies:         NewTable[domain.Proxy]("proxies"),
		ValueMaps:       NewTable[domain.ValueMap]("value maps"),
		IconMaps:        NewTable[domain.IconMap]("icon maps"),
		Applications:    NewTable[domain.Application]("applications"),
		Items:           NewTable[domain.Item]("items"),
		HostPrototypes:  NewTable[domain.HostPrototype]("host prototypes"),
		Triggers:        &TriggerTable{Table: NewTable[domain.Trigger]("triggers")},
		Graphs:          NewTable[domain.Graph]("graphs"),
		Images:          NewTable[domain.Image]("images"),
		Maps:            NewTable[domain.Map]("maps"),
		Screens:         NewTable[domain.Screen]("screens"),
		TemplateScreens: NewTable[domain.Screen]("template screens"),
	}
}

// Services 返回面向导入引擎的服务集合。
func (s *Store) Services() store.Services {
	return store.Services{
		Groups:          s.Groups,
		Templates:       s.Templates,
		Hosts:           s.Hosts,
		Macros:          s.Macros,
		Proxies:         s.Proxies,
		ValueMaps:       s.ValueMaps,
		IconMaps:        s.IconMaps,
		Applications:    s.Applications,
		Items:           s.Items,
		HostPrototypes:  s.HostPrototypes,
		Triggers:        s.Triggers,
		Graphs:          s.Graphs,
		Images:          s.Images,
		Maps:            s.Maps,
		Screens:         s.Screens,
		TemplateScreens: s.TemplateScreens,
	}
}

// InTx 在 fn 失败时把全部表恢复到调用前的状态。期间不能有其他写入方。
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tables := []interface{ snapshot() func() }{
		s.Groups, s.Templates, s.Hosts, s.Macros, s.Proxies, s.ValueMaps, s.IconMaps,
		s.Applications, s.Items, s.HostPrototypes, s.Triggers, s.Graphs, s.Images,
		s.Maps, s.Screens, s.TemplateScreens,
	}
	restores := make([]func(), 0, len(tables))
	for _, t := range tables {
		restores = append(restores, t.snapshot())
	}
	if err := fn(ctx); err != nil {
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}

// Close 内存存储无需释放资源。
func (s *Store) Close(ctx context.Context) error {
	return nil
}
