package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"confimport/internal/adapter"
	"confimport/internal/domain"
	"confimport/internal/expression"
	"confimport/internal/store"
	"confimport/internal/store/memory"
)

// countingItems 统计监控项服务的 Get 调用次数。
type countingItems struct {
	store.Service[*domain.Item]
	gets int
}

func (c *countingItems) Get(ctx context.Context, filter store.Filter) ([]*domain.Item, error) {
	c.gets++
	return c.Service.Get(ctx, filter)
}

// failingGraphs 让图形的创建调用总是失败。
type failingGraphs struct {
	store.Service[*domain.Graph]
	err error
}

func (f *failingGraphs) Create(ctx context.Context, records []*domain.Graph) ([]string, error) {
	return nil, f.err
}

func refs(names ...string) []domain.NameRef {
	out := make([]domain.NameRef, 0, len(names))
	for _, n := range names {
		out = append(out, domain.NameRef{Name: n})
	}
	return out
}

func rulesWith(p Policy) Rules {
	rules := make(Rules, len(domain.EntityTypes))
	for _, t := range domain.EntityTypes {
		rules[t] = p
	}
	return rules
}

func run(t *testing.T, svc store.Services, pkg *domain.Package, rules Rules) *Result {
	t.Helper()
	res, err := New(adapter.New(pkg), svc, Options{Rules: rules}).Run(context.Background())
	if err != nil {
		t.Fatalf("导入失败: %v", err)
	}
	return res
}

func examplePackage() *domain.Package {
	return &domain.Package{
		Groups: refs("Linux servers"),
		Hosts: []domain.Host{{
			Host:   "srv1",
			Groups: refs("Linux servers"),
			Items:  []domain.Item{{Key: "agent.ping", Name: "Agent ping"}},
		}},
		Triggers: []domain.Trigger{{Description: "Ping down", Expression: "{srv1:agent.ping.last()}=0"}},
	}
}

func TestExampleScenario(t *testing.T) {
	s := memory.New()
	rules := rulesWith(Policy{CreateMissing: true})

	res := run(t, s.Services(), examplePackage(), rules)
	for kind, want := range map[string]int{KindGroups: 1, KindHosts: 1, KindItems: 1, KindTriggers: 1} {
		if got := res.Stats[kind]; got == nil || got.Created != want {
			t.Fatalf("%s 期望创建 %d 个, 实际 %+v", kind, want, got)
		}
	}

	ctx := context.Background()
	hosts, _ := s.Hosts.Get(ctx, store.Filter{Names: []string{"srv1"}})
	if len(hosts) != 1 || len(hosts[0].GroupIDs) != 1 {
		t.Fatalf("主机记录错误: %+v", hosts)
	}
	items, _ := s.Items.Get(ctx, store.Filter{HostIDs: []string{hosts[0].ID}})
	if len(items) != 1 {
		t.Fatalf("期望 1 个监控项, 实际 %d", len(items))
	}
	triggers, _ := s.Triggers.Get(ctx, store.Filter{})
	if len(triggers) != 1 || len(triggers[0].ItemIDs) != 1 || triggers[0].ItemIDs[0] != items[0].ID {
		t.Fatalf("触发器未引用监控项: %+v", triggers)
	}

	again := run(t, s.Services(), examplePackage(), rules)
	if total := again.Totals(); total.Created != 0 {
		t.Fatalf("重复导入不应创建对象, 实际 %+v", again.Stats)
	}
}

// richPackage 覆盖模板、主机、自动发现、图形、拓扑图与聚合图。
func richPackage() *domain.Package {
	return &domain.Package{
		Groups: refs("Linux servers", "Templates"),
		Templates: []domain.Template{{
			Host:         "Template OS",
			Groups:       refs("Templates"),
			Macros:       []domain.Macro{{Macro: "{$LOAD_MAX}", Value: "5"}},
			Applications: []domain.Application{{Name: "CPU"}},
			Items: []domain.Item{{
				Key:          "system.cpu.load",
				Name:         "CPU load",
				Applications: refs("CPU"),
			}},
			DiscoveryRules: []domain.DiscoveryRule{{
				Item:           domain.Item{Key: "vfs.fs.discovery", Name: "Filesystems"},
				ItemPrototypes: []domain.Item{{Key: "vfs.fs.size[{#FSNAME},pfree]", Name: "Free on {#FSNAME}"}},
				TriggerPrototypes: []domain.Trigger{{
					Description: "Low space on {#FSNAME}",
					Expression:  "{Template OS:vfs.fs.size[{#FSNAME},pfree].last()}<10",
				}},
				GraphPrototypes: []domain.Graph{{
					Name:  "Disk {#FSNAME}",
					Items: []domain.GraphItem{{Item: domain.ItemRef{Host: "Template OS", Key: "vfs.fs.size[{#FSNAME},pfree]"}}},
				}},
				HostPrototypes: []domain.HostPrototype{{Host: "{#VM}", GroupLinks: refs("Linux servers")}},
			}},
			Screens: []domain.Screen{{
				Name: "OS overview",
				ScreenItems: []domain.ScreenItem{{
					ResourceType: domain.ScreenResourceGraph,
					Resource:     &domain.ElementRef{Name: "CPU load", Host: "Template OS"},
				}},
			}},
		}},
		Hosts: []domain.Host{{
			Host:       "srv1",
			Groups:     refs("Linux servers"),
			Templates:  refs("Template OS"),
			Macros:     []domain.Macro{{Macro: "{$PORT}", Value: "80"}},
			Interfaces: []domain.Interface{{Ref: "if1", Type: 1, Main: 1, UseIP: 1, IP: "10.0.0.1", Port: "10050"}},
			Items:      []domain.Item{{Key: "agent.ping", Name: "Agent ping", InterfaceRef: "if1"}},
		}},
		Triggers: []domain.Trigger{
			{
				Description:  "Ping down",
				Expression:   "{srv1:agent.ping.last()}=0",
				Dependencies: []domain.TriggerRef{{Name: "CPU high", Expression: "{Template OS:system.cpu.load.avg(5m)}>{$LOAD_MAX}"}},
			},
			{Description: "CPU high", Expression: "{Template OS:system.cpu.load.avg(5m)}>{$LOAD_MAX}"},
		},
		Graphs: []domain.Graph{{
			Name:     "CPU load",
			Items:    []domain.GraphItem{{Item: domain.ItemRef{Host: "Template OS", Key: "system.cpu.load"}}},
			YMaxItem: &domain.ItemRef{Host: "Template OS", Key: "system.cpu.load"},
		}},
		Images: []domain.Image{{Name: "server", ImageType: 1, Image: "iVBORw0KGgo="}},
		Maps: []domain.Map{
			{
				Name: "Infra",
				Selements: []domain.Selement{
					{SelementID: "1", ElementType: domain.SelementHost, Element: &domain.ElementRef{Host: "srv1"}, IconOff: &domain.NameRef{Name: "server"}},
					{SelementID: "2", ElementType: domain.SelementTrigger, Element: &domain.ElementRef{Name: "Ping down", Expression: "{srv1:agent.ping.last()}=0"}},
					{SelementID: "3", ElementType: domain.SelementMap, Element: &domain.ElementRef{Name: "Sub"}},
				},
				Links: []domain.MapLink{{
					Selement1:    "1",
					Selement2:    "2",
					LinkTriggers: []domain.LinkTrigger{{Trigger: domain.TriggerRef{Name: "Ping down", Expression: "{srv1:agent.ping.last()}=0"}}},
				}},
			},
			{Name: "Sub"},
		},
		Screens: []domain.Screen{
			{
				Name: "Main",
				ScreenItems: []domain.ScreenItem{
					{ResourceType: domain.ScreenResourceGraph, Resource: &domain.ElementRef{Name: "CPU load", Host: "Template OS"}},
					{ResourceType: domain.ScreenResourceMap, Resource: &domain.ElementRef{Name: "Infra"}},
					{ResourceType: domain.ScreenResourceScreen, Resource: &domain.ElementRef{Name: "Other"}},
					{ResourceType: domain.ScreenResourceHostgroupTriggers, Resource: &domain.ElementRef{Name: "Linux servers"}},
					{ResourceType: domain.ScreenResourceClock},
				},
			},
			{Name: "Other"},
		},
	}
}

func tableSizes(s *memory.Store) map[string]int {
	return map[string]int{
		"groups":          s.Groups.Len(),
		"templates":       s.Templates.Len(),
		"hosts":           s.Hosts.Len(),
		"macros":          s.Macros.Len(),
		"applications":    s.Applications.Len(),
		"items":           s.Items.Len(),
		"hostPrototypes":  s.HostPrototypes.Len(),
		"triggers":        s.Triggers.Len(),
		"graphs":          s.Graphs.Len(),
		"images":          s.Images.Len(),
		"maps":            s.Maps.Len(),
		"screens":         s.Screens.Len(),
		"templateScreens": s.TemplateScreens.Len(),
	}
}

func TestIdempotence(t *testing.T) {
	s := memory.New()
	first := run(t, s.Services(), richPackage(), DefaultRules())
	if first.Totals().Created == 0 {
		t.Fatalf("首次导入应创建对象")
	}
	before := tableSizes(s)
	want := map[string]int{
		"groups": 2, "templates": 1, "hosts": 1, "macros": 2, "applications": 1,
		"items": 4, "hostPrototypes": 1, "triggers": 3, "graphs": 2, "images": 1,
		"maps": 2, "screens": 2, "templateScreens": 1,
	}
	for table, n := range want {
		if before[table] != n {
			t.Fatalf("%s 期望 %d 条, 实际 %d", table, n, before[table])
		}
	}

	second := run(t, s.Services(), richPackage(), DefaultRules())
	if total := second.Totals(); total.Created != 0 || total.Deleted != 0 {
		t.Fatalf("第二次导入只应更新, 实际 %+v", total)
	}
	if second.Totals().Updated == 0 {
		t.Fatalf("第二次导入应更新已有对象")
	}
	after := tableSizes(s)
	for table, n := range before {
		if after[table] != n {
			t.Fatalf("%s 数量从 %d 变为 %d", table, n, after[table])
		}
	}
}

func TestRichPackageWiring(t *testing.T) {
	s := memory.New()
	run(t, s.Services(), richPackage(), DefaultRules())
	ctx := context.Background()

	hosts, _ := s.Hosts.Get(ctx, store.Filter{Names: []string{"srv1"}})
	templates, _ := s.Templates.Get(ctx, store.Filter{Names: []string{"Template OS"}})
	host, tpl := hosts[0], templates[0]
	if len(host.TemplateIDs) != 1 || host.TemplateIDs[0] != tpl.ID {
		t.Fatalf("主机未链接模板: %+v", host.TemplateIDs)
	}

	items, _ := s.Items.Get(ctx, store.Filter{HostIDs: []string{host.ID}})
	if len(items) != 1 || items[0].InterfaceID != host.Interfaces[0].ID {
		t.Fatalf("监控项接口未解析: %+v", items)
	}

	protos, _ := s.Items.Get(ctx, store.Filter{HostIDs: []string{tpl.ID}, Flags: []int{domain.FlagPrototype}})
	rules, _ := s.Items.Get(ctx, store.Filter{HostIDs: []string{tpl.ID}, Flags: []int{domain.FlagDiscoveryRule}})
	if len(protos) != 1 || len(rules) != 1 || protos[0].RuleID != rules[0].ID {
		t.Fatalf("监控项原型未挂到规则上: protos=%+v rules=%+v", protos, rules)
	}
	hostProtos, _ := s.HostPrototypes.Get(ctx, store.Filter{ParentIDs: []string{rules[0].ID}})
	if len(hostProtos) != 1 || hostProtos[0].OwnerHostID != tpl.ID {
		t.Fatalf("主机原型错误: %+v", hostProtos)
	}

	triggers, _ := s.Triggers.Get(ctx, store.Filter{Names: []string{"Ping down", "CPU high"}})
	ids := make(map[string]*domain.Trigger)
	for _, tr := range triggers {
		ids[tr.Description] = tr
	}
	if deps := ids["Ping down"].DependencyIDs; len(deps) != 1 || deps[0] != ids["CPU high"].ID {
		t.Fatalf("依赖未正确设置: %+v", deps)
	}

	maps, _ := s.Maps.Get(ctx, store.Filter{Names: []string{"Infra", "Sub"}})
	byName := make(map[string]*domain.Map)
	for _, m := range maps {
		byName[m.Name] = m
	}
	infra := byName["Infra"]
	if infra.Selements[0].ElementID != host.ID || infra.Selements[0].IconOffID == "" {
		t.Fatalf("主机元素未解析: %+v", infra.Selements[0])
	}
	if infra.Selements[1].ElementID != ids["Ping down"].ID {
		t.Fatalf("触发器元素未解析: %+v", infra.Selements[1])
	}
	if infra.Selements[2].ElementID != byName["Sub"].ID {
		t.Fatalf("子图元素未解析: %+v", infra.Selements[2])
	}
	if infra.Links[0].LinkTriggers[0].TriggerID != ids["Ping down"].ID {
		t.Fatalf("连线触发器未解析")
	}

	screens, _ := s.Screens.Get(ctx, store.Filter{Names: []string{"Main"}})
	for i, item := range screens[0].ScreenItems {
		if item.Resource != nil && item.ResourceID == "" {
			t.Fatalf("第 %d 个单元格资源未解析", i)
		}
	}
	tplScreens, _ := s.TemplateScreens.Get(ctx, store.Filter{HostIDs: []string{tpl.ID}})
	if len(tplScreens) != 1 || tplScreens[0].ScreenItems[0].ResourceID == "" {
		t.Fatalf("模板聚合图未解析: %+v", tplScreens)
	}
}

// sharedSeed 在存储中准备主机 A、B，以及只属于 A 与同时属于 A、B 的触发器和图形。
func sharedSeed(t *testing.T) (*memory.Store, map[string]string) {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	ids := make(map[string]string)
	hostIDs, err := s.Hosts.Create(ctx, []*domain.Host{{Host: "A"}, {Host: "B"}})
	if err != nil {
		t.Fatalf("seed hosts: %v", err)
	}
	a, b := hostIDs[0], hostIDs[1]
	itemIDs, err := s.Items.Create(ctx, []*domain.Item{
		{HostID: a, Key: "x"},
		{HostID: b, Key: "x"},
		{HostID: a, Key: "stale"},
	})
	if err != nil {
		t.Fatalf("seed items: %v", err)
	}
	ids["itemA"], ids["itemB"], ids["stale"] = itemIDs[0], itemIDs[1], itemIDs[2]
	triggerIDs, err := s.Triggers.Create(ctx, []*domain.Trigger{
		{Description: "shared", Expression: "{A:x.last()}+{B:x.last()}>0", HostIDs: []string{a, b}, ItemIDs: []string{itemIDs[0], itemIDs[1]}},
		{Description: "only A", Expression: "{A:x.last()}>0", HostIDs: []string{a}, ItemIDs: []string{itemIDs[0]}},
		{Description: "only B", Expression: "{B:x.last()}>0", HostIDs: []string{b}, ItemIDs: []string{itemIDs[1]}},
	})
	if err != nil {
		t.Fatalf("seed triggers: %v", err)
	}
	ids["shared"], ids["onlyA"], ids["onlyB"] = triggerIDs[0], triggerIDs[1], triggerIDs[2]
	graphIDs, err := s.Graphs.Create(ctx, []*domain.Graph{
		{Name: "shared", HostIDs: []string{a, b}},
		{Name: "only A", HostIDs: []string{a}},
	})
	if err != nil {
		t.Fatalf("seed graphs: %v", err)
	}
	ids["sharedGraph"], ids["onlyAGraph"] = graphIDs[0], graphIDs[1]
	return s, ids
}

func TestScopedDeletion(t *testing.T) {
	s, ids := sharedSeed(t)
	pkg := &domain.Package{Hosts: []domain.Host{{Host: "A", Items: []domain.Item{{Key: "x"}}}}}
	rules := rulesWith(Policy{CreateMissing: true, UpdateExisting: true, DeleteMissing: true})

	res := run(t, s.Services(), pkg, rules)

	ctx := context.Background()
	exists := func(svcGet func() []string, id string) bool {
		for _, got := range svcGet() {
			if got == id {
				return true
			}
		}
		return false
	}
	triggerIDs := func() []string {
		all, _ := s.Triggers.Get(ctx, store.Filter{})
		out := make([]string, 0, len(all))
		for _, tr := range all {
			out = append(out, tr.ID)
		}
		return out
	}
	graphIDs := func() []string {
		all, _ := s.Graphs.Get(ctx, store.Filter{})
		out := make([]string, 0, len(all))
		for _, g := range all {
			out = append(out, g.ID)
		}
		return out
	}
	itemIDs := func() []string {
		all, _ := s.Items.Get(ctx, store.Filter{})
		out := make([]string, 0, len(all))
		for _, i := range all {
			out = append(out, i.ID)
		}
		return out
	}

	if !exists(triggerIDs, ids["shared"]) {
		t.Fatalf("同时属于未处理主机 B 的触发器不应被删除")
	}
	if exists(triggerIDs, ids["onlyA"]) {
		t.Fatalf("只属于 A 且不在包中的触发器应被删除")
	}
	if !exists(triggerIDs, ids["onlyB"]) {
		t.Fatalf("只属于 B 的触发器不应被触及")
	}
	if !exists(graphIDs, ids["sharedGraph"]) || exists(graphIDs, ids["onlyAGraph"]) {
		t.Fatalf("图形删除范围错误")
	}
	if exists(itemIDs, ids["stale"]) {
		t.Fatalf("A 上不在包中的监控项应被删除")
	}
	if !exists(itemIDs, ids["itemA"]) || !exists(itemIDs, ids["itemB"]) {
		t.Fatalf("包中的监控项与 B 上的监控项应保留")
	}
	if got := res.Stats[KindTriggers]; got == nil || got.Deleted != 1 {
		t.Fatalf("期望删除 1 个触发器, 实际 %+v", got)
	}
}

func TestDeleteMissingSkipsWhenNothingProcessed(t *testing.T) {
	s, _ := sharedSeed(t)
	rules := rulesWith(Policy{DeleteMissing: true})
	res := run(t, s.Services(), &domain.Package{Hosts: []domain.Host{{Host: "A"}}}, rules)
	if total := res.Totals(); total.Deleted != 0 {
		t.Fatalf("没有处理任何主机时不应删除, 实际 %+v", res.Stats)
	}
	if s.Triggers.Len() != 3 {
		t.Fatalf("触发器不应被删除")
	}
}

func TestDeletedItemTakesTriggersAlong(t *testing.T) {
	s := memory.New()
	run(t, s.Services(), examplePackage(), DefaultRules())

	rules := make(Rules)
	rules[domain.EntityGroups] = Policy{CreateMissing: true, UpdateExisting: true}
	rules[domain.EntityHosts] = Policy{CreateMissing: true, UpdateExisting: true}
	rules[domain.EntityItems] = Policy{DeleteMissing: true}
	pkg := examplePackage()
	pkg.Hosts[0].Items = nil
	pkg.Triggers = nil
	res := run(t, s.Services(), pkg, rules)

	if s.Items.Len() != 0 || s.Triggers.Len() != 0 {
		t.Fatalf("删除监控项后不应留下引用它的触发器: items=%d triggers=%d", s.Items.Len(), s.Triggers.Len())
	}
	if got := res.Stats[KindTriggers]; got == nil || got.Deleted != 1 {
		t.Fatalf("期望级联删除 1 个触发器, 实际 %+v", got)
	}
}

// cascadePackage 在示例包上增加 agent.version 及引用它的触发器和图形。
func cascadePackage() *domain.Package {
	pkg := examplePackage()
	pkg.Hosts[0].Items = append(pkg.Hosts[0].Items, domain.Item{Key: "agent.version", Name: "Agent version"})
	pkg.Triggers = []domain.Trigger{
		{
			Description:  "Ping down",
			Expression:   "{srv1:agent.ping.last()}=0",
			Dependencies: []domain.TriggerRef{{Name: "Version changed", Expression: "{srv1:agent.version.diff()}=1"}},
		},
		{Description: "Version changed", Expression: "{srv1:agent.version.diff()}=1"},
	}
	ping := domain.ItemRef{Host: "srv1", Key: "agent.ping"}
	version := domain.ItemRef{Host: "srv1", Key: "agent.version"}
	pkg.Graphs = []domain.Graph{
		{Name: "Latency", Items: []domain.GraphItem{{Item: ping}}, YMinType: domain.YAxisItem, YMinItem: &version},
		{Name: "Version", Items: []domain.GraphItem{{Item: version}}},
	}
	return pkg
}

func TestDeletedItemCascade(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	run(t, s.Services(), cascadePackage(), DefaultRules())

	// 第二次导入去掉 agent.version，触发器与图形不在规则范围内。
	rules := make(Rules)
	rules[domain.EntityGroups] = Policy{CreateMissing: true, UpdateExisting: true}
	rules[domain.EntityHosts] = Policy{CreateMissing: true, UpdateExisting: true}
	rules[domain.EntityItems] = Policy{CreateMissing: true, UpdateExisting: true, DeleteMissing: true}
	pkg := examplePackage()
	pkg.Triggers = nil
	res := run(t, s.Services(), pkg, rules)

	items, _ := s.Items.Get(ctx, store.Filter{})
	if len(items) != 1 || items[0].Key != "agent.ping" {
		t.Fatalf("只应保留 agent.ping, 实际 %+v", items)
	}
	triggers, _ := s.Triggers.Get(ctx, store.Filter{})
	if len(triggers) != 1 || triggers[0].Description != "Ping down" {
		t.Fatalf("引用 agent.version 的触发器应被删除, 实际 %+v", triggers)
	}
	if len(triggers[0].DependencyIDs) != 0 {
		t.Fatalf("被删除触发器应从依赖中摘除, 实际 %v", triggers[0].DependencyIDs)
	}
	graphs, _ := s.Graphs.Get(ctx, store.Filter{})
	if len(graphs) != 1 || graphs[0].Name != "Latency" {
		t.Fatalf("只用 agent.version 的图形应被删除, 实际 %+v", graphs)
	}
	if graphs[0].YMinItemID != "" || graphs[0].YMinType != domain.YAxisCalculated {
		t.Fatalf("Y 轴下限应改回自动计算, 实际 %+v", graphs[0])
	}
	for kind, want := range map[string]int{KindItems: 1, KindTriggers: 1, KindGraphs: 1} {
		if got := res.Stats[kind]; got == nil || got.Deleted != want {
			t.Fatalf("%s 期望删除 %d 个, 实际 %+v", kind, want, got)
		}
	}
}

func TestDependencyOrdering(t *testing.T) {
	x := domain.Trigger{
		Description:  "X",
		Expression:   "{srv1:agent.ping.last()}=0",
		Dependencies: []domain.TriggerRef{{Name: "Y", Expression: "{srv1:agent.ping.nodata(5m)}=1"}},
	}
	y := domain.Trigger{Description: "Y", Expression: "{srv1:agent.ping.nodata(5m)}=1"}

	for name, order := range map[string][]domain.Trigger{"依赖在前": {y, x}, "依赖在后": {x, y}} {
		t.Run(name, func(t *testing.T) {
			s := memory.New()
			pkg := examplePackage()
			pkg.Triggers = order
			run(t, s.Services(), pkg, DefaultRules())

			triggers, _ := s.Triggers.Get(context.Background(), store.Filter{})
			byName := make(map[string]*domain.Trigger)
			for _, tr := range triggers {
				byName[tr.Description] = tr
			}
			if deps := byName["X"].DependencyIDs; len(deps) != 1 || deps[0] != byName["Y"].ID {
				t.Fatalf("X 应依赖 Y, 实际 %+v", deps)
			}
			if len(byName["Y"].DependencyIDs) != 0 {
				t.Fatalf("Y 不应有依赖")
			}
		})
	}
}

func TestDanglingDependency(t *testing.T) {
	pkg := examplePackage()
	pkg.Triggers[0].Dependencies = []domain.TriggerRef{{Name: "Ghost", Expression: "{srv1:agent.ping.last()}=1"}}
	im := New(adapter.New(pkg), memory.New().Services(), Options{Rules: DefaultRules()})
	_, err := im.Run(context.Background())
	if !errors.Is(err, ErrDanglingDependency) {
		t.Fatalf("期望 ErrDanglingDependency, 实际 %v", err)
	}
	if !strings.Contains(err.Error(), "Ping down") || !strings.Contains(err.Error(), "Ghost") {
		t.Fatalf("错误信息应包含触发器与依赖名: %v", err)
	}
}

// bulkPackage 生成 hosts 台主机、每台 perHost 个监控项的包。
func bulkPackage(hosts, perHost int) *domain.Package {
	pkg := &domain.Package{Groups: refs("Linux servers")}
	for h := 0; h < hosts; h++ {
		host := domain.Host{Host: fmt.Sprintf("host-%d", h), Groups: refs("Linux servers")}
		for i := 0; i < perHost; i++ {
			host.Items = append(host.Items, domain.Item{Key: fmt.Sprintf("key[%d,%d]", h, i)})
		}
		pkg.Hosts = append(pkg.Hosts, host)
	}
	return pkg
}

// 一次导入中监控项查询的上限：批量加载、两次删除前查询与一次刷新。
const maxItemLookups = 4

func TestBulkLookupBound(t *testing.T) {
	count := func(hosts, perHost int) (first, second int) {
		s := memory.New()
		svc := s.Services()
		items := &countingItems{Service: svc.Items}
		svc.Items = items
		rules := rulesWith(Policy{CreateMissing: true, UpdateExisting: true, DeleteMissing: true})

		run(t, svc, bulkPackage(hosts, perHost), rules)
		first = items.gets
		items.gets = 0
		run(t, svc, bulkPackage(hosts, perHost), rules)
		second = items.gets
		if got := s.Items.Len(); got != hosts*perHost {
			t.Fatalf("期望 %d 个监控项, 实际 %d", hosts*perHost, got)
		}
		return first, second
	}

	smallFirst, smallSecond := count(2, 3)
	bigFirst, bigSecond := count(8, 50)
	if smallFirst != bigFirst || smallSecond != bigSecond {
		t.Fatalf("监控项查询次数随规模增长: small=(%d,%d) big=(%d,%d)", smallFirst, smallSecond, bigFirst, bigSecond)
	}
	if bigFirst > maxItemLookups || bigSecond > maxItemLookups {
		t.Fatalf("每次导入的监控项查询应为常数, 实际 %d / %d", bigFirst, bigSecond)
	}
}

func TestUnresolvedGraphItemNamesReference(t *testing.T) {
	s := memory.New()
	if _, err := s.Hosts.Create(context.Background(), []*domain.Host{{Host: "srv1"}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	pkg := &domain.Package{
		Groups: refs("Linux servers"),
		Hosts:  []domain.Host{{Host: "web", Groups: refs("Linux servers")}},
		Graphs: []domain.Graph{{
			Name:  "Load overview",
			Items: []domain.GraphItem{{Item: domain.ItemRef{Host: "srv1", Key: "cpu.load"}}},
		}},
	}
	im := New(adapter.New(pkg), s.Services(), Options{Rules: DefaultRules()})
	_, err := im.Run(context.Background())
	if !errors.Is(err, ErrUnresolvedReference) {
		t.Fatalf("期望 ErrUnresolvedReference, 实际 %v", err)
	}
	for _, want := range []string{"cpu.load", "srv1", "Load overview"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("错误信息缺少 %q: %v", want, err)
		}
	}
	var re *ReferenceError
	if !errors.As(err, &re) || re.RefKind != "item" {
		t.Fatalf("期望 *ReferenceError, 实际 %T", err)
	}
	if im.State() != StateFailed {
		t.Fatalf("失败后状态应为 Failed, 实际 %s", im.State())
	}
	if s.Graphs.Len() != 0 {
		t.Fatalf("失败的导入不应写入图形")
	}
}

func TestCompositeGraphKeys(t *testing.T) {
	traffic := func(host string) domain.Graph {
		return domain.Graph{Name: "Traffic", Items: []domain.GraphItem{{Item: domain.ItemRef{Host: host, Key: "net.if.in[eth0]"}}}}
	}
	pkg := &domain.Package{
		Groups: refs("Linux servers"),
		Hosts: []domain.Host{
			{Host: "h1", Groups: refs("Linux servers"), Items: []domain.Item{{Key: "net.if.in[eth0]"}}},
			{Host: "h2", Groups: refs("Linux servers"), Items: []domain.Item{{Key: "net.if.in[eth0]"}}},
		},
		Graphs: []domain.Graph{traffic("h1"), traffic("h2")},
	}
	s := memory.New()
	res := run(t, s.Services(), pkg, DefaultRules())
	if got := res.Stats[KindGraphs]; got == nil || got.Created != 2 {
		t.Fatalf("期望创建 2 个图形, 实际 %+v", got)
	}

	ctx := context.Background()
	hosts, _ := s.Hosts.Get(ctx, store.Filter{Names: []string{"h1", "h2"}})
	hostIDs := make(map[string]string)
	for _, h := range hosts {
		hostIDs[h.Host] = h.ID
	}
	graphs, _ := s.Graphs.Get(ctx, store.Filter{Names: []string{"Traffic"}})
	if len(graphs) != 2 || graphs[0].ID == graphs[1].ID {
		t.Fatalf("两个 Traffic 图形应各自独立: %+v", graphs)
	}
	owners := map[string]bool{}
	for _, g := range graphs {
		if len(g.HostIDs) != 1 {
			t.Fatalf("图形 %s 宿主错误: %+v", g.ID, g.HostIDs)
		}
		owners[g.HostIDs[0]] = true
	}
	if !owners[hostIDs["h1"]] || !owners[hostIDs["h2"]] {
		t.Fatalf("图形应分别属于 h1 与 h2: %+v", owners)
	}

	again := run(t, s.Services(), pkg, DefaultRules())
	if got := again.Stats[KindGraphs]; got == nil || got.Created != 0 || got.Updated != 2 {
		t.Fatalf("重复导入应更新两个图形, 实际 %+v", got)
	}
}

func TestGraphKeyUsesLastCurveHost(t *testing.T) {
	curve := func(host string) domain.GraphItem {
		return domain.GraphItem{Item: domain.ItemRef{Host: host, Key: "net.if.in[eth0]"}}
	}
	pkg := &domain.Package{
		Groups: refs("Linux servers"),
		Hosts: []domain.Host{
			{Host: "h1", Groups: refs("Linux servers"), Items: []domain.Item{{Key: "net.if.in[eth0]"}}},
			{Host: "h2", Groups: refs("Linux servers"), Items: []domain.Item{{Key: "net.if.in[eth0]"}}},
		},
		Graphs: []domain.Graph{{Name: "Compare", Items: []domain.GraphItem{curve("h2")}}},
	}
	s := memory.New()
	run(t, s.Services(), pkg, DefaultRules())

	// 跨主机的同名图形按最后一条曲线的主机匹配到 h2 上已有的图形。
	pkg.Graphs = []domain.Graph{{Name: "Compare", Items: []domain.GraphItem{curve("h1"), curve("h2")}}}
	res := run(t, s.Services(), pkg, DefaultRules())
	if got := res.Stats[KindGraphs]; got == nil || got.Created != 0 || got.Updated != 1 {
		t.Fatalf("应更新 h2 上的 Compare, 实际 %+v", got)
	}
	graphs, _ := s.Graphs.Get(context.Background(), store.Filter{Names: []string{"Compare"}})
	if len(graphs) != 1 || len(graphs[0].Items) != 2 || len(graphs[0].HostIDs) != 2 {
		t.Fatalf("应只有一个跨两台主机的 Compare, 实际 %+v", graphs)
	}
}

func TestStoreErrorNamesKind(t *testing.T) {
	boom := errors.New("连接中断")
	svc := memory.New().Services()
	svc.Graphs = &failingGraphs{Service: svc.Graphs, err: boom}
	pkg := examplePackage()
	pkg.Graphs = []domain.Graph{{Name: "Ping", Items: []domain.GraphItem{{Item: domain.ItemRef{Host: "srv1", Key: "agent.ping"}}}}}
	_, err := New(adapter.New(pkg), svc, Options{Rules: DefaultRules()}).Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("应保留底层错误, 实际 %v", err)
	}
	if !strings.Contains(err.Error(), "创建 graphs 失败") {
		t.Fatalf("错误应说明失败的操作与类型, 实际 %v", err)
	}
}

func TestMalformedExpressionAbortsBeforeWrites(t *testing.T) {
	pkg := examplePackage()
	pkg.Triggers[0].Expression = "{srv1:agent.ping.last()=0"
	s := memory.New()
	_, err := New(adapter.New(pkg), s.Services(), Options{Rules: DefaultRules()}).Run(context.Background())
	if !errors.Is(err, expression.ErrMalformed) {
		t.Fatalf("期望 ErrMalformed, 实际 %v", err)
	}
	if !strings.Contains(err.Error(), "Ping down") {
		t.Fatalf("错误信息应包含触发器名: %v", err)
	}
	if s.Groups.Len() != 0 || s.Hosts.Len() != 0 {
		t.Fatalf("表达式错误时不应写入任何对象")
	}
}

func TestUnknownRuleTypeRejected(t *testing.T) {
	rules := DefaultRules()
	rules["widgets"] = Policy{CreateMissing: true}
	im := New(adapter.New(examplePackage()), memory.New().Services(), Options{Rules: rules})
	if _, err := im.Run(context.Background()); err == nil || !strings.Contains(err.Error(), "widgets") {
		t.Fatalf("未知规则类型应被拒绝, 实际 %v", err)
	}
}

func TestAbsentRulesAreNoop(t *testing.T) {
	s := memory.New()
	res := run(t, s.Services(), examplePackage(), nil)
	if total := res.Totals(); total.Created+total.Updated+total.Deleted != 0 {
		t.Fatalf("没有规则时不应有任何变更, 实际 %+v", total)
	}
}

func TestImporterIsSingleUse(t *testing.T) {
	im := New(adapter.New(examplePackage()), memory.New().Services(), Options{Rules: DefaultRules()})
	if _, err := im.Run(context.Background()); err != nil {
		t.Fatalf("导入失败: %v", err)
	}
	if im.State() != StateDone {
		t.Fatalf("期望 Done, 实际 %s", im.State())
	}
	if _, err := im.Run(context.Background()); !errors.Is(err, ErrAlreadyRun) {
		t.Fatalf("重复执行应返回 ErrAlreadyRun, 实际 %v", err)
	}
}

func TestTemplateLinkOrderAndCycle(t *testing.T) {
	base := domain.Template{Host: "Base", Groups: refs("Templates")}
	child := domain.Template{Host: "Child", Groups: refs("Templates"), Templates: refs("Base")}
	pkg := &domain.Package{Groups: refs("Templates"), Templates: []domain.Template{child, base}}
	s := memory.New()
	run(t, s.Services(), pkg, DefaultRules())
	tpls, _ := s.Templates.Get(context.Background(), store.Filter{Names: []string{"Base", "Child"}})
	ids := map[string]*domain.Template{}
	for _, tpl := range tpls {
		ids[tpl.Host] = tpl
	}
	if links := ids["Child"].TemplateIDs; len(links) != 1 || links[0] != ids["Base"].ID {
		t.Fatalf("Child 应链接 Base, 实际 %+v", links)
	}

	base.Templates = refs("Child")
	cyclic := &domain.Package{Groups: refs("Templates"), Templates: []domain.Template{child, base}}
	_, err := New(adapter.New(cyclic), memory.New().Services(), Options{Rules: DefaultRules()}).Run(context.Background())
	if !errors.Is(err, ErrTemplateCycle) {
		t.Fatalf("期望 ErrTemplateCycle, 实际 %v", err)
	}
}

func TestDeleteMissingPrototypes(t *testing.T) {
	s := memory.New()
	run(t, s.Services(), richPackage(), DefaultRules())

	pkg := richPackage()
	rule := &pkg.Templates[0].DiscoveryRules[0]
	rule.TriggerPrototypes = nil
	rule.HostPrototypes = nil
	rules := DefaultRules()
	rules[domain.EntityDiscoveryRules] = Policy{CreateMissing: true, UpdateExisting: true, DeleteMissing: true}
	res := run(t, s.Services(), pkg, rules)

	if got := res.Stats[KindTriggerPrototypes]; got == nil || got.Deleted != 1 {
		t.Fatalf("期望删除 1 个触发器原型, 实际 %+v", got)
	}
	if s.HostPrototypes.Len() != 0 {
		t.Fatalf("主机原型应被删除")
	}
	if s.Triggers.Len() != 2 {
		t.Fatalf("普通触发器不应受影响, 实际 %d", s.Triggers.Len())
	}
}

func TestTriggerPrototypeDependencies(t *testing.T) {
	pkg := richPackage()
	rule := &pkg.Templates[0].DiscoveryRules[0]
	critical := domain.Trigger{
		Description: "Critical space on {#FSNAME}",
		Expression:  "{Template OS:vfs.fs.size[{#FSNAME},pfree].last()}<5",
	}
	// 被依赖的原型定义在后面。
	rule.TriggerPrototypes[0].Dependencies = []domain.TriggerRef{{Name: critical.Description, Expression: critical.Expression}}
	rule.TriggerPrototypes = append(rule.TriggerPrototypes, critical)

	s := memory.New()
	run(t, s.Services(), pkg, DefaultRules())

	check := func() {
		t.Helper()
		prototypes, _ := s.Triggers.Get(context.Background(), store.Filter{Flags: []int{domain.FlagPrototype}})
		byName := make(map[string]*domain.Trigger)
		for _, tr := range prototypes {
			byName[tr.Description] = tr
		}
		low, crit := byName["Low space on {#FSNAME}"], byName[critical.Description]
		if low == nil || crit == nil {
			t.Fatalf("触发器原型缺失: %+v", prototypes)
		}
		if len(low.DependencyIDs) != 1 || low.DependencyIDs[0] != crit.ID {
			t.Fatalf("Low space 应依赖 Critical space, 实际 %v", low.DependencyIDs)
		}
		if len(crit.DependencyIDs) != 0 {
			t.Fatalf("Critical space 不应有依赖")
		}
	}
	check()

	again := run(t, s.Services(), pkg, DefaultRules())
	if got := again.Stats[KindTriggerPrototypes]; got == nil || got.Created != 0 {
		t.Fatalf("重复导入不应创建触发器原型, 实际 %+v", got)
	}
	check()
}

func TestTemplateScreensDeleteMissing(t *testing.T) {
	s := memory.New()
	run(t, s.Services(), richPackage(), DefaultRules())

	pkg := richPackage()
	pkg.Templates[0].Screens = nil
	rules := DefaultRules()
	rules[domain.EntityTemplateScreens] = Policy{DeleteMissing: true}
	run(t, s.Services(), pkg, rules)
	if s.TemplateScreens.Len() != 0 {
		t.Fatalf("模板聚合图应被删除")
	}
}

func TestValidateDoesNotTouchStore(t *testing.T) {
	s := memory.New()
	svc := s.Services()
	items := &countingItems{Service: svc.Items}
	svc.Items = items
	im := New(adapter.New(richPackage()), svc, Options{Rules: DefaultRules()})
	if err := im.Validate(context.Background()); err != nil {
		t.Fatalf("校验失败: %v", err)
	}
	if items.gets != 0 || s.Groups.Len() != 0 {
		t.Fatalf("校验不应访问存储")
	}
	if err := im.Validate(context.Background()); !errors.Is(err, ErrAlreadyRun) {
		t.Fatalf("重复校验应返回 ErrAlreadyRun, 实际 %v", err)
	}
}

func TestMissingGroupIsReferenceError(t *testing.T) {
	pkg := examplePackage()
	pkg.Hosts[0].Groups = refs("Nowhere")
	_, err := New(adapter.New(pkg), memory.New().Services(), Options{Rules: DefaultRules()}).Run(context.Background())
	if !errors.Is(err, ErrUnresolvedReference) || !strings.Contains(err.Error(), "Nowhere") {
		t.Fatalf("期望缺失组的引用错误, 实际 %v", err)
	}
}
