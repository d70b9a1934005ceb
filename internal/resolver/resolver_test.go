package resolver

import (
	"context"
	"testing"

	"confimport/internal/domain"
	"confimport/internal/store/memory"
)

func seed(t *testing.T) (*memory.Store, map[string]string) {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	ids := make(map[string]string)
	hostIDs, err := s.Hosts.Create(ctx, []*domain.Host{
		{Host: "h1", Interfaces: []domain.Interface{{Ref: "if1"}}},
		{Host: "h2"},
	})
	if err != nil {
		t.Fatalf("seed hosts: %v", err)
	}
	ids["h1"], ids["h2"] = hostIDs[0], hostIDs[1]
	graphIDs, err := s.Graphs.Create(ctx, []*domain.Graph{
		{Name: "Traffic", HostIDs: []string{ids["h1"]}},
		{Name: "Traffic", HostIDs: []string{ids["h2"]}},
	})
	if err != nil {
		t.Fatalf("seed graphs: %v", err)
	}
	ids["g1"], ids["g2"] = graphIDs[0], graphIDs[1]
	itemIDs, _ := s.Items.Create(ctx, []*domain.Item{{HostID: ids["h1"], Key: "agent.ping"}, {HostID: ids["h2"], Key: "agent.ping"}})
	ids["i1"], ids["i2"] = itemIDs[0], itemIDs[1]
	triggerIDs, _ := s.Triggers.Create(ctx, []*domain.Trigger{
		{Description: "down", Expression: "{h1:agent.ping.last()}=0"},
		{Description: "down", Expression: "{h2:agent.ping.last()}=0"},
	})
	ids["t1"], ids["t2"] = triggerIDs[0], triggerIDs[1]
	return s, ids
}

func TestResolveBeforeLoadPanics(t *testing.T) {
	r := New(memory.New().Services(), nil)
	r.AddHosts("h1")
	defer func() {
		if recover() == nil {
			t.Fatalf("Load 之前解析应 panic")
		}
	}()
	r.HostID("h1")
}

func TestLoadResolvesCompositeKeys(t *testing.T) {
	s, ids := seed(t)
	r := New(s.Services(), nil)
	r.AddHosts("h1", "h2", "missing")
	r.AddGraphs("h1", "Traffic")
	r.AddGraphs("h2", "Traffic")
	r.AddItems("h1", "agent.ping")
	r.AddItems("h2", "agent.ping")
	r.AddTriggers(
		domain.TriggerKey{Description: "down", Expression: "{h1:agent.ping.last()}=0"},
		domain.TriggerKey{Description: "down", Expression: "{h2:agent.ping.last()}=0"},
	)
	if err := r.Load(context.Background()); err != nil {
		t.Fatalf("Load 失败: %v", err)
	}

	if id, ok := r.HostID("h1"); !ok || id != ids["h1"] {
		t.Fatalf("h1 解析错误")
	}
	if _, ok := r.HostID("missing"); ok {
		t.Fatalf("不存在的主机应返回 absent")
	}
	if id, _ := r.GraphID(ids["h1"], "Traffic"); id != ids["g1"] {
		t.Fatalf("h1 上的 Traffic 应解析为 g1")
	}
	if id, _ := r.GraphID(ids["h2"], "Traffic"); id != ids["g2"] {
		t.Fatalf("h2 上的 Traffic 应解析为 g2")
	}
	if id, _ := r.ItemID(ids["h2"], "agent.ping"); id != ids["i2"] {
		t.Fatalf("h2 的 agent.ping 解析错误")
	}
	if id, _ := r.TriggerID("down", "{h2:agent.ping.last()}=0"); id != ids["t2"] {
		t.Fatalf("同名触发器应按表达式区分")
	}
	if _, ok := r.InterfaceID(ids["h1"], "if1"); !ok {
		t.Fatalf("接口缓存缺少 if1")
	}

	for kind, n := range r.Lookups() {
		if n != 1 {
			t.Fatalf("%s 应只查询一次, got %d", kind, n)
		}
	}
}

func TestRefreshSeesNewObjects(t *testing.T) {
	ctx := context.Background()
	s, ids := seed(t)
	r := New(s.Services(), nil)
	r.AddHosts("h1")
	r.AddApplications("h1", "CPU")
	if err := r.Load(ctx); err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	if _, ok := r.ApplicationID(ids["h1"], "CPU"); ok {
		t.Fatalf("应用集尚未创建")
	}
	appIDs, _ := s.Applications.Create(ctx, []*domain.Application{{HostID: ids["h1"], Name: "CPU"}})
	if err := r.RefreshApplications(ctx); err != nil {
		t.Fatalf("Refresh 失败: %v", err)
	}
	if id, ok := r.ApplicationID(ids["h1"], "CPU"); !ok || id != appIDs[0] {
		t.Fatalf("刷新后应能解析新应用集")
	}
}

func TestBindAfterCreate(t *testing.T) {
	r := New(memory.New().Services(), nil)
	r.AddGroups("Linux servers")
	if err := r.Load(context.Background()); err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	if _, ok := r.GroupID("Linux servers"); ok {
		t.Fatalf("空库不应解析出组")
	}
	r.BindGroup("Linux servers", "g-1")
	if id, _ := r.GroupID("Linux servers"); id != "g-1" {
		t.Fatalf("Bind 未生效")
	}
}

func TestHostPrototypesUseRuleIDs(t *testing.T) {
	ctx := context.Background()
	s, ids := seed(t)
	ruleIDs, _ := s.Items.Create(ctx, []*domain.Item{{HostID: ids["h1"], Key: "vm.discovery", Flags: domain.FlagDiscoveryRule}})
	protoIDs, _ := s.HostPrototypes.Create(ctx, []*domain.HostPrototype{
		{OwnerHostID: ids["h1"], RuleID: ruleIDs[0], Host: "{#VM}"},
		{OwnerHostID: ids["h1"], RuleID: ruleIDs[0], Host: "{#OTHER}"},
	})

	r := New(s.Services(), nil)
	r.AddHosts("h1")
	r.AddHostPrototypes("h1", "vm.discovery", "{#VM}")
	if err := r.Load(ctx); err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	if id, ok := r.HostPrototypeID(ids["h1"], ruleIDs[0], "{#VM}"); !ok || id != protoIDs[0] {
		t.Fatalf("主机原型解析错误")
	}
	if _, ok := r.HostPrototypeID(ids["h1"], ruleIDs[0], "{#OTHER}"); ok {
		t.Fatalf("未登记的主机原型不应被解析")
	}
}

func TestForgetDropsDeletedIDs(t *testing.T) {
	s, ids := seed(t)
	r := New(s.Services(), nil)
	r.AddHosts("h1", "h2")
	r.AddItems("h1", "agent.ping")
	r.AddItems("h2", "agent.ping")
	if err := r.Load(context.Background()); err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	r.Forget(ids["i1"])
	if _, ok := r.ItemID(ids["h1"], "agent.ping"); ok {
		t.Fatalf("Forget 之后不应再解析到 i1")
	}
	if id, ok := r.ItemID(ids["h2"], "agent.ping"); !ok || id != ids["i2"] {
		t.Fatalf("其他主机上的监控项不应受影响")
	}
}
