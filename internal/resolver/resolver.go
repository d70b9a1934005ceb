// Package resolver 把导入包中的名称引用批量解析成存储中的 id。
//
// 使用方式分三步：收集阶段调用 AddX 登记候选；Load 对每种类型各做一次批量查询；
// 之后通过 XID 方法查询。批量创建之后调用对应的 RefreshX 重新查询，新对象的 id 才可见。
// 在 Load 之前调用任何 XID 方法都会 panic。
package resolver

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"confimport/internal/domain"
	"confimport/internal/store"
)

// Resolver 是单次导入内的名称到 id 缓存，不可并发使用。
type Resolver struct {
	svc    store.Services
	logger *zap.Logger

	groups    *set[string]
	templates *set[string]
	hosts     *set[string]
	proxies   *set[string]
	valueMaps *set[string]
	iconMaps  *set[string]
	images    *set[string]
	maps      *set[string]
	screens   *set[string]

	applications    *scoped
	items           *scoped
	macros          *scoped
	graphs          *scoped
	templateScreens *scoped

	triggers       *set[domain.TriggerKey]
	hostPrototypes *set[domain.HostPrototypeKey]
	// 主机原型候选: (宿主名, 规则 key) -> 主机名
	prototypeRules map[domain.ScopedKey]map[string]struct{}

	interfaces map[domain.ScopedKey]string
	lookups    map[string]int
}

// New 创建解析器，logger 为空时不输出日志。
func New(svc store.Services, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		svc:             svc,
		logger:          logger,
		groups:          newSet[string]("groups"),
		templates:       newSet[string]("templates"),
		hosts:           newSet[string]("hosts"),
		proxies:         newSet[string]("proxies"),
		valueMaps:       newSet[string]("value maps"),
		iconMaps:        newSet[string]("icon maps"),
		images:          newSet[string]("images"),
		maps:            newSet[string]("maps"),
		screens:         newSet[string]("screens"),
		applications:    newScoped("applications"),
		items:           newScoped("items"),
		macros:          newScoped("macros"),
		graphs:          newScoped("graphs"),
		templateScreens: newScoped("template screens"),
		triggers:        newSet[domain.TriggerKey]("triggers"),
		hostPrototypes:  newSet[domain.HostPrototypeKey]("host prototypes"),
		prototypeRules:  make(map[domain.ScopedKey]map[string]struct{}),
		interfaces:      make(map[domain.ScopedKey]string),
		lookups:         make(map[string]int),
	}
}

// AddGroups 登记主机组名称。
func (r *Resolver) AddGroups(names ...string) { r.groups.add(names...) }

// AddTemplates 登记模板名称。
func (r *Resolver) AddTemplates(names ...string) { r.templates.add(names...) }

// AddHosts 登记主机名称。
func (r *Resolver) AddHosts(names ...string) { r.hosts.add(names...) }

func (r *Resolver) AddProxies(names ...string)   { r.proxies.add(names...) }
func (r *Resolver) AddValueMaps(names ...string) { r.valueMaps.add(names...) }
func (r *Resolver) AddIconMaps(names ...string)  { r.iconMaps.add(names...) }
func (r *Resolver) AddImages(names ...string)    { r.images.add(names...) }
func (r *Resolver) AddMaps(names ...string)      { r.maps.add(names...) }
func (r *Resolver) AddScreens(names ...string)   { r.screens.add(names...) }

// AddApplications 登记 owner（主机或模板名）下的应用集。
func (r *Resolver) AddApplications(owner string, names ...string) {
	r.applications.addOwned(owner, names...)
}

// AddItems 登记 owner 下的监控项 key，自动发现规则与原型共用同一命名空间。
func (r *Resolver) AddItems(owner string, keys ...string) { r.items.addOwned(owner, keys...) }

func (r *Resolver) AddMacros(owner string, macros ...string) { r.macros.addOwned(owner, macros...) }
func (r *Resolver) AddGraphs(owner string, names ...string)  { r.graphs.addOwned(owner, names...) }

func (r *Resolver) AddTemplateScreens(owner string, names ...string) {
	r.templateScreens.addOwned(owner, names...)
}

// AddTriggers 登记触发器的 (描述, 表达式) 复合键。
func (r *Resolver) AddTriggers(keys ...domain.TriggerKey) { r.triggers.add(keys...) }

// AddHostPrototypes 登记 owner 上 ruleKey 规则下的主机原型。只有登记过的主机名可以被解析。
func (r *Resolver) AddHostPrototypes(owner, ruleKey string, hosts ...string) {
	key := domain.ScopedKey{ScopeID: owner, Name: ruleKey}
	candidates, ok := r.prototypeRules[key]
	if !ok {
		candidates = make(map[string]struct{})
		r.prototypeRules[key] = candidates
	}
	for _, host := range hosts {
		candidates[host] = struct{}{}
	}
	r.items.addOwned(owner, ruleKey)
}

// Load 对每种类型执行一次批量查询。名称类先于宿主范围类，后者需要宿主 id。
func (r *Resolver) Load(ctx context.Context) error {
	steps := []struct {
		kind string
		fn   func(context.Context) error
	}{
		{"groups", r.RefreshGroups},
		{"templates", r.RefreshTemplates},
		{"hosts", r.RefreshHosts},
		{"proxies", r.refreshProxies},
		{"value maps", r.refreshValueMaps},
		{"icon maps", r.refreshIconMaps},
		{"images", r.RefreshImages},
		{"maps", r.RefreshMaps},
		{"screens", r.RefreshScreens},
		{"macros", r.RefreshMacros},
		{"applications", r.RefreshApplications},
		{"items", r.RefreshItems},
		{"graphs", r.RefreshGraphs},
		{"template screens", r.RefreshTemplateScreens},
		{"triggers", r.RefreshTriggers},
		{"host prototypes", r.RefreshHostPrototypes},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			return fmt.Errorf("加载 %s 引用失败: %w", step.kind, err)
		}
	}
	return nil
}

// Lookups 返回每种类型已执行的批量查询次数。
func (r *Resolver) Lookups() map[string]int {
	out := make(map[string]int, len(r.lookups))
	for k, v := range r.lookups {
		out[k] = v
	}
	return out
}

func (r *Resolver) record(kind string, candidates, found int) {
	r.lookups[kind]++
	r.logger.Debug("批量查询引用",
		zap.String("kind", kind),
		zap.Int("candidates", candidates),
		zap.Int("found", found))
}

func loadNames[T domain.Entity](ctx context.Context, r *Resolver, svc store.Service[T], s *set[string]) error {
	names := sortedStrings(s)
	ids := make(map[string]string, len(names))
	if len(names) > 0 {
		records, err := svc.Get(ctx, store.Filter{Names: names})
		if err != nil {
			return err
		}
		for _, rec := range records {
			meta := rec.Meta()
			ids[meta.Name] = meta.ID
		}
		r.record(s.kind, len(names), len(ids))
	}
	s.reset(ids)
	return nil
}

func loadScoped[T domain.Entity](ctx context.Context, r *Resolver, svc store.Service[T], s *scoped) ([]T, error) {
	var ownerIDs []string
	for _, owner := range s.ownerNames() {
		if id, ok := r.ownerID(owner); ok {
			ownerIDs = append(ownerIDs, id)
		}
	}
	ids := make(map[domain.ScopedKey]string)
	var records []T
	if len(ownerIDs) > 0 {
		var err error
		records, err = svc.Get(ctx, store.Filter{HostIDs: ownerIDs})
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			meta := rec.Meta()
			for _, hostID := range meta.HostIDs {
				ids[domain.ScopedKey{ScopeID: hostID, Name: meta.Name}] = meta.ID
			}
		}
		r.record(s.kind, s.names, len(records))
	}
	s.reset(ids)
	return records, nil
}

// ownerID 在主机与模板中查找宿主名，未加载的集合视为空。
func (r *Resolver) ownerID(name string) (string, bool) {
	if r.hosts.loaded {
		if id, ok := r.hosts.ids[name]; ok {
			return id, true
		}
	}
	if r.templates.loaded {
		if id, ok := r.templates.ids[name]; ok {
			return id, true
		}
	}
	return "", false
}

func (r *Resolver) RefreshGroups(ctx context.Context) error {
	return loadNames(ctx, r, r.svc.Groups, r.groups)
}

func (r *Resolver) RefreshTemplates(ctx context.Context) error {
	return loadNames(ctx, r, r.svc.Templates, r.templates)
}

// RefreshHosts 重新查询主机，同时刷新接口缓存 (主机 id, interface_ref) -> 接口 id。
func (r *Resolver) RefreshHosts(ctx context.Context) error {
	names := sortedStrings(r.hosts)
	ids := make(map[string]string, len(names))
	interfaces := make(map[domain.ScopedKey]string)
	if len(names) > 0 {
		hosts, err := r.svc.Hosts.Get(ctx, store.Filter{Names: names})
		if err != nil {
			return err
		}
		for _, host := range hosts {
			ids[host.Host] = host.ID
			for _, iface := range host.Interfaces {
				if iface.Ref != "" {
					interfaces[domain.ScopedKey{ScopeID: host.ID, Name: iface.Ref}] = iface.ID
				}
			}
		}
		r.record(r.hosts.kind, len(names), len(ids))
	}
	r.hosts.reset(ids)
	r.interfaces = interfaces
	return nil
}

func (r *Resolver) refreshProxies(ctx context.Context) error {
	return loadNames(ctx, r, r.svc.Proxies, r.proxies)
}

func (r *Resolver) refreshValueMaps(ctx context.Context) error {
	return loadNames(ctx, r, r.svc.ValueMaps, r.valueMaps)
}

func (r *Resolver) refreshIconMaps(ctx context.Context) error {
	return loadNames(ctx, r, r.svc.IconMaps, r.iconMaps)
}

func (r *Resolver) RefreshImages(ctx context.Context) error {
	return loadNames(ctx, r, r.svc.Images, r.images)
}

func (r *Resolver) RefreshMaps(ctx context.Context) error {
	return loadNames(ctx, r, r.svc.Maps, r.maps)
}

func (r *Resolver) RefreshScreens(ctx context.Context) error {
	return loadNames(ctx, r, r.svc.Screens, r.screens)
}

func (r *Resolver) RefreshMacros(ctx context.Context) error {
	_, err := loadScoped(ctx, r, r.svc.Macros, r.macros)
	return err
}

func (r *Resolver) RefreshApplications(ctx context.Context) error {
	_, err := loadScoped(ctx, r, r.svc.Applications, r.applications)
	return err
}

func (r *Resolver) RefreshItems(ctx context.Context) error {
	_, err := loadScoped(ctx, r, r.svc.Items, r.items)
	return err
}

func (r *Resolver) RefreshGraphs(ctx context.Context) error {
	_, err := loadScoped(ctx, r, r.svc.Graphs, r.graphs)
	return err
}

func (r *Resolver) RefreshTemplateScreens(ctx context.Context) error {
	_, err := loadScoped(ctx, r, r.svc.TemplateScreens, r.templateScreens)
	return err
}

// RefreshTriggers 按描述批量查询，再用 (描述, 表达式) 建索引。
func (r *Resolver) RefreshTriggers(ctx context.Context) error {
	keys := r.triggers.keys()
	ids := make(map[domain.TriggerKey]string, len(keys))
	if len(keys) > 0 {
		seen := make(map[string]struct{}, len(keys))
		descriptions := make([]string, 0, len(keys))
		for _, k := range keys {
			if _, ok := seen[k.Description]; ok {
				continue
			}
			seen[k.Description] = struct{}{}
			descriptions = append(descriptions, k.Description)
		}
		sort.Strings(descriptions)
		triggers, err := r.svc.Triggers.Get(ctx, store.Filter{Names: descriptions})
		if err != nil {
			return err
		}
		for _, trigger := range triggers {
			ids[trigger.Key()] = trigger.ID
		}
		r.record(r.triggers.kind, len(keys), len(ids))
	}
	r.triggers.reset(ids)
	return nil
}

// RefreshHostPrototypes 按所属规则 id 一次取回主机原型。规则 id 来自 items 集合，需先加载 items。
func (r *Resolver) RefreshHostPrototypes(ctx context.Context) error {
	var ruleIDs []string
	candidates := make(map[string]map[string]struct{})
	total := 0
	for key, hosts := range r.prototypeRules {
		hostID, ok := r.ownerID(key.ScopeID)
		if !ok || !r.items.loaded {
			continue
		}
		if ruleID, ok := r.items.ids[domain.ScopedKey{ScopeID: hostID, Name: key.Name}]; ok {
			ruleIDs = append(ruleIDs, ruleID)
			candidates[ruleID] = hosts
			total += len(hosts)
		}
	}
	sort.Strings(ruleIDs)
	ids := make(map[domain.HostPrototypeKey]string)
	if len(ruleIDs) > 0 {
		prototypes, err := r.svc.HostPrototypes.Get(ctx, store.Filter{ParentIDs: ruleIDs})
		if err != nil {
			return err
		}
		for _, p := range prototypes {
			if _, ok := candidates[p.RuleID][p.Host]; !ok {
				continue
			}
			ids[domain.HostPrototypeKey{HostID: p.OwnerHostID, RuleID: p.RuleID, Host: p.Host}] = p.ID
		}
		r.record(r.hostPrototypes.kind, total, len(ids))
	}
	r.hostPrototypes.reset(ids)
	return nil
}

// GroupID 解析主机组名称。
func (r *Resolver) GroupID(name string) (string, bool) { return r.groups.resolve(name) }

// TemplateID 解析模板名称。
func (r *Resolver) TemplateID(name string) (string, bool) { return r.templates.resolve(name) }

// HostID 解析主机名称。
func (r *Resolver) HostID(name string) (string, bool) { return r.hosts.resolve(name) }

// HostOrTemplateID 先按主机再按模板解析，用于监控项、图形等可挂在两者之上的对象。
func (r *Resolver) HostOrTemplateID(name string) (string, bool) {
	if id, ok := r.hosts.resolve(name); ok {
		return id, true
	}
	return r.templates.resolve(name)
}

func (r *Resolver) ProxyID(name string) (string, bool)    { return r.proxies.resolve(name) }
func (r *Resolver) ValueMapID(name string) (string, bool) { return r.valueMaps.resolve(name) }
func (r *Resolver) IconMapID(name string) (string, bool)  { return r.iconMaps.resolve(name) }
func (r *Resolver) ImageID(name string) (string, bool)    { return r.images.resolve(name) }
func (r *Resolver) MapID(name string) (string, bool)      { return r.maps.resolve(name) }
func (r *Resolver) ScreenID(name string) (string, bool)   { return r.screens.resolve(name) }

func (r *Resolver) ApplicationID(hostID, name string) (string, bool) {
	return r.applications.resolve(domain.ScopedKey{ScopeID: hostID, Name: name})
}

// ItemID 解析 (宿主 id, key)，覆盖普通监控项、自动发现规则与监控项原型。
func (r *Resolver) ItemID(hostID, key string) (string, bool) {
	return r.items.resolve(domain.ScopedKey{ScopeID: hostID, Name: key})
}

func (r *Resolver) MacroID(hostID, macro string) (string, bool) {
	return r.macros.resolve(domain.ScopedKey{ScopeID: hostID, Name: macro})
}

// GraphID 解析 (宿主 id, 图形名)。不同主机上的同名图形互不影响。
func (r *Resolver) GraphID(hostID, name string) (string, bool) {
	return r.graphs.resolve(domain.ScopedKey{ScopeID: hostID, Name: name})
}

func (r *Resolver) TemplateScreenID(templateID, name string) (string, bool) {
	return r.templateScreens.resolve(domain.ScopedKey{ScopeID: templateID, Name: name})
}

// TriggerID 解析 (描述, 表达式)。
func (r *Resolver) TriggerID(description, expression string) (string, bool) {
	return r.triggers.resolve(domain.TriggerKey{Description: description, Expression: expression})
}

func (r *Resolver) HostPrototypeID(hostID, ruleID, host string) (string, bool) {
	return r.hostPrototypes.resolve(domain.HostPrototypeKey{HostID: hostID, RuleID: ruleID, Host: host})
}

// InterfaceID 解析主机上的 interface_ref，依赖 hosts 已加载。
func (r *Resolver) InterfaceID(hostID, ref string) (string, bool) {
	if !r.hosts.loaded {
		panic("resolver: interfaces 在批量查询之前被解析")
	}
	id, ok := r.interfaces[domain.ScopedKey{ScopeID: hostID, Name: ref}]
	return id, ok
}

// Forget 从全部缓存中移除已删除对象的 id，之后按原键解析会得到 absent。
func (r *Resolver) Forget(ids ...string) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	r.applications.forget(drop)
	r.items.forget(drop)
	r.macros.forget(drop)
	r.graphs.forget(drop)
	r.templateScreens.forget(drop)
	r.triggers.forget(drop)
	r.hostPrototypes.forget(drop)
}

// BindGroup 记录刚创建的主机组，免去一次刷新查询。
func (r *Resolver) BindGroup(name, id string)    { r.groups.bind(name, id) }
func (r *Resolver) BindTemplate(name, id string) { r.templates.bind(name, id) }
func (r *Resolver) BindHost(name, id string)     { r.hosts.bind(name, id) }
func (r *Resolver) BindMap(name, id string)      { r.maps.bind(name, id) }
func (r *Resolver) BindScreen(name, id string)   { r.screens.bind(name, id) }
func (r *Resolver) BindImage(name, id string)    { r.images.bind(name, id) }

func (r *Resolver) BindTemplateScreen(templateID, name, id string) {
	r.templateScreens.bind(domain.ScopedKey{ScopeID: templateID, Name: name}, id)
}
