package importer

import (
	"context"
	"fmt"

	"confimport/internal/domain"
	"confimport/internal/store"
)

// 删除缺失对象的通用做法：取回已处理宿主下的现有对象，减去导入包中能解析到的对象，
// 剩下的只有在其全部宿主都已处理时才删除。

type keepSet map[string]struct{}

func (k keepSet) add(id string, ok bool) {
	if ok {
		k[id] = struct{}{}
	}
}

// orphans 返回不在 keep 中、且全部宿主都在 ledger 内的对象 id。
func orphans[T domain.Entity](records []T, keep keepSet, ledger *Ledger) []string {
	var ids []string
	for _, rec := range records {
		meta := rec.Meta()
		if _, ok := keep[meta.ID]; ok {
			continue
		}
		if !ledger.Covers(meta.HostIDs) {
			continue
		}
		ids = append(ids, meta.ID)
	}
	return ids
}

// sweep 删除 ids 并让解析器忘掉它们。
func sweep[T domain.Entity](ctx context.Context, im *Importer, kind string, svc store.Service[T], ids []string) error {
	if err := remove(ctx, im, kind, svc, ids); err != nil {
		return err
	}
	im.resolver.Forget(ids...)
	return nil
}

func idSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func hitsAny(ids []string, set map[string]struct{}) bool {
	for _, id := range ids {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}

// sweepTriggers 删除触发器，并先从其余触发器的依赖中摘掉它们。
func (im *Importer) sweepTriggers(ctx context.Context, kind string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	drop := idSet(ids)
	// 依赖可以跨主机，只能查全部触发器。
	all, err := im.svc.Triggers.Get(ctx, store.Filter{})
	if err != nil {
		return fmt.Errorf("查询 %s 依赖失败: %w", kind, err)
	}
	var deps []domain.TriggerDependency
	for _, trigger := range all {
		if _, gone := drop[trigger.ID]; gone || !hitsAny(trigger.DependencyIDs, drop) {
			continue
		}
		kept := make([]string, 0, len(trigger.DependencyIDs))
		for _, dep := range trigger.DependencyIDs {
			if _, ok := drop[dep]; !ok {
				kept = append(kept, dep)
			}
		}
		deps = append(deps, domain.TriggerDependency{TriggerID: trigger.ID, DependsOn: kept})
	}
	if len(deps) > 0 {
		if err := im.svc.Triggers.SetDependencies(ctx, deps); err != nil {
			return fmt.Errorf("摘除 %s 依赖失败: %w", kind, err)
		}
	}
	return sweep(ctx, im, kind, im.svc.Triggers, ids)
}

// sweepItems 删除监控项。使用这些监控项的触发器和图形一并删除，
// 只把它们作为 Y 轴边界的图形改回自动计算。
func (im *Importer) sweepItems(ctx context.Context, kind string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	drop := idSet(ids)
	// 被删除的监控项都属于已处理宿主，引用它们的对象必然挂在这些宿主上。
	owners := im.ledger.OwnerIDs()

	triggers, err := im.svc.Triggers.Get(ctx, store.Filter{HostIDs: owners})
	if err != nil {
		return fmt.Errorf("查询引用 %s 的触发器失败: %w", kind, err)
	}
	var triggerIDs, prototypeIDs []string
	for _, trigger := range triggers {
		if !hitsAny(trigger.ItemIDs, drop) {
			continue
		}
		if trigger.Flags == domain.FlagPrototype {
			prototypeIDs = append(prototypeIDs, trigger.ID)
		} else {
			triggerIDs = append(triggerIDs, trigger.ID)
		}
	}
	if err := im.sweepTriggers(ctx, KindTriggerPrototypes, prototypeIDs); err != nil {
		return err
	}
	if err := im.sweepTriggers(ctx, KindTriggers, triggerIDs); err != nil {
		return err
	}

	graphs, err := im.svc.Graphs.Get(ctx, store.Filter{HostIDs: owners})
	if err != nil {
		return fmt.Errorf("查询引用 %s 的图形失败: %w", kind, err)
	}
	var graphIDs, graphPrototypeIDs []string
	var bounded, boundedPrototypes []*domain.Graph
	for _, graph := range graphs {
		uses := false
		for _, gi := range graph.Items {
			if _, ok := drop[gi.ItemID]; ok {
				uses = true
				break
			}
		}
		prototype := graph.Flags == domain.FlagPrototype
		if uses {
			if prototype {
				graphPrototypeIDs = append(graphPrototypeIDs, graph.ID)
			} else {
				graphIDs = append(graphIDs, graph.ID)
			}
			continue
		}
		if !clearAxisItems(graph, drop) {
			continue
		}
		if prototype {
			boundedPrototypes = append(boundedPrototypes, graph)
		} else {
			bounded = append(bounded, graph)
		}
	}
	if err := sweep(ctx, im, KindGraphPrototypes, im.svc.Graphs, graphPrototypeIDs); err != nil {
		return err
	}
	if err := sweep(ctx, im, KindGraphs, im.svc.Graphs, graphIDs); err != nil {
		return err
	}
	if _, err := apply(ctx, im, KindGraphPrototypes, im.svc.Graphs, nil, boundedPrototypes); err != nil {
		return err
	}
	if _, err := apply(ctx, im, KindGraphs, im.svc.Graphs, nil, bounded); err != nil {
		return err
	}
	return sweep(ctx, im, kind, im.svc.Items, ids)
}

// clearAxisItems 把指向被删除监控项的 Y 轴边界改为自动计算，返回是否有改动。
func clearAxisItems(graph *domain.Graph, drop map[string]struct{}) bool {
	changed := false
	if _, ok := drop[graph.YMinItemID]; ok && graph.YMinItemID != "" {
		graph.YMinType, graph.YMinItemID, graph.YMinItem = domain.YAxisCalculated, "", nil
		changed = true
	}
	if _, ok := drop[graph.YMaxItemID]; ok && graph.YMaxItemID != "" {
		graph.YMaxType, graph.YMaxItemID, graph.YMaxItem = domain.YAxisCalculated, "", nil
		changed = true
	}
	return changed
}

// deleteMissingDiscoveryRules 删除包中缺失的自动发现规则及其原型。
// 存储不做级联删除，所以原型先于规则删除，被删除规则下的原型也一并清理。
// 删除监控项与触发器时的级联由 sweepItems、sweepTriggers 完成。
func (im *Importer) deleteMissingDiscoveryRules(ctx context.Context) error {
	if !im.rules.For(domain.EntityDiscoveryRules).DeleteMissing {
		return nil
	}
	owners := im.ledger.OwnerIDs()
	if len(owners) == 0 {
		return nil
	}

	keepRules, keepItems, keepHosts := keepSet{}, keepSet{}, keepSet{}
	keepTriggers, keepGraphs := keepSet{}, keepSet{}
	all := im.src.DiscoveryRules()
	for _, owner := range sortedKeys(all) {
		hostID, ok := im.resolver.HostOrTemplateID(owner)
		if !ok {
			continue
		}
		for _, rule := range all[owner] {
			ruleID, ok := im.resolver.ItemID(hostID, rule.Key)
			if !ok {
				continue
			}
			keepRules.add(ruleID, true)
			for _, proto := range rule.ItemPrototypes {
				keepItems.add(im.resolver.ItemID(hostID, proto.Key))
			}
			for _, proto := range rule.HostPrototypes {
				keepHosts.add(im.resolver.HostPrototypeID(hostID, ruleID, proto.Host))
			}
			for _, proto := range rule.TriggerPrototypes {
				keepTriggers.add(im.resolver.TriggerID(proto.Description, proto.Expression))
			}
			for _, proto := range rule.GraphPrototypes {
				keepGraphs.add(im.graphID(proto))
			}
		}
	}

	items, err := im.svc.Items.Get(ctx, store.Filter{
		HostIDs: owners,
		Flags:   []int{domain.FlagDiscoveryRule, domain.FlagPrototype},
	})
	if err != nil {
		return fmt.Errorf("查询 discovery rules 失败: %w", err)
	}
	var rules, itemPrototypes []*domain.Item
	var ruleIDs []string
	for _, item := range items {
		if item.Flags == domain.FlagDiscoveryRule {
			rules = append(rules, item)
			ruleIDs = append(ruleIDs, item.ID)
		} else {
			itemPrototypes = append(itemPrototypes, item)
		}
	}

	triggerPrototypes, err := im.svc.Triggers.Get(ctx, store.Filter{HostIDs: owners, Flags: []int{domain.FlagPrototype}})
	if err != nil {
		return fmt.Errorf("查询 trigger prototypes 失败: %w", err)
	}
	if err := im.sweepTriggers(ctx, KindTriggerPrototypes, orphans(triggerPrototypes, keepTriggers, im.ledger)); err != nil {
		return err
	}

	graphPrototypes, err := im.svc.Graphs.Get(ctx, store.Filter{HostIDs: owners, Flags: []int{domain.FlagPrototype}})
	if err != nil {
		return fmt.Errorf("查询 graph prototypes 失败: %w", err)
	}
	if err := sweep(ctx, im, KindGraphPrototypes, im.svc.Graphs, orphans(graphPrototypes, keepGraphs, im.ledger)); err != nil {
		return err
	}

	if len(ruleIDs) > 0 {
		hostPrototypes, err := im.svc.HostPrototypes.Get(ctx, store.Filter{ParentIDs: ruleIDs})
		if err != nil {
			return fmt.Errorf("查询 host prototypes 失败: %w", err)
		}
		if err := sweep(ctx, im, KindHostPrototypes, im.svc.HostPrototypes, orphans(hostPrototypes, keepHosts, im.ledger)); err != nil {
			return err
		}
	}

	if err := im.sweepItems(ctx, KindItemPrototypes, orphans(itemPrototypes, keepItems, im.ledger)); err != nil {
		return err
	}
	return sweep(ctx, im, KindDiscoveryRules, im.svc.Items, orphans(rules, keepRules, im.ledger))
}

// deleteMissingTriggers 删除已处理宿主上包中缺失的触发器。
// 同时挂在未处理主机上的触发器保留。
func (im *Importer) deleteMissingTriggers(ctx context.Context) error {
	if !im.rules.For(domain.EntityTriggers).DeleteMissing {
		return nil
	}
	owners := im.ledger.OwnerIDs()
	if len(owners) == 0 {
		return nil
	}
	keep := keepSet{}
	for _, trigger := range im.src.Triggers() {
		keep.add(im.resolver.TriggerID(trigger.Description, trigger.Expression))
	}
	existing, err := im.svc.Triggers.Get(ctx, store.Filter{HostIDs: owners, Flags: []int{domain.FlagNormal}})
	if err != nil {
		return fmt.Errorf("查询 triggers 失败: %w", err)
	}
	return im.sweepTriggers(ctx, KindTriggers, orphans(existing, keep, im.ledger))
}

// deleteMissingGraphs 与触发器相同，按 (主机, 名称) 判断图形是否仍在包中。
func (im *Importer) deleteMissingGraphs(ctx context.Context) error {
	if !im.rules.For(domain.EntityGraphs).DeleteMissing {
		return nil
	}
	owners := im.ledger.OwnerIDs()
	if len(owners) == 0 {
		return nil
	}
	keep := keepSet{}
	for _, graph := range im.src.Graphs() {
		keep.add(im.graphID(graph))
	}
	existing, err := im.svc.Graphs.Get(ctx, store.Filter{HostIDs: owners, Flags: []int{domain.FlagNormal}})
	if err != nil {
		return fmt.Errorf("查询 graphs 失败: %w", err)
	}
	return sweep(ctx, im, KindGraphs, im.svc.Graphs, orphans(existing, keep, im.ledger))
}

func (im *Importer) deleteMissingItems(ctx context.Context) error {
	if !im.rules.For(domain.EntityItems).DeleteMissing {
		return nil
	}
	owners := im.ledger.OwnerIDs()
	if len(owners) == 0 {
		return nil
	}
	keep := keepSet{}
	items := im.src.Items()
	for _, owner := range sortedKeys(items) {
		hostID, ok := im.resolver.HostOrTemplateID(owner)
		if !ok {
			continue
		}
		for _, item := range items[owner] {
			keep.add(im.resolver.ItemID(hostID, item.Key))
		}
	}
	existing, err := im.svc.Items.Get(ctx, store.Filter{HostIDs: owners, Flags: []int{domain.FlagNormal}})
	if err != nil {
		return fmt.Errorf("查询 items 失败: %w", err)
	}
	return im.sweepItems(ctx, KindItems, orphans(existing, keep, im.ledger))
}

func (im *Importer) deleteMissingApplications(ctx context.Context) error {
	if !im.rules.For(domain.EntityApplications).DeleteMissing {
		return nil
	}
	owners := im.ledger.OwnerIDs()
	if len(owners) == 0 {
		return nil
	}
	keep := keepSet{}
	applications := im.src.Applications()
	for _, owner := range sortedKeys(applications) {
		hostID, ok := im.resolver.HostOrTemplateID(owner)
		if !ok {
			continue
		}
		for _, app := range applications[owner] {
			keep.add(im.resolver.ApplicationID(hostID, app.Name))
		}
	}
	existing, err := im.svc.Applications.Get(ctx, store.Filter{HostIDs: owners})
	if err != nil {
		return fmt.Errorf("查询 applications 失败: %w", err)
	}
	return sweep(ctx, im, KindApplications, im.svc.Applications, orphans(existing, keep, im.ledger))
}

// graphID 按图形自然键解析已有 id。
func (im *Importer) graphID(graph domain.Graph) (string, bool) {
	host, ok := graphHost(graph)
	if !ok {
		return "", false
	}
	hostID, ok := im.resolver.HostOrTemplateID(host)
	if !ok {
		return "", false
	}
	return im.resolver.GraphID(hostID, graph.Name)
}
