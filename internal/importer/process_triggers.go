package importer

import (
	"context"
	"fmt"

	"confimport/internal/domain"
)

// processTriggers 处理包级别的触发器，依赖在全部触发器写入之后统一设置。
func (im *Importer) processTriggers(ctx context.Context) error {
	policy := im.rules.For(domain.EntityTriggers)
	return im.processTriggerSet(ctx, im.src.Triggers(), domain.FlagNormal, KindTriggers, policy)
}

// processTriggerSet 分两步：先批量创建与更新触发器并刷新解析器，
// 再解析每个依赖的 (描述, 表达式) 并一次性写入。依赖可以指向包中排在后面的触发器。
func (im *Importer) processTriggerSet(ctx context.Context, triggers []domain.Trigger, flags int, kind string, policy Policy) error {
	if len(triggers) == 0 || (!policy.CreateMissing && !policy.UpdateExisting) {
		return nil
	}
	var (
		creates, updates []*domain.Trigger
		written          []domain.Trigger
		seen             = make(map[domain.TriggerKey]struct{})
	)
	for _, trigger := range triggers {
		if _, dup := seen[trigger.Key()]; dup {
			continue
		}
		seen[trigger.Key()] = struct{}{}
		rec, err := im.prepareTrigger(trigger, flags, kind)
		if err != nil {
			return err
		}
		if id, ok := im.resolver.TriggerID(trigger.Description, trigger.Expression); ok {
			if !policy.UpdateExisting {
				continue
			}
			rec.ID = id
			updates = append(updates, rec)
		} else {
			if !policy.CreateMissing {
				continue
			}
			creates = append(creates, rec)
		}
		written = append(written, trigger)
	}
	if len(creates) == 0 && len(updates) == 0 {
		return nil
	}
	if _, err := apply(ctx, im, kind, im.svc.Triggers, creates, updates); err != nil {
		return err
	}
	if err := im.resolver.RefreshTriggers(ctx); err != nil {
		return fmt.Errorf("刷新 %s 失败: %w", kind, err)
	}
	return im.wireDependencies(ctx, written, kind)
}

// prepareTrigger 根据表达式中的 (主机, key) 解析出宿主与监控项 id。
func (im *Importer) prepareTrigger(trigger domain.Trigger, flags int, kind string) (*domain.Trigger, error) {
	refs, err := im.parse(trigger)
	if err != nil {
		return nil, err
	}
	rec := trigger
	rec.ID = ""
	rec.Flags = flags
	rec.HostIDs = nil
	rec.ItemIDs = nil
	rec.DependencyIDs = nil
	for _, ref := range refs {
		hostID, ok := im.resolver.HostOrTemplateID(ref.Host)
		if !ok {
			return nil, refErr(kind, trigger.Description, "host", ref.Host, "")
		}
		itemID, ok := im.resolver.ItemID(hostID, ref.Key)
		if !ok {
			return nil, refErr(kind, trigger.Description, "item", ref.Key, ref.Host)
		}
		rec.HostIDs = appendUnique(rec.HostIDs, hostID)
		rec.ItemIDs = appendUnique(rec.ItemIDs, itemID)
	}
	return &rec, nil
}

// wireDependencies 为本次写入的触发器设置依赖，目标不存在时报错而不是忽略。
func (im *Importer) wireDependencies(ctx context.Context, triggers []domain.Trigger, kind string) error {
	deps := make([]domain.TriggerDependency, 0, len(triggers))
	for _, trigger := range triggers {
		id, ok := im.resolver.TriggerID(trigger.Description, trigger.Expression)
		if !ok {
			return fmt.Errorf("%s %q 写入后仍无法解析", kind, trigger.Description)
		}
		dep := domain.TriggerDependency{TriggerID: id}
		for _, target := range trigger.Dependencies {
			targetID, ok := im.resolver.TriggerID(target.Name, target.Expression)
			if !ok {
				return &DependencyError{Trigger: trigger.Key(), Dependency: target.Key()}
			}
			dep.DependsOn = appendUnique(dep.DependsOn, targetID)
		}
		deps = append(deps, dep)
	}
	if len(deps) == 0 {
		return nil
	}
	if err := im.svc.Triggers.SetDependencies(ctx, deps); err != nil {
		return fmt.Errorf("设置 %s 依赖失败: %w", kind, err)
	}
	return nil
}
