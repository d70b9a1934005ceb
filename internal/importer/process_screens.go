package importer

import (
	"context"
	"fmt"

	"confimport/internal/domain"
	"confimport/internal/store"
)

// processScreens 与拓扑图相同分两步，聚合图可以引用其他聚合图。
func (im *Importer) processScreens(ctx context.Context) error {
	policy := im.rules.For(domain.EntityScreens)
	screens := im.src.Screens()
	if len(screens) == 0 || (!policy.CreateMissing && !policy.UpdateExisting) {
		return nil
	}

	var creates []*domain.Screen
	var pending []domain.Screen
	existing := 0
	seen := make(map[string]struct{}, len(screens))
	for _, screen := range screens {
		if _, dup := seen[screen.Name]; dup {
			continue
		}
		seen[screen.Name] = struct{}{}
		if _, ok := im.resolver.ScreenID(screen.Name); ok {
			if policy.UpdateExisting {
				pending = append(pending, screen)
				existing++
			}
			continue
		}
		if policy.CreateMissing {
			creates = append(creates, &domain.Screen{Name: screen.Name, HSize: screen.HSize, VSize: screen.VSize})
			pending = append(pending, screen)
		}
	}
	if _, err := apply(ctx, im, KindScreens, im.svc.Screens, creates, nil); err != nil {
		return err
	}
	for _, rec := range creates {
		im.resolver.BindScreen(rec.Name, rec.ID)
	}

	records := make([]*domain.Screen, 0, len(pending))
	for _, screen := range pending {
		id, ok := im.resolver.ScreenID(screen.Name)
		if !ok {
			return fmt.Errorf("聚合图形 %q 写入后仍无法解析", screen.Name)
		}
		items, err := im.resolveScreenItems("screen", screen.Name, screen.ScreenItems)
		if err != nil {
			return err
		}
		rec := screen
		rec.ID = id
		rec.TemplateID = ""
		rec.ScreenItems = items
		records = append(records, &rec)
	}
	return complete(ctx, im, KindScreens, im.svc.Screens, records, existing)
}

// processTemplateScreens 只处理已处理模板上的聚合图，以 (模板 id, 名称) 为键，
// 开启 deleteMissing 时删除这些模板上包中缺失的聚合图。
func (im *Importer) processTemplateScreens(ctx context.Context) error {
	policy := im.rules.For(domain.EntityTemplateScreens)
	if !policy.CreateMissing && !policy.UpdateExisting && !policy.DeleteMissing {
		return nil
	}
	all := im.src.TemplateScreens()
	var creates, updates []*domain.Screen
	keep := keepSet{}
	for _, owner := range sortedKeys(all) {
		templateID, ok := im.resolver.TemplateID(owner)
		if !ok || !im.ledger.IsTemplateProcessed(templateID) {
			continue
		}
		seen := make(map[string]struct{})
		for _, screen := range all[owner] {
			if _, dup := seen[screen.Name]; dup {
				continue
			}
			seen[screen.Name] = struct{}{}
			id, found := im.resolver.TemplateScreenID(templateID, screen.Name)
			keep.add(id, found)
			if (found && !policy.UpdateExisting) || (!found && !policy.CreateMissing) {
				continue
			}
			items, err := im.resolveScreenItems("template screen", screen.Name, screen.ScreenItems)
			if err != nil {
				return err
			}
			rec := screen
			rec.ID = ""
			rec.TemplateID = templateID
			rec.ScreenItems = items
			if found {
				rec.ID = id
				updates = append(updates, &rec)
			} else {
				creates = append(creates, &rec)
			}
		}
	}
	if _, err := apply(ctx, im, KindTemplateScreens, im.svc.TemplateScreens, creates, updates); err != nil {
		return err
	}
	for _, rec := range creates {
		im.resolver.BindTemplateScreen(rec.TemplateID, rec.Name, rec.ID)
	}

	if !policy.DeleteMissing {
		return nil
	}
	templates := im.ledger.TemplateIDs()
	if len(templates) == 0 {
		return nil
	}
	current, err := im.svc.TemplateScreens.Get(ctx, store.Filter{HostIDs: templates})
	if err != nil {
		return fmt.Errorf("查询 template screens 失败: %w", err)
	}
	for _, rec := range creates {
		keep.add(rec.ID, true)
	}
	return sweep(ctx, im, KindTemplateScreens, im.svc.TemplateScreens, orphans(current, keep, im.ledger))
}

// resolveScreenItems 按资源类型解析聚合图单元格引用的对象。
func (im *Importer) resolveScreenItems(kind, screen string, items []domain.ScreenItem) ([]domain.ScreenItem, error) {
	out := make([]domain.ScreenItem, len(items))
	for i, item := range items {
		item.ResourceID = ""
		if res := item.Resource; res != nil {
			id, err := im.resolveScreenResource(kind, screen, item.ResourceType, *res)
			if err != nil {
				return nil, err
			}
			item.ResourceID = id
		}
		out[i] = item
	}
	return out, nil
}

func (im *Importer) resolveScreenResource(kind, screen string, resourceType int, res domain.ElementRef) (string, error) {
	switch resourceType {
	case domain.ScreenResourceGraph, domain.ScreenResourceLLDGraph:
		hostID, ok := im.resolver.HostOrTemplateID(res.Host)
		if !ok {
			return "", refErr(kind, screen, "host", res.Host, "")
		}
		id, ok := im.resolver.GraphID(hostID, res.Name)
		if !ok {
			return "", refErr(kind, screen, "graph", res.Name, res.Host)
		}
		return id, nil
	case domain.ScreenResourceSimpleGraph, domain.ScreenResourcePlainText, domain.ScreenResourceLLDSimpleGraph:
		hostID, ok := im.resolver.HostOrTemplateID(res.Host)
		if !ok {
			return "", refErr(kind, screen, "host", res.Host, "")
		}
		id, ok := im.resolver.ItemID(hostID, res.Key)
		if !ok {
			return "", refErr(kind, screen, "item", res.Key, res.Host)
		}
		return id, nil
	case domain.ScreenResourceMap:
		id, ok := im.resolver.MapID(res.Name)
		if !ok {
			return "", refErr(kind, screen, "map", res.Name, "")
		}
		return id, nil
	case domain.ScreenResourceScreen:
		id, ok := im.resolver.ScreenID(res.Name)
		if !ok {
			return "", refErr(kind, screen, "screen", res.Name, "")
		}
		return id, nil
	case domain.ScreenResourceHostsInfo, domain.ScreenResourceTriggersInfo, domain.ScreenResourceTriggersOverview,
		domain.ScreenResourceDataOverview, domain.ScreenResourceHostgroupTriggers:
		id, ok := im.resolver.GroupID(res.Name)
		if !ok {
			return "", refErr(kind, screen, "group", res.Name, "")
		}
		return id, nil
	case domain.ScreenResourceHostTriggers:
		id, ok := im.resolver.HostID(res.Host)
		if !ok {
			return "", refErr(kind, screen, "host", res.Host, "")
		}
		return id, nil
	}
	return "", nil
}
