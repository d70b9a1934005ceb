package importer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"confimport/internal/domain"
	"confimport/internal/store"
)

// processMaps 分两步：先为缺失的拓扑图创建空壳并绑定 id，再解析元素与连线，
// 用一次批量更新补全。拓扑图之间可以互相引用，所以引用解析必须等所有图都有 id。
func (im *Importer) processMaps(ctx context.Context) error {
	policy := im.rules.For(domain.EntityMaps)
	maps := im.src.Maps()
	if len(maps) == 0 || (!policy.CreateMissing && !policy.UpdateExisting) {
		return nil
	}

	var creates []*domain.Map
	var pending []domain.Map
	existing := 0
	seen := make(map[string]struct{}, len(maps))
	for _, m := range maps {
		if _, dup := seen[m.Name]; dup {
			continue
		}
		seen[m.Name] = struct{}{}
		if _, ok := im.resolver.MapID(m.Name); ok {
			if policy.UpdateExisting {
				pending = append(pending, m)
				existing++
			}
			continue
		}
		if policy.CreateMissing {
			creates = append(creates, &domain.Map{Name: m.Name, Width: m.Width, Height: m.Height})
			pending = append(pending, m)
		}
	}
	if _, err := apply(ctx, im, KindMaps, im.svc.Maps, creates, nil); err != nil {
		return err
	}
	for _, rec := range creates {
		im.resolver.BindMap(rec.Name, rec.ID)
	}

	records := make([]*domain.Map, 0, len(pending))
	for _, m := range pending {
		rec, err := im.prepareMap(m)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}
	return complete(ctx, im, KindMaps, im.svc.Maps, records, existing)
}

// prepareMap 解析拓扑图引用的图标映射、元素、图标与连线触发器。
func (im *Importer) prepareMap(m domain.Map) (*domain.Map, error) {
	id, ok := im.resolver.MapID(m.Name)
	if !ok {
		return nil, fmt.Errorf("拓扑图 %q 写入后仍无法解析", m.Name)
	}
	rec := m
	rec.ID = id
	rec.IconMapID = ""
	if m.IconMap != nil && m.IconMap.Name != "" {
		iconMapID, ok := im.resolver.IconMapID(m.IconMap.Name)
		if !ok {
			return nil, refErr("map", m.Name, "icon map", m.IconMap.Name, "")
		}
		rec.IconMapID = iconMapID
	}

	rec.Selements = make([]domain.Selement, len(m.Selements))
	for i, el := range m.Selements {
		elementID, err := im.resolveSelement(m.Name, el)
		if err != nil {
			return nil, err
		}
		el.ElementID = elementID
		el.IconOffID = ""
		if el.IconOff != nil && el.IconOff.Name != "" {
			imageID, ok := im.resolver.ImageID(el.IconOff.Name)
			if !ok {
				return nil, refErr("map", m.Name, "image", el.IconOff.Name, "")
			}
			el.IconOffID = imageID
		}
		rec.Selements[i] = el
	}

	rec.Links = make([]domain.MapLink, len(m.Links))
	for i, link := range m.Links {
		triggers := make([]domain.LinkTrigger, len(link.LinkTriggers))
		for j, lt := range link.LinkTriggers {
			triggerID, ok := im.resolver.TriggerID(lt.Trigger.Name, lt.Trigger.Expression)
			if !ok {
				return nil, refErr("map", m.Name, "trigger", lt.Trigger.Name, "")
			}
			lt.TriggerID = triggerID
			triggers[j] = lt
		}
		link.LinkTriggers = triggers
		rec.Links[i] = link
	}
	return &rec, nil
}

func (im *Importer) resolveSelement(mapName string, el domain.Selement) (string, error) {
	ref := el.Element
	if ref == nil {
		return "", nil
	}
	var (
		id      string
		ok      bool
		refKind string
		name    string
	)
	switch el.ElementType {
	case domain.SelementHost:
		id, ok = im.resolver.HostID(ref.Host)
		refKind, name = "host", ref.Host
	case domain.SelementMap:
		id, ok = im.resolver.MapID(ref.Name)
		refKind, name = "map", ref.Name
	case domain.SelementTrigger:
		id, ok = im.resolver.TriggerID(ref.Name, ref.Expression)
		refKind, name = "trigger", ref.Name
	case domain.SelementHostGroup:
		id, ok = im.resolver.GroupID(ref.Name)
		refKind, name = "group", ref.Name
	default:
		return "", nil
	}
	if !ok {
		return "", refErr("map", mapName, refKind, name, "")
	}
	return id, nil
}

// complete 用一次批量更新补全先建空壳、后解析引用的对象，只有原本已存在的对象计入更新数。
func complete[T domain.Entity](ctx context.Context, im *Importer, kind string, svc store.Service[T], records []T, existing int) error {
	if len(records) == 0 {
		return nil
	}
	if err := svc.Update(ctx, records); err != nil {
		return fmt.Errorf("更新 %s 失败: %w", kind, err)
	}
	if existing > 0 {
		im.result.stat(kind).Updated += existing
	}
	im.logger.Info("补全对象引用", zap.String("kind", kind), zap.Int("update", len(records)))
	return nil
}
