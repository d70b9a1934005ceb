package importer

import (
	"context"
	"fmt"

	"confimport/internal/domain"
)

// processApplications 只为已处理的宿主创建缺失的应用集。
func (im *Importer) processApplications(ctx context.Context) error {
	if !im.rules.For(domain.EntityApplications).CreateMissing {
		return nil
	}
	applications := im.src.Applications()
	var creates []*domain.Application
	for _, owner := range sortedKeys(applications) {
		ownerID, ok := im.ownerID(owner)
		if !ok {
			continue
		}
		seen := make(map[string]struct{})
		for _, app := range applications[owner] {
			if _, dup := seen[app.Name]; dup {
				continue
			}
			seen[app.Name] = struct{}{}
			if _, exists := im.resolver.ApplicationID(ownerID, app.Name); exists {
				continue
			}
			creates = append(creates, &domain.Application{HostID: ownerID, Name: app.Name})
		}
	}
	if len(creates) == 0 {
		return nil
	}
	if _, err := apply(ctx, im, KindApplications, im.svc.Applications, creates, nil); err != nil {
		return err
	}
	if err := im.resolver.RefreshApplications(ctx); err != nil {
		return fmt.Errorf("刷新 applications 失败: %w", err)
	}
	return nil
}

// processItems 创建或更新已处理宿主上的普通监控项。
func (im *Importer) processItems(ctx context.Context) error {
	policy := im.rules.For(domain.EntityItems)
	if !policy.CreateMissing && !policy.UpdateExisting {
		return nil
	}
	items := im.src.Items()
	var creates, updates []*domain.Item
	for _, owner := range sortedKeys(items) {
		ownerID, ok := im.ownerID(owner)
		if !ok {
			continue
		}
		for _, item := range items[owner] {
			rec, err := im.prepareItem(owner, ownerID, item, "item")
			if err != nil {
				return err
			}
			rec.Flags = domain.FlagNormal
			creates, updates = im.bucketItem(rec, policy, creates, updates)
		}
	}
	if len(creates) == 0 && len(updates) == 0 {
		return nil
	}
	if _, err := apply(ctx, im, KindItems, im.svc.Items, creates, updates); err != nil {
		return err
	}
	if err := im.resolver.RefreshItems(ctx); err != nil {
		return fmt.Errorf("刷新 items 失败: %w", err)
	}
	return nil
}

// prepareItem 把监控项中的名称引用换成 id：应用集、值映射与接口。
func (im *Importer) prepareItem(owner, ownerID string, item domain.Item, kind string) (*domain.Item, error) {
	rec := item
	rec.ID = ""
	rec.HostID = ownerID
	rec.ApplicationIDs = nil
	for _, app := range domain.Names(item.Applications) {
		appID, ok := im.resolver.ApplicationID(ownerID, app)
		if !ok {
			return nil, refErr(kind, item.Key, "application", app, owner)
		}
		rec.ApplicationIDs = appendUnique(rec.ApplicationIDs, appID)
	}
	rec.ValueMapID = ""
	if item.ValueMap != nil && item.ValueMap.Name != "" {
		vmID, ok := im.resolver.ValueMapID(item.ValueMap.Name)
		if !ok {
			return nil, refErr(kind, item.Key, "value map", item.ValueMap.Name, "")
		}
		rec.ValueMapID = vmID
	}
	rec.InterfaceID = ""
	if item.InterfaceRef != "" {
		ifaceID, ok := im.resolver.InterfaceID(ownerID, item.InterfaceRef)
		if !ok {
			return nil, refErr(kind, item.Key, "interface", item.InterfaceRef, owner)
		}
		rec.InterfaceID = ifaceID
	}
	return &rec, nil
}

func (im *Importer) bucketItem(rec *domain.Item, policy Policy, creates, updates []*domain.Item) ([]*domain.Item, []*domain.Item) {
	if id, ok := im.resolver.ItemID(rec.HostID, rec.Key); ok {
		if policy.UpdateExisting {
			rec.ID = id
			updates = append(updates, rec)
		}
		return creates, updates
	}
	if policy.CreateMissing {
		creates = append(creates, rec)
	}
	return creates, updates
}
