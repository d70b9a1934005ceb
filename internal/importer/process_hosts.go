package importer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"confimport/internal/domain"
	"confimport/internal/store"
)

// processGroups 只创建缺失的主机组，组没有更新与删除语义。
func (im *Importer) processGroups(ctx context.Context) error {
	if !im.rules.For(domain.EntityGroups).CreateMissing {
		return nil
	}
	var creates []*domain.Group
	for _, group := range im.src.Groups() {
		if _, ok := im.resolver.GroupID(group.Name); ok {
			continue
		}
		creates = append(creates, &domain.Group{Name: group.Name})
	}
	if _, err := apply(ctx, im, KindGroups, im.svc.Groups, creates, nil); err != nil {
		return err
	}
	for _, g := range creates {
		im.resolver.BindGroup(g.Name, g.ID)
	}
	return nil
}

// templateLevels 按包内链接关系把模板分层，被链接的模板排在前面。
func templateLevels(templates []domain.Template) ([][]domain.Template, error) {
	inPackage := make(map[string]struct{}, len(templates))
	for _, tpl := range templates {
		inPackage[tpl.Host] = struct{}{}
	}
	placed := make(map[string]struct{}, len(templates))
	remaining := templates
	var levels [][]domain.Template
	for len(remaining) > 0 {
		var level, next []domain.Template
		for _, tpl := range remaining {
			ready := true
			for _, linked := range domain.Names(tpl.Templates) {
				if _, local := inPackage[linked]; !local {
					continue
				}
				if _, ok := placed[linked]; !ok {
					ready = false
					break
				}
			}
			if ready {
				level = append(level, tpl)
			} else {
				next = append(next, tpl)
			}
		}
		if len(level) == 0 {
			names := make([]string, 0, len(next))
			for _, tpl := range next {
				names = append(names, tpl.Host)
			}
			sort.Strings(names)
			return nil, fmt.Errorf("%w: %s", ErrTemplateCycle, strings.Join(names, ", "))
		}
		for _, tpl := range level {
			placed[tpl.Host] = struct{}{}
		}
		levels = append(levels, level)
		remaining = next
	}
	return levels, nil
}

// processTemplates 逐层创建或更新模板，处理过的模板进入 ledger。
func (im *Importer) processTemplates(ctx context.Context) error {
	policy := im.rules.For(domain.EntityTemplates)
	templates := im.src.Templates()
	if len(templates) == 0 || (!policy.CreateMissing && !policy.UpdateExisting) {
		return nil
	}
	levels, err := templateLevels(templates)
	if err != nil {
		return err
	}
	linkage := im.rules.For(domain.EntityTemplateLinkage).CreateMissing

	existing, err := im.existingTemplateLinks(ctx, templates, policy)
	if err != nil {
		return err
	}

	var owners []macroOwner
	for _, level := range levels {
		var creates, updates []*domain.Template
		for _, tpl := range level {
			rec := tpl
			rec.Macros = nil
			groupIDs, err := im.resolveGroups("template", tpl.Host, tpl.Groups)
			if err != nil {
				return err
			}
			rec.GroupIDs = groupIDs

			id, found := im.resolver.TemplateID(tpl.Host)
			var linked []string
			if found {
				linked = existing[id]
			}
			if linkage {
				resolved, err := im.resolveTemplates("template", tpl.Host, tpl.Templates)
				if err != nil {
					return err
				}
				for _, tid := range resolved {
					linked = appendUnique(linked, tid)
				}
			}
			rec.TemplateIDs = linked

			switch {
			case found && policy.UpdateExisting:
				rec.ID = id
				updates = append(updates, &rec)
			case !found && policy.CreateMissing:
				creates = append(creates, &rec)
			}
		}
		if _, err := apply(ctx, im, KindTemplates, im.svc.Templates, creates, updates); err != nil {
			return err
		}
		for _, rec := range append(creates, updates...) {
			im.resolver.BindTemplate(rec.Host, rec.ID)
			im.ledger.AddTemplateIDs(rec.ID)
		}
		for _, tpl := range level {
			if id, ok := im.resolver.TemplateID(tpl.Host); ok && im.ledger.IsTemplateProcessed(id) {
				owners = append(owners, macroOwner{id: id, name: tpl.Host, macros: tpl.Macros})
			}
		}
	}
	return im.processMacros(ctx, owners)
}

// existingTemplateLinks 一次取回待更新模板当前的链接，用于 templateLinkage 规则合并。
func (im *Importer) existingTemplateLinks(ctx context.Context, templates []domain.Template, policy Policy) (map[string][]string, error) {
	links := make(map[string][]string)
	if !policy.UpdateExisting {
		return links, nil
	}
	var ids []string
	for _, tpl := range templates {
		if id, ok := im.resolver.TemplateID(tpl.Host); ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return links, nil
	}
	current, err := im.svc.Templates.Get(ctx, store.Filter{IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("查询 templates 失败: %w", err)
	}
	for _, tpl := range current {
		links[tpl.ID] = tpl.TemplateIDs
	}
	return links, nil
}

// processHosts 创建或更新主机，解析组、模板、代理与接口。
func (im *Importer) processHosts(ctx context.Context) error {
	policy := im.rules.For(domain.EntityHosts)
	hosts := im.src.Hosts()
	if len(hosts) == 0 || (!policy.CreateMissing && !policy.UpdateExisting) {
		return nil
	}
	linkage := im.rules.For(domain.EntityTemplateLinkage).CreateMissing

	var updateIDs []string
	for _, host := range hosts {
		if id, ok := im.resolver.HostID(host.Host); ok && policy.UpdateExisting {
			updateIDs = append(updateIDs, id)
		}
	}
	existing := make(map[string][]string)
	if len(updateIDs) > 0 {
		current, err := im.svc.Hosts.Get(ctx, store.Filter{IDs: updateIDs})
		if err != nil {
			return fmt.Errorf("查询 hosts 失败: %w", err)
		}
		for _, h := range current {
			existing[h.ID] = h.TemplateIDs
		}
	}

	var creates, updates []*domain.Host
	for _, host := range hosts {
		rec := host
		rec.Macros = nil
		groupIDs, err := im.resolveGroups("host", host.Host, host.Groups)
		if err != nil {
			return err
		}
		rec.GroupIDs = groupIDs
		if host.Proxy != nil && host.Proxy.Name != "" {
			proxyID, ok := im.resolver.ProxyID(host.Proxy.Name)
			if !ok {
				return refErr("host", host.Host, "proxy", host.Proxy.Name, "")
			}
			rec.ProxyID = proxyID
		}

		id, found := im.resolver.HostID(host.Host)
		var linked []string
		if found {
			linked = existing[id]
		}
		if linkage {
			resolved, err := im.resolveTemplates("host", host.Host, host.Templates)
			if err != nil {
				return err
			}
			for _, tid := range resolved {
				linked = appendUnique(linked, tid)
			}
		}
		rec.TemplateIDs = linked

		rec.Interfaces = make([]domain.Interface, len(host.Interfaces))
		copy(rec.Interfaces, host.Interfaces)
		if found {
			for i := range rec.Interfaces {
				if ifaceID, ok := im.resolver.InterfaceID(id, rec.Interfaces[i].Ref); ok {
					rec.Interfaces[i].ID = ifaceID
				}
			}
		}

		switch {
		case found && policy.UpdateExisting:
			rec.ID = id
			updates = append(updates, &rec)
		case !found && policy.CreateMissing:
			creates = append(creates, &rec)
		}
	}
	if _, err := apply(ctx, im, KindHosts, im.svc.Hosts, creates, updates); err != nil {
		return err
	}
	var owners []macroOwner
	for _, rec := range append(creates, updates...) {
		im.resolver.BindHost(rec.Host, rec.ID)
		im.ledger.AddHostIDs(rec.ID)
	}
	for _, host := range hosts {
		if id, ok := im.resolver.HostID(host.Host); ok && im.ledger.IsHostProcessed(id) {
			owners = append(owners, macroOwner{id: id, name: host.Host, macros: host.Macros})
		}
	}
	if len(creates)+len(updates) > 0 {
		// 新主机的接口 id 由存储分配，需要重新查询才能解析 interface_ref。
		if err := im.resolver.RefreshHosts(ctx); err != nil {
			return fmt.Errorf("刷新 hosts 失败: %w", err)
		}
	}
	im.logger.Debug("主机处理完成", zap.Int("processed", len(im.ledger.HostIDs())))
	return im.processMacros(ctx, owners)
}

type macroOwner struct {
	id     string
	name   string
	macros []domain.Macro
}

// processMacros 为已处理的宿主创建或更新宏。
func (im *Importer) processMacros(ctx context.Context, owners []macroOwner) error {
	var creates, updates []*domain.Macro
	for _, owner := range owners {
		for _, m := range owner.macros {
			rec := &domain.Macro{HostID: owner.id, Macro: m.Macro, Value: m.Value}
			if id, ok := im.resolver.MacroID(owner.id, m.Macro); ok {
				rec.ID = id
				updates = append(updates, rec)
			} else {
				creates = append(creates, rec)
			}
		}
	}
	_, err := apply(ctx, im, KindMacros, im.svc.Macros, creates, updates)
	return err
}

func (im *Importer) resolveGroups(kind, name string, refs []domain.NameRef) ([]string, error) {
	ids := make([]string, 0, len(refs))
	for _, group := range domain.Names(refs) {
		id, ok := im.resolver.GroupID(group)
		if !ok {
			return nil, refErr(kind, name, "group", group, "")
		}
		ids = appendUnique(ids, id)
	}
	return ids, nil
}

func (im *Importer) resolveTemplates(kind, name string, refs []domain.NameRef) ([]string, error) {
	ids := make([]string, 0, len(refs))
	for _, tpl := range domain.Names(refs) {
		id, ok := im.resolver.TemplateID(tpl)
		if !ok {
			return nil, refErr(kind, name, "template", tpl, "")
		}
		ids = appendUnique(ids, id)
	}
	return ids, nil
}
