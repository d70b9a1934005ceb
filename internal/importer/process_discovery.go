package importer

import (
	"context"
	"fmt"

	"confimport/internal/domain"
)

type ownedRule struct {
	owner   string
	ownerID string
	rule    domain.DiscoveryRule
}

// processDiscoveryRules 先写规则本身，再依次写监控项原型、主机原型、触发器原型与图形原型。
// 每一种原型都要求所属规则已经有 id，所以每步之后都会刷新解析器。
func (im *Importer) processDiscoveryRules(ctx context.Context) error {
	policy := im.rules.For(domain.EntityDiscoveryRules)
	if !policy.CreateMissing && !policy.UpdateExisting {
		return nil
	}
	all := im.src.DiscoveryRules()
	var rules []ownedRule
	for _, owner := range sortedKeys(all) {
		ownerID, ok := im.ownerID(owner)
		if !ok {
			continue
		}
		for _, rule := range all[owner] {
			rules = append(rules, ownedRule{owner: owner, ownerID: ownerID, rule: rule})
		}
	}
	if len(rules) == 0 {
		return nil
	}

	var creates, updates []*domain.Item
	for _, r := range rules {
		rec, err := im.prepareItem(r.owner, r.ownerID, r.rule.Rule(), "discovery rule")
		if err != nil {
			return err
		}
		rec.Flags = domain.FlagDiscoveryRule
		creates, updates = im.bucketItem(rec, policy, creates, updates)
	}
	if len(creates) > 0 || len(updates) > 0 {
		if _, err := apply(ctx, im, KindDiscoveryRules, im.svc.Items, creates, updates); err != nil {
			return err
		}
		if err := im.resolver.RefreshItems(ctx); err != nil {
			return fmt.Errorf("刷新 discovery rules 失败: %w", err)
		}
	}

	if err := im.processItemPrototypes(ctx, rules, policy); err != nil {
		return err
	}
	if err := im.processHostPrototypes(ctx, rules, policy); err != nil {
		return err
	}
	var triggers []domain.Trigger
	var graphs []domain.Graph
	for _, r := range rules {
		if _, ok := im.resolver.ItemID(r.ownerID, r.rule.Key); !ok {
			continue
		}
		triggers = append(triggers, r.rule.TriggerPrototypes...)
		graphs = append(graphs, r.rule.GraphPrototypes...)
	}
	if err := im.processTriggerSet(ctx, triggers, domain.FlagPrototype, KindTriggerPrototypes, policy); err != nil {
		return err
	}
	return im.processGraphSet(ctx, graphs, domain.FlagPrototype, KindGraphPrototypes, policy)
}

func (im *Importer) processItemPrototypes(ctx context.Context, rules []ownedRule, policy Policy) error {
	var creates, updates []*domain.Item
	for _, r := range rules {
		ruleID, ok := im.resolver.ItemID(r.ownerID, r.rule.Key)
		if !ok {
			continue
		}
		for _, proto := range r.rule.ItemPrototypes {
			rec, err := im.prepareItem(r.owner, r.ownerID, proto, "item prototype")
			if err != nil {
				return err
			}
			rec.Flags = domain.FlagPrototype
			rec.RuleID = ruleID
			creates, updates = im.bucketItem(rec, policy, creates, updates)
		}
	}
	if len(creates) == 0 && len(updates) == 0 {
		return nil
	}
	if _, err := apply(ctx, im, KindItemPrototypes, im.svc.Items, creates, updates); err != nil {
		return err
	}
	if err := im.resolver.RefreshItems(ctx); err != nil {
		return fmt.Errorf("刷新 item prototypes 失败: %w", err)
	}
	return nil
}

func (im *Importer) processHostPrototypes(ctx context.Context, rules []ownedRule, policy Policy) error {
	var creates, updates []*domain.HostPrototype
	for _, r := range rules {
		ruleID, ok := im.resolver.ItemID(r.ownerID, r.rule.Key)
		if !ok {
			continue
		}
		for _, proto := range r.rule.HostPrototypes {
			rec := proto
			rec.ID = ""
			rec.RuleID = ruleID
			rec.OwnerHostID = r.ownerID
			groupIDs, err := im.resolveGroups("host prototype", proto.Host, proto.GroupLinks)
			if err != nil {
				return err
			}
			rec.GroupIDs = groupIDs
			templateIDs, err := im.resolveTemplates("host prototype", proto.Host, proto.Templates)
			if err != nil {
				return err
			}
			rec.TemplateIDs = templateIDs

			if id, ok := im.resolver.HostPrototypeID(r.ownerID, ruleID, proto.Host); ok {
				if policy.UpdateExisting {
					rec.ID = id
					updates = append(updates, &rec)
				}
				continue
			}
			if policy.CreateMissing {
				creates = append(creates, &rec)
			}
		}
	}
	if len(creates) == 0 && len(updates) == 0 {
		return nil
	}
	if _, err := apply(ctx, im, KindHostPrototypes, im.svc.HostPrototypes, creates, updates); err != nil {
		return err
	}
	if err := im.resolver.RefreshHostPrototypes(ctx); err != nil {
		return fmt.Errorf("刷新 host prototypes 失败: %w", err)
	}
	return nil
}
