package importer

import (
	"fmt"
	"sort"

	"confimport/internal/domain"
	"confimport/internal/expression"
)

// gather 遍历整棵导入树，把所有被引用的名称登记到解析器，不做任何 I/O。
// 表达式解析失败会立即终止，后续阶段假设所有表达式都能解析。
func (im *Importer) gather() error {
	r := im.resolver

	for _, group := range im.src.Groups() {
		r.AddGroups(group.Name)
	}
	for _, tpl := range im.src.Templates() {
		r.AddTemplates(tpl.Host)
		r.AddGroups(domain.Names(tpl.Groups)...)
		r.AddTemplates(domain.Names(tpl.Templates)...)
		r.AddMacros(tpl.Host, macroNames(tpl.Macros)...)
	}
	for _, host := range im.src.Hosts() {
		r.AddHosts(host.Host)
		r.AddGroups(domain.Names(host.Groups)...)
		r.AddTemplates(domain.Names(host.Templates)...)
		r.AddMacros(host.Host, macroNames(host.Macros)...)
		if host.Proxy != nil && host.Proxy.Name != "" {
			r.AddProxies(host.Proxy.Name)
		}
	}

	applications := im.src.Applications()
	for _, owner := range sortedKeys(applications) {
		for _, app := range applications[owner] {
			r.AddApplications(owner, app.Name)
		}
	}

	items := im.src.Items()
	for _, owner := range sortedKeys(items) {
		for _, item := range items[owner] {
			im.gatherItem(owner, item)
		}
	}

	rules := im.src.DiscoveryRules()
	for _, owner := range sortedKeys(rules) {
		for _, rule := range rules[owner] {
			im.gatherItem(owner, rule.Item)
			for _, proto := range rule.ItemPrototypes {
				im.gatherItem(owner, proto)
			}
			for _, proto := range rule.HostPrototypes {
				r.AddHostPrototypes(owner, rule.Key, proto.Host)
				r.AddGroups(domain.Names(proto.GroupLinks)...)
				r.AddTemplates(domain.Names(proto.Templates)...)
			}
			for _, trigger := range rule.TriggerPrototypes {
				if err := im.gatherTrigger(trigger); err != nil {
					return err
				}
			}
			for _, graph := range rule.GraphPrototypes {
				im.gatherGraph(graph)
			}
		}
	}

	for _, trigger := range im.src.Triggers() {
		if err := im.gatherTrigger(trigger); err != nil {
			return err
		}
	}
	for _, graph := range im.src.Graphs() {
		im.gatherGraph(graph)
	}
	for _, image := range im.src.Images() {
		r.AddImages(image.Name)
	}
	for _, m := range im.src.Maps() {
		im.gatherMap(m)
	}
	for _, screen := range im.src.Screens() {
		r.AddScreens(screen.Name)
		im.gatherScreenItems(screen.ScreenItems)
	}
	templateScreens := im.src.TemplateScreens()
	for _, owner := range sortedKeys(templateScreens) {
		for _, screen := range templateScreens[owner] {
			r.AddTemplateScreens(owner, screen.Name)
			im.gatherScreenItems(screen.ScreenItems)
		}
	}
	return nil
}

func (im *Importer) gatherItem(owner string, item domain.Item) {
	r := im.resolver
	r.AddItems(owner, item.Key)
	r.AddApplications(owner, domain.Names(item.Applications)...)
	if item.ValueMap != nil && item.ValueMap.Name != "" {
		r.AddValueMaps(item.ValueMap.Name)
	}
}

// gatherHostItem 登记表达式或图形中出现的 (主机, key)，主机名可能是主机也可能是模板。
func (im *Importer) gatherHostItem(host, key string) {
	im.resolver.AddHosts(host)
	im.resolver.AddTemplates(host)
	im.resolver.AddItems(host, key)
}

func (im *Importer) gatherTrigger(trigger domain.Trigger) error {
	refs, err := im.parse(trigger)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		im.gatherHostItem(ref.Host, ref.Key)
	}
	im.resolver.AddTriggers(trigger.Key())
	for _, dep := range trigger.Dependencies {
		im.resolver.AddTriggers(dep.Key())
	}
	return nil
}

// parse 解析并缓存触发器表达式。
func (im *Importer) parse(trigger domain.Trigger) ([]expression.HostItem, error) {
	if refs, ok := im.parsed[trigger.Expression]; ok {
		return refs, nil
	}
	refs, err := im.parser.Parse(trigger.Expression)
	if err != nil {
		return nil, fmt.Errorf("触发器 %q: %w", trigger.Description, err)
	}
	im.parsed[trigger.Expression] = refs
	return refs, nil
}

func (im *Importer) gatherGraph(graph domain.Graph) {
	for _, gitem := range graph.Items {
		im.gatherHostItem(gitem.Item.Host, gitem.Item.Key)
	}
	for _, axis := range []*domain.ItemRef{graph.YMinItem, graph.YMaxItem} {
		if axis != nil {
			im.gatherHostItem(axis.Host, axis.Key)
		}
	}
	if host, ok := graphHost(graph); ok {
		im.resolver.AddGraphs(host, graph.Name)
	}
}

func (im *Importer) gatherMap(m domain.Map) {
	r := im.resolver
	r.AddMaps(m.Name)
	if m.IconMap != nil && m.IconMap.Name != "" {
		r.AddIconMaps(m.IconMap.Name)
	}
	for _, el := range m.Selements {
		if el.IconOff != nil && el.IconOff.Name != "" {
			r.AddImages(el.IconOff.Name)
		}
		if el.Element == nil {
			continue
		}
		switch el.ElementType {
		case domain.SelementHost:
			r.AddHosts(el.Element.Host)
		case domain.SelementMap:
			r.AddMaps(el.Element.Name)
		case domain.SelementTrigger:
			r.AddTriggers(domain.TriggerKey{Description: el.Element.Name, Expression: el.Element.Expression})
		case domain.SelementHostGroup:
			r.AddGroups(el.Element.Name)
		}
	}
	for _, link := range m.Links {
		for _, lt := range link.LinkTriggers {
			r.AddTriggers(lt.Trigger.Key())
		}
	}
}

func (im *Importer) gatherScreenItems(items []domain.ScreenItem) {
	r := im.resolver
	for _, item := range items {
		res := item.Resource
		if res == nil {
			continue
		}
		switch item.ResourceType {
		case domain.ScreenResourceGraph, domain.ScreenResourceLLDGraph:
			r.AddHosts(res.Host)
			r.AddTemplates(res.Host)
			r.AddGraphs(res.Host, res.Name)
		case domain.ScreenResourceSimpleGraph, domain.ScreenResourcePlainText, domain.ScreenResourceLLDSimpleGraph:
			im.gatherHostItem(res.Host, res.Key)
		case domain.ScreenResourceMap:
			r.AddMaps(res.Name)
		case domain.ScreenResourceScreen:
			r.AddScreens(res.Name)
		case domain.ScreenResourceHostsInfo, domain.ScreenResourceTriggersInfo, domain.ScreenResourceTriggersOverview,
			domain.ScreenResourceDataOverview, domain.ScreenResourceHostgroupTriggers:
			r.AddGroups(res.Name)
		case domain.ScreenResourceHostTriggers:
			r.AddHosts(res.Host)
		}
	}
}

// graphHost 返回图形自然键中的主机：最后一条曲线所在的主机。
func graphHost(graph domain.Graph) (string, bool) {
	if len(graph.Items) == 0 {
		return "", false
	}
	return graph.Items[len(graph.Items)-1].Item.Host, true
}

func macroNames(macros []domain.Macro) []string {
	out := make([]string, 0, len(macros))
	for _, m := range macros {
		out = append(out, m.Macro)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
