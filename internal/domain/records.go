package domain

// Group 主机组。
type Group struct {
	ID   string `json:"groupid,omitempty" yaml:"-"`
	Name string `json:"name" yaml:"name"`
}

func (g *Group) Meta() EntityMeta { return EntityMeta{ID: g.ID, Name: g.Name} }
func (g *Group) SetID(id string)  { g.ID = id }

// Macro 主机或模板上的用户宏。
type Macro struct {
	ID     string `json:"hostmacroid,omitempty" yaml:"-"`
	HostID string `json:"hostid,omitempty" yaml:"-"`
	Macro  string `json:"macro" yaml:"macro"`
	Value  string `json:"value" yaml:"value"`
}

func (m *Macro) Meta() EntityMeta {
	return EntityMeta{ID: m.ID, Name: m.Macro, HostIDs: []string{m.HostID}}
}
func (m *Macro) SetID(id string) { m.ID = id }

// Interface 主机接口，interface_ref 仅在导入包内有意义。
type Interface struct {
	ID    string `json:"interfaceid,omitempty" yaml:"-"`
	Ref   string `json:"interface_ref" yaml:"interface_ref"`
	Type  int    `json:"type" yaml:"type"`
	Main  int    `json:"main" yaml:"main"`
	UseIP int    `json:"useip" yaml:"useip"`
	IP    string `json:"ip,omitempty" yaml:"ip,omitempty"`
	DNS   string `json:"dns,omitempty" yaml:"dns,omitempty"`
	Port  string `json:"port,omitempty" yaml:"port,omitempty"`
}

// Proxy 代理，仅用于名称解析。
type Proxy struct {
	ID   string `json:"proxyid,omitempty" yaml:"-"`
	Host string `json:"host" yaml:"host"`
}

func (p *Proxy) Meta() EntityMeta { return EntityMeta{ID: p.ID, Name: p.Host} }
func (p *Proxy) SetID(id string)  { p.ID = id }

// Template 模板。Applications 等子对象只在导入包中出现，适配器展开后清空。
type Template struct {
	ID          string    `json:"templateid,omitempty" yaml:"-"`
	Host        string    `json:"host" yaml:"host"`
	Name        string    `json:"name,omitempty" yaml:"name,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Groups      []NameRef `json:"groups,omitempty" yaml:"groups,omitempty"`
	Templates   []NameRef `json:"templates,omitempty" yaml:"templates,omitempty"`
	Macros      []Macro   `json:"macros,omitempty" yaml:"macros,omitempty"`
	GroupIDs    []string  `json:"groupids,omitempty" yaml:"-"`
	TemplateIDs []string  `json:"templateids,omitempty" yaml:"-"`

	Applications   []Application   `json:"applications,omitempty" yaml:"applications,omitempty"`
	Items          []Item          `json:"items,omitempty" yaml:"items,omitempty"`
	DiscoveryRules []DiscoveryRule `json:"discovery_rules,omitempty" yaml:"discovery_rules,omitempty"`
	Screens        []Screen        `json:"screens,omitempty" yaml:"screens,omitempty"`
}

func (t *Template) Meta() EntityMeta { return EntityMeta{ID: t.ID, Name: t.Host} }
func (t *Template) SetID(id string)  { t.ID = id }

// Host 主机。
type Host struct {
	ID          string      `json:"hostid,omitempty" yaml:"-"`
	Host        string      `json:"host" yaml:"host"`
	Name        string      `json:"name,omitempty" yaml:"name,omitempty"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Status      int         `json:"status" yaml:"status"`
	Groups      []NameRef   `json:"groups,omitempty" yaml:"groups,omitempty"`
	Templates   []NameRef   `json:"templates,omitempty" yaml:"templates,omitempty"`
	Macros      []Macro     `json:"macros,omitempty" yaml:"macros,omitempty"`
	Proxy       *NameRef    `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	Interfaces  []Interface `json:"interfaces,omitempty" yaml:"interfaces,omitempty"`
	GroupIDs    []string    `json:"groupids,omitempty" yaml:"-"`
	TemplateIDs []string    `json:"templateids,omitempty" yaml:"-"`
	ProxyID     string      `json:"proxy_hostid,omitempty" yaml:"-"`

	Applications   []Application   `json:"applications,omitempty" yaml:"applications,omitempty"`
	Items          []Item          `json:"items,omitempty" yaml:"items,omitempty"`
	DiscoveryRules []DiscoveryRule `json:"discovery_rules,omitempty" yaml:"discovery_rules,omitempty"`
}

func (h *Host) Meta() EntityMeta { return EntityMeta{ID: h.ID, Name: h.Host} }
func (h *Host) SetID(id string)  { h.ID = id }

// AssignChildIDs 为尚无 id 的接口分配 id。
func (h *Host) AssignChildIDs(newID func() string) {
	for i := range h.Interfaces {
		if h.Interfaces[i].ID == "" {
			h.Interfaces[i].ID = newID()
		}
	}
}

// Application 应用集。
type Application struct {
	ID     string `json:"applicationid,omitempty" yaml:"-"`
	HostID string `json:"hostid,omitempty" yaml:"-"`
	Name   string `json:"name" yaml:"name"`
}

func (a *Application) Meta() EntityMeta {
	return EntityMeta{ID: a.ID, Name: a.Name, HostIDs: []string{a.HostID}}
}
func (a *Application) SetID(id string) { a.ID = id }

// ValueMap 值映射，只解析不创建。
type ValueMap struct {
	ID   string `json:"valuemapid,omitempty" yaml:"-"`
	Name string `json:"name" yaml:"name"`
}

func (v *ValueMap) Meta() EntityMeta { return EntityMeta{ID: v.ID, Name: v.Name} }
func (v *ValueMap) SetID(id string)  { v.ID = id }

// Item 监控项。自动发现规则与监控项原型同样以 Item 存储，通过 Flags 区分。
type Item struct {
	ID           string    `json:"itemid,omitempty" yaml:"-"`
	HostID       string    `json:"hostid,omitempty" yaml:"-"`
	RuleID       string    `json:"ruleid,omitempty" yaml:"-"`
	Flags        int       `json:"flags" yaml:"-"`
	InterfaceID  string    `json:"interfaceid,omitempty" yaml:"-"`
	Name         string    `json:"name" yaml:"name"`
	Key          string    `json:"key_" yaml:"key_"`
	Type         int       `json:"type" yaml:"type"`
	ValueType    int       `json:"value_type" yaml:"value_type"`
	Delay        string    `json:"delay,omitempty" yaml:"delay,omitempty"`
	History      string    `json:"history,omitempty" yaml:"history,omitempty"`
	Trends       string    `json:"trends,omitempty" yaml:"trends,omitempty"`
	Units        string    `json:"units,omitempty" yaml:"units,omitempty"`
	Description  string    `json:"description,omitempty" yaml:"description,omitempty"`
	Status       int       `json:"status" yaml:"status"`
	InterfaceRef string    `json:"interface_ref,omitempty" yaml:"interface_ref,omitempty"`
	Applications []NameRef `json:"applications,omitempty" yaml:"applications,omitempty"`
	ValueMap     *NameRef  `json:"valuemap,omitempty" yaml:"valuemap,omitempty"`

	ApplicationIDs []string `json:"applicationids,omitempty" yaml:"-"`
	ValueMapID     string   `json:"valuemapid,omitempty" yaml:"-"`
}

func (i *Item) Meta() EntityMeta {
	return EntityMeta{ID: i.ID, Name: i.Key, HostIDs: []string{i.HostID}, ParentID: i.RuleID, Flags: i.Flags}
}
func (i *Item) SetID(id string) { i.ID = id }

// DiscoveryRule 自动发现规则及其各类原型，仅存在于导入包。
type DiscoveryRule struct {
	Item `yaml:",inline"`

	ItemPrototypes    []Item          `json:"item_prototypes,omitempty" yaml:"item_prototypes,omitempty"`
	TriggerPrototypes []Trigger       `json:"trigger_prototypes,omitempty" yaml:"trigger_prototypes,omitempty"`
	GraphPrototypes   []Graph         `json:"graph_prototypes,omitempty" yaml:"graph_prototypes,omitempty"`
	HostPrototypes    []HostPrototype `json:"host_prototypes,omitempty" yaml:"host_prototypes,omitempty"`
}

// Rule 返回去掉原型后的规则记录。
func (r DiscoveryRule) Rule() Item {
	item := r.Item
	item.Flags = FlagDiscoveryRule
	return item
}

// GroupPrototype 主机原型上的组原型，名称中一般包含 LLD 宏。
type GroupPrototype struct {
	Name string `json:"name" yaml:"name"`
}

// HostPrototype 主机原型，归属于某条自动发现规则。
type HostPrototype struct {
	ID              string           `json:"hostid,omitempty" yaml:"-"`
	RuleID          string           `json:"ruleid,omitempty" yaml:"-"`
	OwnerHostID     string           `json:"owner_hostid,omitempty" yaml:"-"`
	Host            string           `json:"host" yaml:"host"`
	Name            string           `json:"name,omitempty" yaml:"name,omitempty"`
	Status          int              `json:"status" yaml:"status"`
	GroupLinks      []NameRef        `json:"group_links,omitempty" yaml:"group_links,omitempty"`
	GroupPrototypes []GroupPrototype `json:"group_prototypes,omitempty" yaml:"group_prototypes,omitempty"`
	Templates       []NameRef        `json:"templates,omitempty" yaml:"templates,omitempty"`
	GroupIDs        []string         `json:"groupids,omitempty" yaml:"-"`
	TemplateIDs     []string         `json:"templateids,omitempty" yaml:"-"`
}

func (p *HostPrototype) Meta() EntityMeta {
	return EntityMeta{ID: p.ID, Name: p.Host, HostIDs: []string{p.OwnerHostID}, ParentID: p.RuleID}
}
func (p *HostPrototype) SetID(id string) { p.ID = id }

// Trigger 触发器或触发器原型。HostIDs/ItemIDs 由表达式中的监控项解析得到。
type Trigger struct {
	ID           string       `json:"triggerid,omitempty" yaml:"-"`
	Flags        int          `json:"flags" yaml:"-"`
	Description  string       `json:"description" yaml:"description"`
	Expression   string       `json:"expression" yaml:"expression"`
	Priority     int          `json:"priority" yaml:"priority"`
	Status       int          `json:"status" yaml:"status"`
	Comments     string       `json:"comments,omitempty" yaml:"comments,omitempty"`
	URL          string       `json:"url,omitempty" yaml:"url,omitempty"`
	Dependencies []TriggerRef `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`

	HostIDs       []string `json:"hostids,omitempty" yaml:"-"`
	ItemIDs       []string `json:"itemids,omitempty" yaml:"-"`
	DependencyIDs []string `json:"dependencyids,omitempty" yaml:"-"`
}

func (t *Trigger) Meta() EntityMeta {
	return EntityMeta{ID: t.ID, Name: t.Description, HostIDs: t.HostIDs, Flags: t.Flags}
}
func (t *Trigger) SetID(id string) { t.ID = id }

// Key 返回触发器的复合自然键。
func (t *Trigger) Key() TriggerKey {
	return TriggerKey{Description: t.Description, Expression: t.Expression}
}

// TriggerDependency 是批量设置依赖时的一行。
type TriggerDependency struct {
	TriggerID string
	DependsOn []string
}

// GraphItem 图形中的一条曲线。
type GraphItem struct {
	ItemID    string  `json:"itemid,omitempty" yaml:"-"`
	Item      ItemRef `json:"item" yaml:"item"`
	Color     string  `json:"color,omitempty" yaml:"color,omitempty"`
	SortOrder int     `json:"sortorder" yaml:"sortorder"`
	DrawType  int     `json:"drawtype" yaml:"drawtype"`
	CalcFnc   int     `json:"calc_fnc" yaml:"calc_fnc"`
	YAxisSide int     `json:"yaxisside" yaml:"yaxisside"`
}

// Y 轴边界的取值方式。
const (
	YAxisCalculated = 0
	YAxisFixed      = 1
	YAxisItem       = 2
)

// Graph 图形或图形原型，自然键为 (主机, 名称)。
type Graph struct {
	ID         string      `json:"graphid,omitempty" yaml:"-"`
	Flags      int         `json:"flags" yaml:"-"`
	Name       string      `json:"name" yaml:"name"`
	Width      int         `json:"width" yaml:"width"`
	Height     int         `json:"height" yaml:"height"`
	GraphType  int         `json:"graphtype" yaml:"graphtype"`
	YMinType   int         `json:"ymin_type" yaml:"ymin_type"`
	YMaxType   int         `json:"ymax_type" yaml:"ymax_type"`
	YMinItem   *ItemRef    `json:"ymin_item_1,omitempty" yaml:"ymin_item_1,omitempty"`
	YMaxItem   *ItemRef    `json:"ymax_item_1,omitempty" yaml:"ymax_item_1,omitempty"`
	Items      []GraphItem `json:"gitems" yaml:"gitems"`
	YMinItemID string      `json:"ymin_itemid,omitempty" yaml:"-"`
	YMaxItemID string      `json:"ymax_itemid,omitempty" yaml:"-"`
	HostIDs    []string    `json:"hostids,omitempty" yaml:"-"`
}

func (g *Graph) Meta() EntityMeta {
	return EntityMeta{ID: g.ID, Name: g.Name, HostIDs: g.HostIDs, Flags: g.Flags}
}
func (g *Graph) SetID(id string) { g.ID = id }

// Image 图片，Image 字段为 base64 内容。
type Image struct {
	ID        string `json:"imageid,omitempty" yaml:"-"`
	Name      string `json:"name" yaml:"name"`
	ImageType int    `json:"imagetype" yaml:"imagetype"`
	Image     string `json:"encodedImage" yaml:"encodedImage"`
}

func (i *Image) Meta() EntityMeta { return EntityMeta{ID: i.ID, Name: i.Name} }
func (i *Image) SetID(id string)  { i.ID = id }

// IconMap 图标映射，只解析不创建。
type IconMap struct {
	ID   string `json:"iconmapid,omitempty" yaml:"-"`
	Name string `json:"name" yaml:"name"`
}

func (m *IconMap) Meta() EntityMeta { return EntityMeta{ID: m.ID, Name: m.Name} }
func (m *IconMap) SetID(id string)  { m.ID = id }

// 拓扑图元素类型。
const (
	SelementHost      = 0
	SelementMap       = 1
	SelementTrigger   = 2
	SelementHostGroup = 3
	SelementImage     = 4
)

// Selement 拓扑图元素。SelementID 只在图内有效，供连线引用。
type Selement struct {
	SelementID  string      `json:"selementid" yaml:"selementid"`
	ElementType int         `json:"elementtype" yaml:"elementtype"`
	Element     *ElementRef `json:"element,omitempty" yaml:"element,omitempty"`
	ElementID   string      `json:"elementid,omitempty" yaml:"-"`
	Label       string      `json:"label,omitempty" yaml:"label,omitempty"`
	X           int         `json:"x" yaml:"x"`
	Y           int         `json:"y" yaml:"y"`
	IconOff     *NameRef    `json:"icon_off,omitempty" yaml:"icon_off,omitempty"`
	IconOffID   string      `json:"iconid_off,omitempty" yaml:"-"`
}

// LinkTrigger 连线上的触发器指示。
type LinkTrigger struct {
	Trigger   TriggerRef `json:"trigger" yaml:"trigger"`
	TriggerID string     `json:"triggerid,omitempty" yaml:"-"`
	Color     string     `json:"color,omitempty" yaml:"color,omitempty"`
}

// MapLink 两个元素之间的连线。
type MapLink struct {
	Selement1    string        `json:"selementid1" yaml:"selementid1"`
	Selement2    string        `json:"selementid2" yaml:"selementid2"`
	Color        string        `json:"color,omitempty" yaml:"color,omitempty"`
	LinkTriggers []LinkTrigger `json:"linktriggers,omitempty" yaml:"linktriggers,omitempty"`
}

// Map 拓扑图。
type Map struct {
	ID        string     `json:"sysmapid,omitempty" yaml:"-"`
	Name      string     `json:"name" yaml:"name"`
	Width     int        `json:"width" yaml:"width"`
	Height    int        `json:"height" yaml:"height"`
	IconMap   *NameRef   `json:"iconmap,omitempty" yaml:"iconmap,omitempty"`
	IconMapID string     `json:"iconmapid,omitempty" yaml:"-"`
	Selements []Selement `json:"selements,omitempty" yaml:"selements,omitempty"`
	Links     []MapLink  `json:"links,omitempty" yaml:"links,omitempty"`
}

func (m *Map) Meta() EntityMeta { return EntityMeta{ID: m.ID, Name: m.Name} }
func (m *Map) SetID(id string)  { m.ID = id }

// 聚合图资源类型。
const (
	ScreenResourceGraph             = 0
	ScreenResourceSimpleGraph       = 1
	ScreenResourceMap               = 2
	ScreenResourcePlainText         = 3
	ScreenResourceHostsInfo         = 4
	ScreenResourceTriggersInfo      = 5
	ScreenResourceServerInfo        = 6
	ScreenResourceClock             = 7
	ScreenResourceScreen            = 8
	ScreenResourceTriggersOverview  = 9
	ScreenResourceDataOverview      = 10
	ScreenResourceURL               = 11
	ScreenResourceHostgroupTriggers = 14
	ScreenResourceHostTriggers      = 16
	ScreenResourceLLDSimpleGraph    = 19
	ScreenResourceLLDGraph          = 20
)

// ScreenItem 聚合图中的一个单元格。
type ScreenItem struct {
	ResourceType int         `json:"resourcetype" yaml:"resourcetype"`
	Resource     *ElementRef `json:"resource,omitempty" yaml:"resource,omitempty"`
	ResourceID   string      `json:"resourceid,omitempty" yaml:"-"`
	X            int         `json:"x" yaml:"x"`
	Y            int         `json:"y" yaml:"y"`
	Width        int         `json:"width" yaml:"width"`
	Height       int         `json:"height" yaml:"height"`
	ColSpan      int         `json:"colspan" yaml:"colspan"`
	RowSpan      int         `json:"rowspan" yaml:"rowspan"`
}

// Screen 聚合图。TemplateID 非空时为模板聚合图。
type Screen struct {
	ID          string       `json:"screenid,omitempty" yaml:"-"`
	TemplateID  string       `json:"templateid,omitempty" yaml:"-"`
	Name        string       `json:"name" yaml:"name"`
	HSize       int          `json:"hsize" yaml:"hsize"`
	VSize       int          `json:"vsize" yaml:"vsize"`
	ScreenItems []ScreenItem `json:"screenitems,omitempty" yaml:"screenitems,omitempty"`
}

func (s *Screen) Meta() EntityMeta {
	meta := EntityMeta{ID: s.ID, Name: s.Name}
	if s.TemplateID != "" {
		meta.HostIDs = []string{s.TemplateID}
	}
	return meta
}
func (s *Screen) SetID(id string) { s.ID = id }
