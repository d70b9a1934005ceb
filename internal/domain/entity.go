package domain

// EntityType 是导入规则中使用的实体类型名。
type EntityType string

const (
	EntityGroups          EntityType = "groups"
	EntityTemplates       EntityType = "templates"
	EntityHosts           EntityType = "hosts"
	EntityTemplateLinkage EntityType = "templateLinkage"
	EntityApplications    EntityType = "applications"
	EntityItems           EntityType = "items"
	EntityDiscoveryRules  EntityType = "discoveryRules"
	EntityTriggers        EntityType = "triggers"
	EntityGraphs          EntityType = "graphs"
	EntityImages          EntityType = "images"
	EntityMaps            EntityType = "maps"
	EntityScreens         EntityType = "screens"
	EntityTemplateScreens EntityType = "templateScreens"
)

// EntityTypes 列出全部可配置的实体类型。
var EntityTypes = []EntityType{
	EntityGroups,
	EntityTemplates,
	EntityHosts,
	EntityTemplateLinkage,
	EntityApplications,
	EntityItems,
	EntityDiscoveryRules,
	EntityTriggers,
	EntityGraphs,
	EntityImages,
	EntityMaps,
	EntityScreens,
	EntityTemplateScreens,
}

// Known 判断实体类型是否可识别。
func (t EntityType) Known() bool {
	for _, known := range EntityTypes {
		if known == t {
			return true
		}
	}
	return false
}

// 监控项、触发器、图形的 flags 取值，区分普通对象、自动发现规则与原型。
const (
	FlagNormal        = 0
	FlagDiscoveryRule = 1
	FlagPrototype     = 2
)

// EntityMeta 描述实体在存储层用于过滤与索引的字段。
type EntityMeta struct {
	ID       string
	Name     string
	HostIDs  []string
	ParentID string
	Flags    int
}

// Entity 是所有可持久化记录的公共约束，实体服务只依赖它完成过滤和赋 id。
type Entity interface {
	Meta() EntityMeta
	SetID(id string)
}

// ChildIDAssigner 由带有内嵌子对象（如主机接口）的记录实现，存储层在写入时为子对象分配 id。
type ChildIDAssigner interface {
	AssignChildIDs(newID func() string)
}
