package domain

import (
	"fmt"
	"sort"
	"strings"
)

// 图存储中的节点标签，每个节点同时带 LabelEntity 与具体类型标签。
const (
	LabelEntity         = "Entity"
	LabelGroup          = "HostGroup"
	LabelTemplate       = "Template"
	LabelHost           = "Host"
	LabelMacro          = "Macro"
	LabelProxy          = "Proxy"
	LabelValueMap       = "ValueMap"
	LabelApplication    = "Application"
	LabelItem           = "Item"
	LabelHostPrototype  = "HostPrototype"
	LabelTrigger        = "Trigger"
	LabelGraph          = "Graph"
	LabelImage          = "Image"
	LabelIconMap        = "IconMap"
	LabelMap            = "Map"
	LabelScreen         = "Screen"
	LabelTemplateScreen = "TemplateScreen"

	RelOwnedBy   = "OWNED_BY"
	RelChildOf   = "CHILD_OF"
	RelDependsOn = "DEPENDS_ON"
)

// MakeKey 生成节点的全局唯一键，带上类型前缀以避免不同实体冲突。
func MakeKey(prefix string, rawID any) string {
	return fmt.Sprintf("%s_%v", prefix, rawID)
}

// LabelPattern 根据标签集合拼成 Cypher 模板所需的字符串，如 ":A:B"。
func LabelPattern(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	sorted := append([]string(nil), labels...)
	sort.Strings(sorted)
	return ":" + strings.Join(sorted, ":")
}

// JoinLabels 简单拼接标签用于 map key（内部使用）。
func JoinLabels(labels []string) string {
	sorted := append([]string(nil), labels...)
	sort.Strings(sorted)
	return strings.Join(sorted, ":")
}

// TriggerKey 触发器的自然键。只有描述与表达式同时相同才视为同一个触发器。
type TriggerKey struct {
	Description string
	Expression  string
}

func (k TriggerKey) String() string {
	return fmt.Sprintf("%s [%s]", k.Description, k.Expression)
}

// ScopedKey 是宿主范围内的名称键，如 (hostid, 应用名)、(hostid, 监控项 key)。
type ScopedKey struct {
	ScopeID string
	Name    string
}

// HostPrototypeKey 主机原型在 (所属主机, 规则, 主机名) 内唯一。
type HostPrototypeKey struct {
	HostID string
	RuleID string
	Host   string
}
