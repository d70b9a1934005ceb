package domain

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// NameRef 是按名称引用另一个对象的最小结构，兼容 "name" 与 {"name": "name"} 两种写法。
type NameRef struct {
	Name string `json:"name" yaml:"name"`
}

func (r *NameRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		r.Name = s
		return nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("解析名称引用失败: %w", err)
	}
	r.Name = obj.Name
	return nil
}

func (r *NameRef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		r.Name = value.Value
		return nil
	}
	var obj struct {
		Name string `yaml:"name"`
	}
	if err := value.Decode(&obj); err != nil {
		return fmt.Errorf("解析名称引用失败: %w", err)
	}
	r.Name = obj.Name
	return nil
}

// Names 取出引用列表中的名称。
func Names(refs []NameRef) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		out = append(out, ref.Name)
	}
	return out
}

// ItemRef 通过 (主机, key) 引用监控项。
type ItemRef struct {
	Host string `json:"host" yaml:"host"`
	Key  string `json:"key" yaml:"key"`
}

// TriggerRef 通过 (描述, 表达式) 引用触发器。
type TriggerRef struct {
	Name       string `json:"name" yaml:"name"`
	Expression string `json:"expression" yaml:"expression"`
}

// Key 返回触发器的复合自然键。
func (r TriggerRef) Key() TriggerKey {
	return TriggerKey{Description: r.Name, Expression: r.Expression}
}

// ElementRef 是拓扑图元素与聚合图资源的通用引用，按类型使用其中的字段。
type ElementRef struct {
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
	Host       string `json:"host,omitempty" yaml:"host,omitempty"`
	Key        string `json:"key,omitempty" yaml:"key,omitempty"`
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`
}
