package importer

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"confimport/internal/domain"
)

// Policy 是一种实体类型的导入策略。
type Policy struct {
	CreateMissing  bool `json:"createMissing" yaml:"createMissing"`
	UpdateExisting bool `json:"updateExisting" yaml:"updateExisting"`
	DeleteMissing  bool `json:"deleteMissing" yaml:"deleteMissing"`
}

// Rules 把实体类型映射到策略。未出现的类型按全部关闭处理。
type Rules map[domain.EntityType]Policy

// For 返回某类实体的策略。
func (r Rules) For(t domain.EntityType) Policy {
	if r == nil {
		return Policy{}
	}
	return r[t]
}

// Validate 拒绝无法识别的实体类型。
func (r Rules) Validate() error {
	var unknown []string
	for t := range r {
		if !t.Known() {
			unknown = append(unknown, string(t))
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: 无法识别的规则类型: %s", ErrInvalidRules, strings.Join(unknown, ", "))
	}
	return nil
}

// ParseRules 解析 YAML 或 JSON 格式的规则。
func ParseRules(data []byte) (Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("解析导入规则失败: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return rules, nil
}

// LoadRules 从文件读取规则。
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取导入规则失败: %w", err)
	}
	return ParseRules(data)
}

// DefaultRules 创建缺失对象并更新已有对象，不删除任何东西。
func DefaultRules() Rules {
	rules := make(Rules, len(domain.EntityTypes))
	for _, t := range domain.EntityTypes {
		rules[t] = Policy{CreateMissing: true, UpdateExisting: true}
	}
	return rules
}
