// Package adapter 把配置包解码成导入树，并按类型提供带缓存的访问方法。
package adapter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"confimport/internal/domain"
)

// Format 是配置包的序列化格式。
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// SupportedVersions 列出可导入的包版本，空版本按当前版本处理。
var SupportedVersions = []string{"", "1.0", "2.0", "3.0"}

// DetectFormat 根据文件扩展名判断格式，无法判断时按内容首字符猜测。
func DetectFormat(name string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON
	}
	return FormatYAML
}

// ParseFormat 校验用户传入的格式名。
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("不支持的格式 %q", s)
}

// Decode 解码配置包，兼容带 zabbix_export 外层封装与不带封装两种写法。
func Decode(data []byte, format Format) (*Adapter, error) {
	var (
		env domain.Export
		pkg domain.Package
	)
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("解析 json 配置包失败: %w", err)
		}
		if env.Export == nil {
			if err := json.Unmarshal(data, &pkg); err != nil {
				return nil, fmt.Errorf("解析 json 配置包失败: %w", err)
			}
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("解析 yaml 配置包失败: %w", err)
		}
		if env.Export == nil {
			if err := yaml.Unmarshal(data, &pkg); err != nil {
				return nil, fmt.Errorf("解析 yaml 配置包失败: %w", err)
			}
		}
	default:
		return nil, fmt.Errorf("不支持的格式 %q", format)
	}
	if env.Export != nil {
		pkg = *env.Export
	}
	if !supported(pkg.Version) {
		return nil, fmt.Errorf("不支持的配置包版本 %q", pkg.Version)
	}
	return New(&pkg), nil
}

func supported(version string) bool {
	for _, v := range SupportedVersions {
		if v == version {
			return true
		}
	}
	return false
}

// Adapter 持有一个导入树。每类对象只在第一次访问时展开，之后返回缓存结果。
type Adapter struct {
	pkg *domain.Package

	groups          []domain.Group
	templates       []domain.Template
	hosts           []domain.Host
	applications    map[string][]domain.Application
	items           map[string][]domain.Item
	discoveryRules  map[string][]domain.DiscoveryRule
	templateScreens map[string][]domain.Screen
	loaded          map[string]bool
}

// New 包装一个已解码的配置包。
func New(pkg *domain.Package) *Adapter {
	if pkg == nil {
		pkg = &domain.Package{}
	}
	return &Adapter{pkg: pkg, loaded: make(map[string]bool)}
}

// Package 返回原始配置包。
func (a *Adapter) Package() *domain.Package {
	return a.pkg
}

func (a *Adapter) once(name string) bool {
	if a.loaded[name] {
		return false
	}
	a.loaded[name] = true
	return true
}

// Groups 返回包中声明的主机组。
func (a *Adapter) Groups() []domain.Group {
	if a.once("groups") {
		seen := make(map[string]struct{})
		for _, ref := range a.pkg.Groups {
			if _, ok := seen[ref.Name]; ok || ref.Name == "" {
				continue
			}
			seen[ref.Name] = struct{}{}
			a.groups = append(a.groups, domain.Group{Name: ref.Name})
		}
	}
	return a.groups
}

// Templates 返回去掉子对象后的模板。
func (a *Adapter) Templates() []domain.Template {
	if a.once("templates") {
		for _, tpl := range a.pkg.Templates {
			tpl.Applications = nil
			tpl.Items = nil
			tpl.DiscoveryRules = nil
			tpl.Screens = nil
			a.templates = append(a.templates, tpl)
		}
	}
	return a.templates
}

// Hosts 返回去掉子对象后的主机。
func (a *Adapter) Hosts() []domain.Host {
	if a.once("hosts") {
		for _, host := range a.pkg.Hosts {
			host.Applications = nil
			host.Items = nil
			host.DiscoveryRules = nil
			a.hosts = append(a.hosts, host)
		}
	}
	return a.hosts
}

// Applications 按主机或模板名返回应用集。
func (a *Adapter) Applications() map[string][]domain.Application {
	if a.once("applications") {
		a.applications = make(map[string][]domain.Application)
		for _, tpl := range a.pkg.Templates {
			if len(tpl.Applications) > 0 {
				a.applications[tpl.Host] = append(a.applications[tpl.Host], tpl.Applications...)
			}
		}
		for _, host := range a.pkg.Hosts {
			if len(host.Applications) > 0 {
				a.applications[host.Host] = append(a.applications[host.Host], host.Applications...)
			}
		}
	}
	return a.applications
}

// Items 按主机或模板名返回普通监控项。
func (a *Adapter) Items() map[string][]domain.Item {
	if a.once("items") {
		a.items = make(map[string][]domain.Item)
		add := func(owner string, items []domain.Item) {
			for _, item := range items {
				item.Flags = domain.FlagNormal
				a.items[owner] = append(a.items[owner], item)
			}
		}
		for _, tpl := range a.pkg.Templates {
			add(tpl.Host, tpl.Items)
		}
		for _, host := range a.pkg.Hosts {
			add(host.Host, host.Items)
		}
	}
	return a.items
}

// DiscoveryRules 按主机或模板名返回自动发现规则及其原型。
func (a *Adapter) DiscoveryRules() map[string][]domain.DiscoveryRule {
	if a.once("discoveryRules") {
		a.discoveryRules = make(map[string][]domain.DiscoveryRule)
		for _, tpl := range a.pkg.Templates {
			if len(tpl.DiscoveryRules) > 0 {
				a.discoveryRules[tpl.Host] = append(a.discoveryRules[tpl.Host], tpl.DiscoveryRules...)
			}
		}
		for _, host := range a.pkg.Hosts {
			if len(host.DiscoveryRules) > 0 {
				a.discoveryRules[host.Host] = append(a.discoveryRules[host.Host], host.DiscoveryRules...)
			}
		}
	}
	return a.discoveryRules
}

// Triggers 返回包级别的触发器。
func (a *Adapter) Triggers() []domain.Trigger {
	return a.pkg.Triggers
}

// Graphs 返回包级别的图形。
func (a *Adapter) Graphs() []domain.Graph {
	return a.pkg.Graphs
}

// Images 返回图片。
func (a *Adapter) Images() []domain.Image {
	return a.pkg.Images
}

// Maps 返回拓扑图。
func (a *Adapter) Maps() []domain.Map {
	return a.pkg.Maps
}

// Screens 返回全局聚合图。
func (a *Adapter) Screens() []domain.Screen {
	return a.pkg.Screens
}

// TemplateScreens 按模板名返回模板聚合图。
func (a *Adapter) TemplateScreens() map[string][]domain.Screen {
	if a.once("templateScreens") {
		a.templateScreens = make(map[string][]domain.Screen)
		for _, tpl := range a.pkg.Templates {
			if len(tpl.Screens) > 0 {
				a.templateScreens[tpl.Host] = append(a.templateScreens[tpl.Host], tpl.Screens...)
			}
		}
	}
	return a.templateScreens
}
