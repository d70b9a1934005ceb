package domain

// Package 是一个配置包的顶层结构。所有对象之间的关系都以名称表达。
type Package struct {
	Version   string     `json:"version,omitempty" yaml:"version,omitempty"`
	Date      string     `json:"date,omitempty" yaml:"date,omitempty"`
	Groups    []NameRef  `json:"groups,omitempty" yaml:"groups,omitempty"`
	Templates []Template `json:"templates,omitempty" yaml:"templates,omitempty"`
	Hosts     []Host     `json:"hosts,omitempty" yaml:"hosts,omitempty"`
	Triggers  []Trigger  `json:"triggers,omitempty" yaml:"triggers,omitempty"`
	Graphs    []Graph    `json:"graphs,omitempty" yaml:"graphs,omitempty"`
	Images    []Image    `json:"images,omitempty" yaml:"images,omitempty"`
	Maps      []Map      `json:"maps,omitempty" yaml:"maps,omitempty"`
	Screens   []Screen   `json:"screens,omitempty" yaml:"screens,omitempty"`
}

// Export 是包文件的外层封装，兼容 {"zabbix_export": {...}} 写法。
type Export struct {
	Export *Package `json:"zabbix_export,omitempty" yaml:"zabbix_export,omitempty"`
}
