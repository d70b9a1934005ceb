package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"confimport/internal/importer"
)

type HTTP struct {
	Listen string `yaml:"listen"`
}

type Log struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

// Store 选择存储后端：memory 或 neo4j。
type Store struct {
	Backend string `yaml:"backend"`
}

const (
	BackendMemory = "memory"
	BackendNeo4j  = "neo4j"
)

type Neo4j struct {
	URI                  string `yaml:"uri"`
	Username             string `yaml:"username"`
	Password             string `yaml:"password"`
	Database             string `yaml:"database"`
	MaxConnectionPool    int    `yaml:"max_connections"`
	ConnectTimeoutSecond int    `yaml:"connect_timeout_second"`
	QueryTimeoutSecond   int    `yaml:"query_timeout_second"`
}

type Import struct {
	Rules         importer.Rules `yaml:"rules"`
	RulesFile     string         `yaml:"rules_file"`
	BatchSize     int            `yaml:"batch_size"`
	Retry         Retry          `yaml:"retry"`
	JobCron       string         `yaml:"job_cron"`
	InitialImport bool           `yaml:"initial_import"`
}

type Retry struct {
	Attempts       int `yaml:"attempts"`
	BackoffSeconds int `yaml:"backoff_seconds"`
}

// Source 描述配置包来源，path 与 base_url 二选一。
type Source struct {
	Path          string `yaml:"path"`
	Format        string `yaml:"format"`
	BaseURL       string `yaml:"base_url"`
	PackageAPI    string `yaml:"package_api"`
	AuthEndpoint  string `yaml:"auth_endpoint"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	StaticToken   string `yaml:"static_token"`
	AuthHeader    string `yaml:"auth_header"`
	TimeoutSecond int    `yaml:"timeout_second"`
}

type Config struct {
	HTTP   HTTP   `yaml:"http"`
	Log    Log    `yaml:"log"`
	Store  Store  `yaml:"store"`
	Neo4j  Neo4j  `yaml:"neo4j"`
	Import Import `yaml:"import"`
	Source Source `yaml:"source"`
}

// LoadConfig 从文件加载配置。rules_file 相对配置文件所在目录解析。
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("读取配置失败: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("解析配置失败: %w", err)
	}
	if file := strings.TrimSpace(cfg.Import.RulesFile); file != "" {
		if !filepath.IsAbs(file) {
			file = filepath.Join(filepath.Dir(path), file)
		}
		rules, err := importer.LoadRules(file)
		if err != nil {
			return cfg, err
		}
		cfg.Import.Rules = rules
	}
	if err := cfg.normalize(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// normalize 填充默认值并校验。
func (c *Config) normalize() error {
	if c.Import.Rules == nil {
		c.Import.Rules = importer.DefaultRules()
	}
	if err := c.Import.Rules.Validate(); err != nil {
		return err
	}
	if c.Import.BatchSize <= 0 {
		c.Import.BatchSize = 100
	}
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	switch c.Store.Backend {
	case "":
		c.Store.Backend = BackendMemory
	case BackendMemory, BackendNeo4j:
	default:
		return fmt.Errorf("未知的存储后端: %s", c.Store.Backend)
	}
	return nil
}

// DefaultConfig 返回全部取默认值的配置：内存存储、默认导入规则。
func DefaultConfig() Config {
	var cfg Config
	_ = cfg.normalize()
	return cfg
}
