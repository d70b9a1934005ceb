package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"confimport/internal/adapter"
	"confimport/internal/app"
	"confimport/internal/importer"
	"confimport/internal/source"
	"confimport/pkg/logging"
)

var (
	cfgFile   string
	rulesFile string
	format    string
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "importer",
	Short: "Import monitoring configuration packages",
	Long: `importer reads a configuration package (JSON or YAML), resolves every
name reference against the configured store and applies the import rules.

Examples:
  importer import templates.yaml --config configs/config.yaml
  importer validate export.json --rules rules.yaml`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: in-memory store, default rules)")
	rootCmd.PersistentFlags().StringVar(&rulesFile, "rules", "", "import rules file, overrides import.rules in config")
	rootCmd.PersistentFlags().StringVar(&format, "format", "", "package format (json, yaml), detected from the file by default")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(validateCmd)
}

// loadConfig 读取配置文件，命令行参数优先。
func loadConfig() (app.Config, error) {
	cfg := app.DefaultConfig()
	if cfgFile != "" {
		loaded, err := app.LoadConfig(cfgFile)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if rulesFile != "" {
		rules, err := importer.LoadRules(rulesFile)
		if err != nil {
			return cfg, err
		}
		cfg.Import.Rules = rules
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

func newLogger(cfg app.Config) (*zap.Logger, error) {
	return logging.NewZapLogger(cfg.Log.Level, cfg.Log.Encoding)
}

// readPackage 读取命令行指定的配置包，"-" 表示标准输入。
func readPackage(ctx context.Context, path string) (source.Document, error) {
	var f adapter.Format
	if format != "" {
		parsed, err := adapter.ParseFormat(format)
		if err != nil {
			return source.Document{}, err
		}
		f = parsed
	}
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return source.Document{}, fmt.Errorf("读取标准输入失败: %w", err)
		}
		if f == "" {
			f = adapter.DetectFormat("", data)
		}
		return source.Document{Name: "stdin", Format: f, Data: data}, nil
	}
	client, err := source.NewFileClient(strings.TrimSpace(path), f)
	if err != nil {
		return source.Document{}, err
	}
	return client.Fetch(ctx)
}
