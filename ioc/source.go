package ioc

import (
	"fmt"
	"strings"
	"time"

	"confimport/internal/adapter"
	"confimport/internal/app"
	"confimport/internal/source"
)

// InitSource 构建配置包来源，未配置 path 与 base_url 时返回 nil。
func InitSource(cfg app.Config) (source.Client, error) {
	return newSource(cfg.Source, cfg.Import.InitialImport)
}

func newSource(cfg app.Source, required bool) (source.Client, error) {
	var format adapter.Format
	if cfg.Format != "" {
		f, err := adapter.ParseFormat(cfg.Format)
		if err != nil {
			return nil, err
		}
		format = f
	}
	if path := strings.TrimSpace(cfg.Path); path != "" {
		return source.NewFileClient(path, format)
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		if required {
			return nil, fmt.Errorf("开启 initial_import 时必须配置 source.path 或 source.base_url")
		}
		return nil, nil
	}

	timeout := 30 * time.Second
	if cfg.TimeoutSecond > 0 {
		timeout = time.Duration(cfg.TimeoutSecond) * time.Second
	}
	var tokenSource source.TokenSource
	if cfg.AuthEndpoint != "" && cfg.Username != "" {
		ts, err := source.NewPasswordTokenSource(source.PasswordTokenConfig{
			Endpoint: cfg.AuthEndpoint,
			Username: cfg.Username,
			Password: cfg.Password,
			Timeout:  5 * time.Second,
		})
		if err != nil {
			return nil, err
		}
		tokenSource = ts
	} else if cfg.StaticToken != "" {
		tokenSource = &source.StaticTokenSource{Value: cfg.StaticToken}
	}

	return source.NewHTTPClient(source.HTTPConfig{
		BaseURL:        baseURL,
		TokenSource:    tokenSource,
		Timeout:        timeout,
		PackageAPI:     cfg.PackageAPI,
		AuthHeaderName: cfg.AuthHeader,
	})
}
