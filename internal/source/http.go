package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"confimport/internal/adapter"
)

// maxPackageSize 限制单个配置包的大小。
const maxPackageSize = 64 << 20

// HTTPClient 实现 Client，从配置中心的接口下载配置包。
type HTTPClient struct {
	baseURL     string
	httpClient  *http.Client
	tokenSource TokenSource
	packageAPI  string
	authHeader  string
}

// HTTPConfig 配置 HTTP 客户端。
type HTTPConfig struct {
	BaseURL        string
	TokenSource    TokenSource
	Timeout        time.Duration
	CustomClient   *http.Client
	PackageAPI     string
	AuthHeaderName string
}

// NewHTTPClient 根据配置创建 HTTP 来源。
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("source base url 不能为空")
	}
	client := cfg.CustomClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	endpoint := cfg.PackageAPI
	if endpoint == "" {
		endpoint = "/api/v1/export"
	}
	authHeader := cfg.AuthHeaderName
	if strings.TrimSpace(authHeader) == "" {
		authHeader = "Authorization"
	}
	return &HTTPClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  client,
		tokenSource: cfg.TokenSource,
		packageAPI:  endpoint,
		authHeader:  authHeader,
	}, nil
}

// Fetch 下载配置包，格式由 Content-Type 决定，无法判断时按内容猜测。
func (c *HTTPClient) Fetch(ctx context.Context) (Document, error) {
	if c == nil {
		return Document{}, errors.New("source http client 未初始化")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.packageAPI, nil)
	if err != nil {
		return Document{}, fmt.Errorf("构建请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/yaml")
	if c.tokenSource != nil {
		token, err := c.tokenSource.Token(ctx)
		if err != nil {
			return Document{}, fmt.Errorf("获取 token 失败: %w", err)
		}
		if token != "" {
			req.Header.Set(c.authHeader, "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("请求配置包失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("配置接口返回状态码 %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPackageSize))
	if err != nil {
		return Document{}, fmt.Errorf("读取配置包失败: %w", err)
	}
	name := path.Base(c.packageAPI)
	return Document{Name: name, Format: formatOf(resp.Header.Get("Content-Type"), name, data), Data: data}, nil
}

func formatOf(contentType, name string, data []byte) adapter.Format {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err == nil {
		switch {
		case strings.HasSuffix(mediaType, "json"):
			return adapter.FormatJSON
		case strings.HasSuffix(mediaType, "yaml"):
			return adapter.FormatYAML
		}
	}
	return adapter.DetectFormat(name, data)
}
