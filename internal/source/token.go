package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	// tokenRefreshMargin 之内即将过期的 token 视为失效。
	tokenRefreshMargin = 30 * time.Second
	// defaultTokenTTL 用于认证接口没有返回有效期的情况。
	defaultTokenTTL = 30 * time.Minute
)

// TokenSource 用于提供调用配置接口所需的 Token。
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource 返回固定 Token。
type StaticTokenSource struct {
	Value string
}

func (s *StaticTokenSource) Token(context.Context) (string, error) {
	return s.Value, nil
}

type cachedToken struct {
	value  string
	expiry time.Time
}

func (t cachedToken) valid(now time.Time) bool {
	return t.value != "" && t.expiry.Sub(now) > tokenRefreshMargin
}

// PasswordTokenSource 用用户名和密码向认证接口换取 Token 并缓存到临近过期。
type PasswordTokenSource struct {
	endpoint    string
	credentials []byte
	httpClient  *http.Client

	mu     sync.Mutex
	cached cachedToken
}

// PasswordTokenConfig 配置基于用户名/密码的 TokenSource。
type PasswordTokenConfig struct {
	Endpoint   string
	Username   string
	Password   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewPasswordTokenSource 创建一个 PasswordTokenSource。
func NewPasswordTokenSource(cfg PasswordTokenConfig) (*PasswordTokenSource, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("token endpoint 不能为空")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("用户名和密码不能为空")
	}
	credentials, err := json.Marshal(map[string]string{"username": cfg.Username, "password": cfg.Password})
	if err != nil {
		return nil, fmt.Errorf("编码认证信息失败: %w", err)
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &PasswordTokenSource{endpoint: cfg.Endpoint, credentials: credentials, httpClient: client}, nil
}

// Token 返回缓存的 token，失效时同步刷新。并发调用只会触发一次刷新。
func (s *PasswordTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached.valid(time.Now()) {
		return s.cached.value, nil
	}
	tok, err := s.login(ctx)
	if err != nil {
		return "", err
	}
	s.cached = tok
	return tok.value, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (s *PasswordTokenSource) login(ctx context.Context) (cachedToken, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(s.credentials))
	if err != nil {
		return cachedToken{}, fmt.Errorf("构建 token 请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return cachedToken{}, fmt.Errorf("获取 token 失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return cachedToken{}, fmt.Errorf("token 接口返回状态码 %d", resp.StatusCode)
	}

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return cachedToken{}, fmt.Errorf("解析 token 响应失败: %w", err)
	}
	if body.AccessToken == "" {
		return cachedToken{}, errors.New("token 响应中缺少 access_token")
	}
	ttl := time.Duration(body.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return cachedToken{value: body.AccessToken, expiry: time.Now().Add(ttl)}, nil
}
