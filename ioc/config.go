package ioc

import (
	"os"

	"confimport/internal/app"
)

const (
	defaultConfigPath = "configs/config.yaml"
	configPathEnv     = "CONFIMPORT_CONFIG"
)

// InitConfig 读取应用配置，路径可由环境变量覆盖。
func InitConfig() (app.Config, error) {
	path := defaultConfigPath
	if p := os.Getenv(configPathEnv); p != "" {
		path = p
	}
	return app.LoadConfig(path)
}
