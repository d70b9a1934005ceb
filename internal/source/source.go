// Package source 提供配置包的来源：本地文件、HTTP 接口与内存。
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"confimport/internal/adapter"
)

// Document 是一份待导入的配置包原文。
type Document struct {
	Name   string
	Format adapter.Format
	Data   []byte
}

// Decode 按文档格式解码出导入树。
func (d Document) Decode() (*adapter.Adapter, error) {
	format := d.Format
	if format == "" {
		format = adapter.DetectFormat(d.Name, d.Data)
	}
	return adapter.Decode(d.Data, format)
}

// Client 抽象配置包来源。
type Client interface {
	Fetch(ctx context.Context) (Document, error)
}

// StaticClient 用于测试或最小实现，直接返回内存中的文档。
type StaticClient struct {
	Document Document
}

// Fetch 返回预设文档。
func (c *StaticClient) Fetch(context.Context) (Document, error) {
	return c.Document, nil
}

// FileClient 每次调用都重新读取本地文件。
type FileClient struct {
	Path   string
	Format adapter.Format
}

// NewFileClient 创建文件来源。format 为空时按扩展名判断。
func NewFileClient(path string, format adapter.Format) (*FileClient, error) {
	if path == "" {
		return nil, errors.New("配置包路径不能为空")
	}
	return &FileClient{Path: path, Format: format}, nil
}

// Fetch 读取文件内容。
func (c *FileClient) Fetch(context.Context) (Document, error) {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return Document{}, fmt.Errorf("读取配置包失败: %w", err)
	}
	format := c.Format
	if format == "" {
		format = adapter.DetectFormat(c.Path, data)
	}
	return Document{Name: filepath.Base(c.Path), Format: format, Data: data}, nil
}
