// Package cypher 内嵌 Neo4j 存储使用的 Cypher 语句。
package cypher

import (
	"embed"
	"fmt"
	"strings"
	"sync"
	"text/template"
)

//go:embed *.cql
var files embed.FS

var (
	mu     sync.Mutex
	parsed = make(map[string]*template.Template)
)

func lookup(name string) (*template.Template, error) {
	mu.Lock()
	defer mu.Unlock()
	if tmpl, ok := parsed[name]; ok {
		return tmpl, nil
	}
	tmpl, err := template.New(name).Option("missingkey=error").ParseFS(files, name)
	if err != nil {
		return nil, err
	}
	parsed[name] = tmpl
	return tmpl, nil
}

// MustTemplate 渲染指定模板，模板只解析一次。失败直接 panic，模板错误属于编程错误。
func MustTemplate(name string, data map[string]string) string {
	tmpl, err := lookup(name)
	if err != nil {
		panic(fmt.Errorf("解析模板 %s 失败: %w", name, err))
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		panic(fmt.Errorf("渲染模板 %s 失败: %w", name, err))
	}
	return sb.String()
}

// MustAsset 返回模板原文。
func MustAsset(name string) string {
	b, err := files.ReadFile(name)
	if err != nil {
		panic(fmt.Errorf("加载 %s 失败: %w", name, err))
	}
	return string(b)
}
