package importer

import (
	"errors"
	"fmt"

	"confimport/internal/domain"
)

var (
	// ErrUnresolvedReference 表示包中的名称既不存在于存储中，也不会在本次导入中创建。
	ErrUnresolvedReference = errors.New("unresolved reference")
	// ErrDanglingDependency 表示触发器依赖了一个不存在的触发器。
	ErrDanglingDependency = errors.New("dangling trigger dependency")
	// ErrTemplateCycle 表示包内模板互相链接成环。
	ErrTemplateCycle = errors.New("template linkage cycle")
	// ErrInvalidRules 表示导入规则中有无法识别的实体类型。
	ErrInvalidRules = errors.New("invalid import rules")
	// ErrAlreadyRun 表示同一个 Importer 被重复执行。
	ErrAlreadyRun = errors.New("importer already used")
)

// ReferenceError 描述一个无法解析的引用：哪个对象、引用了什么、在哪台主机上。
type ReferenceError struct {
	Kind    string // 引用方类型，如 "graph"
	Name    string // 引用方自然键
	RefKind string // 被引用对象类型，如 "item"
	Ref     string // 被引用对象名
	Host    string // 被引用对象所在主机，可为空
}

func (e *ReferenceError) Error() string {
	if e.Host != "" {
		return fmt.Sprintf("%s %q: %s %q 在主机 %q 上不存在", e.Kind, e.Name, e.RefKind, e.Ref, e.Host)
	}
	return fmt.Sprintf("%s %q: %s %q 不存在", e.Kind, e.Name, e.RefKind, e.Ref)
}

func (e *ReferenceError) Is(target error) bool {
	return target == ErrUnresolvedReference
}

// DependencyError 描述依赖目标不存在的触发器。
type DependencyError struct {
	Trigger    domain.TriggerKey
	Dependency domain.TriggerKey
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("触发器 %q 依赖的触发器 %q 不存在", e.Trigger.Description, e.Dependency.Description)
}

func (e *DependencyError) Is(target error) bool {
	return target == ErrDanglingDependency
}

func refErr(kind, name, refKind, ref, host string) error {
	return &ReferenceError{Kind: kind, Name: name, RefKind: refKind, Ref: ref, Host: host}
}
