package loader

import "context"

// Writer 是 loader 依赖的最小写接口，graph.Client 实现了它，测试中可以替换。
type Writer interface {
	RunWrite(ctx context.Context, query string, params map[string]any) error
	// RunRaw 以自动提交方式执行，用于 schema 语句。
	RunRaw(ctx context.Context, query string, params map[string]any) error
}
