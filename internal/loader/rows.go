package loader

import "time"

// NodeRow 是一个实体节点的写入参数，Key 在全库唯一。
type NodeRow struct {
	Key        string
	Labels     []string
	Properties map[string]any
	RunID      string
	UpdatedAt  time.Time
}

// RelRow 是一条关系的写入参数，两端以节点 Key 标识。
type RelRow struct {
	StartKey   string
	EndKey     string
	Type       string
	Properties map[string]any
	RunID      string
}
