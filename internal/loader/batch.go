package loader

import (
	"context"
	"fmt"
	"sort"

	"confimport/pkg/util"
)

const defaultBatchSize = 100

// batcher 按批次执行同一条语句，loader 中的写入器都基于它。
type batcher struct {
	client    Writer
	batchSize int
}

func newBatcher(client Writer, batchSize int) batcher {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return batcher{client: client, batchSize: batchSize}
}

// runBatches 把 rows 切成批次，每批以 $param 传入 query。
func runBatches[T any](ctx context.Context, b batcher, query, param string, rows []T) error {
	for i, chunk := range util.Batch(rows, b.batchSize) {
		if err := b.client.RunWrite(ctx, query, map[string]any{param: chunk}); err != nil {
			return fmt.Errorf("第 %d 批: %w", i+1, err)
		}
	}
	return nil
}

// groupBy 按 key 分组并按 key 排序返回，保证写入顺序稳定。
func groupBy[T any](rows []T, key func(T) string) ([]string, map[string][]T) {
	grouped := make(map[string][]T)
	for _, row := range rows {
		k := key(row)
		grouped[k] = append(grouped[k], row)
	}
	keys := make([]string, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, grouped
}
