package util

// Batch 将切片按 size 切分，最后一批可能更短。size 不大于 0 时整体作为一批。
// 返回的子切片与 items 共享底层数组，但容量被截断，追加不会覆盖后续元素。
func Batch[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || size >= len(items) {
		return [][]T{items[:len(items):len(items)]}
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end:end])
	}
	return out
}
