package util

import (
	"context"
	"fmt"
	"time"
)

// Retry 执行 fn，失败后按指数退避重试，共尝试 attempts 次。
// 全部失败时返回最后一次的错误，ctx 结束时返回 ctx.Err()。
func Retry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
	return fmt.Errorf("重试 %d 次后仍失败: %w", attempts, err)
}
