//go:build !unix

package cmd

import (
	"context"
	"time"
)

// watchResize 没有 SIGWINCH 的平台每秒检查一次终端尺寸
func watchResize(ctx context.Context, onResize func()) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			onResize()
		}
	}
}
