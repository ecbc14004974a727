// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/holomush/reconweb/pkg/errutil"
)

// RunSweeper deletes expired sessions every interval until ctx is done.
func RunSweeper(ctx context.Context, sw Sweeper, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sw.DeleteExpired(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				errutil.LogErrorContext(ctx, logger, "session sweep failed", err)
				continue
			}
			if n > 0 {
				logger.DebugContext(ctx, "expired sessions removed", "count", n)
			}
		}
	}
}
