package observability

import (
	"fmt"

	"go.uber.org/zap"
)

// FlushLogs syncs the logger before process exit. Prometheus is pull-based, so
// metrics need no flush.
func FlushLogs(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	if err := logger.Sync(); err != nil {
		return fmt.Errorf("flush logs: %w", err)
	}
	return nil
}
