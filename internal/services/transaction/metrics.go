package transaction

import (
	"context"
	"time"

	"github.com/LILIANSRL/chibank/internal/models"
)

// NoopMetricsCollector is a no-op implementation of MetricsCollector
type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordOperation(string, string, time.Duration) {}
func (n *NoopMetricsCollector) RecordTransition(string)                       {}

type noopNotifier struct{}

func (noopNotifier) NotifyTransition(context.Context, *models.MultiSigTransaction) (int, error) {
	return 0, nil
}
