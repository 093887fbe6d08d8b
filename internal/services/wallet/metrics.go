package wallet

import "time"

// NoopMetricsCollector is a no-op implementation of MetricsCollector
type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordOperation(string, string, time.Duration) {}
func (n *NoopMetricsCollector) RecordVolume(string, string, float64)          {}
func (n *NoopMetricsCollector) RecordCacheHit()                               {}
func (n *NoopMetricsCollector) RecordCacheMiss()                              {}
