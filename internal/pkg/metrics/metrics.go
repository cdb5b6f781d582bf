// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "member_mall"

var (
	// UpstreamRequests 统计对外部服务（记录库、券服务、邮件服务）的调用次数。
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "Outbound calls by upstream service and result code.",
	}, []string{"upstream", "code"})

	// Redemptions 按结果统计兑换次数。
	Redemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "redemptions_total",
		Help:      "Redemption attempts by outcome.",
	}, []string{"outcome", "kind"})

	RedemptionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "redemption_duration_seconds",
		Help:      "Wall time of the settlement saga.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})

	// SupportEvents 统计 support-relay 收到的需要人工介入的事件。
	SupportEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "support_events_total",
		Help:      "Redemptions left in an inconsistent state, by failed step.",
	}, []string{"step"})

	AuthOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_outcomes_total",
		Help:      "Identity check / login results.",
	}, []string{"state"})
)
