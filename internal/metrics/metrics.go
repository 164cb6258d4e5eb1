// Package metrics は通知サービスのPrometheusメトリクスを定義する。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationRequestsTotal はアクション・結果ごとの通知リクエスト数。
	NotificationRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paqueteria_notification_requests_total",
		Help: "Total number of package notification requests by action and result.",
	},
		[]string{"action", "result"},
	)

	// PushDeliveriesTotal は結果ごとのプッシュ送信数。
	PushDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paqueteria_push_deliveries_total",
		Help: "Total number of push deliveries by outcome.",
	},
		[]string{"outcome"},
	)

	// HistoryWritesTotal は結果ごとの通知履歴書き込み数。
	HistoryWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paqueteria_history_writes_total",
		Help: "Total number of notification history writes by result.",
	},
		[]string{"result"},
	)

	// FanoutRecipients は新規荷物通知1件あたりの配達員数。
	FanoutRecipients = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "paqueteria_fanout_recipients",
		Help:    "Number of couriers targeted by a single new-package fan-out.",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
	})
)
