package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ImportDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "confimport_import_duration_seconds",
		Help:    "单次导入耗时",
		Buckets: prometheus.DefBuckets,
	})

	// ImportErrors 按失败原因分类，如 reference、dependency、decode。
	ImportErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "confimport_import_errors_total",
		Help: "导入失败次数",
	}, []string{"reason"})

	ImportObjects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "confimport_import_objects_total",
		Help: "导入写入的对象数",
	}, []string{"kind", "action"})

	LastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "confimport_last_success_timestamp_seconds",
		Help: "最近一次成功导入的时间",
	})
)

// MustRegister 注册指标，可在 main 中调用。
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(ImportDuration, ImportErrors, ImportObjects, LastSuccess)
}

// ObserveObjects 累加一类对象的写入数，零值不产生序列。
func ObserveObjects(kind string, created, updated, deleted int) {
	for action, n := range map[string]int{"create": created, "update": updated, "delete": deleted} {
		if n > 0 {
			ImportObjects.WithLabelValues(kind, action).Add(float64(n))
		}
	}
}
