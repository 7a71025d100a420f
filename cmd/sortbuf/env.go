package main

import (
	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/lanrat/sortbuf"
	"github.com/lanrat/sortbuf/alloc"
	"github.com/lanrat/sortbuf/monitoring"
)

// env bundles what every command derives from the global flags
type env struct {
	logger   *logrus.Logger
	registry *prometheus.Registry
	config   *sortbuf.Config
}

func newEnv(c *cli.Context) *env {
	logger := logrus.New()
	logger.SetOutput(c.App.ErrWriter)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if c.Bool("verbose") {
		logger.SetLevel(logrus.DebugLevel)
	}

	var checker alloc.Checker
	if budget := c.Int64("memory-budget"); budget > 0 {
		checker = alloc.NewBudget(budget)
		logger.WithField("bytes", budget).Debug("using fixed memory budget")
	} else {
		// honor container limits before the monitor reads the Go memory limit
		limit, err := memlimit.SetGoMemLimitWithOpts(
			memlimit.WithRatio(0.9),
			memlimit.WithProvider(memlimit.ApplyFallback(memlimit.FromCgroup, memlimit.FromSystem)),
		)
		if err != nil {
			logger.WithError(err).Debug("cannot derive memory limit")
		}
		m := alloc.NewMonitor(alloc.DefaultMaxRatio)
		logger.WithFields(logrus.Fields{
			"gomemlimit": limit,
			"limit":      m.Limit(),
		}).Debug("using heap monitor")
		checker = m
	}

	reg := prometheus.NewRegistry()
	return &env{
		logger:   logger,
		registry: reg,
		config: &sortbuf.Config{
			ChunkBytes: c.Int("chunk-bytes"),
			Allocator:  checker,
			Logger:     logger,
			Metrics:    monitoring.NewMetrics(reg, ""),
		},
	}
}

// logMetrics writes the collected counters and gauges to the log
func (e *env) logMetrics() {
	families, err := e.registry.Gather()
	if err != nil {
		e.logger.WithError(err).Warn("cannot gather metrics")
		return
	}
	fields := logrus.Fields{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			for _, l := range m.GetLabel() {
				name += "_" + l.GetValue()
			}
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				fields[name] = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				fields[name] = m.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				fields[name+"_count"] = m.GetHistogram().GetSampleCount()
				fields[name+"_sum"] = m.GetHistogram().GetSampleSum()
			}
		}
	}
	e.logger.WithFields(fields).Debug("metrics")
}
