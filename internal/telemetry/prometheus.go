// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package telemetry

import (
	ocPrometheus "contrib.go.opencensus.io/exporter/prometheus"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/stats/view"
)

const (
	// ConfigNameEnableMetrics indicates that telemetry is enabled.
	ConfigNameEnableMetrics = "telemetry.prometheus.enable"

	configNamePrometheusEndpoint  = "telemetry.prometheus.endpoint"
	configNamePrometheusNamespace = "telemetry.prometheus.namespace"

	defaultPrometheusNamespace = "judgeassign"
)

func bindPrometheus(p Params, b Bindings) error {
	cfg := p.Config()

	if !cfg.GetBool(ConfigNameEnableMetrics) {
		logger.Info("Prometheus Metrics: Disabled")
		return nil
	}

	endpoint := cfg.GetString(configNamePrometheusEndpoint)

	logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
	}).Info("Prometheus Metrics: ENABLED")

	namespace := defaultPrometheusNamespace
	if cfg.IsSet(configNamePrometheusNamespace) {
		namespace = cfg.GetString(configNamePrometheusNamespace)
	}

	registry, err := newRegistry()
	if err != nil {
		return err
	}
	promExporter, err := ocPrometheus.NewExporter(ocPrometheus.Options{
		Namespace: namespace,
		Registry:  registry,
		OnError: func(err error) {
			logger.WithError(err).Warning("failed to export view data to Prometheus")
		},
	})
	if err != nil {
		return errors.Wrap(err, "Failed to initialize OpenCensus exporter to Prometheus")
	}

	// Register the Prometheus exporters as a stats exporter.
	view.RegisterExporter(promExporter)
	b.AddCloser(func() {
		view.UnregisterExporter(promExporter)
	})

	b.TelemetryHandle(endpoint, promExporter)
	return nil
}

// newRegistry returns a registry carrying the process and Go runtime collectors.
func newRegistry() (*prometheus.Registry, error) {
	registry := prometheus.NewRegistry()
	collectors := []prometheus.Collector{
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, errors.Wrap(err, "Failed to register prometheus collector")
		}
	}
	return registry, nil
}
