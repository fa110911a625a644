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

// Package telemetry wires OpenCensus metrics and tracing exporters, health
// probes and debugging pages into the judgeassign servers.
package telemetry

import (
	"net/http"

	"github.com/sirupsen/logrus"
	"go.opencensus.io/stats/view"
	"judgeassign.dev/judgeassign/internal/config"
)

const (
	configNameTelemetryZpagesEnabled = "telemetry.zpages.enable"
	configNameReportingPeriod        = "telemetry.reportingPeriod"
)

var (
	logger = logrus.WithFields(logrus.Fields{
		"app":       "judgeassign",
		"component": "telemetry",
	})
)

// Params allows appmain to bind telemetry without a circular dependency.
type Params interface {
	Config() config.View
	ServiceName() string
}

// Bindings allows appmain to bind telemetry without a circular dependency.
type Bindings interface {
	TelemetryHandle(pattern string, handler http.Handler)
	TelemetryHandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request))
	AddCloser(c func())
	AddCloserErr(c func() error)
}

// Setup configures the telemetry for the server.
func Setup(p Params, b Bindings) error {
	bindings := []func(p Params, b Bindings) error{
		bindJaeger,
		bindPrometheus,
		bindZpages,
		bindHelp,
		bindConfigz,
	}

	for _, f := range bindings {
		err := f(p, b)
		if err != nil {
			return err
		}
	}

	reportingPeriod := p.Config().GetDuration(configNameReportingPeriod)
	if reportingPeriod > 0 {
		// Change the frequency of updates to the metrics endpoint
		view.SetReportingPeriod(reportingPeriod)
	}

	logger.WithFields(logrus.Fields{
		"reportingPeriod": reportingPeriod,
	}).Info("telemetry has been configured.")
	return nil
}
