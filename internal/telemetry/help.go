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
	"fmt"
	"net/http"
)

const (
	helpEndpoint          = "/help"
	helpSecondaryEndpoint = "/sos"
	helpPage              = `<!DOCTYPE html>
<head>
	<title>judgeassign Server Help</title>
</head>
<body>
<pre>
Assignment API, all routes under /v1/contexts/{context}/
* GET    matrix                          - Judge by team assignment matrix
* GET    conflicts                       - Overload and conflict of interest report
* POST   assignments                     - Assign one or more judge/team pairs
* DELETE judges/{judge}/teams/{team}     - Remove an assignment
* POST   teams/{team}/reassign           - Move a team between judges
* POST   balance                         - Redistribute teams round-robin
* POST   autofix                         - Balance, then report conflicts
* POST   imports                         - Import a judge,team CSV
* GET    imports/template                - Import CSV template
* GET    export                          - Matrix as CSV

Diagnostics
* <a href="/debug/tracez">/debug/tracez</a> - Request Tracing
* <a href="/configz">/configz</a> - Effective configuration
* <a href="/healthz">/healthz</a> - Liveness, add "?readiness=true" for readiness
* <a href="/metrics">/metrics</a> - Raw Metrics, use prometheus or grafana instead.
</pre>
</body>
`
)

func newHelp() func(w http.ResponseWriter, req *http.Request) {
	return func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, helpPage)
	}
}

func bindHelp(p Params, b Bindings) error {
	if !p.Config().GetBool(configNameTelemetryZpagesEnabled) {
		return nil
	}
	h := newHelp()
	b.TelemetryHandleFunc(helpEndpoint, h)
	b.TelemetryHandleFunc(helpSecondaryEndpoint, h)

	return nil
}
