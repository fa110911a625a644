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
	"html/template"
	"net/http"
	"sort"

	"judgeassign.dev/judgeassign/internal/config"
)

const (
	configZTemplateName = "configz"
	configEndpoint      = "/configz"
	configPage          = `<!DOCTYPE html>
<head>
	<title>judgeassign Configuration</title>
</head>
<body>
<table>
<tr><th>Key</th><th>Value</th></tr>
{{ range . }}
<tr><td>{{ .Key }}</td><td>{{ .Value }}</td></tr>
{{ end }}
</table>
</body>
`
)

var (
	configPageTemplate = template.Must(template.New(configZTemplateName).Parse(configPage))
)

type configz struct {
	cfg config.View
}

type configZValue struct {
	Key   string
	Value interface{}
}

// ServeHTTP renders every effective setting as one dotted key per row, e.g. lock.backoff.
func (cz *configz) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	values := flattenSettings("", cz.cfg.AllSettings(), nil)
	sort.Slice(values, func(i, j int) bool {
		return values[i].Key < values[j].Key
	})
	if err := configPageTemplate.Execute(w, values); err != nil {
		http.Error(w, fmt.Sprintf("cannot render HTML template, %s", err), http.StatusInternalServerError)
	}
}

func flattenSettings(prefix string, settings map[string]interface{}, out []configZValue) []configZValue {
	for k, v := range settings {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]interface{}); ok {
			out = flattenSettings(key, nested, out)
			continue
		}
		out = append(out, configZValue{Key: key, Value: v})
	}
	return out
}

func bindConfigz(p Params, b Bindings) error {
	cfg := p.Config()
	if !cfg.GetBool(configNameTelemetryZpagesEnabled) {
		return nil
	}
	b.TelemetryHandle(configEndpoint, &configz{cfg: cfg})
	return nil
}
