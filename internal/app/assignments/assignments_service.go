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

package assignments

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"judgeassign.dev/judgeassign/internal/appmain"
	"judgeassign.dev/judgeassign/internal/assignment"
	"judgeassign.dev/judgeassign/internal/omerror"
	"judgeassign.dev/judgeassign/pkg/model"
)

var (
	logger = logrus.WithFields(logrus.Fields{
		"app":       "judgeassign",
		"component": "app.assignments",
	})
)

// maxJSONBytes bounds JSON request bodies.
const maxJSONBytes = 1 << 20

// assignmentsService exposes the engine operations as HTTP routes.
type assignmentsService struct {
	svc            *assignment.Service
	importMaxBytes int
}

type assignRequest struct {
	Pairs []model.Pair `json:"pairs"`
}

type reassignRequest struct {
	FromJudgeID string `json:"fromJudgeId"`
	ToJudgeID   string `json:"toJudgeId"`
}

func (s *assignmentsService) bind(b *appmain.Bindings) error {
	routes := []struct {
		method  string
		pattern string
		handler func(http.ResponseWriter, *http.Request, map[string]string)
	}{
		{http.MethodGet, "/v1/contexts/{context}/matrix", s.getMatrix},
		{http.MethodGet, "/v1/contexts/{context}/conflicts", s.getConflicts},
		{http.MethodPost, "/v1/contexts/{context}/assignments", s.assign},
		{http.MethodDelete, "/v1/contexts/{context}/judges/{judge}/teams/{team}", s.remove},
		{http.MethodPost, "/v1/contexts/{context}/teams/{team}/reassign", s.reassign},
		{http.MethodPost, "/v1/contexts/{context}/balance", s.autoBalance},
		{http.MethodPost, "/v1/contexts/{context}/autofix", s.autoFix},
		{http.MethodPost, "/v1/contexts/{context}/imports", s.importBatch},
		{http.MethodGet, "/v1/contexts/{context}/imports/template", s.importTemplate},
		{http.MethodGet, "/v1/contexts/{context}/export", s.exportMatrix},
	}
	for _, r := range routes {
		if err := b.AddHandlePath(r.method, r.pattern, r.handler); err != nil {
			return err
		}
	}
	return nil
}

func (s *assignmentsService) getMatrix(w http.ResponseWriter, r *http.Request, params map[string]string) {
	rows, err := s.svc.GetMatrix(r.Context(), params["context"])
	writeJSON(w, r, rows, err)
}

func (s *assignmentsService) getConflicts(w http.ResponseWriter, r *http.Request, params map[string]string) {
	conflicts, err := s.svc.GetConflicts(r.Context(), params["context"])
	writeJSON(w, r, conflicts, err)
}

func (s *assignmentsService) assign(w http.ResponseWriter, r *http.Request, params map[string]string) {
	req := &assignRequest{}
	if err := decodeJSON(r, req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := s.svc.Assign(r.Context(), params["context"], req.Pairs)
	writeJSON(w, r, result, err)
}

func (s *assignmentsService) remove(w http.ResponseWriter, r *http.Request, params map[string]string) {
	err := s.svc.Remove(r.Context(), params["context"], model.Pair{JudgeID: params["judge"], TeamID: params["team"]})
	writeJSON(w, r, struct{}{}, err)
}

func (s *assignmentsService) reassign(w http.ResponseWriter, r *http.Request, params map[string]string) {
	req := &reassignRequest{}
	if err := decodeJSON(r, req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.FromJudgeID == "" || req.ToJudgeID == "" {
		writeError(w, r, status.Error(codes.InvalidArgument, ".fromJudgeId and .toJudgeId are required"))
		return
	}
	err := s.svc.Reassign(r.Context(), params["context"], params["team"], req.FromJudgeID, req.ToJudgeID)
	writeJSON(w, r, struct{}{}, err)
}

func (s *assignmentsService) autoBalance(w http.ResponseWriter, r *http.Request, params map[string]string) {
	rows, err := s.svc.AutoBalance(r.Context(), params["context"])
	writeJSON(w, r, rows, err)
}

func (s *assignmentsService) autoFix(w http.ResponseWriter, r *http.Request, params map[string]string) {
	report, err := s.svc.AutoFix(r.Context(), params["context"])
	writeJSON(w, r, report, err)
}

func (s *assignmentsService) importBatch(w http.ResponseWriter, r *http.Request, params map[string]string) {
	// One byte past the limit is enough for the importer to reject the file.
	data, err := io.ReadAll(io.LimitReader(r.Body, int64(s.importMaxBytes)+1))
	if err != nil {
		writeError(w, r, status.Errorf(codes.InvalidArgument, "cannot read import file: %v", err))
		return
	}
	report, err := s.svc.ImportBatch(r.Context(), params["context"], data)
	writeJSON(w, r, report, err)
}

func (s *assignmentsService) importTemplate(w http.ResponseWriter, r *http.Request, params map[string]string) {
	data, err := s.svc.ImportTemplate(r.Context(), params["context"])
	writeCSV(w, r, "import-template.csv", data, err)
}

func (s *assignmentsService) exportMatrix(w http.ResponseWriter, r *http.Request, params map[string]string) {
	data, err := s.svc.ExportMatrix(r.Context(), params["context"])
	writeCSV(w, r, params["context"]+"-assignments.csv", data, err)
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return status.Errorf(codes.InvalidArgument, "cannot decode request body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, v interface{}, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithFields(logrus.Fields{
			"error": err.Error(),
			"path":  r.URL.Path,
		}).Warning("failed to write response")
	}
}

func writeCSV(w http.ResponseWriter, r *http.Request, filename string, data []byte, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if _, err := w.Write(data); err != nil {
		logger.WithFields(logrus.Fields{
			"error": err.Error(),
			"path":  r.URL.Path,
		}).Warning("failed to write response")
	}
}

// writeError renders err as a google.rpc.Status JSON body with the matching
// HTTP status code.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	st := omerror.ProtoFromErr(err)
	code := omerror.HTTPStatusFromErr(err)
	if code >= http.StatusInternalServerError {
		logger.WithFields(logrus.Fields{
			"error":  err.Error(),
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
	}

	body, merr := protojson.Marshal(st)
	if merr != nil {
		http.Error(w, err.Error(), code)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}
