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

package assignment

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"
	"judgeassign.dev/judgeassign/internal/directory"
	"judgeassign.dev/judgeassign/pkg/model"
)

// Service is the operation surface of the engine. Every call names its
// context explicitly.
type Service struct {
	store    *Store
	importer *Importer
}

// NewService creates a Service on top of store.
func NewService(store *Store, importMaxBytes int) *Service {
	return &Service{
		store:    store,
		importer: NewImporter(store, importMaxBytes),
	}
}

// Assign creates the given pairs. A single pair reports refusal as an error;
// several pairs report refusals in the result.
func (s *Service) Assign(ctx context.Context, contextID string, pairs []model.Pair) (*model.BulkResult, error) {
	if len(pairs) == 0 {
		return nil, newError(model.InvalidArgument, "at least one pair is required")
	}
	if len(pairs) == 1 {
		p := pairs[0]
		if err := s.store.CreateAssignment(ctx, contextID, p.JudgeID, p.TeamID); err != nil {
			return nil, err
		}
		return &model.BulkResult{Applied: []model.Pair{p}, Skipped: []model.SkippedPair{}}, nil
	}
	return s.store.BulkCreate(ctx, contextID, pairs)
}

// Remove deletes one pair.
func (s *Service) Remove(ctx context.Context, contextID string, p model.Pair) error {
	return s.store.RemoveAssignment(ctx, contextID, p.JudgeID, p.TeamID)
}

// Reassign moves a team between judges.
func (s *Service) Reassign(ctx context.Context, contextID, teamID, fromJudgeID, toJudgeID string) error {
	return s.store.Reassign(ctx, contextID, teamID, fromJudgeID, toJudgeID)
}

// AutoBalance evens out the load of the Eligible judges.
func (s *Service) AutoBalance(ctx context.Context, contextID string) ([]model.MatrixRow, error) {
	return s.store.AutoBalance(ctx, contextID)
}

// AutoFix balances the context and reports the conflicts that remain.
func (s *Service) AutoFix(ctx context.Context, contextID string) (*model.MatrixReport, error) {
	ctx, span := trace.StartSpan(ctx, "assignment.Service.AutoFix")
	defer span.End()

	rows, err := s.store.AutoBalance(ctx, contextID)
	if err != nil {
		return nil, err
	}
	snapshot, err := directory.Fetch(ctx, s.store.dir, contextID)
	if err != nil {
		return nil, fromDependency(ctx, err, "failed to read directory of context %s", contextID)
	}
	conflicts := Detect(rows, snapshot)
	if len(conflicts) > 0 {
		logger.WithFields(logrus.Fields{
			"context":   contextID,
			"conflicts": len(conflicts),
		}).Info("conflicts remain after balancing")
	}
	return &model.MatrixReport{Matrix: rows, Conflicts: conflicts}, nil
}

// ImportBatch imports an assignment file.
func (s *Service) ImportBatch(ctx context.Context, contextID string, data []byte) (*model.ImportReport, error) {
	return s.importer.ImportBatch(ctx, contextID, data)
}

// ImportTemplate returns an example import file for the context.
func (s *Service) ImportTemplate(ctx context.Context, contextID string) ([]byte, error) {
	_, snapshot, err := s.store.read(ctx, contextID)
	if err != nil {
		return nil, err
	}
	return Template(snapshot)
}

// ExportMatrix returns the matrix of the context as CSV.
func (s *Service) ExportMatrix(ctx context.Context, contextID string) ([]byte, error) {
	rows, snapshot, err := s.store.matrix(ctx, contextID)
	if err != nil {
		return nil, err
	}
	return ExportMatrix(rows, snapshot)
}

// GetConflicts reports the conflicts of the current matrix.
func (s *Service) GetConflicts(ctx context.Context, contextID string) ([]model.Conflict, error) {
	rows, snapshot, err := s.store.matrix(ctx, contextID)
	if err != nil {
		return nil, err
	}
	return Detect(rows, snapshot), nil
}

// GetMatrix returns the matrix of the context.
func (s *Service) GetMatrix(ctx context.Context, contextID string) ([]model.MatrixRow, error) {
	return s.store.GetMatrix(ctx, contextID)
}
