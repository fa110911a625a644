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

package statestore

import (
	"context"

	"go.opencensus.io/trace"
	"judgeassign.dev/judgeassign/internal/telemetry"
	"judgeassign.dev/judgeassign/pkg/model"
)

var (
	mStateStoreLoadAssignmentsCount  = telemetry.Counter("statestore/loadassignmentscount", "number of assignment sets loaded")
	mStateStoreLoadedAssignmentCount = telemetry.Counter("statestore/loadedassignmentcount", "number of assignments read from storage")
	mStateStoreSaveAssignmentsCount  = telemetry.Counter("statestore/saveassignmentscount", "number of assignment sets saved")
	mStateStoreSavedAssignmentCount  = telemetry.Counter("statestore/savedassignmentcount", "number of assignments written to storage")
)

// instrumentedService is a wrapper for a statestore service that provides instrumentation (metrics and tracing) of the database.
type instrumentedService struct {
	s Service
}

// Close the connection to the database.
func (is *instrumentedService) Close() error {
	return is.s.Close()
}

// HealthCheck indicates if the database is reachable.
func (is *instrumentedService) HealthCheck(ctx context.Context) error {
	err := is.s.HealthCheck(ctx)
	return err
}

// LoadAssignments returns the assignments of the context in insertion order.
func (is *instrumentedService) LoadAssignments(ctx context.Context, contextID string) ([]*model.Assignment, error) {
	ctx, span := trace.StartSpan(ctx, "statestore/instrumented.LoadAssignments")
	defer span.End()
	span.AddAttributes(trace.StringAttribute("context", contextID))
	defer telemetry.RecordUnitMeasurement(ctx, mStateStoreLoadAssignmentsCount)

	result, err := is.s.LoadAssignments(ctx, contextID)
	telemetry.RecordNUnitMeasurement(ctx, mStateStoreLoadedAssignmentCount, int64(len(result)))
	return result, err
}

// SaveAssignments atomically replaces the assignments of the context.
func (is *instrumentedService) SaveAssignments(ctx context.Context, contextID string, assignments []*model.Assignment) error {
	ctx, span := trace.StartSpan(ctx, "statestore/instrumented.SaveAssignments")
	defer span.End()
	span.AddAttributes(trace.StringAttribute("context", contextID), trace.Int64Attribute("count", int64(len(assignments))))
	defer telemetry.RecordUnitMeasurement(ctx, mStateStoreSaveAssignmentsCount)
	defer telemetry.RecordNUnitMeasurement(ctx, mStateStoreSavedAssignmentCount, int64(len(assignments)))
	return is.s.SaveAssignments(ctx, contextID, assignments)
}
