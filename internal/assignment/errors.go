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
	"fmt"

	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"judgeassign.dev/judgeassign/internal/lock"
	"judgeassign.dev/judgeassign/pkg/model"
)

// Error is a classified engine failure. It carries a gRPC status so that
// status.Code and the HTTP layer can map it without knowing the engine.
type Error struct {
	Kind    model.Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Cause returns the underlying error, if any.
func (e *Error) Cause() error { return e.cause }

// Unwrap supports errors.Is and errors.As.
func (e *Error) Unwrap() error { return e.cause }

// GRPCStatus implements the interface used by status.FromError.
func (e *Error) GRPCStatus() *status.Status {
	return status.New(CodeOf(e.Kind), e.Error())
}

// CodeOf maps an error kind to its gRPC code.
func CodeOf(k model.Kind) codes.Code {
	switch k {
	case model.UnknownEntity:
		return codes.NotFound
	case model.DuplicateAssignment:
		return codes.AlreadyExists
	case model.SourceMismatch:
		return codes.FailedPrecondition
	case model.LockContention:
		return codes.Aborted
	case model.Timeout:
		return codes.DeadlineExceeded
	case model.PersistenceFailure:
		return codes.Unavailable
	case model.InvalidRow, model.InvalidArgument:
		return codes.InvalidArgument
	}
	return codes.Internal
}

// KindOf returns the kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) model.Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return model.KindUnknown
}

func newError(k model.Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...)}
}

func wrapError(err error, k model.Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...), cause: err}
}

// fromLock classifies a failure to enter the exclusive section.
func fromLock(err error, contextID string) *Error {
	switch {
	case errors.Is(err, lock.ErrContention):
		return wrapError(err, model.LockContention, "context %s is being modified by another caller", contextID)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return wrapError(err, model.Timeout, "gave up waiting for context %s", contextID)
	}
	return wrapError(err, model.PersistenceFailure, "failed to lock context %s", contextID)
}

// fromDependency classifies a failure of the store or the directory.
func fromDependency(ctx context.Context, err error, format string, args ...interface{}) *Error {
	if ctx.Err() != nil {
		return wrapError(err, model.Timeout, format, args...)
	}
	if status.Code(errors.Cause(err)) == codes.DeadlineExceeded {
		return wrapError(err, model.Timeout, format, args...)
	}
	return wrapError(err, model.PersistenceFailure, format, args...)
}
