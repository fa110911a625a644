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

// Package omerror converts judgeassign errors into transport level statuses.
package omerror

import (
	"context"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/pkg/errors"
	spb "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ProtoFromErr converts an error into a grpc status.  It differs from
// google.golang.org/grpc/status in that it will return an OK code on nil,
// returns the proper codes for context cancelation and deadline exceeded, and
// looks through github.com/pkg/errors wrappers for a status.
func ProtoFromErr(err error) *spb.Status {
	switch err {
	case nil:
		return &spb.Status{Code: int32(codes.OK)}
	case context.DeadlineExceeded:
		fallthrough
	case context.Canceled:
		return status.FromContextError(err).Proto()
	}

	if s, ok := status.FromError(err); ok {
		return s.Proto()
	}
	if cause := errors.Cause(err); cause != err {
		if s, ok := status.FromError(cause); ok {
			return &spb.Status{Code: s.Proto().Code, Message: err.Error()}
		}
		if cause == context.DeadlineExceeded || cause == context.Canceled {
			return &spb.Status{Code: status.FromContextError(cause).Proto().Code, Message: err.Error()}
		}
	}
	return status.Convert(err).Proto()
}

// HTTPStatusFromErr returns the HTTP status code matching the error's grpc code.
func HTTPStatusFromErr(err error) int {
	return runtime.HTTPStatusFromCode(codes.Code(ProtoFromErr(err).Code))
}
