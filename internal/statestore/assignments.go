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
	"encoding/json"

	"github.com/gomodule/redigo/redis"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"judgeassign.dev/judgeassign/pkg/model"
)

const assignmentsKey = "assignments:"

func (rb *redisBackend) assignmentsKey(contextID string) string {
	return rb.keyPrefix + assignmentsKey + contextID
}

// LoadAssignments returns the assignments of the context in insertion order.
func (rb *redisBackend) LoadAssignments(ctx context.Context, contextID string) ([]*model.Assignment, error) {
	redisConn, err := rb.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer handleConnectionClose(&redisConn)

	values, err := redis.ByteSlices(redisConn.Do("LRANGE", rb.assignmentsKey(contextID), 0, -1))
	if err != nil {
		err = errors.Wrapf(err, "failed to load assignments of context %s", contextID)
		return nil, status.Error(codes.Unavailable, err.Error())
	}

	result := make([]*model.Assignment, 0, len(values))
	for _, v := range values {
		a := &model.Assignment{}
		if err := json.Unmarshal(v, a); err != nil {
			redisLogger.WithFields(logrus.Fields{
				"error":   err.Error(),
				"context": contextID,
			}).Error("failed to unmarshal stored assignment")
			err = errors.Wrapf(err, "failed to unmarshal assignment of context %s", contextID)
			return nil, status.Error(codes.Internal, err.Error())
		}
		a.ContextID = contextID
		result = append(result, a)
	}
	return result, nil
}

// SaveAssignments replaces the assignment list of the context inside a single
// MULTI/EXEC block.
func (rb *redisBackend) SaveAssignments(ctx context.Context, contextID string, assignments []*model.Assignment) error {
	args := redis.Args{rb.assignmentsKey(contextID)}
	for _, a := range assignments {
		value, err := json.Marshal(a)
		if err != nil {
			err = errors.Wrapf(err, "failed to marshal assignment %s", a.Pair())
			return status.Error(codes.Internal, err.Error())
		}
		args = args.Add(value)
	}

	redisConn, err := rb.connect(ctx)
	if err != nil {
		return err
	}
	defer handleConnectionClose(&redisConn)

	err = redisConn.Send("MULTI")
	if err != nil {
		err = errors.Wrap(err, "failed to pipeline commands for SaveAssignments")
		return status.Error(codes.Internal, err.Error())
	}
	err = redisConn.Send("DEL", rb.assignmentsKey(contextID))
	if err != nil {
		err = errors.Wrap(err, "failed to pipeline commands for SaveAssignments")
		return status.Error(codes.Internal, err.Error())
	}
	if len(assignments) > 0 {
		err = redisConn.Send("RPUSH", args...)
		if err != nil {
			err = errors.Wrap(err, "failed to pipeline commands for SaveAssignments")
			return status.Error(codes.Internal, err.Error())
		}
	}

	_, err = redisConn.Do("EXEC")
	if err != nil {
		redisLogger.WithFields(logrus.Fields{
			"error":   err.Error(),
			"context": contextID,
			"count":   len(assignments),
		}).Error("failed to save assignments")
		err = errors.Wrapf(err, "failed to save assignments of context %s", contextID)
		return status.Error(codes.Unavailable, err.Error())
	}
	return nil
}
