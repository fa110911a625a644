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

// Package consts holds the configuration keys shared across judgeassign packages.
package consts

const (
	// Service settings
	AssignmentsHostName = "api.assignments.hostname"
	AssignmentsHTTPPort = "api.assignments.httpport"

	// Logging settings
	LoggingFormat = "logging.format"
	LoggingLevel  = "logging.level"
	LoggingSource = "logging.source"

	// Redis settings
	RedisConnMaxIdle            = "redis.pool.maxIdle"
	RedisConnMaxActive          = "redis.pool.maxActive"
	RedisConnIdleTimeout        = "redis.pool.idleTimeout"
	RedisConnHealthCheckTimeout = "redis.pool.healthCheckTimeout"
	RedisUser                   = "redis.user"
	RedisUsePassword            = "redis.usePassword"
	RedisPasswordPath           = "redis.passwordPath"
	RedisHostName               = "redis.hostname"
	RedisPort                   = "redis.port"
	RedisSentinelHostName       = "redis.sentinelHostname"
	RedisSentinelPort           = "redis.sentinelPort"
	RedisSentinelMaster         = "redis.sentinelMaster"
	RedisSentinelUsePassword    = "redis.sentinelUsePassword"
	RedisKeyPrefix              = "redis.keyPrefix"

	// Exclusive section settings
	LockMode    = "lock.mode"
	LockExpiry  = "lock.expiry"
	LockBackoff = "lock.backoff"

	// Directory settings
	DirectoryRosterPath = "directory.rosterPath"

	// Import settings
	ImportMaxBytes = "import.maxBytes"
)
