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

// Package expbo parses exponential backoff policies from configuration strings.
package expbo

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"judgeassign.dev/judgeassign/internal/config"
)

// UnmarshalExponentialBackOff populates ExponentialBackOff structure parsing strings of format:
// "[InitInterval MaxInterval] *Multiplier ~RandomizationFactor <MaxElapsedTime"
// Durations are expressed in seconds. Fields that are not mentioned keep
// their current value.
//
// Example: "[0.010 0.250] *2 ~0.33 <2"
func UnmarshalExponentialBackOff(s string, b *backoff.ExponentialBackOff) error {
	seconds := func(word, trim string, name string) (time.Duration, error) {
		v, err := strconv.ParseFloat(trim, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "cannot parse %s value %q", name, word)
		}
		return time.Duration(v * float64(time.Second)), nil
	}

	for _, word := range strings.Split(strings.TrimSpace(s), " ") {
		var err error
		switch {
		case word == "":
			continue
		case strings.HasPrefix(word, "["):
			b.InitialInterval, err = seconds(word, strings.TrimPrefix(word, "["), "InitInterval")
		case strings.HasSuffix(word, "]"):
			b.MaxInterval, err = seconds(word, strings.TrimSuffix(word, "]"), "MaxInterval")
		case strings.HasPrefix(word, "*"):
			b.Multiplier, err = strconv.ParseFloat(strings.TrimPrefix(word, "*"), 64)
			err = errors.Wrapf(err, "cannot parse Multiplier value %q", word)
		case strings.HasPrefix(word, "~"):
			b.RandomizationFactor, err = strconv.ParseFloat(strings.TrimPrefix(word, "~"), 64)
			err = errors.Wrapf(err, "cannot parse RandomizationFactor value %q", word)
		case strings.HasPrefix(word, "<"):
			b.MaxElapsedTime, err = seconds(word, strings.TrimPrefix(word, "<"), "MaxElapsedTime")
		default:
			return fmt.Errorf(`unexpected word "%s"`, word)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// FromConfig builds an ExponentialBackOff from the policy string stored under
// key, falling back to def when the key is not set.
func FromConfig(cfg config.View, key string, def string) (*backoff.ExponentialBackOff, error) {
	policy := def
	if cfg.IsSet(key) {
		policy = cfg.GetString(key)
	}
	b := backoff.NewExponentialBackOff()
	if err := UnmarshalExponentialBackOff(policy, b); err != nil {
		return nil, errors.Wrapf(err, "invalid backoff policy for %s", key)
	}
	b.Reset()
	return b, nil
}
