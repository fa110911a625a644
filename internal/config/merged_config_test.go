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

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReadMerged(t *testing.T) {
	t.Run("can merge multiple files", testCanReadAndMerge)
	t.Run("can watch changes in multiple layers", testCanWatchChanges)
	t.Run("fails without files", testNoFiles)
}

const waitAfterConfigChange = 1 * time.Second

var commonTestData = []string{
	"first.yaml",
	"x: 123\ny: 456",

	"second.yaml",
	"x: 666",
}

// Use in pair and keep in sync with commonTestData
func commonAssertion(cfg View) error {
	for _, testcase := range []struct {
		key      string
		expected int
	}{
		// Expect original value from 1st layer
		{"y", 456},

		// Expect overriden value from 2nd layer
		{"x", 666},
	} {
		if val := cfg.GetInt(testcase.key); val != testcase.expected {
			return fmt.Errorf("%q = %d, expected %d", testcase.key, val, testcase.expected)
		}
	}
	return nil
}

func testCanReadAndMerge(t *testing.T) {
	testfiles := bootstrap(t, t.TempDir(), commonTestData...)

	cfg, err := readMerged(testfiles...)
	if err != nil {
		t.Fatalf("cannot load config, %s", err)
	}

	if err := commonAssertion(cfg); err != nil {
		t.Fatal(err)
	}
}

func testCanWatchChanges(t *testing.T) {
	testfiles := bootstrap(t, t.TempDir(), commonTestData...)

	cfg, err := readMerged(testfiles...)
	if err != nil {
		t.Fatalf("cannot load config, %s", err)
	}

	if err := commonAssertion(cfg); err != nil {
		t.Fatal(err)
	}

	// ------------------------------------------------
	// Modify 'x' on 2nd layer:
	// 'x' is overriden on 2nd layer and must receive modified value)
	x := 999
	secondYaml := fmt.Sprintf("x: %d", x)
	if err := os.WriteFile(testfiles[1], []byte(secondYaml), 0666); err != nil {
		t.Fatalf("could not modify second layer (temp file %q): %v", testfiles[1], err)
	}
	time.Sleep(waitAfterConfigChange)

	if val := cfg.GetInt("x"); val != x {
		t.Errorf("x = %d, expected %d", val, x)
	}

	// ------------------------------------------------
	// Modify 'x' and 'y' on 1st layer:
	// 'x' must remain overriden on 2nd layer)
	y := 654
	firstYaml := fmt.Sprintf("x: 100\ny: %d", y)
	if err := os.WriteFile(testfiles[0], []byte(firstYaml), 0666); err != nil {
		t.Fatalf("could not modify first layer (temp file %q): %v", testfiles[0], err)
	}
	time.Sleep(waitAfterConfigChange)

	if val := cfg.GetInt("y"); val != y {
		t.Errorf("y = %d, expected %d", val, y)
	}
	if val := cfg.GetInt("x"); val != x {
		t.Errorf("x = %d, expected %d", val, x)
	}
}

func testNoFiles(t *testing.T) {
	_, err := readMerged()
	require.Error(t, err)
}

func TestReadSkipsMissingOverride(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	require.NoError(os.MkdirAll(filepath.Join(dir, "default"), 0777))
	bootstrap(t, filepath.Join(dir, "default"), "assignments_config.yaml", "lock:\n  mode: local\n")
	t.Setenv(configDirEnv, dir)

	cfg, err := Read()
	require.NoError(err)
	require.Equal("local", cfg.GetString("lock.mode"))
}

func TestReadAppliesOverride(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	require.NoError(os.MkdirAll(filepath.Join(dir, "default"), 0777))
	require.NoError(os.MkdirAll(filepath.Join(dir, "override"), 0777))
	bootstrap(t, filepath.Join(dir, "default"), "assignments_config.yaml", "lock:\n  mode: local\n  expiry: 8s\n")
	bootstrap(t, filepath.Join(dir, "override"), "assignments_config.yaml", "lock:\n  mode: redis\n")
	t.Setenv(configDirEnv, dir)

	cfg, err := Read()
	require.NoError(err)
	require.Equal("redis", cfg.GetString("lock.mode"))
	require.Equal(8*time.Second, cfg.GetDuration("lock.expiry"))
}

func bootstrap(t *testing.T, dir string, testdata ...string) []string {
	t.Helper()
	if len(testdata)%2 != 0 {
		t.Fatal("odd number of arguments")
	}

	var testfiles []string
	for i := 0; i < len(testdata); i += 2 {
		filename, content := testdata[i], testdata[i+1]

		f := filepath.Join(dir, filename)
		if err := os.WriteFile(f, []byte(content), 0666); err != nil {
			t.Fatalf("could not create temp file %q: %v", f, err)
		}
		testfiles = append(testfiles, f)
	}
	return testfiles
}
