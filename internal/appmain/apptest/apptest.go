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

// Package apptest runs bound services in memory for tests.
package apptest

import (
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"judgeassign.dev/judgeassign/internal/appmain"
	"judgeassign.dev/judgeassign/internal/config"
)

const serverName = "test"

// TestApp serves binds on a free loopback port and stops them when the test
// finishes. The api.test.* address keys of cfg are set to that port. It
// returns the base URL of the HTTP server.
func TestApp(t *testing.T, cfg config.Mutable, binds ...appmain.Bind) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	cfg.Set("api."+serverName+".hostname", "127.0.0.1")
	cfg.Set("api."+serverName+".httpport", port)

	getCfg := func() (config.View, error) {
		return cfg, nil
	}
	bindAll := func(p *appmain.Params, b *appmain.Bindings) error {
		for _, bind := range binds {
			if err := bind(p, b); err != nil {
				return err
			}
		}
		return nil
	}

	app, err := appmain.StartApplication(serverName, bindAll, getCfg, handOver(l, "127.0.0.1:"+strconv.Itoa(port)))
	if err != nil {
		l.Close()
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := app.Stop(); err != nil {
			t.Fatal(err)
		}
	})
	return "http://" + app.Addr().String()
}

// handOver returns a listen func that yields l exactly once, for addr only.
func handOver(l net.Listener, addr string) func(network, address string) (net.Listener, error) {
	var once sync.Once
	return func(network, address string) (net.Listener, error) {
		if network != "tcp" || address != addr {
			return nil, errors.Errorf("no test listener for %s %q, expected tcp %q", network, address, addr)
		}
		var got net.Listener
		once.Do(func() {
			got = l
		})
		if got == nil {
			return nil, errors.Errorf("test listener for %q was already used", address)
		}
		return got, nil
	}
}
