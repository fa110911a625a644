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

// Package appmain contains the common application initialization code for judgeassign servers.
package appmain

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/plugin/ochttp"
	"judgeassign.dev/judgeassign/internal/config"
	"judgeassign.dev/judgeassign/internal/logging"
	"judgeassign.dev/judgeassign/internal/signal"
	"judgeassign.dev/judgeassign/internal/telemetry"
	"judgeassign.dev/judgeassign/internal/util"
)

const shutdownTimeout = 10 * time.Second

var (
	logger = logrus.WithFields(logrus.Fields{
		"app":       "judgeassign",
		"component": "app.main",
	})
)

// RunApplication starts and runs the given application until the process is
// asked to terminate. For use in main functions to run the full application.
func RunApplication(serverName string, bindService Bind) {
	wait, _ := signal.New()

	a, err := StartApplication(serverName, bindService, config.Read, net.Listen)
	if err != nil {
		logger.Fatal(err)
	}

	wait()
	err = a.Stop()
	if err != nil {
		logger.Fatal(err)
	}
	logger.Info("Application stopped successfully.")
}

// Bind is a function which starts an application, and binds it to serving.
type Bind func(p *Params, b *Bindings) error

// Params are inputs to starting an application.
type Params struct {
	config      config.View
	serviceName string
}

// Config provides the configuration for the application.
func (p *Params) Config() config.View {
	return p.config
}

// ServiceName is a name for the currently running binary specified by
// RunApplication.
func (p *Params) ServiceName() string {
	return p.serviceName
}

// Bindings allows applications to bind various functions to the running servers.
type Bindings struct {
	a            *App
	mux          *http.ServeMux
	api          *runtime.ServeMux
	healthChecks []func(context.Context) error
}

// AddHealthCheckFunc allows an application to check if it is healthy, and
// contribute to the overall server health.
func (b *Bindings) AddHealthCheckFunc(f func(context.Context) error) {
	b.healthChecks = append(b.healthChecks, f)
}

// AddHandlePath routes an API method and path pattern, such as
// "/v1/contexts/{context}/matrix", to h.
func (b *Bindings) AddHandlePath(method, pattern string, h runtime.HandlerFunc) error {
	return errors.Wrapf(b.api.HandlePath(method, pattern, h), "cannot route %s %s", method, pattern)
}

// TelemetryHandle adds a handler to the mux serving debug and telemetry pages.
func (b *Bindings) TelemetryHandle(pattern string, handler http.Handler) {
	b.mux.Handle(pattern, handler)
}

// TelemetryHandleFunc adds a handler function to the mux serving debug and
// telemetry pages.
func (b *Bindings) TelemetryHandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	b.mux.HandleFunc(pattern, handler)
}

// AddCloser specifies a function to be called when the application is being
// stopped. Closers are called in reverse order.
func (b *Bindings) AddCloser(c func()) {
	b.a.closers.AddCloseFunc(c)
}

// AddCloserErr specifies a function to be called when the application is being
// stopped. Closers are called in reverse order. The first error returned by
// a closer will be logged.
func (b *Bindings) AddCloserErr(c func() error) {
	b.a.closers.AddCloseWithErrorFunc(c)
}

// App is used internally, and public only for apptest. Do not use, and use apptest instead.
type App struct {
	closers *util.MultiClose
	addr    net.Addr
}

// Addr is the address the HTTP server listens on.
func (a *App) Addr() net.Addr {
	return a.addr
}

// StartApplication provides more control over an application than
// RunApplication. It is for running in memory tests against your app.
func StartApplication(serverName string, bindService Bind, getCfg func() (config.View, error), listen func(network, address string) (net.Listener, error)) (*App, error) {
	a := &App{
		closers: util.NewMultiClose(),
	}

	cfg, err := getCfg()
	if err != nil {
		logger.WithFields(logrus.Fields{
			"error": err.Error(),
		}).Fatalf("cannot read configuration.")
	}
	logging.ConfigureLogging(cfg)

	p := &Params{
		config:      cfg,
		serviceName: "judgeassign-" + serverName,
	}
	b := &Bindings{
		a:   a,
		mux: http.NewServeMux(),
		api: runtime.NewServeMux(),
	}

	err = telemetry.Setup(p, b)
	if err != nil {
		a.Stop()
		return nil, err
	}

	err = bindService(p, b)
	if err != nil {
		a.Stop()
		return nil, err
	}

	b.mux.Handle(telemetry.HealthCheckEndpoint, telemetry.NewHealthCheck(b.healthChecks))
	b.mux.Handle("/v1/", b.api)

	addr := fmt.Sprintf("%s:%d", cfg.GetString("api."+serverName+".hostname"), cfg.GetInt("api."+serverName+".httpport"))
	l, err := listen("tcp", addr)
	if err != nil {
		a.Stop()
		return nil, errors.Wrapf(err, "cannot listen on %s", addr)
	}
	a.addr = l.Addr()

	srv := &http.Server{
		Handler:           &ochttp.Handler{Handler: b.mux},
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
			logger.WithFields(logrus.Fields{
				"error": err.Error(),
				"addr":  addr,
			}).Error("HTTP server stopped unexpectedly")
		}
	}()
	b.AddCloserErr(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	})

	logger.WithFields(logrus.Fields{
		"service": p.ServiceName(),
		"addr":    a.addr.String(),
	}).Info("serving HTTP")
	return a, nil
}

// Stop is used internally, and public only for apptest. Do not use, and use apptest instead.
func (a *App) Stop() error {
	return a.closers.Close()
}
