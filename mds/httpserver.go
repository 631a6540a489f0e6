// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package mds

import (
	"context"
	"io"
	"net/http"

	"github.com/cubefs/cubefs/blobstore/common/profile"
	"github.com/cubefs/cubefs/blobstore/common/rpc"
	"github.com/cubefs/cubefs/blobstore/util/log"

	apierrors "github.com/cubefs/mds/errors"
)

// HTTPServer exposes the local admin command socket over the profile
// debug HTTP surface, exactly the shape of the teacher's
// server/httpserver.go: profile.HandleFunc for command-style endpoints,
// rpc.GET for a plain status probe.
type HTTPServer struct {
	d          *Daemon
	httpServer *http.Server
}

// NewHTTPServer wires an HTTPServer around d, called once from cmd/mds
// after Init.
func NewHTTPServer(d *Daemon) *HTTPServer {
	return &HTTPServer{d: d}
}

// Serve starts listening on addr, registering the admin command endpoints
// and a bare liveness probe.
func (h *HTTPServer) Serve(addr string) {
	h.registerAdminCommandHandlers()
	rpc.GET("/stats", h.handleStats, rpc.OptArgsQuery())

	ph := profile.NewProfileHandler(addr)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: rpc.MiddlewareHandlerWith(rpc.DefaultRouter, ph),
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("mds http server exited:", err)
		}
	}()
	h.httpServer = httpServer
	log.Info("mds admin http server is running at:", addr)
}

// Stop gracefully shuts the admin HTTP surface down.
func (h *HTTPServer) Stop() {
	if h.httpServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.d.cfg.monShutdownTimeout())
	defer cancel()
	_ = h.httpServer.Shutdown(ctx)
}

func (h *HTTPServer) registerAdminCommandHandlers() {
	profile.HandleFunc(http.MethodGet, "/admin/command", h.handleAdminCommand)
	profile.HandleFunc(http.MethodPost, "/admin/command", h.handleAdminCommand)

	logLevelPath, logLevelHandler := log.ChangeDefaultLevelHandler()
	profile.HandleFunc(http.MethodGet, logLevelPath, func(c *rpc.Context) {
		logLevelHandler.ServeHTTP(c.Writer, c.Request)
	})
	profile.HandleFunc(http.MethodPost, logLevelPath, func(c *rpc.Context) {
		logLevelHandler.ServeHTTP(c.Writer, c.Request)
	})
}

// handleAdminCommand serves the local text command socket of spec.md §6
// over HTTP: the command line is either the "cmd" query parameter or the
// raw request body.
func (h *HTTPServer) handleAdminCommand(c *rpc.Context) {
	line := c.Request.URL.Query().Get("cmd")
	if line == "" {
		body, _ := io.ReadAll(c.Request.Body)
		line = string(body)
	}

	text, code := h.d.HandleLocalCommand(c.Request.Context(), line)
	status := http.StatusOK
	if code != apierrors.CodeOK {
		status = http.StatusBadRequest
	}
	c.Writer.WriteHeader(status)
	_, _ = c.Writer.Write([]byte(text))
}

func (h *HTTPServer) handleStats(c *rpc.Context) {
	c.RespondStatus(http.StatusOK)
}
