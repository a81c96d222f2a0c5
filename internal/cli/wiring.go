// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jeranaias/streamchat/internal/assistant"
	"github.com/jeranaias/streamchat/internal/conversation"
	"github.com/jeranaias/streamchat/internal/logging"
	"github.com/jeranaias/streamchat/internal/telemetry"
)

// newController builds the assistant client and conversation controller
// from the loaded config. The returned stop function shuts down the
// metrics endpoint if one was started.
func (a *app) newController(log logging.Logger) (*conversation.Controller, func(), error) {
	client := assistant.NewClient(a.cfg.AssistantClientConfig(), log)

	rec, stop, err := a.startMetrics(log)
	if err != nil {
		return nil, nil, err
	}

	ctrl := conversation.New(client,
		conversation.WithLogger(log),
		conversation.WithRecorder(rec),
		conversation.WithChunkSize(a.cfg.Assistant.ChunkSize),
	)
	return ctrl, stop, nil
}

// startMetrics serves /metrics when an address is configured. Without one
// it returns a no-op recorder.
func (a *app) startMetrics(log logging.Logger) (telemetry.Recorder, func(), error) {
	addr := a.cfg.Metrics.Addr
	if addr == "" {
		return telemetry.Nop(), func() {}, nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := telemetry.NewMetrics(reg)
	if err != nil {
		return nil, nil, err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler(reg))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("METRICS | server stopped err=%v", err)
		}
	}()
	log.Info("METRICS | serving on http://%s/metrics", ln.Addr())

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
	return metrics, stop, nil
}
