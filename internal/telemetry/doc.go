// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry records client activity as Prometheus metrics.
//
// # Key Types
//
//   - Recorder: the narrow interface the conversation controller reports to
//   - Metrics: Prometheus-backed Recorder
//   - Nop: Recorder that discards everything
//
// # Usage
//
//	reg := prometheus.NewRegistry()
//	m := telemetry.MustNewMetrics(reg)
//	ctrl := conversation.New(client, conversation.WithRecorder(m))
//	http.Handle("/metrics", telemetry.Handler(reg))
package telemetry
