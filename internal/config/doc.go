// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and saves the client configuration.
//
// Configuration lives in ~/.streamchat/config.toml. Missing keys keep their
// defaults, STREAMCHAT_* environment variables override the file, and the
// result is validated before use.
//
// # Key Types
//
//   - Config: root configuration with one section per concern
//   - Duration: time.Duration that reads and writes as "15s" in TOML
//   - ValidationErrors: every problem found by Validate
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	client := assistant.NewClient(cfg.AssistantClientConfig(), log)
//
// Watch reloads the file when it changes on disk:
//
//	go config.Watch(ctx, path, func(cfg *config.Config, err error) { ... })
//
// # Environment Variables
//
//   - STREAMCHAT_CONFIG: config file path
//   - STREAMCHAT_HOME: config directory (default ~/.streamchat)
//   - STREAMCHAT_ENDPOINT: assistant base URL
//   - STREAMCHAT_LOG_LEVEL: debug, info, warn, error or off
//   - STREAMCHAT_METRICS_ADDR: listen address for /metrics
//   - STREAMCHAT_THEME: auto, dark or light
package config
