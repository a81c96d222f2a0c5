// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the streamchat command line.
//
// # Commands
//
//	streamchat                 chat UI on a terminal, line mode otherwise
//	streamchat repl            line mode with history (/new, /thread, /quit)
//	streamchat ask <text...>   one exchange, prints the reply
//	streamchat mock-server     local mock assistant
//	streamchat config show|path|init
//	streamchat version
//
// # Global Flags
//
//	--config <path>        config file (default ~/.streamchat/config.toml)
//	--endpoint <url>       assistant base URL
//	--log-level <level>    debug, info, warn, error or off
//	--metrics-addr <addr>  serve Prometheus metrics on addr
//
// Flags override environment variables, which override the config file.
package cli
