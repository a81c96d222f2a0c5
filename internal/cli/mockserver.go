// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/streamchat/internal/server"
)

func newMockServerCommand(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Run a local mock assistant",
		Long: `Run a local assistant that streams canned replies.

The reply echoes the message word by word unless [server.script] in the
config maps it to another reply. The messages !error, !fail and !empty
produce an error frame, an HTTP 500 and an empty reply.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runMockServer(cmd, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, 127.0.0.1:8000)")
	return cmd
}

func (a *app) runMockServer(cmd *cobra.Command, addr string) error {
	sc := a.cfg.Server
	if addr == "" {
		addr = sc.Addr
	}

	srv := server.New(server.Config{
		Addr:              addr,
		WordDelay:         sc.WordDelay.Duration,
		RequestsPerSecond: sc.RequestsPerSecond,
		Burst:             sc.Burst,
		AllowedOrigins:    sc.AllowedOrigins,
		Script:            sc.Script,
		Logger:            a.log,
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Mock assistant listening on http://%s\n", ln.Addr())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-cmd.Context().Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	return <-errCh
}
