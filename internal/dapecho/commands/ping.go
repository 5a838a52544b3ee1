/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/microsoft/usvc-dap/pkg/dap"
	"github.com/microsoft/usvc-dap/pkg/dap/protocol"
	"github.com/microsoft/usvc-dap/pkg/logger"
)

var (
	pingAddress string
	pingTimeout time.Duration
)

func newPingCmd(log *logger.Logger) *cobra.Command {
	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "Run a client handshake against an echo endpoint",
		RunE:  runPing(log),
	}

	pingCmd.Flags().StringVarP(&pingAddress, "address", "a", "127.0.0.1:4711", "TCP address of the endpoint.")
	pingCmd.Flags().DurationVarP(&pingTimeout, "timeout", "t", 10*time.Second, "How long to wait for the endpoint.")

	return pingCmd
}

func runPing(log *logger.Logger) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		log := log.WithName("ping")

		ctx, cancel := context.WithTimeout(cmd.Context(), pingTimeout)
		defer cancel()

		conn, err := dap.DialWithRetry(ctx, pingAddress, pingTimeout)
		if err != nil {
			return err
		}

		session := dap.NewSession(dap.SessionConfig{Logger: log.Logger})
		defer session.Close()

		if err := dap.OnEvent(session, func(output *protocol.OutputEvent) {
			log.Info("server output", "output", string(output.Output))
		}); err != nil {
			return err
		}

		terminated := make(chan struct{})
		if err := dap.OnEvent(session, func(event *protocol.TerminatedEvent) {
			close(terminated)
		}); err != nil {
			return err
		}

		if err := session.Bind(conn, conn); err != nil {
			_ = conn.Close()
			return err
		}

		initFuture := session.SendRequest(&protocol.InitializeArguments{
			ClientID:  dap.Opt(dap.String("dapecho")),
			AdapterID: "dapecho",
		})
		capabilities, err := dap.AwaitResponse[protocol.Capabilities](ctx, initFuture)
		if err != nil {
			return fmt.Errorf("initialize failed: %w", err)
		}
		log.Info("initialized",
			"supportsConfigurationDoneRequest", capabilities.SupportsConfigurationDoneRequest.Value(),
			"supportsTerminateRequest", capabilities.SupportsTerminateRequest.Value(),
		)

		disconnectFuture := session.SendRequest(&protocol.DisconnectArguments{})
		if _, err := dap.AwaitResponse[protocol.DisconnectResult](ctx, disconnectFuture); err != nil {
			return fmt.Errorf("disconnect failed: %w", err)
		}

		select {
		case <-terminated:
			log.Info("session terminated")
		case <-ctx.Done():
			return ctx.Err()
		}

		return nil
	}
}
