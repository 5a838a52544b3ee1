/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package commands

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/microsoft/usvc-dap/pkg/dap"
	"github.com/microsoft/usvc-dap/pkg/dap/protocol"
	"github.com/microsoft/usvc-dap/pkg/logger"
)

var serveAddress string

func newServeCmd(log *logger.Logger) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Host the echo endpoint on a TCP address",
		RunE:  runServe(log),
	}

	serveCmd.Flags().StringVarP(&serveAddress, "address", "a", "127.0.0.1:4711", "TCP address to listen on.")

	return serveCmd
}

func runServe(log *logger.Logger) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		log := log.WithName("serve")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		server := dap.NewServer(dap.ServerConfig{
			Address: serveAddress,
			Logger:  log.Logger,
			OnConnection: func(ctx context.Context, conn net.Conn) {
				serveConnection(ctx, log, conn)
			},
		})

		if err := server.Start(ctx); err != nil {
			return err
		}
		defer server.Stop()

		log.Info("dapecho listening", "address", server.Addr().String())
		<-ctx.Done()
		return nil
	}
}

func serveConnection(ctx context.Context, log *logger.Logger, conn net.Conn) {
	connLog := log.Logger.WithValues("connectionID", uuid.NewString())
	session := dap.NewSession(dap.SessionConfig{Logger: connLog})
	defer session.Close()

	_ = dap.OnRequest(session, func(args *protocol.InitializeArguments) (*protocol.Capabilities, error) {
		connLog.Info("client connected", "adapterID", string(args.AdapterID))
		return &protocol.Capabilities{
			SupportsConfigurationDoneRequest: dap.Opt(dap.Boolean(true)),
			SupportsTerminateRequest:         dap.Opt(dap.Boolean(true)),
		}, nil
	})

	_ = dap.OnResponseSent(session, func(response *protocol.Capabilities, err error) {
		if err != nil {
			return
		}
		greeting := &protocol.OutputEvent{Output: "dapecho ready\n"}
		greeting.Category.Set("console")
		if sendErr := session.SendEvent(greeting); sendErr != nil && !dap.IsClosedError(sendErr) {
			connLog.Error(sendErr, "failed to send greeting")
		}
	})

	_ = dap.OnRequest(session, func(args *protocol.LaunchArguments) (*protocol.LaunchResult, error) {
		noDebug, _ := args.NoDebug.Get()
		connLog.Info("launch requested", "noDebug", bool(noDebug))
		return &protocol.LaunchResult{}, nil
	})

	_ = dap.OnRequest(session, func(args *protocol.TerminateArguments) (*protocol.TerminateResult, error) {
		connLog.Info("terminate requested")
		return &protocol.TerminateResult{}, nil
	})

	_ = dap.OnResponseSent(session, func(response *protocol.TerminateResult, err error) {
		if err != nil {
			return
		}
		if sendErr := session.SendEvent(&protocol.ExitedEvent{ExitCode: 0}); sendErr != nil && !dap.IsClosedError(sendErr) {
			connLog.Error(sendErr, "failed to send exited event")
		}
		if sendErr := session.SendEvent(&protocol.TerminatedEvent{}); sendErr != nil && !dap.IsClosedError(sendErr) {
			connLog.Error(sendErr, "failed to send terminated event")
		}
	})

	_ = dap.OnRequest(session, func(args *protocol.DisconnectArguments) (*protocol.DisconnectResult, error) {
		connLog.Info("client disconnecting")
		return &protocol.DisconnectResult{}, nil
	})

	_ = dap.OnResponseSent(session, func(response *protocol.DisconnectResult, err error) {
		if sendErr := session.SendEvent(&protocol.TerminatedEvent{}); sendErr != nil && !dap.IsClosedError(sendErr) {
			connLog.Error(sendErr, "failed to send terminated event")
		}
	})

	session.OnError(func(message string) {
		connLog.Info("protocol error", "message", message)
	})

	if err := session.Bind(conn, conn); err != nil {
		connLog.Error(err, "failed to bind session")
		_ = conn.Close()
		return
	}

	select {
	case <-session.Done():
	case <-ctx.Done():
		session.Close()
	}
}
