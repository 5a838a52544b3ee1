/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package commands

import (
	"github.com/spf13/cobra"

	"github.com/microsoft/usvc-dap/pkg/logger"
)

// NewRootCmd creates the dapecho command tree.
func NewRootCmd(log *logger.Logger) (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		SilenceErrors: true,
		SilenceUsage:  true,
		Use:           "dapecho",
		Short:         "A minimal Debug Adapter Protocol echo endpoint",
		Long: `dapecho hosts a minimal Debug Adapter Protocol endpoint over TCP and can
exercise it as a client. The server answers initialize, launch, terminate
and disconnect requests and emits output, exited and terminated events;
the ping subcommand runs a full client handshake against it.`,
	}

	log.AddLevelFlag(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newServeCmd(log))
	rootCmd.AddCommand(newPingCmd(log))

	return rootCmd, nil
}
