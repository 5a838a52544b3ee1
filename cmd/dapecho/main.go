/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package main

import (
	"context"
	"os"

	"github.com/microsoft/usvc-dap/internal/dapecho/commands"
	"github.com/microsoft/usvc-dap/pkg/logger"
)

const (
	errCommandError = 1
	errSetup        = 2
)

func main() {
	log := logger.New("dapecho")

	ctx := context.Background()

	root, err := commands.NewRootCmd(log)
	if err != nil {
		log.Error(err, "failed to set up commands")
		log.Flush()
		os.Exit(errSetup)
	}

	err = root.ExecuteContext(ctx)
	if err != nil {
		log.Error(err, "command failed")
		log.Flush()
		os.Exit(errCommandError)
	}

	log.Flush()
}
