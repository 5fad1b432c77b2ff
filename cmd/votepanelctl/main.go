// Copyright (c) 2022-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/decred/votepanel/logger"
	"github.com/decred/votepanel/util"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

var (
	// cfg is the global config object that all commands have access to.
	cfg *config

	// client is a http client for interacting with the votepaneld API.
	client *httpc
)

// errCmdFailed is returned when the command parser or the command itself
// failed. It does not carry a stack trace.
var errCmdFailed = fmt.Errorf("command failed")

func main() {
	err := _main()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)

		// If this is a pkg/errors error then we can
		// pull the stack trace out of the error and
		// print it.
		stack, ok := util.StackTrace(err)
		if ok {
			fmt.Fprintf(os.Stderr, "%v\n", stack)
		}

		os.Exit(1)
	}
}

func _main() error {
	// Load the config. This also sets the global
	// cfg variable.
	var err error
	cfg, err = loadConfig()
	if err != nil {
		return errors.Errorf("load config: %v", err)
	}

	// Setup the log rotation. The log global variable may now
	// be used.
	err = logger.InitLogRotator(filepath.Join(cfg.LogDir, logFilename))
	if err != nil {
		return err
	}
	defer logger.CloseLogRotator()

	log.Tracef("App dir: %v", cfg.AppDir)

	// Setup the session database
	sessions, err := openSessionDB(cfg.DataDir)
	if err != nil {
		return err
	}
	defer sessions.Close()

	// Setup the http client
	client, err = newHttpc(cfg.hostURL, sessions, &httpcOpts{
		CertPool: cfg.certPool,
	})
	if err != nil {
		return err
	}

	// Parse the CLI args and execute the command. The help message
	// flags and unknown flag errors are caught during this parse.
	parser := flags.NewParser(&cmds{DoNotUse: cfg}, flags.Default)
	_, err = parser.Parse()
	if err != nil {
		// go-flags has already printed the error
		// to os.Stdout. Exit with an error code.
		return errCmdFailed
	}

	return nil
}
