// Copyright (c) 2017-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"github.com/decred/votepanel/logger"
	"github.com/decred/votepanel/panel"
	"github.com/decred/votepanel/server"
	"github.com/decred/votepanel/store/localdb"
	"github.com/decred/votepanel/store/mysql"
	"github.com/decred/votepanel/voter"
)

// Loggers per subsystem. The loggers write to stdout until the log rotator
// has been initialized by loadConfig.
var (
	log       = logger.NewSubsystemLogger("VPNL")
	serverLog = logger.NewSubsystemLogger("SERV")
	panelLog  = logger.NewSubsystemLogger("PANL")
	storeLog  = logger.NewSubsystemLogger("STOR")
)

// Initialize package-global logger variables.
func init() {
	server.UseLogger(serverLog)
	panel.UseLogger(panelLog)
	voter.UseLogger(panelLog)
	localdb.UseLogger(storeLog)
	mysql.UseLogger(storeLog)
}
