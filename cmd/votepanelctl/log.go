// Copyright (c) 2022-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import "github.com/decred/votepanel/logger"

// log is the global log variable that commands can use to write output to
// the log file and stdout.
var log = logger.NewSubsystemLogger("VCTL")
