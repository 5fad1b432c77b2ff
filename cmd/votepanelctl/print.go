// Copyright (c) 2022-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/davecgh/go-spew/spew"
)

// formatJSON returns a pretty printed JSON string for the provided structure.
func formatJSON(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("json error: %v", err)
	}
	return string(b)
}

// printReply prints a server reply. The reply is dumped with its Go types
// when the verbose setting is used.
func printReply(v interface{}) {
	if cfg != nil && cfg.Verbose {
		fmt.Print(spew.Sdump(v))
		return
	}
	fmt.Println(formatJSON(v))
}
