// Copyright (c) 2022-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

// cmds contains the list of CLI commands.
type cmds struct {
	// The config is parsed separately from the commands and set as a global
	// variable. The DoNotUse config field is here as a workaround to prevent
	// go-flags unknown flag errors during parsing and to allow the config fields
	// to be printed in the go-flags created help message. It should not be used
	// by the commands.
	DoNotUse *config

	Version     cmdVersion     `command:"version" description:"Get the server version and a CSRF token"`
	Policy      cmdPolicy      `command:"policy" description:"Get the server policy"`
	Panel       cmdPanel       `command:"panel" description:"Get the voting panel of a wallet"`
	Plan        cmdPlan        `command:"plan" description:"Plan a vote action"`
	PutProposal cmdPutProposal `command:"putproposal" description:"Insert or update a proposal"`
	PutRecord   cmdPutRecord   `command:"putrecord" description:"Insert or update a token-owner record"`
	PutVote     cmdPutVote     `command:"putvote" description:"Insert or update a vote record"`
}
