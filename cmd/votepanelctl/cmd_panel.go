// Copyright (c) 2022-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	v1 "github.com/decred/votepanel/api/v1"
)

// cmdPanel retrieves the voting panel of a wallet for a proposal.
type cmdPanel struct {
	Args struct {
		Realm    string `positional-arg-name:"realm" required:"true"`
		Proposal string `positional-arg-name:"proposal" required:"true"`
		Wallet   string `positional-arg-name:"wallet" required:"true"`
	} `positional-args:"true"`
}

// Execute executes the command.
//
// This function satisfies the go-flags Commander interface.
func (c *cmdPanel) Execute(args []string) error {
	r, err := client.Panel(v1.Panel{
		Realm:    c.Args.Realm,
		Proposal: c.Args.Proposal,
		Wallet:   c.Args.Wallet,
	})
	if err != nil {
		return err
	}
	printReply(r)
	return nil
}

// cmdPlan plans a vote action. The action must be one of vote-yes, vote-no,
// sync, or withdraw.
type cmdPlan struct {
	Args struct {
		Realm    string `positional-arg-name:"realm" required:"true"`
		Proposal string `positional-arg-name:"proposal" required:"true"`
		Wallet   string `positional-arg-name:"wallet" required:"true"`
		Action   string `positional-arg-name:"action" required:"true"`
	} `positional-args:"true"`
}

// Execute executes the command.
//
// This function satisfies the go-flags Commander interface.
func (c *cmdPlan) Execute(args []string) error {
	r, err := client.Plan(v1.Plan{
		Realm:    c.Args.Realm,
		Proposal: c.Args.Proposal,
		Wallet:   c.Args.Wallet,
		Action:   c.Args.Action,
	})
	if err != nil {
		return err
	}
	printReply(r)
	return nil
}
