// Copyright (c) 2022-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"time"

	v1 "github.com/decred/votepanel/api/v1"
)

// cmdPutProposal inserts or updates a proposal. The state must be one of
// draft, voting, succeeded, defeated, or cancelled.
type cmdPutProposal struct {
	Args struct {
		Key   string `positional-arg-name:"key" required:"true"`
		Realm string `positional-arg-name:"realm" required:"true"`
		State string `positional-arg-name:"state" required:"true"`
	} `positional-args:"true"`

	// EndsAt is the voting deadline as a unix timestamp.
	EndsAt int64 `long:"endsat" description:"Voting deadline unix timestamp (0 for none)"`

	// Duration sets the voting deadline relative to now. It takes
	// precedence over EndsAt.
	Duration time.Duration `long:"duration" description:"Voting deadline relative to now (e.g. 72h)"`
}

// Execute executes the command.
//
// This function satisfies the go-flags Commander interface.
func (c *cmdPutProposal) Execute(args []string) error {
	endsAt := c.EndsAt
	if c.Duration > 0 {
		endsAt = time.Now().Add(c.Duration).Unix()
	}
	r, err := client.PutProposals(v1.PutProposals{
		Proposals: []v1.Proposal{{
			Key:          c.Args.Key,
			Realm:        c.Args.Realm,
			State:        c.Args.State,
			VotingEndsAt: endsAt,
		}},
	})
	if err != nil {
		return err
	}
	printReply(r)
	return nil
}

// cmdPutRecord inserts or updates a token-owner record.
type cmdPutRecord struct {
	Args struct {
		Key         string `positional-arg-name:"key" required:"true"`
		Realm       string `positional-arg-name:"realm" required:"true"`
		Owner       string `positional-arg-name:"owner" required:"true"`
		VotingPower uint64 `positional-arg-name:"votingpower" required:"true"`
	} `positional-args:"true"`

	Delegate string `long:"delegate" description:"Wallet that the voting power is delegated to"`
}

// Execute executes the command.
//
// This function satisfies the go-flags Commander interface.
func (c *cmdPutRecord) Execute(args []string) error {
	r, err := client.PutRecords(v1.PutRecords{
		Records: []v1.TokenOwnerRecord{{
			Key:         c.Args.Key,
			Realm:       c.Args.Realm,
			Owner:       c.Args.Owner,
			Delegate:    c.Delegate,
			VotingPower: c.Args.VotingPower,
		}},
	})
	if err != nil {
		return err
	}
	printReply(r)
	return nil
}

// cmdPutVote inserts or updates a vote record. The choice must be yes or no.
type cmdPutVote struct {
	Args struct {
		Proposal         string `positional-arg-name:"proposal" required:"true"`
		TokenOwnerRecord string `positional-arg-name:"tokenownerrecord" required:"true"`
		Choice           string `positional-arg-name:"choice" required:"true"`
	} `positional-args:"true"`

	Relinquished bool `long:"relinquished" description:"Mark the vote as relinquished"`
}

// Execute executes the command.
//
// This function satisfies the go-flags Commander interface.
func (c *cmdPutVote) Execute(args []string) error {
	r, err := client.PutVotes(v1.PutVotes{
		Votes: []v1.VoteRecord{{
			Proposal:         c.Args.Proposal,
			TokenOwnerRecord: c.Args.TokenOwnerRecord,
			Choice:           c.Args.Choice,
			Relinquished:     c.Relinquished,
			Timestamp:        time.Now().Unix(),
		}},
	})
	if err != nil {
		return err
	}
	printReply(r)
	return nil
}
