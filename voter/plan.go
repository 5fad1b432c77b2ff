// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package voter

import (
	"github.com/pkg/errors"
)

var (
	// ErrNothingToDo is returned when a plan would not cast or relinquish
	// any vote.
	ErrNothingToDo = errors.New("nothing to do")

	// ErrActionNotOffered is returned when a plan is requested for an
	// action that the panel does not offer.
	ErrActionNotOffered = errors.New("action not offered")
)

// Action is a vote action that can be requested from the panel.
type Action string

const (
	ActionVoteYes  Action = "vote-yes"
	ActionVoteNo   Action = "vote-no"
	ActionSync     Action = "sync"
	ActionWithdraw Action = "withdraw"
)

// Offered returns whether the action is part of the action set.
func (a Action) Offered(s ActionSet) bool {
	switch a {
	case ActionVoteYes:
		return s.ShowVoteYes
	case ActionVoteNo:
		return s.ShowVoteNo
	case ActionSync:
		return s.ShowSync
	case ActionWithdraw:
		return s.ShowWithdraw
	}
	return false
}

// Ballot is a vote that should be cast with a token-owner record.
type Ballot struct {
	TokenOwnerRecord string     `json:"tokenownerrecord"`
	Choice           VoteChoice `json:"choice"`
	VotingPower      uint64     `json:"votingpower"`
}

// Plan contains the votes that must be cast and relinquished in order to
// carry out a vote action. Relinquish contains token-owner record keys.
type Plan struct {
	Action     Action   `json:"action"`
	Cast       []Ballot `json:"cast,omitempty"`
	Relinquish []string `json:"relinquish,omitempty"`

	// Conflicted is set when a sync fell back to withdrawing every
	// committed vote because the committed votes disagree.
	Conflicted bool `json:"conflicted,omitempty"`
}

// PlanVote returns the plan that casts the choice with every account that is
// ready to vote.
func PlanVote(r ClassificationResult, c VoteChoice) (*Plan, error) {
	var a Action
	switch c {
	case VoteChoiceYes:
		a = ActionVoteYes
	case VoteChoiceNo:
		a = ActionVoteNo
	default:
		return nil, errors.Errorf("invalid vote choice %v", uint32(c))
	}
	p := Plan{
		Action: a,
		Cast:   ballots(r.ReadyToVote, c),
	}
	if len(p.Cast) == 0 {
		return nil, ErrNothingToDo
	}
	return &p, nil
}

// PlanWithdraw returns the plan that relinquishes every committed vote.
func PlanWithdraw(r ClassificationResult) (*Plan, error) {
	p := Plan{
		Action:     ActionWithdraw,
		Relinquish: recordKeys(r.AlreadyVoted),
	}
	if len(p.Relinquish) == 0 {
		return nil, ErrNothingToDo
	}
	return &p, nil
}

// PlanSync returns the plan that brings the uncommitted voting power in line
// with the committed votes. The uncommitted accounts vote the same way as the
// committed accounts. When the committed votes disagree, or none of them
// carry a decodable choice, there is no single side to sync to and every
// committed vote is relinquished instead.
func PlanSync(r ClassificationResult) (*Plan, error) {
	side := DeriveAggregateVoteSide(r.AlreadyVoted)
	c, ok := side.Choice()
	if !ok {
		if len(r.AlreadyVoted) == 0 {
			return nil, ErrNothingToDo
		}
		return &Plan{
			Action:     ActionSync,
			Relinquish: recordKeys(r.AlreadyVoted),
			Conflicted: side == AggregateVoteSideConflicted,
		}, nil
	}
	p := Plan{
		Action: ActionSync,
		Cast:   ballots(r.ReadyToVote, c),
	}
	if len(p.Cast) == 0 {
		return nil, ErrNothingToDo
	}
	return &p, nil
}

// PlanAction returns the plan for an action. The action must be part of the
// offered action set.
func PlanAction(r ClassificationResult, offered ActionSet, a Action) (*Plan, error) {
	if !a.Offered(offered) {
		return nil, errors.Wrapf(ErrActionNotOffered, "%v", a)
	}
	switch a {
	case ActionVoteYes:
		return PlanVote(r, VoteChoiceYes)
	case ActionVoteNo:
		return PlanVote(r, VoteChoiceNo)
	case ActionSync:
		return PlanSync(r)
	case ActionWithdraw:
		return PlanWithdraw(r)
	}
	return nil, errors.Errorf("invalid action %v", a)
}

func ballots(accounts []VoterAccount, c VoteChoice) []Ballot {
	if len(accounts) == 0 {
		return nil
	}
	b := make([]Ballot, 0, len(accounts))
	for _, a := range accounts {
		b = append(b, Ballot{
			TokenOwnerRecord: a.TokenOwnerRecord,
			Choice:           c,
			VotingPower:      a.VotingPower,
		})
	}
	return b
}

func recordKeys(accounts []VoterAccount) []string {
	if len(accounts) == 0 {
		return nil
	}
	keys := make([]string, 0, len(accounts))
	for _, a := range accounts {
		keys = append(keys, a.TokenOwnerRecord)
	}
	return keys
}
