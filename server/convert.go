// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package server

import (
	"fmt"

	v1 "github.com/decred/votepanel/api/v1"
	"github.com/decred/votepanel/panel"
	"github.com/decred/votepanel/store"
	"github.com/decred/votepanel/voter"
)

func convertAccountToV1(a voter.VoterAccount) v1.VoterAccount {
	return v1.VoterAccount{
		TokenOwnerRecord: a.TokenOwnerRecord,
		VotingPower:      a.VotingPower,
		Status:           a.Status.String(),
		Choice:           a.Choice.String(),
		Delegated:        a.Delegated,
	}
}

func convertAccountsToV1(accounts []voter.VoterAccount) []v1.VoterAccount {
	va := make([]v1.VoterAccount, 0, len(accounts))
	for _, a := range accounts {
		va = append(va, convertAccountToV1(a))
	}
	return va
}

func convertPanelReplyToV1(e panel.Evaluation) v1.PanelReply {
	var (
		c = e.Classification
		a = e.Actions
		t = e.Tally
	)
	return v1.PanelReply{
		Realm:      e.Realm,
		Proposal:   e.Proposal,
		Wallet:     e.Wallet,
		VotingOpen: e.VotingOpen,
		Classification: v1.Classification{
			ReadyToVote:        convertAccountsToV1(c.ReadyToVote),
			AlreadyVoted:       convertAccountsToV1(c.AlreadyVoted),
			WithoutVotingPower: convertAccountsToV1(c.WithoutVotingPower),
		},
		Actions: v1.Actions{
			ShowSync:     a.ShowSync,
			ShowWithdraw: a.ShowWithdraw,
			ShowVoteYes:  a.ShowVoteYes,
			ShowVoteNo:   a.ShowVoteNo,
		},
		State:         e.State.String(),
		AggregateSide: e.AggregateSide.String(),
		Tally: v1.Tally{
			Ready:        t.Ready,
			Committed:    t.Committed,
			YesCommitted: t.YesCommitted,
			NoCommitted:  t.NoCommitted,
		},
	}
}

func convertPlanReplyToV1(r panel.PlanResult) v1.PlanReply {
	cast := make([]v1.Ballot, 0, len(r.Plan.Cast))
	for _, b := range r.Plan.Cast {
		cast = append(cast, v1.Ballot{
			TokenOwnerRecord: b.TokenOwnerRecord,
			Choice:           b.Choice.String(),
			VotingPower:      b.VotingPower,
		})
	}
	relinquish := r.Plan.Relinquish
	if relinquish == nil {
		relinquish = []string{}
	}
	return v1.PlanReply{
		ID:         r.ID,
		Action:     string(r.Plan.Action),
		Cast:       cast,
		Relinquish: relinquish,
		Conflicted: r.Plan.Conflicted,
	}
}

// convertProposalState converts a human readable proposal state. The invalid
// state is returned for unknown states.
func convertProposalState(s string) store.ProposalState {
	for k, v := range store.ProposalStates {
		if v == s {
			return k
		}
	}
	return store.ProposalStateInvalid
}

// convertVoteChoice converts a human readable vote choice. The returned bool
// is false for unknown choices.
func convertVoteChoice(s string) (voter.VoteChoice, bool) {
	for k, v := range voter.VoteChoices {
		if v == s {
			return k, true
		}
	}
	return voter.VoteChoiceUnknown, false
}

func convertProposalsToStore(props []v1.Proposal) ([]store.Proposal, error) {
	sp := make([]store.Proposal, 0, len(props))
	for i, p := range props {
		state := convertProposalState(p.State)
		if state == store.ProposalStateInvalid {
			return nil, v1.UserError{
				ErrorCode:    v1.ErrCodeInvalidInput,
				ErrorContext: fmt.Sprintf("proposal %v: invalid state", i),
			}
		}
		sp = append(sp, store.Proposal{
			Key:          p.Key,
			Realm:        p.Realm,
			State:        state,
			VotingEndsAt: p.VotingEndsAt,
		})
	}
	return sp, nil
}

func convertRecordsToStore(records []v1.TokenOwnerRecord) []store.TokenOwnerRecord {
	sr := make([]store.TokenOwnerRecord, 0, len(records))
	for _, r := range records {
		sr = append(sr, store.TokenOwnerRecord{
			Key:         r.Key,
			Realm:       r.Realm,
			Owner:       r.Owner,
			Delegate:    r.Delegate,
			VotingPower: r.VotingPower,
		})
	}
	return sr
}

func convertVotesToStore(votes []v1.VoteRecord) ([]store.VoteRecord, error) {
	sv := make([]store.VoteRecord, 0, len(votes))
	for i, v := range votes {
		c, ok := convertVoteChoice(v.Choice)
		if !ok {
			return nil, v1.UserError{
				ErrorCode:    v1.ErrCodeInvalidVoteChoice,
				ErrorContext: fmt.Sprintf("vote %v: %v", i, v.Choice),
			}
		}
		sv = append(sv, store.VoteRecord{
			Proposal:         v.Proposal,
			TokenOwnerRecord: v.TokenOwnerRecord,
			Choice:           c,
			Relinquished:     v.Relinquished,
			Timestamp:        v.Timestamp,
		})
	}
	return sv, nil
}
