// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package voter

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func TestDerivePanelState(t *testing.T) {
	var (
		ready = []VoterAccount{notVoted("a", 1)}
		voted = []VoterAccount{committed("b", 1, VoteChoiceNo)}
	)
	var tests = []struct {
		name   string
		result ClassificationResult
		want   PanelState
	}{
		{"empty", ClassificationResult{}, PanelStateNoEligibleAccounts},
		{"ready", ClassificationResult{ReadyToVote: ready},
			PanelStateReadyOnly},
		{"voted", ClassificationResult{AlreadyVoted: voted},
			PanelStateCommittedOnly},
		{"mixed", ClassificationResult{ReadyToVote: ready,
			AlreadyVoted: voted}, PanelStateMixed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DerivePanelState(tc.result)
			if got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPanelActions(t *testing.T) {
	var (
		ready = []VoterAccount{notVoted("a", 1)}
		voted = []VoterAccount{committed("b", 1, VoteChoiceNo)}
	)
	var tests = []struct {
		name       string
		result     ClassificationResult
		votingOpen bool
		want       ActionSet
	}{
		{
			"open mixed",
			ClassificationResult{ReadyToVote: ready, AlreadyVoted: voted},
			true,
			ActionSet{ShowSync: true, ShowWithdraw: true},
		},
		{
			"closed mixed",
			ClassificationResult{ReadyToVote: ready, AlreadyVoted: voted},
			false,
			ActionSet{ShowWithdraw: true},
		},
		{
			"closed ready only",
			ClassificationResult{ReadyToVote: ready},
			false,
			ActionSet{},
		},
		{
			"closed committed only",
			ClassificationResult{AlreadyVoted: voted},
			false,
			ActionSet{ShowWithdraw: true},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := PanelActions(tc.result, tc.votingOpen)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("unexpected actions (-want +got):\n%v", diff)
			}
		})
	}
}

func TestTally(t *testing.T) {
	r := Classify([]VoterAccount{
		notVoted("a", 10),
		notVoted("b", 5),
		committed("c", 7, VoteChoiceYes),
		committed("d", 3, VoteChoiceNo),
		committed("e", 2, VoteChoiceUnknown),
		notVoted("f", 0),
	})
	want := PowerTally{
		Ready:        15,
		Committed:    12,
		YesCommitted: 7,
		NoCommitted:  3,
	}
	if diff := cmp.Diff(want, Tally(r)); diff != "" {
		t.Errorf("unexpected tally (-want +got):\n%v", diff)
	}

	// Sums saturate
	r = Classify([]VoterAccount{
		notVoted("a", math.MaxUint64),
		notVoted("b", 1),
	})
	if got := Tally(r).Ready; got != math.MaxUint64 {
		t.Errorf("got %v, want %v", got, uint64(math.MaxUint64))
	}
}

func TestPlanSync(t *testing.T) {
	var tests = []struct {
		name     string
		accounts []VoterAccount
		want     *Plan
		wantErr  error
	}{
		{
			"sync to yes",
			[]VoterAccount{
				committed("a", 50, VoteChoiceYes),
				notVoted("b", 30),
				notVoted("c", 20),
			},
			&Plan{
				Action: ActionSync,
				Cast: []Ballot{
					{TokenOwnerRecord: "b", Choice: VoteChoiceYes,
						VotingPower: 30},
					{TokenOwnerRecord: "c", Choice: VoteChoiceYes,
						VotingPower: 20},
				},
			},
			nil,
		},
		{
			"conflicted withdraws all",
			[]VoterAccount{
				committed("a", 50, VoteChoiceYes),
				committed("b", 30, VoteChoiceNo),
				notVoted("c", 20),
			},
			&Plan{
				Action:     ActionSync,
				Relinquish: []string{"a", "b"},
				Conflicted: true,
			},
			nil,
		},
		{
			"unknown side withdraws all",
			[]VoterAccount{
				committed("a", 50, VoteChoiceUnknown),
				notVoted("c", 20),
			},
			&Plan{
				Action:     ActionSync,
				Relinquish: []string{"a"},
			},
			nil,
		},
		{
			"nothing to sync",
			[]VoterAccount{committed("a", 50, VoteChoiceNo)},
			nil,
			ErrNothingToDo,
		},
		{
			"nothing at all",
			nil,
			nil,
			ErrNothingToDo,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := PlanSync(Classify(tc.accounts))
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got err %v, want %v", err, tc.wantErr)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("unexpected plan (-want +got):\n%v", diff)
			}
		})
	}
}

func TestPlanAction(t *testing.T) {
	r := Classify([]VoterAccount{
		notVoted("a", 10),
		notVoted("b", 0),
	})
	offered := DeriveActions(r)

	// Voting is offered
	p, err := PlanAction(r, offered, ActionVoteNo)
	if err != nil {
		t.Fatal(err)
	}
	want := &Plan{
		Action: ActionVoteNo,
		Cast: []Ballot{
			{TokenOwnerRecord: "a", Choice: VoteChoiceNo, VotingPower: 10},
		},
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("unexpected plan (-want +got):\n%v", diff)
	}

	// Withdrawing and syncing are not
	for _, a := range []Action{ActionWithdraw, ActionSync, Action("bogus")} {
		_, err = PlanAction(r, offered, a)
		if !errors.Is(err, ErrActionNotOffered) {
			t.Errorf("%v: got err %v, want %v", a, err, ErrActionNotOffered)
		}
	}

	// Withdraw after voting
	r = Classify([]VoterAccount{committed("a", 10, VoteChoiceYes)})
	p, err = PlanAction(r, DeriveActions(r), ActionWithdraw)
	if err != nil {
		t.Fatal(err)
	}
	want = &Plan{
		Action:     ActionWithdraw,
		Relinquish: []string{"a"},
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("unexpected plan (-want +got):\n%v", diff)
	}
}

func TestPlanVoteInvalidChoice(t *testing.T) {
	r := Classify([]VoterAccount{notVoted("a", 10)})
	_, err := PlanVote(r, VoteChoiceUnknown)
	if err == nil {
		t.Fatal("got nil err, want invalid vote choice")
	}
}
