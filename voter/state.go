// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package voter

import "math"

// PanelState describes the vote panel of a wallet on a proposal. It is
// derived from a classification on every evaluation and is never stored.
type PanelState uint32

const (
	// PanelStateNoEligibleAccounts indicates that the wallet has no
	// account that can vote or withdraw.
	PanelStateNoEligibleAccounts PanelState = 0

	// PanelStateReadyOnly indicates that the wallet has voting power that
	// has not been committed and nothing committed yet.
	PanelStateReadyOnly PanelState = 1

	// PanelStateCommittedOnly indicates that all of the wallet's voting
	// power has been committed.
	PanelStateCommittedOnly PanelState = 2

	// PanelStateMixed indicates that the wallet has both committed and
	// uncommitted voting power.
	PanelStateMixed PanelState = 3

	// PanelStateLast is used for testing. It must remain the last entry.
	PanelStateLast PanelState = 4
)

// PanelStates contains the human readable panel states.
var PanelStates = map[PanelState]string{
	PanelStateNoEligibleAccounts: "no eligible accounts",
	PanelStateReadyOnly:          "ready only",
	PanelStateCommittedOnly:      "committed only",
	PanelStateMixed:              "mixed",
}

// String returns the human readable panel state.
func (s PanelState) String() string {
	str, ok := PanelStates[s]
	if !ok {
		return "invalid"
	}
	return str
}

// DerivePanelState returns the panel state of a classification.
func DerivePanelState(r ClassificationResult) PanelState {
	var (
		ready = len(r.ReadyToVote) > 0
		voted = len(r.AlreadyVoted) > 0
	)
	switch {
	case ready && voted:
		return PanelStateMixed
	case ready && !voted:
		return PanelStateReadyOnly
	case !ready && voted:
		return PanelStateCommittedOnly
	default:
		return PanelStateNoEligibleAccounts
	}
}

// PanelActions returns the actions that the panel offers. While the proposal
// is being voted on these are the actions of DeriveActions. Once the voting
// window has closed the only action left is withdrawing the committed votes
// so that the voting power is released.
func PanelActions(r ClassificationResult, votingOpen bool) ActionSet {
	if votingOpen {
		return DeriveActions(r)
	}
	return ActionSet{
		ShowWithdraw: len(r.AlreadyVoted) > 0,
	}
}

// PowerTally contains the voting power of the accounts in a classification.
type PowerTally struct {
	Ready        uint64 `json:"ready"`
	Committed    uint64 `json:"committed"`
	YesCommitted uint64 `json:"yescommitted"`
	NoCommitted  uint64 `json:"nocommitted"`
}

// Tally sums the voting power of the ready and committed accounts. Sums
// saturate at the max uint64.
func Tally(r ClassificationResult) PowerTally {
	var t PowerTally
	for _, a := range r.ReadyToVote {
		t.Ready = addSaturating(t.Ready, a.VotingPower)
	}
	for _, a := range r.AlreadyVoted {
		t.Committed = addSaturating(t.Committed, a.VotingPower)
		switch a.Choice {
		case VoteChoiceYes:
			t.YesCommitted = addSaturating(t.YesCommitted, a.VotingPower)
		case VoteChoiceNo:
			t.NoCommitted = addSaturating(t.NoCommitted, a.VotingPower)
		}
	}
	return t
}

func addSaturating(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}
