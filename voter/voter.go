// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package voter classifies the token-owner records that a wallet can vote
// with on a single proposal and derives the vote actions that should be
// offered to the wallet.
//
// Everything in this package is a pure function of its input. Callers resolve
// the wallet's own record and any delegated records before classifying them.
package voter

// VoteChoice is the choice that a vote record was cast with.
type VoteChoice uint32

const (
	// VoteChoiceUnknown is used when a vote record does not carry a
	// decodable choice.
	VoteChoiceUnknown VoteChoice = 0

	// VoteChoiceYes is a vote in favor of the proposal.
	VoteChoiceYes VoteChoice = 1

	// VoteChoiceNo is a vote against the proposal.
	VoteChoiceNo VoteChoice = 2

	// VoteChoiceLast is used for testing. It must remain the last entry.
	VoteChoiceLast VoteChoice = 3
)

// VoteChoices contains the human readable vote choices.
var VoteChoices = map[VoteChoice]string{
	VoteChoiceUnknown: "unknown",
	VoteChoiceYes:     "yes",
	VoteChoiceNo:      "no",
}

// String returns the human readable vote choice.
func (c VoteChoice) String() string {
	s, ok := VoteChoices[c]
	if !ok {
		return VoteChoices[VoteChoiceUnknown]
	}
	return s
}

// VoteStatus describes the vote record of a token-owner record on a
// proposal.
type VoteStatus uint32

const (
	// VoteStatusNotVoted indicates that the record has no vote record for
	// the proposal.
	VoteStatusNotVoted VoteStatus = 0

	// VoteStatusCommitted indicates that the record has cast a vote that
	// still counts.
	VoteStatusCommitted VoteStatus = 1

	// VoteStatusRelinquished indicates that a vote record exists but the
	// vote has been withdrawn.
	VoteStatusRelinquished VoteStatus = 2

	// VoteStatusLast is used for testing. It must remain the last entry.
	VoteStatusLast VoteStatus = 3
)

// VoteStatuses contains the human readable vote statuses.
var VoteStatuses = map[VoteStatus]string{
	VoteStatusNotVoted:     "not voted",
	VoteStatusCommitted:    "committed",
	VoteStatusRelinquished: "relinquished",
}

// String returns the human readable vote status.
func (s VoteStatus) String() string {
	str, ok := VoteStatuses[s]
	if !ok {
		return "invalid"
	}
	return str
}

// VoterAccount is a token-owner record that may be able to vote on a
// proposal, either the wallet's own record or one delegated to the wallet.
type VoterAccount struct {
	TokenOwnerRecord string     `json:"tokenownerrecord"`
	VotingPower      uint64     `json:"votingpower"` // Deposited, native units
	Status           VoteStatus `json:"status"`
	Choice           VoteChoice `json:"choice"` // Only set when committed
	Delegated        bool       `json:"delegated"`
}

// HasVoteRecord returns whether a vote record exists for the account,
// relinquished or not.
func (a VoterAccount) HasVoteRecord() bool {
	return a.Status == VoteStatusCommitted ||
		a.Status == VoteStatusRelinquished
}

// Relinquished returns whether the account's vote record has been
// relinquished.
func (a VoterAccount) Relinquished() bool {
	return a.Status == VoteStatusRelinquished
}

// ClassificationResult partitions a list of voter accounts. The order of
// the accounts in each list matches their order in the classified input.
type ClassificationResult struct {
	ReadyToVote        []VoterAccount `json:"readytovote"`
	AlreadyVoted       []VoterAccount `json:"alreadyvoted"`
	WithoutVotingPower []VoterAccount `json:"withoutvotingpower"`
}

// Classify partitions the accounts into the accounts that are ready to vote,
// the accounts that have already voted, and the accounts that do not have
// any voting power.
//
// An account with zero voting power is always without voting power. An
// account with a relinquished vote record is not placed in any of the lists.
func Classify(accounts []VoterAccount) ClassificationResult {
	var r ClassificationResult
	for _, a := range accounts {
		if a.VotingPower == 0 {
			r.WithoutVotingPower = append(r.WithoutVotingPower, a)
			continue
		}
		switch {
		case a.Relinquished():
			// A vote record that was relinquished without being
			// closed out is not expected. Skip it.
			log.Debugf("Skipping relinquished vote record %v",
				a.TokenOwnerRecord)
		case a.HasVoteRecord():
			r.AlreadyVoted = append(r.AlreadyVoted, a)
		case a.Status == VoteStatusNotVoted:
			r.ReadyToVote = append(r.ReadyToVote, a)
		default:
			log.Debugf("Skipping record %v with invalid vote status %v",
				a.TokenOwnerRecord, uint32(a.Status))
		}
	}
	return r
}

// ActionSet contains the vote actions that can be offered for a
// classification.
type ActionSet struct {
	ShowSync     bool `json:"showsync"`
	ShowWithdraw bool `json:"showwithdraw"`
	ShowVoteYes  bool `json:"showvoteyes"`
	ShowVoteNo   bool `json:"showvoteno"`
}

// None returns whether no action is offered.
func (s ActionSet) None() bool {
	return s == ActionSet{}
}

// DeriveActions returns the vote actions for a classification.
//
// Sync is only offered when some voting power has been committed and more
// voting power has become available since, in which case the wallet may also
// withdraw. A first time voter may vote yes or no. A wallet that has
// committed all of its voting power may only withdraw.
func DeriveActions(r ClassificationResult) ActionSet {
	var (
		ready = len(r.ReadyToVote) > 0
		voted = len(r.AlreadyVoted) > 0
	)
	switch {
	case ready && voted:
		return ActionSet{ShowSync: true, ShowWithdraw: true}
	case ready && !voted:
		return ActionSet{ShowVoteYes: true, ShowVoteNo: true}
	case !ready && voted:
		return ActionSet{ShowWithdraw: true}
	default:
		return ActionSet{}
	}
}

// AggregateVoteSide is the side that a set of committed votes are on.
type AggregateVoteSide uint32

const (
	// AggregateVoteSideUnknown indicates that there were no committed
	// votes with a decodable choice.
	AggregateVoteSideUnknown AggregateVoteSide = 0

	// AggregateVoteSideYes indicates that all votes are yes votes.
	AggregateVoteSideYes AggregateVoteSide = 1

	// AggregateVoteSideNo indicates that all votes are no votes.
	AggregateVoteSideNo AggregateVoteSide = 2

	// AggregateVoteSideConflicted indicates that the votes disagree.
	AggregateVoteSideConflicted AggregateVoteSide = 3

	// AggregateVoteSideLast is used for testing. It must remain the last
	// entry.
	AggregateVoteSideLast AggregateVoteSide = 4
)

// AggregateVoteSides contains the human readable aggregate vote sides.
var AggregateVoteSides = map[AggregateVoteSide]string{
	AggregateVoteSideUnknown:    "unknown",
	AggregateVoteSideYes:        "yes",
	AggregateVoteSideNo:         "no",
	AggregateVoteSideConflicted: "conflicted",
}

// String returns the human readable aggregate vote side.
func (s AggregateVoteSide) String() string {
	str, ok := AggregateVoteSides[s]
	if !ok {
		return AggregateVoteSides[AggregateVoteSideUnknown]
	}
	return str
}

// Choice returns the vote choice of a single sided aggregate. The returned
// bool is false when the side is unknown or conflicted.
func (s AggregateVoteSide) Choice() (VoteChoice, bool) {
	switch s {
	case AggregateVoteSideYes:
		return VoteChoiceYes, true
	case AggregateVoteSideNo:
		return VoteChoiceNo, true
	}
	return VoteChoiceUnknown, false
}

// sideForChoice returns the aggregate side of a single vote choice.
func sideForChoice(c VoteChoice) AggregateVoteSide {
	switch c {
	case VoteChoiceYes:
		return AggregateVoteSideYes
	case VoteChoiceNo:
		return AggregateVoteSideNo
	}
	return AggregateVoteSideUnknown
}

// DeriveAggregateVoteSide returns the side that the provided committed votes
// are on. Votes without a decodable choice are ignored. Once the votes are
// found to be conflicted the result stays conflicted.
func DeriveAggregateVoteSide(alreadyVoted []VoterAccount) AggregateVoteSide {
	side := AggregateVoteSideUnknown
	for _, a := range alreadyVoted {
		s := sideForChoice(a.Choice)
		if s == AggregateVoteSideUnknown {
			continue
		}
		switch side {
		case AggregateVoteSideConflicted:
			return side
		case AggregateVoteSideUnknown:
			side = s
		case s:
			// Same side; nothing to do
		default:
			side = AggregateVoteSideConflicted
		}
	}
	return side
}
