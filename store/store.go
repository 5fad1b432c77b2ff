// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package store defines the database interface for the chain state that the
// vote panel is evaluated against: proposals, token-owner records, and vote
// records. The state is written by the chain indexer and read by the panel.
package store

import (
	"context"
	"time"

	"github.com/decred/votepanel/voter"
	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when a requested proposal or token-owner
	// record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrShutdown is returned when the database is used after it has been
	// closed.
	ErrShutdown = errors.New("database is shutdown")
)

// ProposalState is the state of a proposal.
type ProposalState uint32

const (
	ProposalStateInvalid   ProposalState = 0
	ProposalStateDraft     ProposalState = 1
	ProposalStateVoting    ProposalState = 2
	ProposalStateSucceeded ProposalState = 3
	ProposalStateDefeated  ProposalState = 4
	ProposalStateCancelled ProposalState = 5

	// ProposalStateLast is used for testing. It must remain the last entry.
	ProposalStateLast ProposalState = 6
)

// ProposalStates contains the human readable proposal states.
var ProposalStates = map[ProposalState]string{
	ProposalStateInvalid:   "invalid",
	ProposalStateDraft:     "draft",
	ProposalStateVoting:    "voting",
	ProposalStateSucceeded: "succeeded",
	ProposalStateDefeated:  "defeated",
	ProposalStateCancelled: "cancelled",
}

// Proposal is a governance proposal of a realm.
type Proposal struct {
	Key   string        `json:"key"`
	Realm string        `json:"realm"`
	State ProposalState `json:"state"`

	// VotingEndsAt is the unix time at which the voting window closes. A
	// zero value means that the proposal has no voting deadline.
	VotingEndsAt int64 `json:"votingendsat"`
}

// VotingOpen returns whether the proposal can be voted on at the provided
// time.
func (p Proposal) VotingOpen(now time.Time) bool {
	if p.State != ProposalStateVoting {
		return false
	}
	return p.VotingEndsAt == 0 || now.Unix() < p.VotingEndsAt
}

// TokenOwnerRecord is the deposited governance token balance of an owner in
// a realm. The owner may have delegated its governance rights to another
// wallet.
type TokenOwnerRecord struct {
	Key         string `json:"key"`
	Realm       string `json:"realm"`
	Owner       string `json:"owner"`
	Delegate    string `json:"delegate,omitempty"`
	VotingPower uint64 `json:"votingpower"`
}

// VoteRecord is a vote that was cast with a token-owner record on a
// proposal.
type VoteRecord struct {
	Proposal         string           `json:"proposal"`
	TokenOwnerRecord string           `json:"tokenownerrecord"`
	Choice           voter.VoteChoice `json:"choice"`
	Relinquished     bool             `json:"relinquished"`
	Timestamp        int64            `json:"timestamp"` // Unix time of the vote
}

// DB is the vote panel database. Implementations must be safe for
// concurrent use.
type DB interface {
	// ProposalSave inserts or updates a proposal.
	ProposalSave(context.Context, Proposal) error

	// ProposalGet returns a proposal. ErrNotFound is returned if the
	// proposal does not exist.
	ProposalGet(ctx context.Context, key string) (*Proposal, error)

	// RecordsSave inserts or updates token-owner records.
	RecordsSave(context.Context, []TokenOwnerRecord) error

	// RecordGetByOwner returns the token-owner record of the owner in
	// the realm. ErrNotFound is returned if the owner does not have a
	// record.
	RecordGetByOwner(ctx context.Context, realm, owner string) (*TokenOwnerRecord, error)

	// RecordsGetByDelegate returns the token-owner records in the realm
	// that have been delegated to the wallet, sorted by key.
	RecordsGetByDelegate(ctx context.Context, realm, delegate string) ([]TokenOwnerRecord, error)

	// VotesSave inserts or updates vote records.
	VotesSave(context.Context, []VoteRecord) error

	// VotesGet returns the vote records of the provided token-owner
	// records on a proposal. Records that have not voted are not
	// included in the returned map, which is keyed by token-owner
	// record key.
	VotesGet(ctx context.Context, proposal string, records []string) (map[string]VoteRecord, error)

	// VotesDelExpired deletes the vote records of every proposal whose
	// voting window closed at or before the provided unix time. It
	// returns the number of vote records that were deleted.
	VotesDelExpired(ctx context.Context, before int64) (int, error)

	// Close closes the database.
	Close() error
}
