// Copyright (c) 2022-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package v1 contains the HTTP API of the votepanel server.
package v1

const (
	// APIVersion is the version of the API that this package represents.
	APIVersion uint32 = 1

	// APIVersionPrefix is the route prefix for this version of the API.
	APIVersionPrefix = "/v1"

	// CSRFTokenHeader is the header that contains a CSRF header token.
	CSRFTokenHeader = "X-CSRF-Token"

	// Forward is the header that a reverse proxy uses to pass along the
	// client address.
	Forward = "X-Forwarded-For"

	// Routes
	RouteVersion   = "/version"
	RoutePolicy    = "/policy"
	RoutePanel     = "/panel"
	RoutePlan      = "/plan"
	RouteProposals = "/proposals"
	RouteRecords   = "/records"
	RouteVotes     = "/votes"

	// RouteMetrics is not versioned.
	RouteMetrics = "/metrics"
)

// ErrCode represents a user error code.
type ErrCode uint32

const (
	ErrCodeInvalid           ErrCode = 0
	ErrCodeInvalidInput      ErrCode = 1
	ErrCodeProposalNotFound  ErrCode = 2
	ErrCodeRealmMismatch     ErrCode = 3
	ErrCodeInvalidVoteChoice ErrCode = 4
	ErrCodeActionNotOffered  ErrCode = 5
	ErrCodeNothingToDo       ErrCode = 6
	ErrCodeBatchLimit        ErrCode = 7

	// ErrCodeLast is used for testing. It must remain the last entry.
	ErrCodeLast ErrCode = 8
)

// ErrCodes contains the human readable errors.
var ErrCodes = map[ErrCode]string{
	ErrCodeInvalid:           "invalid error",
	ErrCodeInvalidInput:      "invalid input",
	ErrCodeProposalNotFound:  "proposal not found",
	ErrCodeRealmMismatch:     "realm mismatch",
	ErrCodeInvalidVoteChoice: "invalid vote choice",
	ErrCodeActionNotOffered:  "action not offered",
	ErrCodeNothingToDo:       "nothing to do",
	ErrCodeBatchLimit:        "batch limit exceeded",
}

// UserError is the reply that the server returns when it encounters an
// error that is caused by something that the user did (malformed input, bad
// timing, etc). The HTTP status code will be 400 unless the error is a not
// found error, in which case it is 404.
type UserError struct {
	ErrorCode    ErrCode `json:"errorcode"`
	ErrorContext string  `json:"errorcontext,omitempty"`
}

// Error satisfies the error interface.
func (e UserError) Error() string {
	return ErrCodes[e.ErrorCode]
}

// InternalError is the reply that the server returns when it encounters an
// unrecoverable error while executing a command. The HTTP status code will be
// 500 and the ErrorCode field will contain a UNIX timestamp that the user can
// provide to the server operator to track down the error details in the
// logs.
type InternalError struct {
	ErrorCode int64 `json:"errorcode"`
}

// Error satisfies the error interface.
func (e InternalError) Error() string {
	return "internal server error"
}

// VersionReply is the reply for the RouteVersion. It sets the CSRF header
// token that clients must provide on the write routes.
type VersionReply struct {
	BuildVersion string `json:"buildversion"`
	APIVersion   uint32 `json:"apiversion"`
}

// PolicyReply is the reply for the RoutePolicy. It contains the API policy.
type PolicyReply struct {
	// PutBatchLimit is the maximum number of entries that a single put
	// request may contain.
	PutBatchLimit uint32 `json:"putbatchlimit"`
}

// Panel contains the query params of the RoutePanel.
type Panel struct {
	Realm    string `schema:"realm"`
	Proposal string `schema:"proposal"`
	Wallet   string `schema:"wallet"`
}

// VoterAccount is a token-owner record that the wallet can vote with.
//
// Status is one of "not voted", "committed", or "relinquished". Choice is one
// of "unknown", "yes", or "no".
type VoterAccount struct {
	TokenOwnerRecord string `json:"tokenownerrecord"`
	VotingPower      uint64 `json:"votingpower"`
	Status           string `json:"status"`
	Choice           string `json:"choice"`
	Delegated        bool   `json:"delegated"`
}

// Classification partitions the voter accounts of the wallet.
type Classification struct {
	ReadyToVote        []VoterAccount `json:"readytovote"`
	AlreadyVoted       []VoterAccount `json:"alreadyvoted"`
	WithoutVotingPower []VoterAccount `json:"withoutvotingpower"`
}

// Actions contains the vote actions that a client should offer.
type Actions struct {
	ShowSync     bool `json:"showsync"`
	ShowWithdraw bool `json:"showwithdraw"`
	ShowVoteYes  bool `json:"showvoteyes"`
	ShowVoteNo   bool `json:"showvoteno"`
}

// Tally contains the voting power of the wallet's accounts.
type Tally struct {
	Ready        uint64 `json:"ready"`
	Committed    uint64 `json:"committed"`
	YesCommitted uint64 `json:"yescommitted"`
	NoCommitted  uint64 `json:"nocommitted"`
}

// PanelReply is the reply to the RoutePanel.
//
// State is one of "no eligible accounts", "ready only", "committed only", or
// "mixed". AggregateSide is one of "unknown", "yes", "no", or "conflicted".
// When VotingOpen is false the only action offered is withdraw.
type PanelReply struct {
	Realm          string         `json:"realm"`
	Proposal       string         `json:"proposal"`
	Wallet         string         `json:"wallet"`
	VotingOpen     bool           `json:"votingopen"`
	Classification Classification `json:"classification"`
	Actions        Actions        `json:"actions"`
	State          string         `json:"state"`
	AggregateSide  string         `json:"aggregateside"`
	Tally          Tally          `json:"tally"`
}

// Plan requests the votes that must be cast and relinquished to carry out
// a vote action. Action is one of "vote-yes", "vote-no", "sync", or
// "withdraw".
type Plan struct {
	Realm    string `json:"realm"`
	Proposal string `json:"proposal"`
	Wallet   string `json:"wallet"`
	Action   string `json:"action"`
}

// Ballot is a vote that must be cast with a token-owner record.
type Ballot struct {
	TokenOwnerRecord string `json:"tokenownerrecord"`
	Choice           string `json:"choice"`
	VotingPower      uint64 `json:"votingpower"`
}

// PlanReply is the reply to the RoutePlan. Relinquish contains the
// token-owner records whose votes must be relinquished. Conflicted is set
// when a sync fell back to relinquishing every committed vote.
type PlanReply struct {
	ID         string   `json:"id"`
	Action     string   `json:"action"`
	Cast       []Ballot `json:"cast"`
	Relinquish []string `json:"relinquish"`
	Conflicted bool     `json:"conflicted"`
}

// Proposal is a governance proposal. State is one of "draft", "voting",
// "succeeded", "defeated", or "cancelled".
type Proposal struct {
	Key          string `json:"key"`
	Realm        string `json:"realm"`
	State        string `json:"state"`
	VotingEndsAt int64  `json:"votingendsat"` // Unix time, 0 if none
}

// TokenOwnerRecord is a deposited governance token balance.
type TokenOwnerRecord struct {
	Key         string `json:"key"`
	Realm       string `json:"realm"`
	Owner       string `json:"owner"`
	Delegate    string `json:"delegate,omitempty"`
	VotingPower uint64 `json:"votingpower"`
}

// VoteRecord is a vote cast with a token-owner record. Choice is one of
// "yes" or "no".
type VoteRecord struct {
	Proposal         string `json:"proposal"`
	TokenOwnerRecord string `json:"tokenownerrecord"`
	Choice           string `json:"choice"`
	Relinquished     bool   `json:"relinquished"`
	Timestamp        int64  `json:"timestamp"`
}

// PutProposals inserts or updates proposals.
type PutProposals struct {
	Proposals []Proposal `json:"proposals"`
}

// PutRecords inserts or updates token-owner records.
type PutRecords struct {
	Records []TokenOwnerRecord `json:"records"`
}

// PutVotes inserts or updates vote records. Relinquishing a vote is done by
// putting the vote record with Relinquished set.
type PutVotes struct {
	Votes []VoteRecord `json:"votes"`
}

// PutReply is the reply to the put routes.
type PutReply struct {
	Count int `json:"count"`
}
