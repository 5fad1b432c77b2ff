// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package panel

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	v1 "github.com/decred/votepanel/api/v1"
	"github.com/decred/votepanel/store"
	"github.com/decred/votepanel/voter"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"
)

// testDB is an in memory store.DB that is used for testing.
type testDB struct {
	sync.Mutex
	proposals map[string]store.Proposal
	records   map[string]store.TokenOwnerRecord
	votes     map[string]map[string]store.VoteRecord // [proposal][record]

	// err is returned by every read when set.
	err error

	// sweptBefore is the argument of the last VotesDelExpired call.
	sweptBefore int64
}

var _ store.DB = (*testDB)(nil)

func newTestDB() *testDB {
	return &testDB{
		proposals: make(map[string]store.Proposal),
		records:   make(map[string]store.TokenOwnerRecord),
		votes:     make(map[string]map[string]store.VoteRecord),
	}
}

func (d *testDB) ProposalSave(_ context.Context, p store.Proposal) error {
	d.Lock()
	defer d.Unlock()
	d.proposals[p.Key] = p
	return nil
}

func (d *testDB) ProposalGet(_ context.Context, key string) (*store.Proposal, error) {
	d.Lock()
	defer d.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	p, ok := d.proposals[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (d *testDB) RecordsSave(_ context.Context, records []store.TokenOwnerRecord) error {
	d.Lock()
	defer d.Unlock()
	for _, r := range records {
		d.records[r.Key] = r
	}
	return nil
}

func (d *testDB) RecordGetByOwner(_ context.Context, realm, owner string) (*store.TokenOwnerRecord, error) {
	d.Lock()
	defer d.Unlock()
	for _, r := range d.records {
		if r.Realm == realm && r.Owner == owner {
			return &r, nil
		}
	}
	return nil, store.ErrNotFound
}

func (d *testDB) RecordsGetByDelegate(_ context.Context, realm, delegate string) ([]store.TokenOwnerRecord, error) {
	d.Lock()
	defer d.Unlock()
	records := make([]store.TokenOwnerRecord, 0)
	for _, r := range d.records {
		if r.Realm == realm && r.Delegate == delegate {
			records = append(records, r)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Key < records[j].Key
	})
	return records, nil
}

func (d *testDB) VotesSave(_ context.Context, votes []store.VoteRecord) error {
	d.Lock()
	defer d.Unlock()
	for _, v := range votes {
		if _, ok := d.votes[v.Proposal]; !ok {
			d.votes[v.Proposal] = make(map[string]store.VoteRecord)
		}
		d.votes[v.Proposal][v.TokenOwnerRecord] = v
	}
	return nil
}

func (d *testDB) VotesGet(_ context.Context, proposal string, records []string) (map[string]store.VoteRecord, error) {
	d.Lock()
	defer d.Unlock()
	votes := make(map[string]store.VoteRecord, len(records))
	for _, r := range records {
		v, ok := d.votes[proposal][r]
		if ok {
			votes[r] = v
		}
	}
	return votes, nil
}

func (d *testDB) VotesDelExpired(_ context.Context, before int64) (int, error) {
	d.Lock()
	defer d.Unlock()
	d.sweptBefore = before
	var n int
	for k, p := range d.proposals {
		if p.VotingEndsAt != 0 && p.VotingEndsAt <= before {
			n += len(d.votes[k])
			delete(d.votes, k)
		}
	}
	return n, nil
}

func (d *testDB) Close() error {
	return nil
}

const (
	testRealm    = "realm"
	testProposal = "prop"
	testWallet   = "alice"
)

var testNow = time.Unix(1700000000, 0)

// newTestPanel returns a panel that has been setup for testing. The
// proposal accepts votes until an hour after the test time.
func newTestPanel(t *testing.T, db *testDB) *Panel {
	t.Helper()

	p, err := New(Config{Registerer: prometheus.NewRegistry()}, db)
	if err != nil {
		t.Fatal(err)
	}
	p.now = func() time.Time { return testNow }

	err = p.PutProposals(context.Background(), []store.Proposal{{
		Key:          testProposal,
		Realm:        testRealm,
		State:        store.ProposalStateVoting,
		VotingEndsAt: testNow.Add(time.Hour).Unix(),
	}})
	if err != nil {
		t.Fatal(err)
	}

	return p
}

// putState adds the provided records and votes to the test panel.
func putState(t *testing.T, p *Panel, records []store.TokenOwnerRecord, votes []store.VoteRecord) {
	t.Helper()

	ctx := context.Background()
	if err := p.PutRecords(ctx, records); err != nil {
		t.Fatal(err)
	}
	if err := p.PutVotes(ctx, votes); err != nil {
		t.Fatal(err)
	}
}

func vote(record string, c voter.VoteChoice, relinquished bool) store.VoteRecord {
	return store.VoteRecord{
		Proposal:         testProposal,
		TokenOwnerRecord: record,
		Choice:           c,
		Relinquished:     relinquished,
	}
}

func TestEvaluate(t *testing.T) {
	var (
		own = store.TokenOwnerRecord{
			Key: "r1", Realm: testRealm, Owner: testWallet, VotingPower: 10,
		}
		delegatedA = store.TokenOwnerRecord{
			Key: "r3", Realm: testRealm, Owner: "bob", Delegate: testWallet,
			VotingPower: 20,
		}
		delegatedB = store.TokenOwnerRecord{
			Key: "r2", Realm: testRealm, Owner: "carol", Delegate: testWallet,
			VotingPower: 5,
		}
		empty = store.TokenOwnerRecord{
			Key: "r4", Realm: testRealm, Owner: "dave", Delegate: testWallet,
		}
		otherRealm = store.TokenOwnerRecord{
			Key: "r5", Realm: "other", Owner: "erin", Delegate: testWallet,
			VotingPower: 99,
		}
	)

	var tests = []struct {
		name    string
		records []store.TokenOwnerRecord
		votes   []store.VoteRecord
		want    Evaluation
	}{
		{
			name: "no records",
			want: Evaluation{
				State:         voter.PanelStateNoEligibleAccounts,
				AggregateSide: voter.AggregateVoteSideUnknown,
			},
		},
		{
			name:    "own record ready",
			records: []store.TokenOwnerRecord{own},
			want: Evaluation{
				Accounts: []voter.VoterAccount{
					{TokenOwnerRecord: "r1", VotingPower: 10},
				},
				Classification: voter.ClassificationResult{
					ReadyToVote: []voter.VoterAccount{
						{TokenOwnerRecord: "r1", VotingPower: 10},
					},
				},
				Actions: voter.ActionSet{
					ShowVoteYes: true,
					ShowVoteNo:  true,
				},
				State:         voter.PanelStateReadyOnly,
				AggregateSide: voter.AggregateVoteSideUnknown,
				Tally:         voter.PowerTally{Ready: 10},
			},
		},
		{
			name: "own first then delegated sorted by key",
			records: []store.TokenOwnerRecord{delegatedA, own, empty,
				delegatedB, otherRealm},
			votes: []store.VoteRecord{
				vote("r3", voter.VoteChoiceYes, false),
			},
			want: Evaluation{
				Accounts: []voter.VoterAccount{
					{TokenOwnerRecord: "r1", VotingPower: 10},
					{TokenOwnerRecord: "r2", VotingPower: 5, Delegated: true},
					{
						TokenOwnerRecord: "r3",
						VotingPower:      20,
						Status:           voter.VoteStatusCommitted,
						Choice:           voter.VoteChoiceYes,
						Delegated:        true,
					},
					{TokenOwnerRecord: "r4", Delegated: true},
				},
				Classification: voter.ClassificationResult{
					ReadyToVote: []voter.VoterAccount{
						{TokenOwnerRecord: "r1", VotingPower: 10},
						{TokenOwnerRecord: "r2", VotingPower: 5,
							Delegated: true},
					},
					AlreadyVoted: []voter.VoterAccount{
						{
							TokenOwnerRecord: "r3",
							VotingPower:      20,
							Status:           voter.VoteStatusCommitted,
							Choice:           voter.VoteChoiceYes,
							Delegated:        true,
						},
					},
					WithoutVotingPower: []voter.VoterAccount{
						{TokenOwnerRecord: "r4", Delegated: true},
					},
				},
				Actions: voter.ActionSet{
					ShowSync:     true,
					ShowWithdraw: true,
				},
				State:         voter.PanelStateMixed,
				AggregateSide: voter.AggregateVoteSideYes,
				Tally: voter.PowerTally{
					Ready:        15,
					Committed:    20,
					YesCommitted: 20,
				},
			},
		},
		{
			name:    "relinquished record is skipped",
			records: []store.TokenOwnerRecord{own},
			votes: []store.VoteRecord{
				vote("r1", voter.VoteChoiceNo, true),
			},
			want: Evaluation{
				Accounts: []voter.VoterAccount{
					{
						TokenOwnerRecord: "r1",
						VotingPower:      10,
						Status:           voter.VoteStatusRelinquished,
					},
				},
				State:         voter.PanelStateNoEligibleAccounts,
				AggregateSide: voter.AggregateVoteSideUnknown,
			},
		},
		{
			name: "self delegated record is included once",
			records: []store.TokenOwnerRecord{{
				Key: "r1", Realm: testRealm, Owner: testWallet,
				Delegate: testWallet, VotingPower: 10,
			}},
			want: Evaluation{
				Accounts: []voter.VoterAccount{
					{TokenOwnerRecord: "r1", VotingPower: 10},
				},
				Classification: voter.ClassificationResult{
					ReadyToVote: []voter.VoterAccount{
						{TokenOwnerRecord: "r1", VotingPower: 10},
					},
				},
				Actions: voter.ActionSet{
					ShowVoteYes: true,
					ShowVoteNo:  true,
				},
				State:         voter.PanelStateReadyOnly,
				AggregateSide: voter.AggregateVoteSideUnknown,
				Tally:         voter.PowerTally{Ready: 10},
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestPanel(t, newTestDB())
			putState(t, p, tc.records, tc.votes)

			got, err := p.Evaluate(context.Background(), EvaluateArgs{
				Realm:    testRealm,
				Proposal: testProposal,
				Wallet:   testWallet,
			})
			if err != nil {
				t.Fatal(err)
			}

			want := tc.want
			want.Realm = testRealm
			want.Proposal = testProposal
			want.Wallet = testWallet
			want.VotingOpen = true
			if diff := cmp.Diff(want, *got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("unexpected evaluation (-want +got):\n%v", diff)
			}
		})
	}
}

func TestEvaluateVotingClosed(t *testing.T) {
	db := newTestDB()
	p := newTestPanel(t, db)
	putState(t, p,
		[]store.TokenOwnerRecord{
			{Key: "r1", Realm: testRealm, Owner: testWallet, VotingPower: 1},
			{Key: "r2", Realm: testRealm, Owner: "bob", Delegate: testWallet,
				VotingPower: 1},
		},
		[]store.VoteRecord{vote("r2", voter.VoteChoiceNo, false)})

	// Move past the end of the voting window
	p.now = func() time.Time { return testNow.Add(2 * time.Hour) }

	got, err := p.Evaluate(context.Background(), EvaluateArgs{
		Realm:    testRealm,
		Proposal: testProposal,
		Wallet:   testWallet,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.VotingOpen {
		t.Errorf("got voting open, want closed")
	}
	want := voter.ActionSet{ShowWithdraw: true}
	if diff := cmp.Diff(want, got.Actions); diff != "" {
		t.Errorf("unexpected actions (-want +got):\n%v", diff)
	}
	if got.State != voter.PanelStateMixed {
		t.Errorf("got state %v, want %v", got.State, voter.PanelStateMixed)
	}
}

func TestEvaluateErrors(t *testing.T) {
	dbErr := errors.New("db error")

	var tests = []struct {
		name     string
		args     EvaluateArgs
		dbErr    error
		wantCode v1.ErrCode // Zero if an internal error is expected
	}{
		{"realm missing",
			EvaluateArgs{Proposal: testProposal, Wallet: testWallet}, nil,
			v1.ErrCodeInvalidInput},
		{"proposal missing",
			EvaluateArgs{Realm: testRealm, Wallet: testWallet}, nil,
			v1.ErrCodeInvalidInput},
		{"wallet missing",
			EvaluateArgs{Realm: testRealm, Proposal: testProposal}, nil,
			v1.ErrCodeInvalidInput},
		{"proposal not found",
			EvaluateArgs{Realm: testRealm, Proposal: "nope",
				Wallet: testWallet}, nil,
			v1.ErrCodeProposalNotFound},
		{"realm mismatch",
			EvaluateArgs{Realm: "other", Proposal: testProposal,
				Wallet: testWallet}, nil,
			v1.ErrCodeRealmMismatch},
		{"database error",
			EvaluateArgs{Realm: testRealm, Proposal: testProposal,
				Wallet: testWallet}, dbErr,
			0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db := newTestDB()
			p := newTestPanel(t, db)
			db.err = tc.dbErr

			_, err := p.Evaluate(context.Background(), tc.args)
			if tc.wantCode == 0 {
				if !errors.Is(err, tc.dbErr) {
					t.Fatalf("got err %v, want %v", err, tc.dbErr)
				}
				return
			}
			var ue v1.UserError
			if !errors.As(err, &ue) {
				t.Fatalf("got err %v, want user error", err)
			}
			if ue.ErrorCode != tc.wantCode {
				t.Errorf("got code %v, want %v", v1.ErrCodes[ue.ErrorCode],
					v1.ErrCodes[tc.wantCode])
			}
		})
	}
}

func TestPlan(t *testing.T) {
	records := []store.TokenOwnerRecord{
		{Key: "r1", Realm: testRealm, Owner: testWallet, VotingPower: 10},
		{Key: "r2", Realm: testRealm, Owner: "bob", Delegate: testWallet,
			VotingPower: 20},
		{Key: "r3", Realm: testRealm, Owner: "carol", Delegate: testWallet,
			VotingPower: 30},
	}

	var tests = []struct {
		name     string
		votes    []store.VoteRecord
		action   voter.Action
		want     voter.Plan
		wantCode v1.ErrCode
	}{
		{
			name:   "vote yes",
			action: voter.ActionVoteYes,
			want: voter.Plan{
				Action: voter.ActionVoteYes,
				Cast: []voter.Ballot{
					{TokenOwnerRecord: "r1", Choice: voter.VoteChoiceYes,
						VotingPower: 10},
					{TokenOwnerRecord: "r2", Choice: voter.VoteChoiceYes,
						VotingPower: 20},
					{TokenOwnerRecord: "r3", Choice: voter.VoteChoiceYes,
						VotingPower: 30},
				},
			},
		},
		{
			name: "sync to committed side",
			votes: []store.VoteRecord{
				vote("r2", voter.VoteChoiceNo, false),
			},
			action: voter.ActionSync,
			want: voter.Plan{
				Action: voter.ActionSync,
				Cast: []voter.Ballot{
					{TokenOwnerRecord: "r1", Choice: voter.VoteChoiceNo,
						VotingPower: 10},
					{TokenOwnerRecord: "r3", Choice: voter.VoteChoiceNo,
						VotingPower: 30},
				},
			},
		},
		{
			name: "sync conflicted relinquishes",
			votes: []store.VoteRecord{
				vote("r2", voter.VoteChoiceNo, false),
				vote("r3", voter.VoteChoiceYes, false),
			},
			action: voter.ActionSync,
			want: voter.Plan{
				Action:     voter.ActionSync,
				Relinquish: []string{"r2", "r3"},
				Conflicted: true,
			},
		},
		{
			name: "withdraw",
			votes: []store.VoteRecord{
				vote("r1", voter.VoteChoiceYes, false),
				vote("r2", voter.VoteChoiceYes, false),
				vote("r3", voter.VoteChoiceYes, false),
			},
			action: voter.ActionWithdraw,
			want: voter.Plan{
				Action:     voter.ActionWithdraw,
				Relinquish: []string{"r1", "r2", "r3"},
			},
		},
		{
			name:     "withdraw not offered",
			action:   voter.ActionWithdraw,
			wantCode: v1.ErrCodeActionNotOffered,
		},
		{
			name: "vote not offered when mixed",
			votes: []store.VoteRecord{
				vote("r1", voter.VoteChoiceYes, false),
			},
			action:   voter.ActionVoteNo,
			wantCode: v1.ErrCodeActionNotOffered,
		},
		{
			name:     "invalid action",
			action:   voter.Action("abstain"),
			wantCode: v1.ErrCodeInvalidInput,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestPanel(t, newTestDB())
			putState(t, p, records, tc.votes)

			got, err := p.Plan(context.Background(), PlanArgs{
				EvaluateArgs: EvaluateArgs{
					Realm:    testRealm,
					Proposal: testProposal,
					Wallet:   testWallet,
				},
				Action: tc.action,
			})
			if tc.wantCode != 0 {
				var ue v1.UserError
				if !errors.As(err, &ue) {
					t.Fatalf("got err %v, want user error", err)
				}
				if ue.ErrorCode != tc.wantCode {
					t.Errorf("got code %v, want %v",
						v1.ErrCodes[ue.ErrorCode], v1.ErrCodes[tc.wantCode])
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got.ID == "" {
				t.Errorf("plan id missing")
			}
			diff := cmp.Diff(tc.want, got.Plan, cmpopts.EquateEmpty())
			if diff != "" {
				t.Errorf("unexpected plan (-want +got):\n%v", diff)
			}
		})
	}
}

func TestPlanNoActions(t *testing.T) {
	p := newTestPanel(t, newTestDB())

	// The wallet has no token-owner records in the realm
	_, err := p.Plan(context.Background(), PlanArgs{
		EvaluateArgs: EvaluateArgs{
			Realm:    testRealm,
			Proposal: testProposal,
			Wallet:   "nobody",
		},
		Action: voter.ActionVoteYes,
	})
	var ue v1.UserError
	if !errors.As(err, &ue) {
		t.Fatalf("got err %v, want user error", err)
	}
	want := v1.UserError{
		ErrorCode:    v1.ErrCodeActionNotOffered,
		ErrorContext: "the panel offers no vote actions",
	}
	if diff := cmp.Diff(want, ue); diff != "" {
		t.Errorf("unexpected error (-want +got):\n%v", diff)
	}
}

func TestPutValidation(t *testing.T) {
	var (
		ctx = context.Background()
		p   = newTestPanel(t, newTestDB())
	)

	var tests = []struct {
		name     string
		put      func() error
		wantCode v1.ErrCode
	}{
		{"proposal key missing", func() error {
			return p.PutProposals(ctx, []store.Proposal{
				{Realm: testRealm, State: store.ProposalStateDraft},
			})
		}, v1.ErrCodeInvalidInput},
		{"proposal state invalid", func() error {
			return p.PutProposals(ctx, []store.Proposal{
				{Key: "p", Realm: testRealm, State: store.ProposalStateLast},
			})
		}, v1.ErrCodeInvalidInput},
		{"record owner missing", func() error {
			return p.PutRecords(ctx, []store.TokenOwnerRecord{
				{Key: "r", Realm: testRealm},
			})
		}, v1.ErrCodeInvalidInput},
		{"vote record missing", func() error {
			return p.PutVotes(ctx, []store.VoteRecord{
				{Proposal: testProposal, Choice: voter.VoteChoiceYes},
			})
		}, v1.ErrCodeInvalidInput},
		{"proposal key with NUL", func() error {
			return p.PutProposals(ctx, []store.Proposal{
				{Key: "p\x00x", Realm: testRealm,
					State: store.ProposalStateDraft},
			})
		}, v1.ErrCodeInvalidInput},
		{"record delegate with NUL", func() error {
			return p.PutRecords(ctx, []store.TokenOwnerRecord{
				{Key: "r", Realm: testRealm, Owner: "bob",
					Delegate: testWallet + "\x00evil"},
			})
		}, v1.ErrCodeInvalidInput},
		{"vote proposal with NUL", func() error {
			return p.PutVotes(ctx, []store.VoteRecord{
				{Proposal: testProposal + "\x00", TokenOwnerRecord: "r",
					Choice: voter.VoteChoiceYes},
			})
		}, v1.ErrCodeInvalidInput},
		{"vote choice invalid", func() error {
			return p.PutVotes(ctx, []store.VoteRecord{
				{Proposal: testProposal, TokenOwnerRecord: "r",
					Choice: voter.VoteChoiceLast},
			})
		}, v1.ErrCodeInvalidVoteChoice},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var ue v1.UserError
			err := tc.put()
			if !errors.As(err, &ue) {
				t.Fatalf("got err %v, want user error", err)
			}
			if ue.ErrorCode != tc.wantCode {
				t.Errorf("got code %v, want %v", v1.ErrCodes[ue.ErrorCode],
					v1.ErrCodes[tc.wantCode])
			}
		})
	}
}

func TestSweep(t *testing.T) {
	db := newTestDB()
	p := newTestPanel(t, db)
	putState(t, p,
		[]store.TokenOwnerRecord{
			{Key: "r1", Realm: testRealm, Owner: testWallet, VotingPower: 1},
		},
		[]store.VoteRecord{vote("r1", voter.VoteChoiceYes, false)})

	// Sweeping is disabled without a retention
	n, err := p.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("got %v swept, want 0", n)
	}

	// The voting window closed an hour after the test time
	p.cfg.VoteRecordRetention = 24 * time.Hour
	p.now = func() time.Time { return testNow.Add(26 * time.Hour) }
	n, err = p.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("got %v swept, want 1", n)
	}
	wantBefore := testNow.Add(2 * time.Hour).Unix()
	if db.sweptBefore != wantBefore {
		t.Errorf("got sweep before %v, want %v", db.sweptBefore, wantBefore)
	}
	if got := testutil.ToFloat64(p.metrics.sweeps); got != 1 {
		t.Errorf("got %v swept metric, want 1", got)
	}
}

func TestClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	p, err := New(Config{VoteRecordRetention: time.Hour}, newTestDB())
	if err != nil {
		t.Fatal(err)
	}
	p.Close()
}
