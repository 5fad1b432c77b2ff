// Copyright (c) 2022-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mysql

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/decred/votepanel/store"
	"github.com/decred/votepanel/voter"
	"github.com/google/go-cmp/cmp"
)

// newTestMySQL returns a mysql context that has been setup for testing along
// with the sql mocking context and a cleanup function. Invocation of the
// cleanup function should be deferred by the caller.
func newTestMySQL(t *testing.T) (*mysql, sqlmock.Sqlmock, func()) {
	t.Helper()

	// sqlmock defaults to using the expected SQL string as a regular
	// expression to match incoming query strings. The QueryMatcherEqual
	// overrides this default behavior and does a full case sensitive
	// match.
	opts := sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual)
	db, mock, err := sqlmock.New(opts)
	if err != nil {
		t.Fatal(err)
	}
	cleanup := func() {
		defer db.Close()
	}
	m := &mysql{
		db: db,
		opts: &Opts{
			OpTimeout: defaultOpTimeout,
		},
	}

	return m, mock, cleanup
}

func TestNew(t *testing.T) {
	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	for _, v := range []struct {
		name   string
		schema string
	}{
		{"test_" + tableProposals, proposalsTable},
		{"test_" + tableRecords, recordsTable},
		{"test_" + tableVotes, votesTable},
	} {
		q := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %v (%v)",
			v.name, v.schema)
		mock.ExpectExec(q).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	_, err = New(db, &Opts{TablePrefix: "test_"})
	if err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestProposalGet(t *testing.T) {
	m, mock, cleanup := newTestMySQL(t)
	defer cleanup()

	q := "SELECT realm, state, voting_ends_at FROM proposals " +
		"WHERE proposal_key = ?"

	// Test the not found path
	mock.ExpectQuery(q).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"realm", "state",
			"voting_ends_at"}))

	_, err := m.ProposalGet(context.Background(), "p1")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("got err '%v', want '%v'", err, store.ErrNotFound)
	}

	// Test the success path
	mock.ExpectQuery(q).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"realm", "state",
			"voting_ends_at"}).AddRow("realm", 2, 1000))

	p, err := m.ProposalGet(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	want := store.Proposal{
		Key:          "p1",
		Realm:        "realm",
		State:        store.ProposalStateVoting,
		VotingEndsAt: 1000,
	}
	if diff := cmp.Diff(want, *p); diff != "" {
		t.Errorf("unexpected proposal (-want +got):\n%v", diff)
	}
}

func TestRecordsSave(t *testing.T) {
	m, mock, cleanup := newTestMySQL(t)
	defer cleanup()

	q := `INSERT INTO token_owner_records
    (record_key, realm, owner, delegate, voting_power) VALUES (?, ?, ?, ?, ?)
    ON DUPLICATE KEY UPDATE
    realm = VALUES(realm), owner = VALUES(owner),
    delegate = VALUES(delegate), voting_power = VALUES(voting_power)`

	records := []store.TokenOwnerRecord{
		{Key: "r1", Realm: "realm", Owner: "alice", VotingPower: 10},
		{Key: "r2", Realm: "realm", Owner: "bob", Delegate: "alice",
			VotingPower: 20},
	}

	// Test the rollback path
	unexpectedErr := errors.New("unexpected error")
	mock.ExpectBegin()
	mock.ExpectExec(q).
		WithArgs("r1", "realm", "alice", "", uint64(10)).
		WillReturnError(unexpectedErr)
	mock.ExpectRollback()

	err := m.RecordsSave(context.Background(), records)
	if !errors.Is(err, unexpectedErr) {
		t.Errorf("got err '%v', want '%v'", err, unexpectedErr)
	}

	// Test the success path
	mock.ExpectBegin()
	mock.ExpectExec(q).
		WithArgs("r1", "realm", "alice", "", uint64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).
		WithArgs("r2", "realm", "bob", "alice", uint64(20)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = m.RecordsSave(context.Background(), records)
	if err != nil {
		t.Error(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRecordsGetByDelegate(t *testing.T) {
	m, mock, cleanup := newTestMySQL(t)
	defer cleanup()

	q := "SELECT record_key, owner, voting_power FROM token_owner_records " +
		"WHERE realm = ? AND delegate = ? ORDER BY record_key"

	rows := sqlmock.NewRows([]string{"record_key", "owner", "voting_power"}).
		AddRow("r2", "bob", 20).
		AddRow("r3", "carol", 0)
	mock.ExpectQuery(q).
		WithArgs("realm", "alice").
		WillReturnRows(rows)

	got, err := m.RecordsGetByDelegate(context.Background(), "realm", "alice")
	if err != nil {
		t.Fatal(err)
	}
	want := []store.TokenOwnerRecord{
		{Key: "r2", Realm: "realm", Owner: "bob", Delegate: "alice",
			VotingPower: 20},
		{Key: "r3", Realm: "realm", Owner: "carol", Delegate: "alice"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected records (-want +got):\n%v", diff)
	}
}

func TestVotesGet(t *testing.T) {
	m, mock, cleanup := newTestMySQL(t)
	defer cleanup()

	// No records does not hit the database
	got, err := m.VotesGet(context.Background(), "p1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %v votes, want 0", len(got))
	}

	q := "SELECT record_key, choice, relinquished, timestamp " +
		"FROM vote_records WHERE proposal_key = ? AND record_key IN (?,?)"

	rows := sqlmock.NewRows([]string{"record_key", "choice",
		"relinquished", "timestamp"}).
		AddRow("r1", 1, false, 100)
	mock.ExpectQuery(q).
		WithArgs("p1", "r1", "r2").
		WillReturnRows(rows)

	got, err = m.VotesGet(context.Background(), "p1", []string{"r1", "r2"})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]store.VoteRecord{
		"r1": {
			Proposal:         "p1",
			TokenOwnerRecord: "r1",
			Choice:           voter.VoteChoiceYes,
			Timestamp:        100,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected votes (-want +got):\n%v", diff)
	}
}

func TestVotesDelExpired(t *testing.T) {
	m, mock, cleanup := newTestMySQL(t)
	defer cleanup()

	q := `DELETE v FROM vote_records v
    JOIN proposals p ON v.proposal_key = p.proposal_key
    WHERE p.voting_ends_at != 0 AND p.voting_ends_at <= ?`

	mock.ExpectExec(q).
		WithArgs(int64(500)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := m.VotesDelExpired(context.Background(), 500)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("got %v deleted, want 3", n)
	}
}

func TestPlaceholders(t *testing.T) {
	var tests = []struct {
		n    int
		want string
	}{
		{1, "?"},
		{3, "?,?,?"},
	}
	for _, tc := range tests {
		if got := placeholders(tc.n); got != tc.want {
			t.Errorf("placeholders(%v): got %v, want %v", tc.n, got, tc.want)
		}
	}
}
