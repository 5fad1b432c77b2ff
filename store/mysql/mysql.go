// Copyright (c) 2021-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package mysql implements the store.DB interface using a MySQL database.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/decred/votepanel/store"
	"github.com/decred/votepanel/voter"
	"github.com/pkg/errors"
)

// proposalsTable contains the proposals and their voting windows.
const proposalsTable = `
  proposal_key   VARCHAR(128) PRIMARY KEY,
  realm          VARCHAR(128) NOT NULL,
  state          INT UNSIGNED NOT NULL,
  voting_ends_at BIGINT NOT NULL
`

// recordsTable contains the token-owner records. An owner has at most one
// record per realm.
const recordsTable = `
  record_key   VARCHAR(128) PRIMARY KEY,
  realm        VARCHAR(128) NOT NULL,
  owner        VARCHAR(128) NOT NULL,
  delegate     VARCHAR(128) NOT NULL DEFAULT '',
  voting_power BIGINT UNSIGNED NOT NULL,
  UNIQUE INDEX idx_realm_owner (realm, owner),
  INDEX idx_realm_delegate (realm, delegate)
`

// votesTable contains the vote records. The timestamp column contains the
// unix time of the vote.
const votesTable = `
  proposal_key VARCHAR(128) NOT NULL,
  record_key   VARCHAR(128) NOT NULL,
  choice       INT UNSIGNED NOT NULL,
  relinquished BOOLEAN NOT NULL,
  timestamp    BIGINT NOT NULL,
  PRIMARY KEY (proposal_key, record_key)
`

var (
	_ store.DB = (*mysql)(nil)
)

// mysql implements the store.DB interface.
type mysql struct {
	// db is the mysql DB context.
	db *sql.DB

	// opts contains the database options.
	opts *Opts
}

// Opts contains configurable options for the database. These are not
// required. Sane defaults are used when the options are not provided.
type Opts struct {
	// TablePrefix is prepended to the names of all tables.
	TablePrefix string

	// OpTimeout is the timeout for a single database operation.
	OpTimeout time.Duration
}

const (
	// defaultOpTimeout is the default timeout for a single database
	// operation.
	defaultOpTimeout = 1 * time.Minute
)

// Table names without the table prefix
const (
	tableProposals = "proposals"
	tableRecords   = "token_owner_records"
	tableVotes     = "vote_records"
)

// New returns a new mysql context that implements the store.DB interface.
// The tables are created if they do not exist yet.
func New(db *sql.DB, opts *Opts) (*mysql, error) {
	if opts == nil {
		opts = &Opts{}
	}
	if opts.OpTimeout == 0 {
		opts.OpTimeout = defaultOpTimeout
	}

	m := mysql{
		db:   db,
		opts: opts,
	}
	err := m.createTables()
	if err != nil {
		return nil, err
	}

	return &m, nil
}

// table returns the full name of a table.
func (m *mysql) table(name string) string {
	return m.opts.TablePrefix + name
}

// ProposalSave inserts or updates a proposal.
//
// This function satisfies the store.DB interface.
func (m *mysql) ProposalSave(ctx context.Context, p store.Proposal) error {
	log.Tracef("ProposalSave: %v", p.Key)

	ctx, cancel := m.ctxForOp(ctx)
	defer cancel()

	q := `INSERT INTO %v
    (proposal_key, realm, state, voting_ends_at) VALUES (?, ?, ?, ?)
    ON DUPLICATE KEY UPDATE
    realm = VALUES(realm), state = VALUES(state),
    voting_ends_at = VALUES(voting_ends_at)`

	q = fmt.Sprintf(q, m.table(tableProposals))
	_, err := m.db.ExecContext(ctx, q,
		p.Key, p.Realm, uint32(p.State), p.VotingEndsAt)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// ProposalGet returns a proposal.
//
// This function satisfies the store.DB interface.
func (m *mysql) ProposalGet(ctx context.Context, key string) (*store.Proposal, error) {
	log.Tracef("ProposalGet: %v", key)

	ctx, cancel := m.ctxForOp(ctx)
	defer cancel()

	q := fmt.Sprintf("SELECT realm, state, voting_ends_at FROM %v "+
		"WHERE proposal_key = ?", m.table(tableProposals))

	var (
		p     = store.Proposal{Key: key}
		state uint32
	)
	err := m.db.QueryRowContext(ctx, q, key).
		Scan(&p.Realm, &state, &p.VotingEndsAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, store.ErrNotFound
	case err != nil:
		return nil, errors.WithStack(err)
	}
	p.State = store.ProposalState(state)

	return &p, nil
}

// RecordsSave inserts or updates token-owner records.
//
// This function satisfies the store.DB interface.
func (m *mysql) RecordsSave(ctx context.Context, records []store.TokenOwnerRecord) error {
	log.Tracef("RecordsSave: %v", len(records))

	q := `INSERT INTO %v
    (record_key, realm, owner, delegate, voting_power) VALUES (?, ?, ?, ?, ?)
    ON DUPLICATE KEY UPDATE
    realm = VALUES(realm), owner = VALUES(owner),
    delegate = VALUES(delegate), voting_power = VALUES(voting_power)`

	q = fmt.Sprintf(q, m.table(tableRecords))
	return m.execBatch(ctx, q, len(records), func(i int) []interface{} {
		r := records[i]
		return []interface{}{r.Key, r.Realm, r.Owner, r.Delegate,
			r.VotingPower}
	})
}

// RecordGetByOwner returns the token-owner record of the owner in the realm.
//
// This function satisfies the store.DB interface.
func (m *mysql) RecordGetByOwner(ctx context.Context, realm, owner string) (*store.TokenOwnerRecord, error) {
	log.Tracef("RecordGetByOwner: %v %v", realm, owner)

	ctx, cancel := m.ctxForOp(ctx)
	defer cancel()

	q := fmt.Sprintf("SELECT record_key, delegate, voting_power FROM %v "+
		"WHERE realm = ? AND owner = ?", m.table(tableRecords))

	r := store.TokenOwnerRecord{
		Realm: realm,
		Owner: owner,
	}
	err := m.db.QueryRowContext(ctx, q, realm, owner).
		Scan(&r.Key, &r.Delegate, &r.VotingPower)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, store.ErrNotFound
	case err != nil:
		return nil, errors.WithStack(err)
	}

	return &r, nil
}

// RecordsGetByDelegate returns the token-owner records in the realm that
// have been delegated to the wallet.
//
// This function satisfies the store.DB interface.
func (m *mysql) RecordsGetByDelegate(ctx context.Context, realm, delegate string) ([]store.TokenOwnerRecord, error) {
	log.Tracef("RecordsGetByDelegate: %v %v", realm, delegate)

	ctx, cancel := m.ctxForOp(ctx)
	defer cancel()

	q := fmt.Sprintf("SELECT record_key, owner, voting_power FROM %v "+
		"WHERE realm = ? AND delegate = ? ORDER BY record_key",
		m.table(tableRecords))

	rows, err := m.db.QueryContext(ctx, q, realm, delegate)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()

	records := make([]store.TokenOwnerRecord, 0, 16)
	for rows.Next() {
		r := store.TokenOwnerRecord{
			Realm:    realm,
			Delegate: delegate,
		}
		err := rows.Scan(&r.Key, &r.Owner, &r.VotingPower)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	return records, nil
}

// VotesSave inserts or updates vote records.
//
// This function satisfies the store.DB interface.
func (m *mysql) VotesSave(ctx context.Context, votes []store.VoteRecord) error {
	log.Tracef("VotesSave: %v", len(votes))

	q := `INSERT INTO %v
    (proposal_key, record_key, choice, relinquished, timestamp)
    VALUES (?, ?, ?, ?, ?)
    ON DUPLICATE KEY UPDATE
    choice = VALUES(choice), relinquished = VALUES(relinquished),
    timestamp = VALUES(timestamp)`

	q = fmt.Sprintf(q, m.table(tableVotes))
	return m.execBatch(ctx, q, len(votes), func(i int) []interface{} {
		v := votes[i]
		return []interface{}{v.Proposal, v.TokenOwnerRecord,
			uint32(v.Choice), v.Relinquished, v.Timestamp}
	})
}

// VotesGet returns the vote records of the provided token-owner records on a
// proposal.
//
// This function satisfies the store.DB interface.
func (m *mysql) VotesGet(ctx context.Context, proposal string, records []string) (map[string]store.VoteRecord, error) {
	log.Tracef("VotesGet: %v %v", proposal, records)

	votes := make(map[string]store.VoteRecord, len(records))
	if len(records) == 0 {
		return votes, nil
	}

	ctx, cancel := m.ctxForOp(ctx)
	defer cancel()

	q := fmt.Sprintf("SELECT record_key, choice, relinquished, timestamp "+
		"FROM %v WHERE proposal_key = ? AND record_key IN (%v)",
		m.table(tableVotes), placeholders(len(records)))

	args := make([]interface{}, 0, len(records)+1)
	args = append(args, proposal)
	for _, r := range records {
		args = append(args, r)
	}
	rows, err := m.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			v      = store.VoteRecord{Proposal: proposal}
			choice uint32
		)
		err := rows.Scan(&v.TokenOwnerRecord, &choice, &v.Relinquished,
			&v.Timestamp)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		v.Choice = voter.VoteChoice(choice)
		votes[v.TokenOwnerRecord] = v
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	return votes, nil
}

// VotesDelExpired deletes the vote records of every proposal whose voting
// window closed at or before the provided unix time.
//
// This function satisfies the store.DB interface.
func (m *mysql) VotesDelExpired(ctx context.Context, before int64) (int, error) {
	log.Tracef("VotesDelExpired: %v", before)

	ctx, cancel := m.ctxForOp(ctx)
	defer cancel()

	q := `DELETE v FROM %v v
    JOIN %v p ON v.proposal_key = p.proposal_key
    WHERE p.voting_ends_at != 0 AND p.voting_ends_at <= ?`

	q = fmt.Sprintf(q, m.table(tableVotes), m.table(tableProposals))
	r, err := m.db.ExecContext(ctx, q, before)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	rowsAffected, err := r.RowsAffected()
	if err != nil {
		return 0, err
	}

	log.Debugf("Deleted %v expired vote records", rowsAffected)

	return int(rowsAffected), nil
}

// Close closes the database connection.
//
// This function satisfies the store.DB interface.
func (m *mysql) Close() error {
	return m.db.Close()
}

// execBatch executes the query once for every set of arguments using a
// single database transaction.
func (m *mysql) execBatch(ctx context.Context, q string, n int, args func(int) []interface{}) error {
	if n == 0 {
		return nil
	}

	ctx, cancel := m.ctxForOp(ctx)
	defer cancel()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WithStack(err)
	}
	for i := 0; i < n; i++ {
		_, err = tx.ExecContext(ctx, q, args(i)...)
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				log.Errorf("execBatch rollback: %v", rerr)
			}
			return errors.WithStack(err)
		}
	}
	err = tx.Commit()
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// createTables creates the database tables.
func (m *mysql) createTables() error {
	ctx, cancel := m.ctxForOp(context.Background())
	defer cancel()

	tables := []struct {
		name   string
		schema string
	}{
		{m.table(tableProposals), proposalsTable},
		{m.table(tableRecords), recordsTable},
		{m.table(tableVotes), votesTable},
	}
	for _, t := range tables {
		q := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %v (%v)",
			t.name, t.schema)
		_, err := m.db.ExecContext(ctx, q)
		if err != nil {
			return errors.WithStack(err)
		}
		log.Debugf("Created %v database table", t.name)
	}

	return nil
}

// ctxForOp returns a context and cancel function for a single database
// operation.
func (m *mysql) ctxForOp(ctx context.Context) (context.Context, func()) {
	return context.WithTimeout(ctx, m.opts.OpTimeout)
}

// placeholders returns a comma separated list of n query placeholders.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
