// Copyright (c) 2017-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package localdb implements the store.DB interface using a leveldb
// database on the local filesystem.
package localdb

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/decred/votepanel/store"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	// dbDirname is the directory name of the leveldb database inside of
	// the data directory.
	dbDirname = "votepanel"

	// Database version
	dbVersion    uint32 = 1
	dbVersionKey        = "dbversion"

	// Key prefixes. The components of composite keys are separated by
	// keySep, which may not appear in a component.
	prefixProposal = "proposal-"
	prefixRecord   = "record-"
	prefixOwner    = "owner-"    // owner-{realm}\x00{owner} -> record key
	prefixDelegate = "delegate-" // delegate-{realm}\x00{delegate}\x00{record} -> record key
	prefixVote     = "vote-"     // vote-{proposal}\x00{record} -> vote record

	keySep = "\x00"
)

var (
	_ store.DB = (*localdb)(nil)
)

// localdb implements the store.DB interface.
type localdb struct {
	sync.RWMutex
	shutdown bool        // Database is shutdown
	root     string      // Database root
	db       *leveldb.DB // Database context
}

// version contains the database version.
type version struct {
	Version uint32 `json:"version"` // Database version
	Time    int64  `json:"time"`    // Time of record creation
}

func proposalKey(key string) []byte {
	return []byte(prefixProposal + key)
}

func recordKey(key string) []byte {
	return []byte(prefixRecord + key)
}

func ownerKey(realm, owner string) []byte {
	return []byte(prefixOwner + realm + keySep + owner)
}

func delegatePrefix(realm, delegate string) []byte {
	return []byte(prefixDelegate + realm + keySep + delegate + keySep)
}

func delegateKey(realm, delegate, record string) []byte {
	return append(delegatePrefix(realm, delegate), []byte(record)...)
}

func votePrefix(proposal string) []byte {
	return []byte(prefixVote + proposal + keySep)
}

// verifyKeyParts returns an error if any of the key components contains the
// key separator.
func verifyKeyParts(parts ...string) error {
	for _, v := range parts {
		if strings.Contains(v, keySep) {
			return errors.Errorf("key component %q contains a separator", v)
		}
	}
	return nil
}

func voteKey(proposal, record string) []byte {
	return append(votePrefix(proposal), []byte(record)...)
}

// ProposalSave inserts or updates a proposal.
//
// This function satisfies the store.DB interface.
func (l *localdb) ProposalSave(ctx context.Context, p store.Proposal) error {
	log.Tracef("ProposalSave: %v", p.Key)

	l.Lock()
	defer l.Unlock()

	if l.shutdown {
		return store.ErrShutdown
	}

	err := verifyKeyParts(p.Key)
	if err != nil {
		return err
	}
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return l.db.Put(proposalKey(p.Key), b, nil)
}

// ProposalGet returns a proposal.
//
// This function satisfies the store.DB interface.
func (l *localdb) ProposalGet(ctx context.Context, key string) (*store.Proposal, error) {
	log.Tracef("ProposalGet: %v", key)

	l.RLock()
	defer l.RUnlock()

	if l.shutdown {
		return nil, store.ErrShutdown
	}

	b, err := l.db.Get(proposalKey(key), nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return nil, store.ErrNotFound
	case err != nil:
		return nil, errors.WithStack(err)
	}

	var p store.Proposal
	err = json.Unmarshal(b, &p)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// RecordsSave inserts or updates token-owner records. The owner and delegate
// indexes of a record that is updated are moved along with it.
//
// This function satisfies the store.DB interface.
func (l *localdb) RecordsSave(ctx context.Context, records []store.TokenOwnerRecord) error {
	log.Tracef("RecordsSave: %v", len(records))

	l.Lock()
	defer l.Unlock()

	if l.shutdown {
		return store.ErrShutdown
	}

	batch := new(leveldb.Batch)
	for _, r := range records {
		err := verifyKeyParts(r.Key, r.Realm, r.Owner, r.Delegate)
		if err != nil {
			return err
		}

		// Remove the indexes of the previous version of the record
		prev, err := l.recordGet(r.Key)
		switch {
		case errors.Is(err, store.ErrNotFound):
			// New record; nothing to remove
		case err != nil:
			return err
		default:
			batch.Delete(ownerKey(prev.Realm, prev.Owner))
			if prev.Delegate != "" {
				batch.Delete(delegateKey(prev.Realm, prev.Delegate, prev.Key))
			}
		}

		b, err := json.Marshal(r)
		if err != nil {
			return err
		}
		batch.Put(recordKey(r.Key), b)
		batch.Put(ownerKey(r.Realm, r.Owner), []byte(r.Key))
		if r.Delegate != "" {
			batch.Put(delegateKey(r.Realm, r.Delegate, r.Key), []byte(r.Key))
		}
	}

	return l.db.Write(batch, nil)
}

// recordGet returns a token-owner record by key.
//
// This function must be called WITH the lock held.
func (l *localdb) recordGet(key string) (*store.TokenOwnerRecord, error) {
	b, err := l.db.Get(recordKey(key), nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return nil, store.ErrNotFound
	case err != nil:
		return nil, errors.WithStack(err)
	}

	var r store.TokenOwnerRecord
	err = json.Unmarshal(b, &r)
	if err != nil {
		return nil, err
	}

	return &r, nil
}

// RecordGetByOwner returns the token-owner record of the owner in the realm.
//
// This function satisfies the store.DB interface.
func (l *localdb) RecordGetByOwner(ctx context.Context, realm, owner string) (*store.TokenOwnerRecord, error) {
	log.Tracef("RecordGetByOwner: %v %v", realm, owner)

	l.RLock()
	defer l.RUnlock()

	if l.shutdown {
		return nil, store.ErrShutdown
	}

	key, err := l.db.Get(ownerKey(realm, owner), nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return nil, store.ErrNotFound
	case err != nil:
		return nil, errors.WithStack(err)
	}

	return l.recordGet(string(key))
}

// RecordsGetByDelegate returns the token-owner records in the realm that
// have been delegated to the wallet.
//
// This function satisfies the store.DB interface.
func (l *localdb) RecordsGetByDelegate(ctx context.Context, realm, delegate string) ([]store.TokenOwnerRecord, error) {
	log.Tracef("RecordsGetByDelegate: %v %v", realm, delegate)

	l.RLock()
	defer l.RUnlock()

	if l.shutdown {
		return nil, store.ErrShutdown
	}

	keys := make([]string, 0, 16)
	iter := l.db.NewIterator(util.BytesPrefix(delegatePrefix(realm, delegate)), nil)
	for iter.Next() {
		keys = append(keys, string(iter.Value()))
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return nil, errors.WithStack(err)
	}

	records := make([]store.TokenOwnerRecord, 0, len(keys))
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := l.recordGet(k)
		if err != nil {
			return nil, errors.Wrapf(err, "delegated record %v", k)
		}
		records = append(records, *r)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Key < records[j].Key
	})

	return records, nil
}

// VotesSave inserts or updates vote records.
//
// This function satisfies the store.DB interface.
func (l *localdb) VotesSave(ctx context.Context, votes []store.VoteRecord) error {
	log.Tracef("VotesSave: %v", len(votes))

	l.Lock()
	defer l.Unlock()

	if l.shutdown {
		return store.ErrShutdown
	}

	batch := new(leveldb.Batch)
	for _, v := range votes {
		err := verifyKeyParts(v.Proposal, v.TokenOwnerRecord)
		if err != nil {
			return err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		batch.Put(voteKey(v.Proposal, v.TokenOwnerRecord), b)
	}

	return l.db.Write(batch, nil)
}

// VotesGet returns the vote records of the provided token-owner records on a
// proposal.
//
// This function satisfies the store.DB interface.
func (l *localdb) VotesGet(ctx context.Context, proposal string, records []string) (map[string]store.VoteRecord, error) {
	log.Tracef("VotesGet: %v %v", proposal, records)

	l.RLock()
	defer l.RUnlock()

	if l.shutdown {
		return nil, store.ErrShutdown
	}

	votes := make(map[string]store.VoteRecord, len(records))
	for _, r := range records {
		b, err := l.db.Get(voteKey(proposal, r), nil)
		switch {
		case errors.Is(err, leveldb.ErrNotFound):
			continue
		case err != nil:
			return nil, errors.WithStack(err)
		}
		var v store.VoteRecord
		err = json.Unmarshal(b, &v)
		if err != nil {
			return nil, err
		}
		votes[r] = v
	}

	return votes, nil
}

// VotesDelExpired deletes the vote records of every proposal whose voting
// window closed at or before the provided unix time.
//
// This function satisfies the store.DB interface.
func (l *localdb) VotesDelExpired(ctx context.Context, before int64) (int, error) {
	log.Tracef("VotesDelExpired: %v", before)

	l.Lock()
	defer l.Unlock()

	if l.shutdown {
		return 0, store.ErrShutdown
	}

	// Find the expired proposals
	expired := make([]string, 0, 16)
	iter := l.db.NewIterator(util.BytesPrefix([]byte(prefixProposal)), nil)
	for iter.Next() {
		var p store.Proposal
		err := json.Unmarshal(iter.Value(), &p)
		if err != nil {
			iter.Release()
			return 0, err
		}
		if p.VotingEndsAt != 0 && p.VotingEndsAt <= before {
			expired = append(expired, p.Key)
		}
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return 0, errors.WithStack(err)
	}

	// Delete their votes
	var (
		batch = new(leveldb.Batch)
		count int
	)
	for _, p := range expired {
		iter := l.db.NewIterator(util.BytesPrefix(votePrefix(p)), nil)
		for iter.Next() {
			// The iterator reuses the key buffer
			k := make([]byte, len(iter.Key()))
			copy(k, iter.Key())
			batch.Delete(k)
			count++
		}
		iter.Release()
		if err := iter.Error(); err != nil {
			return 0, errors.WithStack(err)
		}
	}
	if count == 0 {
		return 0, nil
	}
	err := l.db.Write(batch, nil)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	log.Debugf("Deleted %v vote records of %v expired proposals",
		count, len(expired))

	return count, nil
}

// Close shuts down the database. All interface functions return
// store.ErrShutdown after Close has been called.
//
// This function satisfies the store.DB interface.
func (l *localdb) Close() error {
	log.Tracef("Close")

	l.Lock()
	defer l.Unlock()

	l.shutdown = true
	return l.db.Close()
}

// openDB opens the leveldb database and writes out the version record if
// needed.
func (l *localdb) openDB() error {
	var err error
	l.db, err = leveldb.OpenFile(filepath.Join(l.root, dbDirname), nil)
	if err != nil {
		return errors.WithStack(err)
	}

	// See if we need to write a version record
	exists, err := l.db.Has([]byte(dbVersionKey), nil)
	if err != nil || exists {
		return err
	}

	b, err := json.Marshal(version{
		Version: dbVersion,
		Time:    time.Now().Unix(),
	})
	if err != nil {
		return err
	}

	return l.db.Put([]byte(dbVersionKey), b, nil)
}

// New returns a new localdb context that is rooted in the provided data
// directory.
func New(root string) (*localdb, error) {
	log.Tracef("localdb New: %v", root)

	l := &localdb{
		root: root,
	}
	err := l.openDB()
	if err != nil {
		return nil, err
	}

	return l, nil
}
