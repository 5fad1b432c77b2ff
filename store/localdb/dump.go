// Copyright (c) 2017-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package localdb

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/decred/votepanel/store"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// DumpFunc is called for every entry of the database. The value is the
// decoded entry: a store.Proposal, a store.TokenOwnerRecord, a
// store.VoteRecord, the version record, or the record key that an index
// entry points to.
type DumpFunc func(key string, value interface{}) error

// Dump opens the database that is rooted in the provided data directory in
// read-only mode and calls fn for every entry in key order. It fails if the
// database is in use by a running daemon.
func Dump(root string, fn DumpFunc) error {
	db, err := leveldb.OpenFile(filepath.Join(root, dbDirname),
		&opt.Options{
			ReadOnly:       true,
			ErrorIfMissing: true,
		})
	if err != nil {
		return errors.WithStack(err)
	}
	defer db.Close()

	iter := db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		key := string(iter.Key())
		v, err := decodeEntry(key, iter.Value())
		if err != nil {
			return errors.Wrapf(err, "decode %v", key)
		}
		err = fn(key, v)
		if err != nil {
			return err
		}
	}

	return errors.WithStack(iter.Error())
}

// decodeEntry decodes a database value according to its key prefix.
func decodeEntry(key string, b []byte) (interface{}, error) {
	var v interface{}
	switch {
	case key == dbVersionKey:
		v = &version{}
	case strings.HasPrefix(key, prefixProposal):
		v = &store.Proposal{}
	case strings.HasPrefix(key, prefixRecord):
		v = &store.TokenOwnerRecord{}
	case strings.HasPrefix(key, prefixVote):
		v = &store.VoteRecord{}
	case strings.HasPrefix(key, prefixOwner),
		strings.HasPrefix(key, prefixDelegate):
		return string(b), nil
	default:
		return nil, errors.Errorf("unknown key")
	}
	err := json.Unmarshal(b, v)
	if err != nil {
		return nil, err
	}
	return v, nil
}
