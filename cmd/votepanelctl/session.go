// Copyright (c) 2022-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
)

// errShutdown is returned by the session database once it has been closed.
var errShutdown = errors.New("session database is shutdown")

// session is the state of the CSRF session with a votepaneld host. The
// cookies carry the CSRF cookie token and CSRF is the header token that the
// version route hands out. Both are required by the put routes.
type session struct {
	Cookies []*http.Cookie `json:"cookies"`
	CSRF    string         `json:"csrf"`
}

// sessionDB persists the sessions of the hosts that the CLI talks to in a
// LevelDB database so that they survive between command invocations. It is
// safe for concurrent use.
type sessionDB struct {
	sync.Mutex
	db       *leveldb.DB
	shutdown bool
}

// openSessionDB opens the session database in the data directory.
func openSessionDB(dataDir string) (*sessionDB, error) {
	dataDir = filepath.Join(dataDir, "sessions")
	err := os.MkdirAll(dataDir, 0700)
	if err != nil {
		return nil, err
	}

	log.Tracef("Session db: %v", dataDir)

	db, err := leveldb.OpenFile(dataDir, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &sessionDB{
		db: db,
	}, nil
}

func sessionKey(host string) []byte {
	return []byte("session-" + host)
}

// Get returns the session of a host. An empty session is returned when
// there is none.
func (d *sessionDB) Get(host string) (*session, error) {
	d.Lock()
	defer d.Unlock()
	if d.shutdown {
		return nil, errShutdown
	}

	b, err := d.db.Get(sessionKey(host), nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return &session{}, nil
	case err != nil:
		return nil, errors.WithStack(err)
	}

	var s session
	err = json.Unmarshal(b, &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Save saves the session of a host, replacing any existing one.
func (d *sessionDB) Save(host string, s session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}

	d.Lock()
	defer d.Unlock()
	if d.shutdown {
		return errShutdown
	}

	log.Debugf("Session saved: %v", host)

	return errors.WithStack(d.db.Put(sessionKey(host), b, nil))
}

// Clear deletes the session of a host. It is called when the host rejected
// the session so that a stale CSRF token is not sent again.
func (d *sessionDB) Clear(host string) error {
	d.Lock()
	defer d.Unlock()
	if d.shutdown {
		return errShutdown
	}

	log.Debugf("Session cleared: %v", host)

	return errors.WithStack(d.db.Delete(sessionKey(host), nil))
}

// Close closes the database.
func (d *sessionDB) Close() {
	d.Lock()
	defer d.Unlock()
	if d.shutdown {
		return
	}

	d.db.Close()
	d.shutdown = true
}
