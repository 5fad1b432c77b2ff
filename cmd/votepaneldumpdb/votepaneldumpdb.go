// Copyright (c) 2017-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// votepaneldumpdb prints the contents of the votepaneld leveldb database. The
// daemon must not be running.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/decred/dcrd/dcrutil/v3"
	"github.com/decred/votepanel/store/localdb"
	"github.com/decred/votepanel/util"
	"github.com/jessevdk/go-flags"
)

var defaultDataDir = filepath.Join(dcrutil.AppDataDir("votepaneld", false),
	"data")

type options struct {
	DataDir string `short:"d" long:"datadir" description:"votepaneld data directory"`
	Prefix  string `short:"p" long:"prefix" description:"Only dump keys with this prefix (e.g. proposal-, record-, vote-)"`
}

func _main() error {
	opts := options{
		DataDir: defaultDataDir,
	}
	_, err := flags.Parse(&opts)
	if err != nil {
		return err
	}
	dataDir := util.CleanAndExpandPath(opts.DataDir)

	fmt.Printf("Database: %v\n", dataDir)

	var count int
	err = localdb.Dump(dataDir, func(key string, value interface{}) error {
		if !strings.HasPrefix(key, opts.Prefix) {
			return nil
		}
		count++
		fmt.Printf("%v\n", strings.Repeat("=", 80))
		fmt.Printf("Key     : %v\n", key)
		fmt.Printf("Value   : %v", spew.Sdump(value))
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("%v entries\n", count)
	return nil
}

func main() {
	err := _main()
	if err != nil {
		// go-flags prints the help message and flag errors
		var e *flags.Error
		if errors.As(err, &e) {
			if e.Type == flags.ErrHelp {
				os.Exit(0)
			}
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
