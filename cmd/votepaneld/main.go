// Copyright (c) 2022-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/decred/votepanel/logger"
	"github.com/decred/votepanel/panel"
	"github.com/decred/votepanel/server"
	"github.com/decred/votepanel/store"
	"github.com/decred/votepanel/store/localdb"
	"github.com/decred/votepanel/store/mysql"
	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	err := _main()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func _main() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.CloseLogRotator()

	log.Infof("Version : %v", cfg.Version)
	log.Infof("Home dir: %v", cfg.HomeDir)
	log.Infof("Database: %v", cfg.DBType)

	// Setup the database
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// Setup the metrics registry
	var (
		registerer prometheus.Registerer
		gatherer   prometheus.Gatherer
	)
	if cfg.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registerer, gatherer = reg, reg
	}

	// Setup the panel
	p, err := panel.New(panel.Config{
		VoteRecordRetention: cfg.VoteRecordRetention,
		Registerer:          registerer,
	}, db)
	if err != nil {
		return err
	}
	defer p.Close()

	// Setup the server
	serverCfg := &server.Config{
		BuildVersion:     cfg.Version,
		HTTPSCert:        cfg.HTTPSCert,
		HTTPSKey:         cfg.HTTPSKey,
		CSRFKey:          filepath.Join(cfg.HomeDir, "csrf.key"),
		CSRFMaxAge:       60 * 60 * 24, // 1 day in seconds
		ReadTimeout:      cfg.ReadTimeout,
		WriteTimeout:     cfg.WriteTimeout,
		ReqBodySizeLimit: cfg.ReqBodySizeLimit,
		PutBatchLimit:    cfg.PutBatchLimit,
		Listen:           cfg.Listen,
	}
	s, err := server.New(serverCfg, p, gatherer)
	if err != nil {
		return err
	}

	// Tell the server to start listening for requests
	listenC := make(chan error)
	s.ListenAndServeTLS(listenC)

	// Tell the user we are ready to go
	log.Infof("Start of day")

	// Setup OS signals
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case sig := <-sigs:
			log.Infof("Terminating with %v", sig)
			goto done
		case err := <-listenC:
			log.Errorf("%v", err)
			goto done
		}
	}

done:
	log.Infof("Exiting")
	s.Shutdown()
	return nil
}

// openDB opens the configured database.
func openDB(cfg *config) (store.DB, error) {
	switch cfg.DBType {
	case dbTypeLevelDB:
		return localdb.New(cfg.DataDir)
	case dbTypeMySQL:
		// Continue below
	default:
		return nil, fmt.Errorf("invalid db type %v", cfg.DBType)
	}

	var (
		connMaxLifetime = 1 * time.Minute
		maxOpenConns    = 0 // 0 is unlimited (sql package default)
		maxIdleConns    = 10

		user     = cfg.AppName
		password = cfg.DBPass
		host     = cfg.DBHost
		dbname   = cfg.AppName

		h = fmt.Sprintf("%v:%v@tcp(%v)/%v", user, password, host, dbname)
	)

	log.Infof("MySQL   : %v:[pass]@tcp(%v)/%v", user, host, dbname)

	sqlDB, err := sql.Open("mysql", h)
	if err != nil {
		return nil, err
	}

	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)

	err = sqlDB.Ping()
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	db, err := mysql.New(sqlDB, nil)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	return db, nil
}
