// Copyright (c) 2013-2014 The btcsuite developers
// Copyright (c) 2015-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"crypto/x509"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/decred/dcrd/dcrutil/v3"
	"github.com/decred/votepanel/logger"
	"github.com/decred/votepanel/util"
	"github.com/jessevdk/go-flags"
)

const (
	appName     = "votepanelctl"
	hostAppName = "votepaneld"
	dataDirname = "data"
	logDirname  = "logs"
	logLevel    = "info"
)

var (
	configFilename = fmt.Sprintf("%v.conf", appName)
	logFilename    = fmt.Sprintf("%v.log", appName)

	appDir     = dcrutil.AppDataDir(appName, false)
	dataDir    = filepath.Join(appDir, dataDirname)
	logDir     = filepath.Join(appDir, logDirname)
	configFile = filepath.Join(appDir, configFilename)

	// Server settings
	host      = "https://localhost:4443"
	hostDir   = dcrutil.AppDataDir(hostAppName, false)
	httpsCert = filepath.Join(hostDir, "https.cert")
)

// config is the command configuration.
type config struct {
	AppDir     string `long:"appdir" description:"Application home directory path"`
	DataDir    string `long:"datadir" description:"Data directory path"`
	LogDir     string `long:"logdir" description:"Log directory path"`
	ConfigFile string `long:"configfile" description:"Config file path"`
	LogLevel   string `short:"d" long:"loglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	Host       string `long:"host" description:"votepaneld host"`
	HTTPSCert  string `long:"httpscert" description:"HTTP cert file path (for self signed certs)"`
	Verbose    bool   `short:"v" long:"verbose" description:"Dump server replies with their Go types"`

	hostURL  *url.URL
	certPool *x509.CertPool
}

// loadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// Command line options always take precedence.
func loadConfig() (*config, error) {
	cfg := &config{
		AppDir:     appDir,
		DataDir:    dataDir,
		LogDir:     logDir,
		ConfigFile: configFile,
		LogLevel:   logLevel,
		Host:       host,
		HTTPSCert:  httpsCert,
	}

	// Pre-parse the command line options to see if an alternative config
	// file was specified. The help message and unknown flag errors are
	// handled by the command parser in main.
	preCfg := *cfg
	preParser := flags.NewParser(&preCfg, flags.IgnoreUnknown)
	_, err := preParser.Parse()
	if err != nil {
		return nil, err
	}

	// Update the paths that are relative to the app dir when only the
	// app dir was changed.
	if preCfg.AppDir != appDir {
		cfg.AppDir = util.CleanAndExpandPath(preCfg.AppDir)
		cfg.DataDir = rebase(preCfg.DataDir, dataDir, cfg.AppDir, dataDirname)
		cfg.LogDir = rebase(preCfg.LogDir, logDir, cfg.AppDir, logDirname)
		cfg.ConfigFile = rebase(preCfg.ConfigFile, configFile,
			cfg.AppDir, configFilename)
	} else {
		cfg.ConfigFile = preCfg.ConfigFile
	}

	// Load any additional settings from the config file. A missing config
	// file is not an error.
	parser := flags.NewParser(cfg, flags.IgnoreUnknown|flags.PassDoubleDash)
	err = flags.NewIniParser(parser).ParseFile(cfg.ConfigFile)
	if err != nil {
		var e *os.PathError
		if !errors.As(err, &e) {
			return nil, fmt.Errorf("parse config file: %v", err)
		}
	}

	// Parse command line options again to ensure they take precedence
	_, err = parser.Parse()
	if err != nil {
		return nil, err
	}

	// Check for the show log level. This is used to list supported
	// subsystems and exit.
	if cfg.LogLevel == "show" {
		fmt.Println("Supported subsystems", logger.SupportedSubsystems())
		os.Exit(0)
	}
	err = logger.ParseAndSetDebugLevels(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	// Clean and expand all file paths
	cfg.AppDir = util.CleanAndExpandPath(cfg.AppDir)
	cfg.DataDir = util.CleanAndExpandPath(cfg.DataDir)
	cfg.LogDir = util.CleanAndExpandPath(cfg.LogDir)
	cfg.ConfigFile = util.CleanAndExpandPath(cfg.ConfigFile)
	cfg.HTTPSCert = util.CleanAndExpandPath(cfg.HTTPSCert)

	// Create the app and data directories if they don't exist
	err = os.MkdirAll(cfg.AppDir, 0700)
	if err != nil {
		return nil, fmt.Errorf("create app dir: %v", err)
	}
	err = os.MkdirAll(cfg.DataDir, 0700)
	if err != nil {
		return nil, fmt.Errorf("create data dir: %v", err)
	}

	cfg.hostURL, err = parseHost(cfg.Host)
	if err != nil {
		return nil, err
	}
	cfg.certPool, err = loadCertPool(cfg.HTTPSCert)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// rebase returns the path joined onto the new home directory when the path
// still matches its default value.
func rebase(path, defaultPath, homeDir, filename string) string {
	if path == defaultPath {
		return filepath.Join(homeDir, filename)
	}
	return path
}

// parseHost parses the host URL. The https scheme is used when the host does
// not specify one.
func parseHost(host string) (*url.URL, error) {
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parse host: %v", err)
	}
	if !u.IsAbs() {
		u, err = url.Parse("https://" + host)
		if err != nil {
			return nil, fmt.Errorf("parse host: %v", err)
		}
	}
	return u, nil
}

// loadCertPool returns the system cert pool with the server's self signed
// certificate added, if it exists.
func loadCertPool(certFile string) (*x509.CertPool, error) {
	certPool, err := x509.SystemCertPool()
	if err != nil {
		return nil, err
	}
	if util.FileExists(certFile) {
		cert, err := os.ReadFile(certFile)
		if err != nil {
			return nil, err
		}
		certPool.AppendCertsFromPEM(cert)
	}
	return certPool, nil
}
