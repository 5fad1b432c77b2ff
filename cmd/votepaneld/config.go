// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/decred/dcrd/dcrutil/v3"
	"github.com/decred/votepanel/logger"
	"github.com/decred/votepanel/util"
	"github.com/decred/votepanel/version"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

const (
	// Database types
	dbTypeLevelDB = "leveldb"
	dbTypeMySQL   = "mysql"
)

var (
	// General application defaults
	appName            = "votepaneld"
	defaultDataDirname = "data"
	defaultLogDirname  = "logs"
	defaultLogLevel    = "info"

	defaultConfigFilename = fmt.Sprintf("%v.conf", appName)
	defaultLogFilename    = fmt.Sprintf("%v.log", appName)

	defaultHomeDir    = dcrutil.AppDataDir(appName, false)
	defaultConfigFile = filepath.Join(defaultHomeDir, defaultConfigFilename)
	defaultDataDir    = filepath.Join(defaultHomeDir, defaultDataDirname)
	defaultLogDir     = filepath.Join(defaultHomeDir, defaultLogDirname)

	// HTTP server defaults
	defaultHTTPSCertFilename        = "https.cert"
	defaultHTTPSKeyFilename         = "https.key"
	defaultReadTimeout       int64  = 5               // In seconds
	defaultWriteTimeout      int64  = 60              // In seconds
	defaultReqBodySizeLimit  int64  = 3 * 1024 * 1024 // 3 MiB
	defaultPutBatchLimit     uint32 = 500
	defaultListen                   = "4443"

	defaultHTTPSCert = filepath.Join(defaultHomeDir, defaultHTTPSCertFilename)
	defaultHTTPSKey  = filepath.Join(defaultHomeDir, defaultHTTPSKeyFilename)

	// Database defaults
	defaultDBType    = dbTypeLevelDB
	defaultMySQLHost = "localhost:3306"

	// Panel defaults
	defaultVoteRecordRetention = 30 * 24 * time.Hour

	// Environmental variables that are used to pass in config settings
	envDBPass = "DBPASS"
)

// config defines the configuration options for votepaneld.
//
// See the loadConfig function for details on the configuration load process.
type config struct {
	// General application settings
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	HomeDir     string `short:"A" long:"appdata" description:"Path to application home directory"`
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir     string `short:"b" long:"datadir" description:"Directory to store data"`
	LogDir      string `long:"logdir" description:"Directory to log output"`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`

	// HTTP server settings
	Listen           string `long:"listen" description:"Port or host:port that the http server will listen on"`
	HTTPSCert        string `long:"httpscert" description:"HTTPS certificate file path"`
	HTTPSKey         string `long:"httpskey" description:"HTTPS certificate key path"`
	ReadTimeout      int64  `long:"readtimeout" description:"Max duration in seconds that is spent reading the request headers and body"`
	WriteTimeout     int64  `long:"writetimeout" description:"Max duration in seconds that a request connection is kept open"`
	ReqBodySizeLimit int64  `long:"reqbodysizelimit" description:"Max number of bytes allowed in a request body submitted by a client"`
	PutBatchLimit    uint32 `long:"putbatchlimit" description:"Max number of entries allowed in a put request"`
	Metrics          bool   `long:"metrics" description:"Serve prometheus metrics on the /metrics route"`

	// Database settings
	DBType string `long:"db" description:"Database type {leveldb, mysql}"`
	DBHost string `long:"dbhost" description:"MySQL database host"`
	DBPass string // Provided in env variable "DBPASS"

	// Panel settings
	VoteRecordRetention time.Duration `long:"voterecordretention" description:"Duration that vote records are kept after the voting window of their proposal closed; 0 disables the sweep"`

	// Cooked options ready for use
	AppName string
	Version string
}

// loadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings.
//  2. Pre-parse the command line to check for an alternative config file.
//  3. Load the configuration file, overwriting defaults with any specified
//     options.
//  4. Parse the CLI options and overwrite/add any specified options.
//
// The above results in votepaneld functioning properly without any config
// settings while still allowing the user to override settings with config
// files and command line options. Command line options always take precedence.
//
// This function initializes the log rotator. It is the responsibility of the
// caller to close the log rotator.
func loadConfig() (*config, error) {
	// Setup the default configuration
	cfg := &config{
		// General application defaults
		HomeDir:    defaultHomeDir,
		ConfigFile: defaultConfigFile,
		DataDir:    defaultDataDir,
		LogDir:     defaultLogDir,
		DebugLevel: defaultLogLevel,

		// HTTP server defaults
		Listen:           defaultListen,
		HTTPSCert:        defaultHTTPSCert,
		HTTPSKey:         defaultHTTPSKey,
		ReadTimeout:      defaultReadTimeout,
		WriteTimeout:     defaultWriteTimeout,
		ReqBodySizeLimit: defaultReqBodySizeLimit,
		PutBatchLimit:    defaultPutBatchLimit,

		// Database defaults
		DBType: defaultDBType,
		DBHost: defaultMySQLHost,

		// Panel defaults
		VoteRecordRetention: defaultVoteRecordRetention,

		// Cooked options ready for use
		AppName: appName,
		Version: version.String(),
	}

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified. Any errors aside from the
	// help message error can be ignored here since they will be caught by
	// the final parse below.
	preCfg := *cfg
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	_, err := preParser.Parse()
	if err != nil {
		var e *flags.Error
		if errors.As(err, &e) && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, err)
			os.Exit(0)
		}
	}

	// Show the version and exit if the version flag was specified.
	if preCfg.ShowVersion {
		fmt.Printf("%s version %s (Go version %s %s/%s)\n", cfg.AppName,
			cfg.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	// Update the home directory if specified. Since the home directory is
	// updated, other file paths need to be updated to reflect the updated
	// home directory.
	if preCfg.HomeDir != defaultHomeDir {
		cfg.HomeDir = util.CleanAndExpandPath(preCfg.HomeDir)
		cfg.DataDir = rebase(preCfg.DataDir, defaultDataDir, cfg.HomeDir,
			defaultDataDirname)
		cfg.LogDir = rebase(preCfg.LogDir, defaultLogDir, cfg.HomeDir,
			defaultLogDirname)
		cfg.ConfigFile = rebase(preCfg.ConfigFile, defaultConfigFile,
			cfg.HomeDir, defaultConfigFilename)
		cfg.HTTPSCert = rebase(preCfg.HTTPSCert, defaultHTTPSCert,
			cfg.HomeDir, defaultHTTPSCertFilename)
		cfg.HTTPSKey = rebase(preCfg.HTTPSKey, defaultHTTPSKey,
			cfg.HomeDir, defaultHTTPSKeyFilename)
	} else {
		cfg.ConfigFile = preCfg.ConfigFile
	}

	// Create a default config file when one does not
	// exist and the user did not specify an override.
	if preCfg.ConfigFile == defaultConfigFile &&
		!util.FileExists(cfg.ConfigFile) {
		err := createDefaultConfigFile(cfg.ConfigFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating "+
				"a default config file: %v\n", err)
		}
	}

	// Clean the config file path so that we can load it
	cfg.ConfigFile = util.CleanAndExpandPath(cfg.ConfigFile)

	// Load additional settings from the config file
	var configFileError error
	parser := flags.NewParser(cfg, flags.Default)
	err = flags.NewIniParser(parser).ParseFile(cfg.ConfigFile)
	if err != nil {
		var e *os.PathError
		if !errors.As(err, &e) {
			return nil, fmt.Errorf("parse config file: %v", err)
		}
		// A config file may not exist. This will be logged
		// as a warning once the logger has been intialized.
		configFileError = err
	}

	// Parse command line options again to ensure they take
	// precedence. If unknown args are found, a warning will
	// be logged once the logger has been initialized.
	unknownArgs, err := parser.Parse()
	if err != nil {
		return nil, err
	}

	// Check for the show log level. This is used to list supported
	// subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", logger.SupportedSubsystems())
		os.Exit(0)
	}

	// Parse, validate, and set debug log level(s).
	err = logger.ParseAndSetDebugLevels(cfg.DebugLevel)
	if err != nil {
		return nil, err
	}

	// Clean and expand all file paths
	cfg.HomeDir = util.CleanAndExpandPath(cfg.HomeDir)
	cfg.DataDir = util.CleanAndExpandPath(cfg.DataDir)
	cfg.LogDir = util.CleanAndExpandPath(cfg.LogDir)
	cfg.HTTPSCert = util.CleanAndExpandPath(cfg.HTTPSCert)
	cfg.HTTPSKey = util.CleanAndExpandPath(cfg.HTTPSKey)

	// Create the app directory if it doesn't already exist
	err = os.MkdirAll(cfg.HomeDir, 0700)
	if err != nil {
		return nil, fmt.Errorf("failed to create app dir: %v", err)
	}

	// Initialize log rotation. After the log rotation has
	// been initialized, the log file receives the log lines.
	err = logger.InitLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))
	if err != nil {
		return nil, err
	}

	// Perform various validation and setup
	err = setupDBSettings(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.VoteRecordRetention < 0 {
		return nil, fmt.Errorf("invalid voterecordretention %v",
			cfg.VoteRecordRetention)
	}

	// Log any config warnings
	if configFileError != nil {
		log.Warnf("Failed to parse config file: %v", configFileError)
	}
	if len(unknownArgs) != 0 {
		args := strings.Join(unknownArgs, ", ")
		log.Warnf("Unknown arguments found: %v", args)
	}

	return cfg, nil
}

// rebase returns the path rooted in the provided home directory when the
// path has not been changed from its default.
func rebase(path, defaultPath, homeDir, filename string) string {
	if path == defaultPath {
		return filepath.Join(homeDir, filename)
	}
	return path
}

// setupDBSettings performs any required validation and setup for the database
// config settings.
func setupDBSettings(cfg *config) error {
	switch cfg.DBType {
	case dbTypeLevelDB:
		// Nothing to set up
		return nil
	case dbTypeMySQL:
		// Continue below
	default:
		return fmt.Errorf("invalid db type '%v'; must be %v or %v",
			cfg.DBType, dbTypeLevelDB, dbTypeMySQL)
	}

	// Validate the database host
	_, err := url.Parse(cfg.DBHost)
	if err != nil {
		return fmt.Errorf("invalid dbhost '%v': %v", cfg.DBHost, err)
	}

	// Pull the password from the env variable
	cfg.DBPass = os.Getenv(envDBPass)
	if cfg.DBPass == "" {
		return fmt.Errorf("dbpass not found; you must provide "+
			"the database password for the %v user in the env "+
			"variable %v", appName, envDBPass)
	}

	return nil
}

// createDefaultConfigFile copies the sample config file to the given
// destination path.
func createDefaultConfigFile(destPath string) error {
	// Create the destination directory if it does not exist.
	err := os.MkdirAll(filepath.Dir(destPath), 0700)
	if err != nil {
		return err
	}

	// Create config file at the provided path.
	dest, err := os.OpenFile(destPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer dest.Close()

	_, err = dest.WriteString(sampleConfig)
	return err
}
