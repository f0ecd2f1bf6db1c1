// Copyright (c) 2025-2026 The parity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	flags "github.com/jessevdk/go-flags"

	"github.com/XertroV/parity/internal/rpcserver"
	"github.com/XertroV/parity/internal/version"
)

const (
	defaultConfigFilename    = "parity.conf"
	defaultDataDirname       = "data"
	defaultLogLevel          = "info"
	defaultLogDirname        = "logs"
	defaultLogFilename       = "parity.log"
	defaultIPCFilename       = "parity.ipc"
	defaultChainID           = 17
	defaultBlockInterval     = time.Second
	defaultConfirmTTL        = 5 * time.Minute
	defaultRPCCallTimeout    = 30 * time.Second
	defaultMaxRPCClients     = 10
	defaultMaxRPCWebsockets  = 25
	defaultMaxRPCConcurrency = 20
)

var (
	defaultHomeDir    = appDataDir("parity")
	defaultConfigFile = filepath.Join(defaultHomeDir, defaultConfigFilename)
	defaultDataDir    = filepath.Join(defaultHomeDir, defaultDataDirname)
	defaultLogDir     = filepath.Join(defaultHomeDir, defaultLogDirname)
	defaultRPCCert    = filepath.Join(defaultHomeDir, "rpc.cert")
	defaultRPCKey     = filepath.Join(defaultHomeDir, "rpc.key")
	defaultIPCPath    = filepath.Join(defaultHomeDir, defaultIPCFilename)
)

// config defines the configuration options for parity.
//
// See loadConfig for details on the configuration load process.
type config struct {
	HomeDir              string        `short:"A" long:"appdata" description:"Path to application home directory"`
	ShowVersion          bool          `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile           string        `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir              string        `short:"b" long:"datadir" description:"Directory to store data"`
	LogDir               string        `long:"logdir" description:"Directory to log output"`
	NoFileLogging        bool          `long:"nofilelogging" description:"Disable file logging"`
	DebugLevel           string        `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`
	ChainID              uint64        `long:"chainid" description:"Chain identifier reported by net_version"`
	BlockInterval        time.Duration `long:"blockinterval" description:"Interval between sealed development chain blocks"`
	DisableRPC           bool          `long:"norpc" description:"Disable the HTTP and websocket RPC servers"`
	DisableTLS           bool          `long:"notls" description:"Disable TLS for the RPC servers"`
	RPCListeners         []string      `long:"rpclisten" description:"Add an interface/port to listen for RPC connections (default port: 8545)"`
	RPCUser              string        `short:"u" long:"rpcuser" description:"Username for RPC connections"`
	RPCPass              string        `short:"P" long:"rpcpass" default-mask:"-" description:"Password for RPC connections"`
	RPCLimitUser         string        `long:"rpclimituser" description:"Username for limited RPC connections"`
	RPCLimitPass         string        `long:"rpclimitpass" default-mask:"-" description:"Password for limited RPC connections"`
	RPCCert              string        `long:"rpccert" description:"File containing the certificate file"`
	RPCKey               string        `long:"rpckey" description:"File containing the certificate key"`
	RPCAPIs              []string      `long:"rpcapi" description:"API namespace to expose over HTTP and websocket transports; may be specified multiple times (default: all namespaces permitted on the transport)"`
	AltDNSNames          []string      `long:"altdnsnames" description:"Specify additional dns names to use when generating the rpc server certificate" env:"PARITY_ALT_DNSNAMES" env-delim:","`
	NoIPC                bool          `long:"noipc" description:"Disable the IPC RPC server"`
	IPCPath              string        `long:"ipcpath" description:"Path of the local socket the IPC RPC server listens on"`
	RPCMaxClients        int           `long:"rpcmaxclients" description:"Max number of RPC clients for standard connections"`
	RPCMaxWebsockets     int           `long:"rpcmaxwebsockets" description:"Max number of RPC websocket connections"`
	RPCMaxConcurrentReqs int           `long:"rpcmaxconcurrentreqs" description:"Max number of concurrent RPC requests that may be processed concurrently"`
	RPCCallTimeout       time.Duration `long:"rpccalltimeout" description:"Deadline applied to the execution of each individual RPC call"`
	ConfirmTTL           time.Duration `long:"confirmttl" description:"Time to live for queued confirmation requests"`
}

// errSuppressUsage signifies that an error that happened during the initial
// configuration phase should suppress the usage output since it was not
// caused by the user.
type errSuppressUsage string

// Error implements the error interface.
func (e errSuppressUsage) Error() string {
	return string(e)
}

// appDataDir returns an operating system specific directory to be used for
// storing application data for the given application name.
func appDataDir(appName string) string {
	// The caller really should provide some name, but be paranoid.
	if appName == "" || appName == "." {
		return "."
	}

	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("LOCALAPPDATA")
		if appData == "" {
			appData = os.Getenv("APPDATA")
		}
		if appData != "" {
			capName := strings.ToUpper(appName[:1]) + appName[1:]
			return filepath.Join(appData, capName)
		}

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err == nil && homeDir != "" {
			capName := strings.ToUpper(appName[:1]) + appName[1:]
			return filepath.Join(homeDir, "Library", "Application Support",
				capName)
		}

	default:
		homeDir, err := os.UserHomeDir()
		if err == nil && homeDir != "" {
			return filepath.Join(homeDir, "."+appName)
		}
	}

	// Fall back to the current directory if all else fails.
	return "."
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace", "debug", "info", "warn", "error", "critical":
		return true
	}
	return false
}

// supportedSubsystems returns a sorted slice of the supported subsystems for
// logging purposes.
func supportedSubsystems() []string {
	// Convert the subsystemLoggers map keys to a slice.
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}

	// Sort the subsystems for stable display.
	sort.Strings(subsystems)
	return subsystems
}

// parseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly.  An appropriate error is returned if anything is
// invalid.
func parseAndSetDebugLevels(debugLevel string) error {
	// When the specified string doesn't have any delimiters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		// Validate debug log level.
		if !validLogLevel(debugLevel) {
			return fmt.Errorf("the specified debug level [%v] is invalid",
				debugLevel)
		}

		// Change the logging level for all subsystems.
		setLogLevels(debugLevel)

		return nil
	}

	// Split the specified string into subsystem/level pairs while detecting
	// issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			return fmt.Errorf("the specified debug level contains an invalid "+
				"subsystem/level pair [%v]", logLevelPair)
		}

		// Extract the specified subsystem and log level.
		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		// Validate subsystem.
		if _, exists := subsystemLoggers[subsysID]; !exists {
			return fmt.Errorf("the specified subsystem [%v] is invalid -- "+
				"supported subsystems %v", subsysID, supportedSubsystems())
		}

		// Validate log level.
		if !validLogLevel(logLevel) {
			return fmt.Errorf("the specified debug level [%v] is invalid",
				logLevel)
		}

		setLogLevel(subsysID, logLevel)
	}

	return nil
}

// normalizeAddresses returns a new slice with all the passed addresses
// normalized with the given default port and all duplicates removed.
func normalizeAddresses(addrs []string, defaultPort string) []string {
	result := make([]string, 0, len(addrs))
	seen := make(map[string]struct{})
	for _, addr := range addrs {
		// Add the default port when one was not specified.
		_, _, err := net.SplitHostPort(addr)
		if err != nil {
			addr = net.JoinHostPort(addr, defaultPort)
		}
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		result = append(result, addr)
	}
	return result
}

// newConfigParser returns a new command line flags parser.
func newConfigParser(cfg *config, options flags.Options) *flags.Parser {
	return flags.NewParser(cfg, options)
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
// The above results in parity functioning properly without any config
// settings while still allowing the user to override settings with config
// files and command line options.  Command line options always take
// precedence.
func loadConfig(appName string) (*config, []string, error) {
	// Default config.
	cfg := config{
		HomeDir:              defaultHomeDir,
		ConfigFile:           defaultConfigFile,
		DataDir:              defaultDataDir,
		LogDir:               defaultLogDir,
		DebugLevel:           defaultLogLevel,
		ChainID:              defaultChainID,
		BlockInterval:        defaultBlockInterval,
		RPCCert:              defaultRPCCert,
		RPCKey:               defaultRPCKey,
		IPCPath:              defaultIPCPath,
		RPCMaxClients:        defaultMaxRPCClients,
		RPCMaxWebsockets:     defaultMaxRPCWebsockets,
		RPCMaxConcurrentReqs: defaultMaxRPCConcurrency,
		RPCCallTimeout:       defaultRPCCallTimeout,
		ConfirmTTL:           defaultConfirmTTL,
	}

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.  Any errors aside from the
	// help message error can be ignored here since they will be caught by
	// the final parse below.
	preCfg := cfg
	preParser := newConfigParser(&preCfg, flags.HelpFlag)
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
		fmt.Printf("%s version %s (Go version %s %s/%s)\n", appName,
			version.String(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	// Update the home directory if specified.  Since the home directory is
	// updated, other variables need to be updated to reflect the new
	// location.
	if preCfg.HomeDir != "" {
		cfg.HomeDir, _ = filepath.Abs(cleanAndExpandPath(preCfg.HomeDir))

		if preCfg.ConfigFile == defaultConfigFile {
			preCfg.ConfigFile = filepath.Join(cfg.HomeDir, defaultConfigFilename)
		} else {
			preCfg.ConfigFile = cleanAndExpandPath(preCfg.ConfigFile)
		}
		cfg.ConfigFile = preCfg.ConfigFile
		if preCfg.DataDir == defaultDataDir {
			cfg.DataDir = filepath.Join(cfg.HomeDir, defaultDataDirname)
		}
		if preCfg.RPCKey == defaultRPCKey {
			cfg.RPCKey = filepath.Join(cfg.HomeDir, "rpc.key")
		}
		if preCfg.RPCCert == defaultRPCCert {
			cfg.RPCCert = filepath.Join(cfg.HomeDir, "rpc.cert")
		}
		if preCfg.LogDir == defaultLogDir {
			cfg.LogDir = filepath.Join(cfg.HomeDir, defaultLogDirname)
		}
		if preCfg.IPCPath == defaultIPCPath {
			cfg.IPCPath = filepath.Join(cfg.HomeDir, defaultIPCFilename)
		}
	}

	// Load additional config from file.
	var configFileError error
	parser := newConfigParser(&cfg, flags.Default)
	err = flags.NewIniParser(parser).ParseFile(cfg.ConfigFile)
	if err != nil {
		var e *os.PathError
		if !errors.As(err, &e) {
			return nil, nil, errSuppressUsage(fmt.Sprintf("error parsing "+
				"config file: %v", err))
		}
		// A missing config file at the default location is fine, but one
		// that was explicitly specified must exist.
		if cfg.ConfigFile != filepath.Join(cfg.HomeDir, defaultConfigFilename) {
			return nil, nil, fmt.Errorf("config file %q does not exist",
				cfg.ConfigFile)
		}
		configFileError = err
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.Parse()
	if err != nil {
		return nil, nil, err
	}

	// Create the home directory if it doesn't already exist.
	err = os.MkdirAll(cfg.HomeDir, 0700)
	if err != nil {
		str := "failed to create home directory: %v"
		return nil, nil, errSuppressUsage(fmt.Sprintf(str, err))
	}

	// Append the chain identifier to the data and log directories so they
	// are namespaced per development chain instance.
	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)
	cfg.DataDir = filepath.Join(cfg.DataDir, fmt.Sprintf("chain-%d", cfg.ChainID))
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	cfg.LogDir = filepath.Join(cfg.LogDir, fmt.Sprintf("chain-%d", cfg.ChainID))

	// Initialize log rotation.  After log rotation has been initialized,
	// the logger variables may be used.
	if !cfg.NoFileLogging {
		initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))
	}

	// Parse, validate, and set debug log level(s).
	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return nil, nil, fmt.Errorf("%v -- parse and set debug levels: %w",
			appName, err)
	}

	// The block interval must be positive since the development chain seals
	// on a ticker.
	if cfg.BlockInterval <= 0 {
		return nil, nil, fmt.Errorf("blockinterval must be positive -- "+
			"parsed [%v]", cfg.BlockInterval)
	}

	// The RPC server is disabled when no credentials are provided for
	// either user class.
	if cfg.RPCUser == "" && cfg.RPCLimitUser == "" {
		cfg.DisableRPC = true
	}
	if cfg.DisableRPC {
		parityLog.Infof("HTTP and websocket RPC services disabled")
	}

	// The limited and admin RPC users must not share a name or password.
	if cfg.RPCUser != "" && cfg.RPCUser == cfg.RPCLimitUser {
		str := "--rpcuser and --rpclimituser must not specify the same username"
		return nil, nil, errors.New(str)
	}
	if cfg.RPCPass != "" && cfg.RPCPass == cfg.RPCLimitPass {
		str := "--rpcpass and --rpclimitpass must not specify the same password"
		return nil, nil, errors.New(str)
	}

	// Default RPC to listen on localhost only.
	if !cfg.DisableRPC && len(cfg.RPCListeners) == 0 {
		addrs, err := net.LookupHost("localhost")
		if err != nil {
			return nil, nil, err
		}
		cfg.RPCListeners = make([]string, 0, len(addrs))
		for _, addr := range addrs {
			addr = net.JoinHostPort(addr, "8545")
			cfg.RPCListeners = append(cfg.RPCListeners, addr)
		}
	}
	cfg.RPCListeners = normalizeAddresses(cfg.RPCListeners, "8545")

	// Only allow TLS to be disabled when the RPC server is bound to
	// localhost addresses.
	if !cfg.DisableRPC && cfg.DisableTLS {
		allowedTLSListeners := map[string]struct{}{
			"localhost": {},
			"127.0.0.1": {},
			"::1":       {},
		}
		for _, addr := range cfg.RPCListeners {
			host, _, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, nil, fmt.Errorf("RPC listen interface %q is "+
					"invalid: %w", addr, err)
			}
			if _, ok := allowedTLSListeners[host]; !ok {
				return nil, nil, fmt.Errorf("RPC listen interface %q may "+
					"not be used when TLS is disabled", addr)
			}
		}
	}

	// Validate the requested API namespaces against the namespaces the RPC
	// server knows how to serve.
	supported := make(map[string]struct{})
	for _, api := range rpcserver.SupportedAPIs() {
		supported[api] = struct{}{}
	}
	for _, api := range cfg.RPCAPIs {
		if _, ok := supported[api]; !ok {
			return nil, nil, fmt.Errorf("unsupported rpcapi namespace %q -- "+
				"supported namespaces %v", api, rpcserver.SupportedAPIs())
		}
	}

	cfg.RPCCert = cleanAndExpandPath(cfg.RPCCert)
	cfg.RPCKey = cleanAndExpandPath(cfg.RPCKey)
	cfg.IPCPath = cleanAndExpandPath(cfg.IPCPath)

	// Warn about missing config file only after all other configuration is
	// done.  This prevents the warning on help messages and invalid
	// options.  Note this should go directly before the return.
	if configFileError != nil {
		parityLog.Warnf("%v", configFileError)
	}

	return &cfg, remainingArgs, nil
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Nothing to do when no path is given.
	if path == "" {
		return path
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows cmd.exe-style
	// %VARIABLE%, but the variables can still be expanded via POSIX-style
	// $VARIABLE.
	path = os.ExpandEnv(path)

	if !strings.HasPrefix(path, "~") {
		return filepath.Clean(path)
	}

	// Expand initial ~ to the current user's home directory, or ~otheruser
	// to otheruser's home directory.  For path "~", "~/", or "~\",
	// provide homeDir.  For "~otheruser", "~otheruser/", or "~otheruser\\",
	// treat it as relative to the home directory's parent directory.
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return filepath.Clean(path)
	}
	path = path[1:]
	if path == "" || path == "/" || path == "\\" {
		return homeDir
	}
	if path[0] == '/' || path[0] == '\\' {
		return filepath.Join(homeDir, path[1:])
	}
	return filepath.Join(filepath.Dir(homeDir), path)
}
