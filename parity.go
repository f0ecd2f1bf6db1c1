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
	"strings"
	"sync"

	flags "github.com/jessevdk/go-flags"
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/XertroV/parity/internal/devchain"
	"github.com/XertroV/parity/internal/rpcserver"
	"github.com/XertroV/parity/internal/version"
)

// parityMain is the real main function for parity.  It is necessary to work
// around the fact that deferred functions do not run when os.Exit() is
// called.
func parityMain() error {
	// Load configuration and parse command line.  This function also
	// initializes logging and configures it accordingly.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	cfg, _, err := loadConfig(appName)
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil
		}
		var suppressUsage errSuppressUsage
		if errors.As(err, &suppressUsage) {
			fmt.Fprintln(os.Stderr, err)
		} else {
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintf(os.Stderr, "Use %s -h to show usage\n", appName)
		}
		return err
	}
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	// Get a context that will be canceled when a shutdown signal has been
	// triggered either from an OS signal such as SIGINT (Ctrl+C) or from
	// another subsystem such as the RPC server.
	ctx := shutdownListener()
	defer parityLog.Info("Shutdown complete")

	// Show version at startup.
	parityLog.Infof("Version %s (Go version %s %s/%s)", version.String(),
		runtime.Version(), runtime.GOOS, runtime.GOARCH)
	parityLog.Infof("Home dir: %s", cfg.HomeDir)

	// Create the data directory.
	err = os.MkdirAll(cfg.DataDir, 0700)
	if err != nil {
		parityLog.Errorf("Unable to create data directory: %v", err)
		return err
	}

	// Open the database that archives resolved confirmation requests so
	// signer clients can check outcomes across restarts.
	archivePath := filepath.Join(cfg.DataDir, "signer")
	parityLog.Infof("Opening confirmation archive in '%s'", archivePath)
	archive, err := leveldb.OpenFile(archivePath, nil)
	if err != nil {
		parityLog.Errorf("Unable to open confirmation archive: %v", err)
		return err
	}
	defer func() {
		parityLog.Infof("Gracefully shutting down the confirmation archive...")
		if err := archive.Close(); err != nil {
			parityLog.Errorf("Problem shutting down the confirmation "+
				"archive: %v", err)
		}
	}()

	// Return now if a shutdown signal was triggered while setting up the
	// archive.
	if shutdownRequested(ctx) {
		return nil
	}

	// Create the development chain engine that backs the RPC services.
	engine := devchain.New(&devchain.Config{
		ChainID:      cfg.ChainID,
		SealInterval: cfg.BlockInterval,
	})

	// Setup the listeners the RPC server will serve on.
	var listeners []net.Listener
	if !cfg.DisableRPC {
		listeners, err = setupRPCListeners(cfg)
		if err != nil {
			parityLog.Errorf("Unable to setup RPC listeners: %v", err)
			return err
		}
		if len(listeners) == 0 {
			err := errors.New("no usable RPC listen addresses")
			parityLog.Errorf("%v", err)
			return err
		}
	}
	var ipcListener net.Listener
	if !cfg.NoIPC {
		ipcListener, err = setupIPCListener(cfg.IPCPath)
		if err != nil {
			parityLog.Errorf("Unable to listen on IPC socket %s: %v",
				cfg.IPCPath, err)
			return err
		}
		defer os.Remove(cfg.IPCPath)
	}
	if len(listeners) == 0 && ipcListener == nil {
		err := errors.New("RPC is disabled on all transports")
		parityLog.Errorf("%v", err)
		return err
	}

	clientVersion := fmt.Sprintf("Parity//v%s/%s-%s/%s", version.String(),
		runtime.GOOS, runtime.GOARCH, runtime.Version())
	rpcServer, err := rpcserver.New(&rpcserver.Config{
		Listeners:            listeners,
		IPCListener:          ipcListener,
		ClientVersion:        clientVersion,
		AllowedAPIs:          cfg.RPCAPIs,
		Chain:                engine,
		TxPool:               engine,
		AccountManager:       engine,
		NetManager:           engine,
		ConfirmArchive:       archive,
		ConfirmTTL:           cfg.ConfirmTTL,
		RPCCallTimeout:       cfg.RPCCallTimeout,
		RPCUser:              cfg.RPCUser,
		RPCPass:              cfg.RPCPass,
		RPCLimitUser:         cfg.RPCLimitUser,
		RPCLimitPass:         cfg.RPCLimitPass,
		RPCMaxClients:        cfg.RPCMaxClients,
		RPCMaxWebsockets:     cfg.RPCMaxWebsockets,
		RPCMaxConcurrentReqs: cfg.RPCMaxConcurrentReqs,
	})
	if err != nil {
		parityLog.Errorf("Unable to create RPC server: %v", err)
		return err
	}
	engine.SetNotifier(&rpcChainNotifier{server: rpcServer})

	// Signal process shutdown when the RPC server requests it.
	go func() {
		<-rpcServer.RequestedProcessShutdown()
		shutdownRequestChannel <- struct{}{}
	}()

	// Run the chain engine and the RPC server until a shutdown is
	// requested.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		engine.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		rpcServer.Run(ctx)
	}()

	// Wait until the interrupt signal is received from an OS signal or
	// shutdown is requested through one of the subsystems such as the RPC
	// server.
	<-ctx.Done()
	parityLog.Infof("Gracefully shutting down the RPC server...")
	wg.Wait()
	return nil
}

func main() {
	// Work around defer not working after os.Exit()
	if err := parityMain(); err != nil {
		os.Exit(1)
	}
}
