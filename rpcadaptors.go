// Copyright (c) 2025-2026 The parity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"crypto/elliptic"
	"crypto/tls"
	"net"
	"os"
	"time"

	"github.com/decred/dcrd/certgen"

	"github.com/XertroV/parity/internal/devchain"
	"github.com/XertroV/parity/internal/rpcserver"
	"github.com/XertroV/parity/rpc/jsonrpc/types"
)

// rpcChainNotifier forwards development chain events to the RPC server so it
// can relay them to websocket and IPC subscribers.
type rpcChainNotifier struct {
	server *rpcserver.Server
}

// Ensure rpcChainNotifier implements the devchain.Notifier interface.
var _ devchain.Notifier = (*rpcChainNotifier)(nil)

// NotifyBlockConnected notifies subscribers that a block was sealed along
// with the logs it produced.
//
// This function is safe for concurrent access and is part of the
// devchain.Notifier interface implementation.
func (n *rpcChainNotifier) NotifyBlockConnected(block *types.Block, logs []types.Log) {
	n.server.NotifyBlockConnected(block, logs)
}

// NotifyNewTransaction notifies subscribers that a transaction entered the
// pending pool.
//
// This function is safe for concurrent access and is part of the
// devchain.Notifier interface implementation.
func (n *rpcChainNotifier) NotifyNewTransaction(txHash string) {
	n.server.NotifyNewTransaction(txHash)
}

// NotifySyncState notifies subscribers that the sync status changed.
//
// This function is safe for concurrent access and is part of the
// devchain.Notifier interface implementation.
func (n *rpcChainNotifier) NotifySyncState(status *types.SyncStatus) {
	n.server.NotifySyncState(status)
}

// fileExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// genCertPair generates a key/cert pair to the paths provided.
func genCertPair(certFile, keyFile string, altDNSNames []string) error {
	parityLog.Infof("Generating TLS certificates...")

	org := "parity autogenerated cert"
	validUntil := time.Now().Add(10 * 365 * 24 * time.Hour)
	cert, key, err := certgen.NewTLSCertPair(elliptic.P521(), org,
		validUntil, altDNSNames)
	if err != nil {
		return err
	}

	// Write cert and key files.
	if err = os.WriteFile(certFile, cert, 0644); err != nil {
		return err
	}
	if err = os.WriteFile(keyFile, key, 0600); err != nil {
		os.Remove(certFile)
		return err
	}

	parityLog.Infof("Done generating TLS certificates")
	return nil
}

// setupRPCListeners returns a slice of listeners that are configured for use
// with the RPC server depending on the configuration settings for listen
// addresses and TLS.
func setupRPCListeners(cfg *config) ([]net.Listener, error) {
	// Setup TLS if not disabled.
	listenFunc := net.Listen
	if !cfg.DisableTLS {
		// Generate the TLS cert and key file if both don't already exist.
		if !fileExists(cfg.RPCKey) && !fileExists(cfg.RPCCert) {
			err := genCertPair(cfg.RPCCert, cfg.RPCKey, cfg.AltDNSNames)
			if err != nil {
				return nil, err
			}
		}
		keypair, err := tls.LoadX509KeyPair(cfg.RPCCert, cfg.RPCKey)
		if err != nil {
			return nil, err
		}

		tlsConfig := tls.Config{
			Certificates: []tls.Certificate{keypair},
			MinVersion:   tls.VersionTLS12,
		}

		// Change the standard net.Listen function to the tls one.
		listenFunc = func(net string, laddr string) (net.Listener, error) {
			return tls.Listen(net, laddr, &tlsConfig)
		}
	}

	listeners := make([]net.Listener, 0, len(cfg.RPCListeners))
	for _, addr := range cfg.RPCListeners {
		listener, err := listenFunc("tcp", addr)
		if err != nil {
			parityLog.Warnf("Can't listen on %s: %v", addr, err)
			continue
		}
		listeners = append(listeners, listener)
	}

	return listeners, nil
}

// setupIPCListener returns a listener on the local IPC socket path after
// removing any stale socket left behind by a previous run.
func setupIPCListener(ipcPath string) (net.Listener, error) {
	if fileExists(ipcPath) {
		if err := os.Remove(ipcPath); err != nil {
			return nil, err
		}
	}
	listener, err := net.Listen("unix", ipcPath)
	if err != nil {
		return nil, err
	}
	return listener, nil
}
