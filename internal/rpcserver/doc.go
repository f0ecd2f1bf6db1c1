// Copyright (c) 2025-2026 The parity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package rpcserver implements the JSON-RPC access layer of the node.

Overview

The server accepts JSON-RPC 2.0 requests over three transports: plain HTTP
POST, websockets and a local socket.  Every connection is tracked as a
session carrying the capability set it was granted at creation, and each
method is registered with the capability a session must hold to invoke it.
Methods whose side effects require explicit approval are parked in a
confirmation queue until a confirming actor resolves them, and duplex
sessions may subscribe to chain event feeds which are pushed as uncorrelated
notification frames.

The systems the server interacts with, the chain engine, the transaction
pool, the key store and the peer-to-peer layer, are loosely coupled through
interfaces defined in this package so alternative backends can be swapped in.
*/
package rpcserver
