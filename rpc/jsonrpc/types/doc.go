// Copyright (c) 2025-2026 The parity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package types implements concrete types for marshalling to and from the
parity JSON-RPC commands, return values, and notifications.

When communicating via the JSON-RPC protocol, all requests and responses must
be marshalled to and from the wire in the appropriate format.  This package
provides data structures and primitives that are registered with dcrjson to
ease this process.

Method names follow the Ethereum JSON-RPC convention of a namespace prefix
followed by a verb (eth_getBalance, net_version, signer_confirmRequest) with
positional parameters.  Object-shaped parameters such as transaction requests
and log filters are expressed as struct fields within the relevant command.

Unmarshalling a received Request object is a two step process:
 1. Unmarshal the raw bytes into a dcrjson.Request struct instance via
    json.Unmarshal
 2. Use dcrjson.ParseParams on the Method and Params fields of the
    unmarshalled Request to create a concrete command or notification
    instance with all struct fields set accordingly.

This approach is used since it provides the caller with access to the
additional fields in the request that are not part of the command such as the
ID.
*/
package types
