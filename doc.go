// Copyright (c) 2025-2026 The parity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
parity is a development chain node with a JSON-RPC access layer written in Go.

The default options are sane for most users.  This means parity will work 'out
of the box' for most users.  However, there are also a wide variety of flags
that can be used to control it.

The following section provides a usage overview which enumerates the flags.  An
interesting point to note is that the long form of all of these options
(except -C) can be specified in a configuration file that is automatically
parsed when parity starts up.  By default, the configuration file is located at
~/.parity/parity.conf on POSIX-style operating systems and
%LOCALAPPDATA%\Parity\parity.conf on Windows.  The -C (--configfile) flag, as
shown below, can be used to override this location.

Usage:

	parity [OPTIONS]

Application Options:

	-V, --version                Display version information and exit
	-A, --appdata=               Path to application home directory
	-C, --configfile=            Path to configuration file
	-b, --datadir=               Directory to store data
	    --logdir=                Directory to log output
	    --nofilelogging          Disable file logging
	-d, --debuglevel=            Logging level {trace, debug, info, warn,
	                             error, critical}
	    --chainid=               Chain identifier reported by net_version
	    --blockinterval=         Interval between sealed development chain
	                             blocks
	    --norpc                  Disable the HTTP and websocket RPC servers
	    --notls                  Disable TLS for the RPC servers
	    --rpclisten=             Add an interface/port to listen for RPC
	                             connections (default port: 8545)
	-u, --rpcuser=               Username for RPC connections
	-P, --rpcpass=               Password for RPC connections
	    --rpclimituser=          Username for limited RPC connections
	    --rpclimitpass=          Password for limited RPC connections
	    --rpccert=               File containing the certificate file
	    --rpckey=                File containing the certificate key
	    --rpcapi=                API namespace to expose over HTTP and
	                             websocket transports; may be specified
	                             multiple times
	    --altdnsnames=           Specify additional dns names to use when
	                             generating the rpc server certificate
	    --noipc                  Disable the IPC RPC server
	    --ipcpath=               Path of the local socket the IPC RPC server
	                             listens on
	    --rpcmaxclients=         Max number of RPC clients for standard
	                             connections
	    --rpcmaxwebsockets=      Max number of RPC websocket connections
	    --rpcmaxconcurrentreqs=  Max number of concurrent RPC requests that
	                             may be processed concurrently
	    --rpccalltimeout=        Deadline applied to the execution of each
	                             individual RPC call
	    --confirmttl=            Time to live for queued confirmation requests

Help Options:

	-h, --help                   Show this help message
*/
package main
