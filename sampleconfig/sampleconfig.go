// Copyright (c) 2025-2026 The parity developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package sampleconfig provides a single constant that houses the contents of
// the sample configuration file for parity.  This is provided for tools that
// want to dynamically generate the config file without requiring it to be on
// disk at a specific location.
package sampleconfig

import (
	_ "embed"
)

// sampleParityConf is a string containing the commented example config for
// parity.
//
//go:embed sample-parity.conf
var sampleParityConf string

// Parity returns a string containing the commented example config for parity.
func Parity() string {
	return sampleParityConf
}
