// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads gymnet environment configuration.
//
// Configuration comes from a single file named either by the
// GYMNET_CONFIG environment variable (via [Load]) or explicitly (via
// [LoadFile]). YAML is the native format; files ending in .json or
// .jsonc are stripped of comments first and decoded the same way.
// Values not present in the file keep their [Default].
//
// ${HOME}, ${SCENARIO_DIR}, and ${VAR:-default} patterns are expanded
// in path fields after loading. Relative paths are anchored at the
// config file's directory.
//
// [Config.Validate] reports every problem at once as a joined list of
// [*ValidationError], including a scenario directory that is missing
// or lacks omnetpp.ini.
//
// This package depends on no other gymnet packages.
package config
