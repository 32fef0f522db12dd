// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the gymnet binaries.
//
// [GitCommit], [BuildTime], and [Version] may be injected with
// -ldflags -X. When they are not, the VCS stamp that the Go toolchain
// records in the binary is used instead, so plain `go build` output
// still names its commit.
package version
