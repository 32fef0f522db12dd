// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint error handler shared by the
// gymnet binaries. It is the one place that writes to stderr before
// (or instead of) the structured logger.
package process
