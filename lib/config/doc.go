// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads chatsync client configuration.
//
// Configuration is loaded from a single file named by either the
// CHATSYNC_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There is no file search and no fallback.
//
// Files ending in .json or .jsonc are JSON with comments and trailing
// commas allowed; everything else is YAML. Both go through the same
// struct tags.
//
// The file may contain environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches.
//
// After loading, ${VAR} and ${VAR:-default} patterns are expanded in
// the account JID, store path, backend URL and timezone.
package config
