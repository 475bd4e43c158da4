// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

/*
Package issues provides issue key validation with a durable cache and a
debounced type-ahead search.

Validation results are cached in BadgerDB so repeated lookups of the same
key (the common case: one mapping validated on every batch build) hit the
local store instead of the remote API. Positive results live for 24 hours,
negative results for 5 minutes; saving a mapping with a different key for
a project invalidates the old entry immediately.

The searcher coalesces keystroke-speed queries: a search dispatches only
after 300ms without a newer query, and a result is delivered only if no
newer query arrived while the remote call was in flight. Superseded calls
return ErrSuperseded so callers can silently drop them.
*/
package issues
