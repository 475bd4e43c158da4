// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

// Package sources produces raw work items from local evidence of work:
// agent session logs and git commit history. Importers are idempotent;
// each derives a stable source id from its input so re-scans refresh
// existing rows instead of duplicating them.
package sources
