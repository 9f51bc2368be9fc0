// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the SQLite connection pool underneath
// the annotation store. It wraps zombiezen.com/go/sqlite with the
// pragmas every Boxline database runs with: WAL journaling, NORMAL
// synchronous, a busy timeout for write contention, memory-mapped
// reads, and in-memory temp storage.
//
// The pool is built on sqlitex.Pool. Callers [Pool.Take] a
// connection, perform work, and [Pool.Put] it back. The pool is safe
// for concurrent use; individual connections are not, so each
// goroutine holds its own connection for the duration of its work.
//
// Schema creation and any database-specific setup go through
// [Config.OnConnect], which runs once per connection after the
// standard pragmas.
package sqlitepool
