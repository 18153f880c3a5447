// Funnel - Nostr Video Analytics Pipeline
// Copyright 2026 Funnel Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/funnel-video/funnel

package clickhouse

import "fmt"

// ErrorKind classifies store failures so callers can decide between
// retrying, aborting a flush, or failing startup.
type ErrorKind int

const (
	// KindConnection covers dial, ping and transport failures.
	KindConnection ErrorKind = iota

	// KindQuery covers failed statements and scans.
	KindQuery

	// KindSerialization covers row encoding failures.
	KindSerialization

	// KindConfig covers invalid connection configuration.
	KindConfig
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindQuery:
		return "query"
	case KindSerialization:
		return "serialization"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Error is a classified ClickHouse failure. Op names the operation
// that failed, e.g. "insert_events".
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("clickhouse %s: %s failed", e.Kind, e.Op)
	}
	return fmt.Sprintf("clickhouse %s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func connErr(op string, err error) *Error {
	return &Error{Kind: KindConnection, Op: op, Err: err}
}

func queryErr(op string, err error) *Error {
	return &Error{Kind: KindQuery, Op: op, Err: err}
}

func configErr(op string, err error) *Error {
	return &Error{Kind: KindConfig, Op: op, Err: err}
}
