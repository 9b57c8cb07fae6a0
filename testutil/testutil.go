// Package testutil provides shared test doubles for exercising hub,
// reconcile, and transport code without a live policy bundle, tracer, or
// structured-logging backend, following coreengine/testutil's
// mock-per-collaborator style (MockLogger, MockPersistence, MockLLMProvider)
// restated against this module's own collaborator interfaces
// (corelog.Logger, security.AuthorizationService) instead of the teacher's
// agents package.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/halcyon-automation/meridian/corelog"
	"github.com/halcyon-automation/meridian/meta"
	"github.com/halcyon-automation/meridian/security"
)

// =============================================================================
// RECORDING LOGGER
// =============================================================================

// LogEntry captures a single call into RecordingLogger for assertion.
type LogEntry struct {
	Level string // "debug", "info", "warn", "error"
	Msg   string
	Err   error
	KV    []any
}

// RecordingLogger implements corelog.Logger and keeps every call for
// inspection, mirroring coreengine/testutil.MockLogger's GetLogs/HasLog
// shape.
type RecordingLogger struct {
	mu      sync.Mutex
	entries []LogEntry
	bound   []any
}

var _ corelog.Logger = (*RecordingLogger)(nil)

// NewRecordingLogger builds an empty RecordingLogger.
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{}
}

func (l *RecordingLogger) append(level, msg string, err error, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	combined := append(append([]any{}, l.bound...), kv...)
	l.entries = append(l.entries, LogEntry{Level: level, Msg: msg, Err: err, KV: combined})
}

func (l *RecordingLogger) Debug(msg string, kv ...any)        { l.append("debug", msg, nil, kv) }
func (l *RecordingLogger) Info(msg string, kv ...any)         { l.append("info", msg, nil, kv) }
func (l *RecordingLogger) Warn(msg string, kv ...any)         { l.append("warn", msg, nil, kv) }
func (l *RecordingLogger) Error(err error, msg string, kv ...any) { l.append("error", msg, err, kv) }

// Bind returns a child logger whose kv is permanently attached to every
// subsequent entry. The child starts with the parent's entries so far;
// entries recorded afterwards on either logger are not seen by the other.
func (l *RecordingLogger) Bind(kv ...any) corelog.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &RecordingLogger{entries: l.entries, bound: append(append([]any{}, l.bound...), kv...)}
}

// Entries returns a copy of every captured entry.
func (l *RecordingLogger) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// HasMessage reports whether any entry at level carries msg.
func (l *RecordingLogger) HasMessage(level, msg string) bool {
	for _, e := range l.Entries() {
		if e.Level == level && e.Msg == msg {
			return true
		}
	}
	return false
}

// Reset clears every captured entry.
func (l *RecordingLogger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// =============================================================================
// MOCK AUTHORIZATION
// =============================================================================

// MockAuthorization implements security.AuthorizationService with a
// configurable per-permission allow/deny table, defaulting to deny (same
// fail-closed default the real defaultDenyService uses).
type MockAuthorization struct {
	mu      sync.Mutex
	allow   map[security.Permission]bool
	calls   []AuthCall
	AllowAll bool
}

// AuthCall records one CheckPermission invocation for assertion.
type AuthCall struct {
	Principal security.Principal
	Perm      security.Permission
	Address   meta.Address
}

var _ security.AuthorizationService = (*MockAuthorization)(nil)

// NewMockAuthorization builds a deny-by-default MockAuthorization.
func NewMockAuthorization() *MockAuthorization {
	return &MockAuthorization{allow: make(map[security.Permission]bool)}
}

// Allow marks perm as granted for every principal and address.
func (m *MockAuthorization) Allow(perm security.Permission) *MockAuthorization {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allow[perm] = true
	return m
}

// CheckPermission implements security.AuthorizationService.
func (m *MockAuthorization) CheckPermission(_ context.Context, principal security.Principal, perm security.Permission, addr meta.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, AuthCall{Principal: principal, Perm: perm, Address: addr})
	if m.AllowAll || m.allow[perm] {
		return nil
	}
	return fmt.Errorf("%w: principal=%s permission=%s address=%s", security.ErrDenied, principal.ID, perm, addr)
}

// Calls returns a copy of every CheckPermission invocation.
func (m *MockAuthorization) Calls() []AuthCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AuthCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// =============================================================================
// FIXTURE HELPERS
// =============================================================================

// Principal builds a security.Principal with the given roles, for tests
// that don't care about a realistic ID.
func Principal(id string, roles ...string) security.Principal {
	return security.Principal{ID: id, Roles: roles}
}

// MustAddress parses addr and panics on failure, for table-driven tests
// that already know the literal is well-formed.
func MustAddress(addr string) meta.Address {
	a, err := meta.ParseAddress(addr)
	if err != nil {
		panic(fmt.Sprintf("testutil.MustAddress: %q: %v", addr, err))
	}
	return a
}
