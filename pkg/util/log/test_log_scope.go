// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"bytes"
	"strings"
	"sync"
)

// tShim is the part of testing.TB used by TestLogScope.
type tShim interface {
	Helper()
	Failed() bool
	Logf(format string, args ...interface{})
}

// TestLogScope represents the lifetime of a logging output redirection for a
// test. Log lines are buffered and only shown if the test fails.
type TestLogScope struct {
	mu struct {
		sync.Mutex
		buf bytes.Buffer
	}
	restore func()
}

// Scope creates a TestLogScope which corresponds to the lifetime of a
// logging directory. The logging directory is cleaned up upon calling Close.
//
//	defer log.Scope(t).Close(t)
func Scope(t tShim) *TestLogScope {
	t.Helper()
	s := &TestLogScope{}
	s.restore = SetOutput(scopeWriter{s})
	return s
}

// GetLoggedOutput returns everything that was logged within the scope so far.
func (s *TestLogScope) GetLoggedOutput() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mu.buf.String()
}

// Close restores the previous log output. If the test failed, the collected
// log lines are forwarded to the test log.
func (s *TestLogScope) Close(t tShim) {
	t.Helper()
	s.restore()
	if t.Failed() {
		if out := strings.TrimSpace(s.GetLoggedOutput()); out != "" {
			t.Logf("log output:\n%s", out)
		}
	}
}

type scopeWriter struct {
	s *TestLogScope
}

func (w scopeWriter) Write(p []byte) (int, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	return w.s.mu.buf.Write(p)
}
