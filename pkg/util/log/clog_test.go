// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/redact"
	"github.com/stretchr/testify/require"
)

type safeName string

func (safeName) SafeValue() {}

func TestLogTagsAndRedaction(t *testing.T) {
	sc := Scope(t)
	defer sc.Close(t)

	ctx := logtags.AddTag(context.Background(), "batch", "pushdown")
	ctx = logtags.AddTag(ctx, "opt", nil)

	Infof(ctx, "applied %s to %s", safeName("MergeFilter"), "secret")
	out := sc.GetLoggedOutput()
	require.Regexp(t, `^I\d{6} \d\d:\d\d:\d\d\.\d{6} clog_test\.go:\d+  \[batch=pushdown,opt\] applied MergeFilter to secret\n$`, out)

	SetRedactable(true)
	defer SetRedactable(false)
	Warningf(context.Background(), "applied %s to %s", safeName("MergeFilter"), "secret")
	out = sc.GetLoggedOutput()
	require.Contains(t, out, "applied MergeFilter to "+string(redact.StartMarker())+"secret"+string(redact.EndMarker()))
}

func TestVerbosity(t *testing.T) {
	sc := Scope(t)
	defer sc.Close(t)

	prev := SetVerbosity(1)
	defer SetVerbosity(prev)

	require.True(t, V(1))
	require.False(t, V(2))
	VEventf(context.Background(), 2, "hidden")
	VEventf(context.Background(), 1, "shown")
	out := sc.GetLoggedOutput()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "shown")
}

func TestSeverityByName(t *testing.T) {
	s, ok := SeverityByName("warning")
	require.True(t, ok)
	require.Equal(t, Severity_WARNING, s)
	_, ok = SeverityByName("unknown")
	require.False(t, ok)
}

func TestEveryN(t *testing.T) {
	start := time.Now()
	e := Every(time.Minute)
	require.True(t, e.shouldLog(start))
	require.False(t, e.shouldLog(start.Add(time.Second)))
	require.True(t, e.shouldLog(start.Add(2*time.Minute)))
}
