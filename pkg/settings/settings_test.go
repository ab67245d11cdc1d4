// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package settings

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var boolTA = RegisterBoolSetting("bool.t", "", true)
var boolFA = RegisterBoolSetting("bool.f", "", false)
var strFooA = RegisterStringSetting("str.foo", "", "")
var strBarA = RegisterStringSetting("str.bar", "", "bar")
var i1A = RegisterIntSetting("i.1", "", 0)
var i2A = RegisterPositiveIntSetting("i.2", "", 5)
var hiddenA = RegisterIntSetting("i.hidden", "", 7)

func init() {
	Hide("i.hidden")
}

func TestCache(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		var sv *Values
		require.False(t, boolFA.Get(sv))
		require.True(t, boolTA.Get(sv))
		require.Equal(t, "", strFooA.Get(sv))
		require.Equal(t, "bar", strBarA.Get(sv))
		require.Equal(t, int64(0), i1A.Get(sv))
		require.Equal(t, int64(5), i2A.Get(sv))
	})

	t.Run("lookup", func(t *testing.T) {
		actual, _, ok := Lookup("i.1")
		require.True(t, ok)
		require.Equal(t, Setting(i1A), actual)
		_, _, ok = Lookup("dne")
		require.False(t, ok)
	})

	t.Run("set", func(t *testing.T) {
		sv := MakeValues()
		require.NoError(t, sv.Set("bool.t", "false"))
		require.NoError(t, sv.Set("i.2", "3"))
		require.NoError(t, sv.Set("str.foo", "baz"))
		require.False(t, boolTA.Get(sv))
		require.Equal(t, int64(3), i2A.Get(sv))
		require.Equal(t, "baz", strFooA.Get(sv))
		require.Equal(t, "3", i2A.Encoded(sv))
		require.Equal(t, "5", i2A.EncodedDefault())
		require.Equal(t, []string{"bool.t", "i.2", "str.foo"}, sv.Overridden())

		require.EqualError(t, sv.Set("i.2", "0"), "setting i.2: cannot set to a non-positive value: 0")
		require.Error(t, sv.Set("i.1", "x"))
		require.EqualError(t, sv.Set("dne", "1"), `unknown setting "dne"`)
	})

	t.Run("hidden", func(t *testing.T) {
		require.NotContains(t, Keys(), "i.hidden")
		_, _, ok := Lookup("i.hidden")
		require.True(t, ok)
		require.Equal(t, int64(7), hiddenA.Get(nil))
	})
}

func TestLoadOverrides(t *testing.T) {
	sv := MakeValues()
	const doc = `
bool.f: true
i.1: 12
str.bar: [a, b]
`
	require.NoError(t, LoadOverrides(strings.NewReader(doc), sv))
	require.True(t, boolFA.Get(sv))
	require.Equal(t, int64(12), i1A.Get(sv))
	require.Equal(t, "a,b", strBarA.Get(sv))

	require.NoError(t, LoadOverrides(strings.NewReader(""), MakeValues()))
	require.Error(t, LoadOverrides(strings.NewReader("i.1: {a: 1}"), MakeValues()))
	require.Error(t, LoadOverrides(strings.NewReader("i.2: -1"), MakeValues()))
}

func TestValuesConcurrentReads(t *testing.T) {
	sv := MakeValues()
	i1A.Override(sv, 9)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if i1A.Get(sv) != 9 {
					t.Error("unexpected value")
				}
			}
		}()
	}
	wg.Wait()
}
