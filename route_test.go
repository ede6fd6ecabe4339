package contig

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newRoutes(t *testing.T, s string) *routeTable {
	t.Helper()
	rules, err := parseRoutes(s)
	require.NoError(t, err)
	return &routeTable{rules: rules}
}

func TestResolveFirstMatchWins(t *testing.T) {
	routes := newRoutes(t, "foo=r1;*/*=r2")

	got, err := routes.resolve("foo", "")
	require.NoError(t, err)
	require.Equal(t, []string{"r1"}, got)

	got, err = routes.resolve("bar", "")
	require.NoError(t, err)
	require.Equal(t, []string{"r2"}, got)

	// The first rule has no kind part so it only matches the empty kind.
	got, err = routes.resolve("foo", "k")
	require.NoError(t, err)
	require.Equal(t, []string{"r2"}, got)
}

func TestResolveInheritedDevicePattern(t *testing.T) {
	routes := newRoutes(t, "bar/firmware=r3;/*=r2")

	got, err := routes.resolve("bar", "firmware")
	require.NoError(t, err)
	require.Equal(t, []string{"r3"}, got)

	// The second rule's pattern has no device part; it reuses the device
	// match outcome of the pattern before it.
	got, err = routes.resolve("bar", "other")
	require.NoError(t, err)
	require.Equal(t, []string{"r2"}, got)

	_, err = routes.resolve("baz", "other")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestResolveCanonicalMap(t *testing.T) {
	routes := newRoutes(t, DefaultRoutes)

	cases := []struct {
		dev, kind string
		want      []string
	}{
		{"foo", "", []string{"reg1"}},
		{"bar", "firmware", []string{"reg3"}},
		{"bar", "scratch", []string{"reg2"}},
		{"baz", "", []string{"reg1", "reg2"}},
		{"baz", "anything", []string{"reg1", "reg2"}},
		{"quux", "whatever", []string{"reg2", "reg1"}},
	}
	for _, tc := range cases {
		got, err := routes.resolve(tc.dev, tc.kind)
		require.NoError(t, err, "%s/%s", tc.dev, tc.kind)
		require.Equal(t, tc.want, got, "%s/%s", tc.dev, tc.kind)
	}
}

func TestResolvePatternListStopsAtFirstMatch(t *testing.T) {
	routes := newRoutes(t, "aa,a?=r1;a*=r2")

	got, err := routes.resolve("ab", "")
	require.NoError(t, err)
	require.Equal(t, []string{"r1"}, got, "second pattern of the first rule must win")

	got, err = routes.resolve("abc", "")
	require.NoError(t, err)
	require.Equal(t, []string{"r2"}, got)
}

func TestResolveEmptyDevice(t *testing.T) {
	routes := newRoutes(t, "*/*=r1")
	_, err := routes.resolve("", "")
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestResolveNoMatch(t *testing.T) {
	routes := newRoutes(t, "foo=r1")
	_, err := routes.resolve("bar", "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMatchField(t *testing.T) {
	cases := []struct {
		pattern, field string
		want           bool
	}{
		{"", "", true},
		{"", "x", false},
		{"foo", "foo", true},
		{"foo", "fooo", false},
		{"fo", "foo", false},
		{"?oo", "foo", true},
		{"?oo", "oo", false},
		{"f?o", "fxo", true},
		{"*", "", true},
		{"*", "anything", true},
		{"ab*", "ab", true},
		{"ab*", "abcdef", true},
		{"ab*", "ax", false},
		// A wildcard consumes the rest of the field; trailing pattern
		// characters can never match.
		{"ab*cd", "abxcd", false},
		{"ab*cd", "abcd", false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, matchField(tc.pattern, tc.field),
			"matchField(%q, %q)", tc.pattern, tc.field)
	}
}
