package contig

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMem(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
		rest string
	}{
		{"0", 0, ""},
		{"4096", 4096, ""},
		{"64M", 64 << 20, ""},
		{"64m", 64 << 20, ""},
		{"1G", 1 << 30, ""},
		{"4K@0x100", 4096, "@0x100"},
		{"0x100000", 0x100000, ""},
		{"0x10K", 0x10 << 10, ""},
		{"2M:bf", 2 << 20, ":bf"},
	}
	for _, tc := range cases {
		got, rest, err := parseMem(tc.in)
		require.NoError(t, err, tc.in)
		require.EqualValues(t, tc.want, got, tc.in)
		require.Equal(t, tc.rest, rest, tc.in)
	}

	for _, bad := range []string{"", "x", "@4K", "KM", "0xzz"} {
		_, _, err := parseMem(bad)
		require.Error(t, err, bad)
	}

	// 16E * 1024 does not fit an unsigned long.
	_, _, err := parseMem("0xffffffffffffffffK")
	require.Error(t, err)
}

func TestParseSize(t *testing.T) {
	got, err := ParseSize("64K")
	require.NoError(t, err)
	require.EqualValues(t, 64<<10, got)

	_, err = ParseSize("64K@0x1000")
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestParseRegionEntry(t *testing.T) {
	cases := []struct {
		in   string
		want Region
	}{
		{
			in:   "reg1=64M:bf",
			want: Region{Name: "reg1", Size: 64 << 20, Alignment: 4096, StrategyName: "bf"},
		},
		{
			in:   "reg2=32M@0x100000:bf",
			want: Region{Name: "reg2", Start: 0x100000, Size: 32 << 20, Alignment: 4096, StrategyName: "bf"},
		},
		{
			in:   "reg3=64M/1M:bf",
			want: Region{Name: "reg3", Size: 64 << 20, Alignment: 1 << 20, StrategyName: "bf"},
		},
		{
			// No strategy: the default is picked at bind time.
			in:   "r=8K",
			want: Region{Name: "r", Size: 8 << 10, Alignment: 4096},
		},
		{
			// Sizes round up to page granularity, starts to the alignment.
			in:   "r=1@0x1001",
			want: Region{Name: "r", Start: 0x2000, Size: 4096, Alignment: 4096},
		},
		{
			// Sub-page alignments grow to a page.
			in:   "r=4K/512",
			want: Region{Name: "r", Size: 4096, Alignment: 4096},
		},
		{
			in:   "r=4K:bf(arg1,arg2)",
			want: Region{Name: "r", Size: 4096, Alignment: 4096, StrategyName: "bf", StrategyParams: "arg1,arg2"},
		},
		{
			in:   "r=4K:(arg)",
			want: Region{Name: "r", Size: 4096, Alignment: 4096, StrategyParams: "arg"},
		},
	}
	for i := range cases {
		tc := &cases[i]
		got, err := parseRegionEntry(tc.in, 4096)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want.Name, got.Name, tc.in)
		require.EqualValues(t, tc.want.Start, got.Start, tc.in)
		require.EqualValues(t, tc.want.Size, got.Size, tc.in)
		require.EqualValues(t, tc.want.Alignment, got.Alignment, tc.in)
		require.Equal(t, tc.want.StrategyName, got.StrategyName, tc.in)
		require.Equal(t, tc.want.StrategyParams, got.StrategyParams, tc.in)
		require.EqualValues(t, got.Size, got.FreeSpace(), tc.in)
	}
}

func TestParseRegionEntryErrors(t *testing.T) {
	bad := []string{
		"reg1",                        // missing '='
		"=4K",                         // empty name
		"r=",                          // missing size
		"r=zzz",                       // unparseable size
		"r=0",                         // zero size
		"r=4K@",                       // missing start value
		"r=4K/3",                      // alignment not a power of two
		"r=4K:bf(oops",                // missing ')'
		"r=4K extra",                  // trailing garbage
		"r=0xffffffffffffffff@0x1000", // size wraps to zero when page-rounded
	}
	for _, in := range bad {
		_, err := parseRegionEntry(in, 4096)
		require.Error(t, err, in)
	}
}

func TestParseRegions(t *testing.T) {
	regions, err := parseRegions(DefaultRegions, 4096)
	require.NoError(t, err)
	require.Len(t, regions, 3)
	require.Equal(t, "reg1", regions[0].Name)
	require.Equal(t, "reg2", regions[1].Name)
	require.Equal(t, "reg3", regions[2].Name)

	// Trailing separator is fine, an empty entry in the middle is not.
	_, err = parseRegions("a=4K;b=4K;", 4096)
	require.NoError(t, err)
	_, err = parseRegions("a=4K;;b=4K", 4096)
	require.Error(t, err)

	_, err = parseRegions("a=4K;a=8K", 4096)
	require.ErrorIs(t, err, ErrInvalidArgument)

	long := ""
	for i := 0; i <= maxRegions; i++ {
		long += string(rune('a'+i)) + "=4K;"
	}
	_, err = parseRegions(long, 4096)
	require.ErrorIs(t, err, ErrNoSpace)
}

func TestParseRoutes(t *testing.T) {
	rules, err := parseRoutes(DefaultRoutes)
	require.NoError(t, err)
	require.Len(t, rules, 5)

	require.Equal(t, []routePattern{{dev: "foo", hasDev: true}}, rules[0].patterns)
	require.Equal(t, []string{"reg1"}, rules[0].regions)

	require.Equal(t, []routePattern{{dev: "bar", hasDev: true, kind: "firmware", hasKind: true}}, rules[1].patterns)
	require.Equal(t, []routePattern{{kind: "*", hasKind: true}}, rules[2].patterns)
	require.Equal(t, []string{"reg1", "reg2"}, rules[3].regions)

	_, err = parseRoutes("foo")
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = parseRoutes("foo=")
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = parseRoutes("foo=r1,,r2")
	require.ErrorIs(t, err, ErrInvalidArgument)

	long := ""
	for i := 0; i <= maxRoutes; i++ {
		long += "d=r;"
	}
	_, err = parseRoutes(long)
	require.ErrorIs(t, err, ErrNoSpace)
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contig.yaml")
	require.NoError(t, GenerateSample(path))

	cfg, err := NewConfig(path)
	require.NoError(t, err)
	require.Equal(t, DefaultRegions, cfg.Regions)
	require.Equal(t, DefaultRoutes, cfg.Routes)

	_, err = NewConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
