package selection

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	buildcontext "github.com/wharflab/keelson/internal/context"
	"github.com/wharflab/keelson/internal/platform"
	"github.com/wharflab/keelson/internal/slim"
)

type fakeDetector struct {
	set platform.CompatibleSet
	err error
}

func (f fakeDetector) DetectCompatible(context.Context, *buildcontext.BuildContext) (platform.CompatibleSet, error) {
	return f.set, f.err
}

func pairs(kv ...string) platform.CompatibleSet {
	var set platform.CompatibleSet
	for i := 0; i < len(kv); i += 2 {
		set = append(set, platform.PlatformVersion{Name: kv[i], Version: kv[i+1]})
	}
	return set
}

func decide(t *testing.T, set platform.CompatibleSet, opts ...Option) (ImageSelection, error) {
	t.Helper()
	bctx, err := buildcontext.New(t.TempDir())
	require.NoError(t, err)
	return NewEngine(fakeDetector{set: set}, opts...).Decide(t.Context(), bctx)
}

func TestDecide(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		set  platform.CompatibleSet
		want ImageSelection
	}{
		{
			name: "python slim",
			set:  pairs("python", "3.7.4"),
			want: ImageSelection{BuildImageTag: TagSlim, RuntimeImageName: "python", RuntimeImageTag: "3.7"},
		},
		{
			name: "node not slim",
			set:  pairs("node", "13.2.0"),
			want: ImageSelection{BuildImageTag: TagLatest, RuntimeImageName: "node", RuntimeImageTag: "13.2"},
		},
		{
			name: "dotnet alias",
			set:  pairs("dotnet", "2.1.0"),
			want: ImageSelection{BuildImageTag: TagSlim, RuntimeImageName: "dotnetcore", RuntimeImageTag: "2.1"},
		},
		{
			name: "node passes through",
			set:  pairs("node", "10.14.2"),
			want: ImageSelection{BuildImageTag: TagSlim, RuntimeImageName: "node", RuntimeImageTag: "10.14"},
		},
		{
			name: "all eligible",
			set:  pairs("dotnet", "2.1.23", "python", "3.8.6", "node", "12.20.0"),
			want: ImageSelection{BuildImageTag: TagSlim, RuntimeImageName: "node", RuntimeImageTag: "12.20"},
		},
		{
			name: "ineligible first forces latest",
			set:  pairs("php", "7.3.25", "node", "10.23.0"),
			want: ImageSelection{BuildImageTag: TagLatest, RuntimeImageName: "node", RuntimeImageTag: "10.23"},
		},
		{
			name: "ineligible middle forces latest",
			set:  pairs("python", "3.7.9", "node", "14.15.1", "node", "10.23.0"),
			want: ImageSelection{BuildImageTag: TagLatest, RuntimeImageName: "node", RuntimeImageTag: "10.23"},
		},
		{
			name: "short version kept",
			set:  pairs("node", "12"),
			want: ImageSelection{BuildImageTag: TagSlim, RuntimeImageName: "node", RuntimeImageTag: "12"},
		},
		{
			name: "component prefix not substring",
			set:  pairs("python", "3.70.1"),
			want: ImageSelection{BuildImageTag: TagLatest, RuntimeImageName: "python", RuntimeImageTag: "3.70"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := decide(t, tt.set)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// The runtime pair is picked by an explicit rule; pin both.
func TestDecide_MultiPlatformPrimaryRule(t *testing.T) {
	t.Parallel()

	set := pairs("node", "10.14.2", "python", "3.9.0")

	got, err := decide(t, set)
	require.NoError(t, err)
	assert.Equal(t, ImageSelection{BuildImageTag: TagLatest, RuntimeImageName: "python", RuntimeImageTag: "3.9"}, got,
		"default rule picks the last detected platform")

	got, err = decide(t, set, WithPrimaryRule(RuleLast))
	require.NoError(t, err)
	assert.Equal(t, "python", got.RuntimeImageName)

	got, err = decide(t, set, WithPrimaryRule(RulePrimary))
	require.NoError(t, err)
	assert.Equal(t, ImageSelection{BuildImageTag: TagLatest, RuntimeImageName: "node", RuntimeImageTag: "10.14"}, got,
		"primary rule picks the first detected platform")

	d, err := NewEngine(nil).Choose(set)
	require.NoError(t, err)
	assert.Equal(t, RuleLast, d.Rule)
	assert.Equal(t, "python", d.Winner.Name)
}

// Slim eligibility sees the resolved version; only the runtime tag is
// normalized.
func TestDecide_SlimUsesRawVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		table map[string][]string
		set   platform.CompatibleSet
		want  ImageSelection
	}{
		{
			name:  "full version prefix",
			table: map[string][]string{"node": {"12.20.0"}},
			set:   pairs("node", "12.20.0"),
			want:  ImageSelection{BuildImageTag: TagSlim, RuntimeImageName: "node", RuntimeImageTag: "12.20"},
		},
		{
			name:  "patch prefix",
			table: map[string][]string{"python": {"3.7.4"}},
			set:   pairs("python", "3.7.4"),
			want:  ImageSelection{BuildImageTag: TagSlim, RuntimeImageName: "python", RuntimeImageTag: "3.7"},
		},
		{
			name:  "other patch not eligible",
			table: map[string][]string{"python": {"3.7.4"}},
			set:   pairs("python", "3.7.9"),
			want:  ImageSelection{BuildImageTag: TagLatest, RuntimeImageName: "python", RuntimeImageTag: "3.7"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			table, err := slim.New(slim.SchemaVersion, tt.table)
			require.NoError(t, err)

			got, err := decide(t, tt.set, WithSlimTable(table))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecide_Empty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bctx, err := buildcontext.New(dir)
	require.NoError(t, err)

	got, err := NewEngine(fakeDetector{}).Decide(t.Context(), bctx)
	var uerr *UnsupportedPlatformError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, bctx.SourceDir, uerr.SourceDir)
	assert.Contains(t, uerr.Error(), "could not detect any supported language or platform")
	assert.Equal(t, ImageSelection{}, got)
}

func TestDecide_DetectorErrorUnmodified(t *testing.T) {
	t.Parallel()

	derr := &platform.AmbiguousVersionError{Platform: "dotnet", Specs: map[string]string{"a.csproj": "2.1"}}
	bctx, err := buildcontext.New(t.TempDir())
	require.NoError(t, err)

	got, err := NewEngine(fakeDetector{err: derr, set: pairs("node", "12")}).Decide(t.Context(), bctx)
	assert.Same(t, derr, err)
	assert.Equal(t, ImageSelection{}, got)

	plain := errors.New("scan failed")
	_, err = NewEngine(fakeDetector{err: plain}).Decide(t.Context(), bctx)
	assert.Same(t, plain, err)
}

func TestDecide_CustomPolicy(t *testing.T) {
	t.Parallel()

	table, err := slim.New(slim.SchemaVersion, map[string][]string{"node": {"14"}})
	require.NoError(t, err)

	got, err := decide(t, pairs("node", "14.15.1"),
		WithSlimTable(table),
		WithAliases(map[string]string{"node": "nodejs"}),
	)
	require.NoError(t, err)
	assert.Equal(t, ImageSelection{BuildImageTag: TagSlim, RuntimeImageName: "nodejs", RuntimeImageTag: "14.15"}, got)

	got, err = decide(t, pairs("dotnet", "2.1.23"), WithSlimTable(table), WithAliases(nil))
	require.NoError(t, err)
	assert.Equal(t, ImageSelection{BuildImageTag: TagLatest, RuntimeImageName: "dotnet", RuntimeImageTag: "2.1"}, got)
}

func TestChoose_Candidates(t *testing.T) {
	t.Parallel()

	d, err := NewEngine(nil, WithPrimaryRule(RuleLast)).Choose(pairs("python", "3.8.6", "node", "14.15.1"))
	require.NoError(t, err)
	assert.Equal(t, RuleLast, d.Rule)
	require.Len(t, d.Candidates, 2)
	assert.True(t, d.Candidates[0].SlimEligible)
	assert.False(t, d.Candidates[1].SlimEligible)
	assert.Equal(t, "node", d.Winner.Name)
}

func TestDecide_Concurrent(t *testing.T) {
	t.Parallel()

	bctx, err := buildcontext.New(t.TempDir())
	require.NoError(t, err)
	engine := NewEngine(fakeDetector{set: pairs("python", "3.8.6", "node", "10.23.0")})

	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			got, err := engine.Decide(t.Context(), bctx)
			assert.NoError(t, err)
			assert.Equal(t, ImageSelection{BuildImageTag: TagSlim, RuntimeImageName: "node", RuntimeImageTag: "10.23"}, got)
		})
	}
	wg.Wait()
}

func TestParsePrimaryRule(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]PrimaryRule{"": RuleLast, "last": RuleLast, "PRIMARY": RulePrimary} {
		got, err := ParsePrimaryRule(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParsePrimaryRule("first")
	assert.Error(t, err)
}
