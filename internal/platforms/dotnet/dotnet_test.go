package dotnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wharflab/keelson/internal/context"
	"github.com/wharflab/keelson/internal/platform"
	"github.com/wharflab/keelson/internal/testutil"
)

func source(t *testing.T, files map[string]string) *platform.Source {
	t.Helper()
	bctx, err := context.New(testutil.WriteTree(t, files))
	require.NoError(t, err)
	return platform.NewSource(bctx, nil, nil)
}

func csproj(tfm string) string {
	return `<Project Sdk="Microsoft.NET.Sdk.Web">
  <PropertyGroup>
    <TargetFramework>` + tfm + `</TargetFramework>
  </PropertyGroup>
</Project>`
}

func TestDetect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		files map[string]string
		want  *platform.Detection
	}{
		{
			name:  "no project",
			files: map[string]string{"Program.cs": ""},
			want:  nil,
		},
		{
			name:  "too deep",
			files: map[string]string{"a/b/c/app.csproj": csproj("netcoreapp2.1")},
			want:  nil,
		},
		{
			name:  "netcoreapp",
			files: map[string]string{"app.csproj": csproj("netcoreapp2.1")},
			want:  &platform.Detection{VersionSpec: "2.1", Origin: "app.csproj TargetFramework"},
		},
		{
			name:  "net5 nested",
			files: map[string]string{"src/web/web.csproj": csproj("net5.0")},
			want:  &platform.Detection{VersionSpec: "5.0", Origin: "src/web/web.csproj TargetFramework"},
		},
		{
			name:  "platform suffix",
			files: map[string]string{"app.csproj": csproj("net5.0-windows")},
			want:  &platform.Detection{VersionSpec: "5.0", Origin: "app.csproj TargetFramework"},
		},
		{
			name: "multi-targeting takes highest",
			files: map[string]string{"app.csproj": `<Project>
  <PropertyGroup>
    <TargetFrameworks>netcoreapp3.1;net5.0;netstandard2.0</TargetFrameworks>
  </PropertyGroup>
</Project>`},
			want: &platform.Detection{VersionSpec: "5.0", Origin: "app.csproj TargetFramework"},
		},
		{
			name: "library projects ignored",
			files: map[string]string{
				"api/api.csproj": csproj("netcoreapp3.1"),
				"lib/lib.csproj": csproj("netstandard2.0"),
			},
			want: &platform.Detection{VersionSpec: "3.1", Origin: "api/api.csproj TargetFramework"},
		},
		{
			name: "agreeing projects",
			files: map[string]string{
				"api/api.csproj":             csproj("netcoreapp3.1"),
				"api/tests/api.tests.csproj": csproj("netcoreapp3.1"),
			},
			want: &platform.Detection{VersionSpec: "3.1", Origin: "api/api.csproj TargetFramework"},
		},
		{
			name:  "no framework",
			files: map[string]string{"app.csproj": "<Project/>"},
			want:  &platform.Detection{},
		},
		{
			name: "global.json wins",
			files: map[string]string{
				"global.json": `{"sdk":{"version":"3.1.404"}}`,
				"app.csproj":  csproj("netcoreapp2.1"),
			},
			want: &platform.Detection{VersionSpec: "3.1", Origin: "global.json sdk.version"},
		},
		{
			name: "dockerignored project",
			files: map[string]string{
				"app.csproj":        csproj("netcoreapp2.1"),
				".dockerignore":     "legacy/\n",
				"legacy/old.csproj": csproj("netcoreapp1.1"),
			},
			want: &platform.Detection{VersionSpec: "2.1", Origin: "app.csproj TargetFramework"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := New().Detect(t.Context(), source(t, tt.files))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetect_Ambiguous(t *testing.T) {
	t.Parallel()

	src := source(t, map[string]string{
		"api/api.csproj": csproj("netcoreapp2.1"),
		"web/web.csproj": csproj("netcoreapp3.1"),
	})
	_, err := New().Detect(t.Context(), src)
	var aerr *platform.AmbiguousVersionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, map[string]string{"api/api.csproj": "2.1", "web/web.csproj": "3.1"}, aerr.Specs)
	assert.Contains(t, aerr.Error(), "api/api.csproj=2.1, web/web.csproj=3.1")
}

func TestDetect_InvalidProject(t *testing.T) {
	t.Parallel()

	_, err := New().Detect(t.Context(), source(t, map[string]string{"app.csproj": "<Project><PropertyGroup>"}))
	var merr *platform.ManifestError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "app.csproj", merr.File)
}

func TestDefaultVersions(t *testing.T) {
	t.Parallel()
	require.NoError(t, New().DefaultVersions().Validate())
}
