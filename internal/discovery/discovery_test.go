package discovery

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"testing/fstest"
)

func TestFindFS(t *testing.T) {
	fsys := fstest.MapFS{
		"package.json":                      {Data: []byte("{}")},
		"api/api.csproj":                    {Data: []byte("<Project/>")},
		"api/tests/api.tests.csproj":        {Data: []byte("<Project/>")},
		"deep/a/b/c/too-deep.csproj":        {Data: []byte("<Project/>")},
		"node_modules/left-pad/x.csproj":    {Data: []byte("<Project/>")},
		"web/node_modules/dep/package.json": {Data: []byte("{}")},
		"notes.txt":                         {Data: []byte("hi")},
	}

	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{
			name: "root file",
			opts: Options{Patterns: []string{"package.json"}},
			want: []string{"package.json"},
		},
		{
			name: "bounded depth",
			opts: Options{
				Patterns:        []string{"*.csproj", "*/*.csproj", "*/*/*.csproj"},
				ExcludePatterns: DefaultExcludePatterns(),
			},
			want: []string{"api/api.csproj", "api/tests/api.tests.csproj"},
		},
		{
			name: "recursive with excludes",
			opts: Options{
				Patterns:        []string{"**/package.json"},
				ExcludePatterns: DefaultExcludePatterns(),
			},
			want: []string{"package.json"},
		},
		{
			name: "recursive without excludes",
			opts: Options{Patterns: []string{"**/package.json"}},
			want: []string{"package.json", "web/node_modules/dep/package.json"},
		},
		{
			name: "subpath exclude",
			opts: Options{
				Patterns:        []string{"**/*.csproj"},
				ExcludePatterns: []string{"tests/*", "node_modules/**", "deep/**"},
			},
			want: []string{"api/api.csproj"},
		},
		{
			name: "duplicates collapse",
			opts: Options{Patterns: []string{"package.json", "*.json", "package.json"}},
			want: []string{"package.json"},
		},
		{
			name: "no match",
			opts: Options{Patterns: []string{"composer.json"}},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindFS(fsys, tt.opts)
			if err != nil {
				t.Fatalf("FindFS() error: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("FindFS() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFind_Directory(t *testing.T) {
	tmpDir := t.TempDir()
	for _, f := range []string{"app.py", "lib/util.py", "requirements.txt"} {
		p := filepath.Join(tmpDir, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := Find(tmpDir, Options{Patterns: []string{"*.py"}})
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	if !slices.Equal(got, []string{"app.py"}) {
		t.Errorf("Find() = %v, want [app.py]", got)
	}
}

func TestIsExcluded(t *testing.T) {
	tests := []struct {
		path     string
		patterns []string
		want     bool
	}{
		{"src/app.csproj", nil, false},
		{"src/app.csproj.bak", []string{"*.bak"}, true},
		{"vendor/x/composer.json", []string{"vendor/**"}, true},
		{"a/vendor/composer.json", []string{"vendor/*"}, true},
		{"a/vendor/x/composer.json", []string{"vendor/*"}, false},
		{"a/node_modules/b/package.json", []string{"**/node_modules/**"}, true},
	}

	for _, tt := range tests {
		if got := IsExcluded(tt.path, tt.patterns); got != tt.want {
			t.Errorf("IsExcluded(%q, %v) = %v, want %v", tt.path, tt.patterns, got, tt.want)
		}
	}
}
