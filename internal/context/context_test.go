package context

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()

	ctx, err := New(tmpDir)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	absDir, err := filepath.Abs(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	if ctx.SourceDir != absDir {
		t.Errorf("SourceDir = %q, want %q", ctx.SourceDir, absDir)
	}
	if ctx.MaxManifestSize != DefaultMaxManifestSize {
		t.Errorf("MaxManifestSize = %d, want %d", ctx.MaxManifestSize, DefaultMaxManifestSize)
	}
	if ctx.Platform != "" || ctx.PlatformVersion != "" || ctx.DisableMultiPlatformBuild {
		t.Errorf("unexpected overrides on a plain context: %+v", ctx)
	}
}

func TestNew_Options(t *testing.T) {
	ctx, err := New(t.TempDir(),
		WithPlatform("python", "3.7"),
		WithMultiPlatformBuildDisabled(true),
		WithMaxManifestSize(512),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if ctx.Platform != "python" || ctx.PlatformVersion != "3.7" {
		t.Errorf("platform = %q@%q, want python@3.7", ctx.Platform, ctx.PlatformVersion)
	}
	if !ctx.DisableMultiPlatformBuild {
		t.Error("DisableMultiPlatformBuild = false, want true")
	}
	if ctx.MaxManifestSize != 512 {
		t.Errorf("MaxManifestSize = %d, want 512", ctx.MaxManifestSize)
	}
}

func TestNew_VersionWithoutPlatform(t *testing.T) {
	_, err := New(t.TempDir(), WithPlatform("", "3.7"))
	if !errors.Is(err, ErrVersionWithoutPlatform) {
		t.Fatalf("New() error = %v, want ErrVersionWithoutPlatform", err)
	}
}

func TestNew_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "app.py")
	if err := os.WriteFile(file, []byte("print(1)\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(file); err == nil {
		t.Fatal("New() on a file: expected error")
	}
	if _, err := New(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("New() on a missing directory: expected error")
	}
}

func TestIsIgnored_NoIgnoreFile(t *testing.T) {
	ctx, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ignored, err := ctx.IsIgnored("anything.txt")
	if err != nil {
		t.Fatalf("IsIgnored() error: %v", err)
	}
	if ignored {
		t.Error("expected nothing to be ignored without .dockerignore")
	}
	if len(ctx.Patterns()) != 0 {
		t.Errorf("Patterns() = %v, want none", ctx.Patterns())
	}
}

func TestIsIgnored_WithIgnoreFile(t *testing.T) {
	tmpDir := t.TempDir()

	ignoreContent := `
# frontend is built elsewhere
frontend/
*.log
!keep.log
`
	if err := os.WriteFile(filepath.Join(tmpDir, ".dockerignore"), []byte(ignoreContent), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, err := New(tmpDir)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	tests := []struct {
		path string
		want bool
	}{
		{"frontend/package.json", true},
		{"build.log", true},
		{"keep.log", false},
		{"requirements.txt", false},
		{"src/app.py", false},
	}

	for _, tc := range tests {
		ignored, err := ctx.IsIgnored(tc.path)
		if err != nil {
			t.Errorf("IsIgnored(%q) error: %v", tc.path, err)
			continue
		}
		if ignored != tc.want {
			t.Errorf("IsIgnored(%q) = %v, want %v", tc.path, ignored, tc.want)
		}
	}
}

func TestIsIgnored_ContainerIgnore(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, ".containerignore"), []byte("Pipfile\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, err := New(tmpDir)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ignored, err := ctx.IsIgnored("Pipfile")
	if err != nil {
		t.Fatalf("IsIgnored() error: %v", err)
	}
	if !ignored {
		t.Error("expected Pipfile to be ignored via .containerignore")
	}
}

func TestIgnoreFile(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  string
	}{
		{name: "none", want: ""},
		{name: "dockerignore", files: map[string]string{".dockerignore": "node_modules\n"}, want: ".dockerignore"},
		{name: "containerignore", files: map[string]string{".containerignore": "Pipfile\n"}, want: ".containerignore"},
		{
			name: "dockerignore wins",
			files: map[string]string{
				".dockerignore":    "dist\n",
				".containerignore": "Pipfile\n",
			},
			want: ".dockerignore",
		},
		{
			name: "comment-only dockerignore falls through",
			files: map[string]string{
				".dockerignore":    "# nothing\n",
				".containerignore": "Pipfile\n",
			},
			want: ".containerignore",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			for name, content := range tc.files {
				if err := os.WriteFile(filepath.Join(tmpDir, name), []byte(content), 0o644); err != nil {
					t.Fatal(err)
				}
			}
			ctx, err := New(tmpDir)
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			if got := ctx.IgnoreFile(); got != tc.want {
				t.Errorf("IgnoreFile() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	for name, content := range map[string]string{
		"package.json":          "{}",
		"frontend/package.json": "{}",
		".dockerignore":         "frontend\n",
	} {
		path := filepath.Join(tmpDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	ctx, err := New(tmpDir)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if !ctx.FileExists("package.json") {
		t.Error("FileExists(package.json) = false, want true")
	}
	if ctx.FileExists("frontend/package.json") {
		t.Error("FileExists(frontend/package.json) = true for an ignored file")
	}
	if ctx.FileExists("frontend") {
		t.Error("FileExists(frontend) = true for a directory")
	}
	if ctx.FileExists("missing.txt") {
		t.Error("FileExists(missing.txt) = true")
	}
}

func TestRel(t *testing.T) {
	ctx, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	rel, err := ctx.Rel(ctx.Path("src/app/main.csproj"))
	if err != nil {
		t.Fatalf("Rel() error: %v", err)
	}
	if rel != "src/app/main.csproj" {
		t.Errorf("Rel() = %q, want src/app/main.csproj", rel)
	}
}
