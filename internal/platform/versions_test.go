package platform

import (
	"errors"
	"testing"
)

var pythonVersions = Versions{
	Supported: []string{"2.7.18", "3.6.12", "3.7.9", "3.8.6", "3.9.0"},
	Default:   "3.8.6",
}

func TestVersionsResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		spec string
		want string
	}{
		{"", "3.8.6"},
		{"3", "3.9.0"},
		{"3.7", "3.7.9"},
		{"3.7.9", "3.7.9"},
		{"v3.6", "3.6.12"},
		{">=3.6 <3.9", "3.8.6"},
		{">=3.6,<3.8", "3.7.9"},
		{"~3.7", "3.7.9"},
		{"^3.6", "3.9.0"},
		{"~=3.7", "3.9.0"},
		{"~=3.7.1", "3.7.9"},
		{"==3.7", "3.7.9"},
		{"==3.7.*", "3.7.9"},
		{"3.x", "3.9.0"},
		{"<3 || >=3.9", "3.9.0"},
		{"2.7.18 | 3.6.12", "3.6.12"},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			t.Parallel()
			got, err := pythonVersions.Resolve(tt.spec)
			if err != nil {
				t.Fatalf("Resolve(%q) error: %v", tt.spec, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.spec, got, tt.want)
			}
		})
	}
}

func TestVersionsResolve_NoMatch(t *testing.T) {
	t.Parallel()

	for _, spec := range []string{"3.70", "4", "3.10", ">=4.0", "1.2.3.4"} {
		if _, err := pythonVersions.Resolve(spec); !errors.Is(err, ErrNoMatchingVersion) {
			t.Errorf("Resolve(%q) error = %v, want ErrNoMatchingVersion", spec, err)
		}
	}
}

func TestVersionsResolve_InvalidConstraint(t *testing.T) {
	t.Parallel()

	_, err := pythonVersions.Resolve("lts/*")
	if err == nil || errors.Is(err, ErrNoMatchingVersion) {
		t.Fatalf("Resolve(lts/*) error = %v, want constraint parse error", err)
	}
}

func TestVersionsResolve_NoDefault(t *testing.T) {
	t.Parallel()

	v := Versions{Supported: []string{"10.23.0", "8.17.0", "12.20.0"}}
	got, err := v.Resolve("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "12.20.0" {
		t.Errorf("Resolve(\"\") = %q, want highest supported 12.20.0", got)
	}

	if _, err := (Versions{}).Resolve(""); !errors.Is(err, ErrNoMatchingVersion) {
		t.Errorf("empty Versions: error = %v, want ErrNoMatchingVersion", err)
	}
}

func TestVersionsValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		v       Versions
		wantErr bool
	}{
		{"ok", pythonVersions, false},
		{"no default", Versions{Supported: []string{"1.0"}}, false},
		{"empty", Versions{}, true},
		{"bad version", Versions{Supported: []string{"3.x"}}, true},
		{"default not supported", Versions{Supported: []string{"3.7.9"}, Default: "3.8.6"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := tt.v.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeSpec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"  12 ", "12"},
		{"^7.2|^8.0", "^7.2 || ^8.0"},
		{"^7.2 || ^8.0", "^7.2 || ^8.0"},
		{"~=3.8", "^3.8"},
		{"~=3.8.2", "~3.8.2"},
		{"==3.7", "3.7"},
		{">=3.6, !=3.7.*", ">=3.6, !=3.7.x"},
	}

	for _, tt := range tests {
		if got := NormalizeSpec(tt.in); got != tt.want {
			t.Errorf("NormalizeSpec(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
