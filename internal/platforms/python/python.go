// Package python detects Python applications.
package python

import (
	"context"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"go.yaml.in/yaml/v4"
	"gopkg.in/ini.v1"

	"github.com/wharflab/keelson/internal/platform"
)

// Name is the platform name.
const Name = "python"

const (
	runtimeTxt     = "runtime.txt"
	pythonVersion  = ".python-version"
	pipfile        = "Pipfile"
	pyprojectTOML  = "pyproject.toml"
	setupCfg       = "setup.cfg"
	environmentYML = "environment.yml"
)

var markers = []string{
	"requirements.txt", "setup.py", pyprojectTOML, pipfile, environmentYML, runtimeTxt,
}

// Platform implements platform.Platform for Python.
type Platform struct{}

// New creates the python platform.
func New() *Platform { return &Platform{} }

func (*Platform) Name() string  { return Name }
func (*Platform) Priority() int { return 30 }

func (*Platform) DefaultVersions() platform.Versions {
	return platform.Versions{
		Supported: []string{"2.7.18", "3.6.12", "3.7.9", "3.8.6", "3.9.0"},
		Default:   "3.8.6",
	}
}

// versionSource reads a declared version from one manifest. It returns ""
// when the manifest declares none.
type versionSource struct {
	file  string
	field string
	read  func(data []byte) (string, error)
}

// versionSources are consulted in order; the first declared version wins.
var versionSources = []versionSource{
	{runtimeTxt, "", readRuntimeTxt},
	{pythonVersion, "", readPythonVersion},
	{pipfile, "[requires] python_version", readPipfile},
	{pyprojectTOML, "", readPyproject},
	{setupCfg, "[options] python_requires", readSetupCfg},
	{environmentYML, "dependencies", readEnvironment},
}

// Detect matches on a marker manifest or any *.py file at the root.
func (*Platform) Detect(_ context.Context, src *platform.Source) (*platform.Detection, error) {
	if !src.Any(markers...) {
		scripts, err := src.Glob("*.py")
		if err != nil {
			return nil, err
		}
		if len(scripts) == 0 {
			return nil, nil
		}
	}

	for _, vs := range versionSources {
		if !src.Exists(vs.file) {
			continue
		}
		data, err := src.Read(vs.file)
		if err != nil {
			return nil, &platform.ManifestError{Platform: Name, File: vs.file, Err: err}
		}
		spec, err := vs.read(data)
		if err != nil {
			return nil, &platform.ManifestError{Platform: Name, File: vs.file, Err: err}
		}
		if spec == "" {
			continue
		}
		origin := vs.file
		if vs.field != "" {
			origin += " " + vs.field
		}
		return &platform.Detection{VersionSpec: spec, Origin: origin}, nil
	}
	return &platform.Detection{}, nil
}

// readRuntimeTxt parses the Heroku-style "python-3.7.4".
func readRuntimeTxt(data []byte) (string, error) {
	line := strings.TrimSpace(firstLine(string(data)))
	return strings.TrimPrefix(line, "python-"), nil
}

var numericVersion = regexp.MustCompile(`^\d+(\.\d+)*$`)

// readPythonVersion parses a pyenv version file. Non-numeric entries
// ("system", virtualenv names) declare nothing.
func readPythonVersion(data []byte) (string, error) {
	line := strings.TrimSpace(firstLine(string(data)))
	if !numericVersion.MatchString(line) {
		return "", nil
	}
	return line, nil
}

func readPipfile(data []byte) (string, error) {
	var doc struct {
		Requires struct {
			PythonVersion     string `toml:"python_version"`
			PythonFullVersion string `toml:"python_full_version"`
		} `toml:"requires"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return "", err
	}
	if doc.Requires.PythonFullVersion != "" {
		return doc.Requires.PythonFullVersion, nil
	}
	return doc.Requires.PythonVersion, nil
}

// readPyproject reads PEP 621 requires-python, then the poetry python
// dependency.
func readPyproject(data []byte) (string, error) {
	var doc struct {
		Project struct {
			RequiresPython string `toml:"requires-python"`
		} `toml:"project"`
		Tool struct {
			Poetry struct {
				Dependencies map[string]any `toml:"dependencies"`
			} `toml:"poetry"`
		} `toml:"tool"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return "", err
	}
	if doc.Project.RequiresPython != "" {
		return doc.Project.RequiresPython, nil
	}
	if v, ok := doc.Tool.Poetry.Dependencies["python"].(string); ok {
		return v, nil
	}
	return "", nil
}

func readSetupCfg(data []byte) (string, error) {
	cfg, err := ini.Load(data)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(cfg.Section("options").Key("python_requires").String()), nil
}

// condaPython matches a conda dependency on python: "python=3.8",
// "python>=3.7", "python 3.8.*".
var condaPython = regexp.MustCompile(`^python\s*([=<>!~]=?|\s)\s*(\S.*)$`)

func readEnvironment(data []byte) (string, error) {
	var env struct {
		Dependencies []any `yaml:"dependencies"`
	}
	if err := yaml.Unmarshal(data, &env); err != nil {
		return "", err
	}
	for _, dep := range env.Dependencies {
		s, ok := dep.(string)
		if !ok {
			// nested pip: [...] lists
			continue
		}
		m := condaPython.FindStringSubmatch(strings.TrimSpace(s))
		if m == nil {
			continue
		}
		op, ver := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
		// conda "=" is a prefix match, which a bare partial version expresses
		if op == "=" || op == "" {
			// drop a build string: python=3.8.5=h7579374_1
			ver, _, _ = strings.Cut(ver, "=")
			return ver, nil
		}
		return op + ver, nil
	}
	return "", nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func init() {
	platform.Register(New())
}
