package dockerfile

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/distribution/reference"
	"github.com/moby/buildkit/frontend/dockerfile/instructions"
	"github.com/moby/buildkit/frontend/dockerfile/parser"
	"github.com/moby/buildkit/frontend/dockerfile/shell"
	"mvdan.cc/sh/v3/syntax"
)

// ValidationError describes a problem in a rendered Dockerfile.
type ValidationError struct {
	// Line is the 1-based line of the offending instruction, 0 when unknown.
	Line int
	Msg  string
}

func (e *ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return e.Msg
}

// Validate checks that content is a well-formed Dockerfile: it parses,
// every FROM names a valid image reference or an earlier stage once global
// ARG defaults are substituted, and every shell-form RUN is valid shell.
func Validate(content []byte) error {
	result, err := Parse(content)
	if err != nil {
		return &ValidationError{Msg: err.Error()}
	}
	if len(result.Stages) == 0 {
		return &ValidationError{Msg: "no FROM instruction"}
	}

	env := newArgEnv(result.MetaArgs)
	shlex := shell.NewLex(result.AST.EscapeToken)
	stageNames := make(map[string]bool)

	for _, stage := range result.Stages {
		if err := validateBase(stage, shlex, env, stageNames); err != nil {
			return err
		}
		if stage.Name != "" {
			stageNames[strings.ToLower(stage.Name)] = true
		}
		for _, cmd := range stage.Commands {
			run, ok := cmd.(*instructions.RunCommand)
			if !ok || !run.PrependShell {
				continue
			}
			if err := validateShell(strings.Join(run.CmdLine, " ")); err != nil {
				return &ValidationError{Line: lineOf(run.Location()), Msg: "RUN: " + err.Error()}
			}
		}
	}
	return nil
}

func validateBase(stage instructions.Stage, shlex *shell.Lex, env *argEnv, stageNames map[string]bool) error {
	line := lineOf(stage.Location)

	res, err := shlex.ProcessWordWithMatches(stage.BaseName, env)
	if err != nil {
		return &ValidationError{Line: line, Msg: "FROM: " + err.Error()}
	}
	if len(res.Unmatched) > 0 {
		return &ValidationError{
			Line: line,
			Msg:  "FROM references undefined ARG " + strings.Join(slices.Sorted(maps.Keys(res.Unmatched)), ", "),
		}
	}

	base := res.Result
	if base == "scratch" || stageNames[strings.ToLower(base)] {
		return nil
	}
	if _, err := reference.ParseNormalizedNamed(base); err != nil {
		return &ValidationError{Line: line, Msg: fmt.Sprintf("FROM %q: %v", base, err)}
	}
	return nil
}

func validateShell(script string) error {
	sp := syntax.NewParser(
		syntax.Variant(syntax.LangBash),
		syntax.KeepComments(false),
	)
	_, err := sp.Parse(strings.NewReader(script), "")
	return err
}

func lineOf(locs []parser.Range) int {
	if len(locs) == 0 {
		return 0
	}
	return locs[0].Start.Line
}

// argEnv is a minimal EnvGetter implementation for BuildKit's shell lexer,
// holding the global ARG defaults used to expand FROM.
type argEnv struct {
	vars map[string]string
}

func newArgEnv(metaArgs []instructions.ArgCommand) *argEnv {
	env := &argEnv{vars: make(map[string]string)}
	for _, arg := range metaArgs {
		for _, kv := range arg.Args {
			if kv.Value != nil {
				env.vars[kv.Key] = *kv.Value
			}
		}
	}
	return env
}

func (e *argEnv) Get(key string) (string, bool) {
	v, ok := e.vars[key]
	return v, ok
}

func (e *argEnv) Keys() []string {
	return slices.Sorted(maps.Keys(e.vars))
}
