package dockerfile

import (
	"bytes"

	"github.com/moby/buildkit/frontend/dockerfile/instructions"
	"github.com/moby/buildkit/frontend/dockerfile/parser"
)

// ParseResult contains the parsed Dockerfile information
type ParseResult struct {
	// AST is the parsed Dockerfile AST from BuildKit
	AST *parser.Result
	// Stages are the build stages in order
	Stages []instructions.Stage
	// MetaArgs are the ARG instructions before the first FROM
	MetaArgs []instructions.ArgCommand
}

// Parse parses Dockerfile content into its AST and build stages.
func Parse(content []byte) (*ParseResult, error) {
	ast, err := parser.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	stages, metaArgs, err := instructions.Parse(ast.AST, nil)
	if err != nil {
		return nil, err
	}

	return &ParseResult{
		AST:      ast,
		Stages:   stages,
		MetaArgs: metaArgs,
	}, nil
}
