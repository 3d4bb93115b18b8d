// Package mig runs the compilation pipeline of one definition file:
// lex, filter conditionals, parse, analyze and generate. Artifacts are
// rendered in memory and written only when every generator succeeded.
package mig

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/raymyers/ralph-mig/pkg/ast"
	"github.com/raymyers/ralph-mig/pkg/cgen"
	"github.com/raymyers/ralph-mig/pkg/codegen"
	"github.com/raymyers/ralph-mig/pkg/cpp"
	"github.com/raymyers/ralph-mig/pkg/gobind"
	"github.com/raymyers/ralph-mig/pkg/ipctypes"
	"github.com/raymyers/ralph-mig/pkg/lexer"
	"github.com/raymyers/ralph-mig/pkg/parser"
	"github.com/raymyers/ralph-mig/pkg/preproc"
	"github.com/raymyers/ralph-mig/pkg/sema"
)

// Stage names a step of the pipeline.
type Stage int

const (
	StageRead Stage = iota
	StageLex
	StagePreprocess
	StageParse
	StageAnalyze
	StageGenerate
	StageWrite
)

var stageNames = [...]string{
	StageRead:       "read",
	StageLex:        "lex",
	StagePreprocess: "preprocessor",
	StageParse:      "parse",
	StageAnalyze:    "semantic",
	StageGenerate:   "codegen",
	StageWrite:      "write",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// StageError is the first failure of a file's pipeline. Err is the
// stage's own error type.
type StageError struct {
	Stage Stage
	File  string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.File, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Options configures one pipeline. It holds no mutable state; every run
// builds its own symbol and type tables.
type Options struct {
	Preproc preproc.Options
	// MaxMessageSize rejects larger fixed layouts; 0 disables the check.
	MaxMessageSize uint32
	// Types is the builtin type table to start from; nil means the
	// standard one. It is cloned, never written.
	Types *ipctypes.Table
	// Selection picks the C parts.
	Selection codegen.Selection
	// Safe adds the Go bindings.
	Safe bool
	Go   gobind.Options
	// Stop ends the pipeline after the named stage. The zero value runs
	// every stage.
	Stop Stage
}

func (o *Options) stopsAfter(s Stage) bool {
	return o.Stop != StageRead && o.Stop <= s
}

// Result holds what each stage produced for one file.
type Result struct {
	File      string
	Warnings  []cpp.Warning
	Tokens    []lexer.Token
	AST       *ast.Subsystem
	Subsystem *sema.Subsystem
	Artifacts []codegen.Artifact
}

// CompileFile reads file and runs the pipeline on it.
func CompileFile(file string, opts Options) (*Result, error) {
	toks, warnings, err := preproc.Preprocess(file, &opts.Preproc)
	return compile(file, toks, warnings, err, opts)
}

// Compile runs the pipeline on src. file names the source in errors and
// results. The returned Result is partial when Options.Stop ends the run
// early.
func Compile(file, src string, opts Options) (*Result, error) {
	toks, warnings, err := preproc.PreprocessString(src, &opts.Preproc)
	return compile(file, toks, warnings, err, opts)
}

// compile carries on from preprocessing, whose outcome is passed in.
func compile(file string, toks []lexer.Token, warnings []cpp.Warning, err error, opts Options) (*Result, error) {
	res := &Result{File: file}
	fail := func(s Stage, err error) (*Result, error) {
		return res, &StageError{Stage: s, File: file, Err: err}
	}

	if err != nil {
		var pathErr *fs.PathError
		var lexErr *lexer.Error
		switch {
		case errors.As(err, &pathErr):
			return nil, &StageError{Stage: StageRead, File: file, Err: err}
		case errors.As(err, &lexErr):
			return fail(StageLex, err)
		}
		return fail(StagePreprocess, err)
	}
	res.Tokens = toks
	res.Warnings = warnings
	if opts.stopsAfter(StagePreprocess) {
		return res, nil
	}

	if res.AST, err = parser.Parse(toks); err != nil {
		return fail(StageParse, err)
	}
	if opts.stopsAfter(StageParse) {
		return res, nil
	}

	res.Subsystem, err = sema.Analyze(res.AST, sema.Options{MaxMessageSize: opts.MaxMessageSize, Types: opts.Types})
	if err != nil {
		return fail(StageAnalyze, err)
	}
	if opts.stopsAfter(StageAnalyze) {
		return res, nil
	}

	if res.Artifacts, err = Generate(res.Subsystem, opts); err != nil {
		return fail(StageGenerate, err)
	}
	return res, nil
}

// Generate renders every selected artifact of s into memory.
func Generate(s *sema.Subsystem, opts Options) ([]codegen.Artifact, error) {
	arts, err := cgen.New().Files(s, opts.Selection)
	if err != nil {
		return nil, err
	}
	if opts.Safe {
		a, err := gobind.New(opts.Go).File(s)
		if err != nil {
			return nil, err
		}
		arts = append(arts, a)
	}
	return arts, nil
}
