package mig

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/raymyers/ralph-mig/pkg/diag"
)

// Batch compiles many files concurrently. Files never affect each other:
// a failing file leaves no output and does not stop the rest.
type Batch struct {
	Options Options
	// Output is the directory artifacts are written to.
	Output string
	// Jobs bounds the files in flight; 0 or less means one per file.
	Jobs int
	// Reporter, when set, receives failures and progress as they happen.
	Reporter *diag.Reporter
}

// Outcome is the result of one file of a batch.
type Outcome struct {
	File    string
	Written []string
	Err     error
}

// Run compiles files and returns one outcome per file, in input order.
// Files not started before ctx is cancelled fail with ctx's error.
func (b *Batch) Run(ctx context.Context, files []string) []Outcome {
	out := make([]Outcome, len(files))
	g, ctx := errgroup.WithContext(ctx)
	if b.Jobs > 0 {
		g.SetLimit(b.Jobs)
	}
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			out[i] = b.one(ctx, f)
			return nil
		})
	}
	g.Wait()
	return out
}

func (b *Batch) one(ctx context.Context, file string) Outcome {
	o := Outcome{File: file}
	if err := ctx.Err(); err != nil {
		o.Err = &StageError{Stage: StageRead, File: file, Err: err}
		b.report(o.Err)
		return o
	}
	if b.Reporter != nil {
		b.Reporter.Progressf("compiling %s", file)
	}
	res, err := CompileFile(file, b.Options)
	if res != nil && b.Reporter != nil {
		for _, w := range res.Warnings {
			b.Reporter.Warnf("%s: %s", file, w)
		}
	}
	if err != nil {
		o.Err = err
		b.report(err)
		return o
	}
	if len(res.Artifacts) == 0 {
		return o
	}
	o.Written, err = WriteArtifacts(b.Output, res.Artifacts)
	if err != nil {
		o.Err = &StageError{Stage: StageWrite, File: file, Err: err}
		b.report(o.Err)
		return o
	}
	if b.Reporter != nil {
		for _, p := range o.Written {
			b.Reporter.Wrote(file, p)
		}
	}
	return o
}

func (b *Batch) report(err error) {
	if b.Reporter == nil {
		return
	}
	if se, ok := err.(*StageError); ok {
		b.Reporter.Failure(se.File, se.Stage.String(), se.Err)
		return
	}
	b.Reporter.Errorf("%v", err)
}

// Failed counts the outcomes carrying an error.
func Failed(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}
