package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/raymyers/ralph-mig/pkg/ast"
	"github.com/raymyers/ralph-mig/pkg/codegen"
	"github.com/raymyers/ralph-mig/pkg/config"
	"github.com/raymyers/ralph-mig/pkg/diag"
	"github.com/raymyers/ralph-mig/pkg/gobind"
	"github.com/raymyers/ralph-mig/pkg/lexer"
	"github.com/raymyers/ralph-mig/pkg/mig"
	"github.com/raymyers/ralph-mig/pkg/preproc"
)

var version = "0.1.0"

// errFailed reports that at least one file failed; its diagnostics are
// already printed.
var errFailed = errors.New("compilation failed")

// options are the command line settings not carried by config.Config.
type options struct {
	configFile string
	verbose    bool
	syntaxOnly bool
	dumpConfig bool

	// dumps
	dTokens    bool
	preprocess bool // -E
	dParse     bool
	dLayout    bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) int {
	rootCmd := newRootCmd(out, errOut)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintf(errOut, "%s: %v\n", diag.Prog, err)
		}
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	var opts options
	flagCfg := config.Default()

	rootCmd := &cobra.Command{
		Use:   "ralph-mig [flags] file.defs...",
		Short: "ralph-mig compiles Mach interface definitions",
		Long: `ralph-mig compiles Mach interface definition files into C client and
server stubs and into memory-safe Go bindings. Every file is compiled
independently; a failing file leaves no output behind.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := mergeConfig(cmd.Flags(), &opts, flagCfg)
			if err != nil {
				return err
			}
			if opts.dumpConfig {
				return config.Dump(out, &cfg)
			}
			if len(args) == 0 {
				return cmd.Help()
			}
			rep := diag.New(errOut, cfg.Color, opts.verbose)
			if opts.dumping() {
				return doDumps(args, &opts, &cfg, out, rep)
			}
			return doCompile(cmd.Context(), args, &opts, &cfg, rep)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	f := rootCmd.Flags()
	f.StringVarP(&flagCfg.Output, "output", "o", flagCfg.Output, "Directory to write generated files to")
	f.BoolVar(&flagCfg.User, "user", false, "Generate the C client stubs")
	f.BoolVar(&flagCfg.Server, "server", false, "Generate the C server stubs and demultiplexer")
	f.BoolVar(&flagCfg.Header, "header", false, "Generate the C client header")
	f.BoolVar(&flagCfg.Safe, "safe", false, "Generate the memory-safe Go bindings")
	f.StringArrayVarP(&flagCfg.Defines, "define", "D", nil, "Define symbol (NAME or NAME=0|1)")
	f.StringArrayVarP(&flagCfg.Undefines, "undefine", "U", nil, "Undefine symbol")
	f.Uint32Var(&flagCfg.MaxMessageSize, "max-message-size", 0, "Reject messages larger than this many bytes (0: no limit)")
	f.BoolVar(&flagCfg.Async, "async", false, "Add context-aware asynchronous wrappers to the Go bindings")
	f.BoolVar(&flagCfg.ServerInterface, "server-interface", false, "Add the Server interface and Dispatch to the Go bindings")
	f.StringVar(&flagCfg.RuntimeImport, "runtime-import", gobind.DefaultRuntimeImport, "Import path of the Go runtime package")
	f.StringVar(&flagCfg.Package, "package", "", "Package clause of the Go bindings (default: derived from the subsystem)")
	f.IntVarP(&flagCfg.Jobs, "jobs", "j", flagCfg.Jobs, "Number of files compiled at once")
	f.StringVar(&flagCfg.Color, "color", flagCfg.Color, "Colour diagnostics: auto, always or never")

	f.StringVar(&opts.configFile, "config", "", "TOML configuration file")
	f.BoolVar(&opts.dumpConfig, "dump-config", false, "Print the effective configuration and exit")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Report progress and the files written")
	f.BoolVarP(&opts.syntaxOnly, "syntax-only", "n", false, "Check the files without generating anything")

	f.BoolVar(&opts.dTokens, "dtokens", false, "Dump the raw token stream")
	f.BoolVarP(&opts.preprocess, "preprocess", "E", false, "Dump the filtered source")
	f.BoolVar(&opts.dParse, "dparse", false, "Dump after parsing")
	f.BoolVar(&opts.dLayout, "dlayout", false, "Dump the analyzed message layouts as YAML")

	return rootCmd
}

func (o *options) dumping() bool {
	return o.dTokens || o.preprocess || o.dParse || o.dLayout
}

// flagFields maps flag names to the Config field they set.
var flagFields = map[string]func(dst, src *config.Config){
	"output":           func(d, s *config.Config) { d.Output = s.Output },
	"user":             func(d, s *config.Config) { d.User = s.User },
	"server":           func(d, s *config.Config) { d.Server = s.Server },
	"header":           func(d, s *config.Config) { d.Header = s.Header },
	"safe":             func(d, s *config.Config) { d.Safe = s.Safe },
	"define":           func(d, s *config.Config) { d.Defines = s.Defines },
	"undefine":         func(d, s *config.Config) { d.Undefines = s.Undefines },
	"max-message-size": func(d, s *config.Config) { d.MaxMessageSize = s.MaxMessageSize },
	"async":            func(d, s *config.Config) { d.Async = s.Async },
	"server-interface": func(d, s *config.Config) { d.ServerInterface = s.ServerInterface },
	"runtime-import":   func(d, s *config.Config) { d.RuntimeImport = s.RuntimeImport },
	"package":          func(d, s *config.Config) { d.Package = s.Package },
	"jobs":             func(d, s *config.Config) { d.Jobs = s.Jobs },
	"color":            func(d, s *config.Config) { d.Color = s.Color },
}

// mergeConfig starts from the defaults, applies the config file and then
// every flag given on the command line.
func mergeConfig(flags *pflag.FlagSet, opts *options, flagCfg config.Config) (config.Config, error) {
	cfg := config.Default()
	cfg.RuntimeImport = gobind.DefaultRuntimeImport
	if opts.configFile != "" {
		if err := config.Load(opts.configFile, &cfg); err != nil {
			return cfg, err
		}
	}
	flags.Visit(func(f *pflag.Flag) {
		if set, ok := flagFields[f.Name]; ok {
			set(&cfg, &flagCfg)
		}
	})
	return cfg, cfg.Validate()
}

// pipelineOptions turns the merged settings into pipeline options.
func pipelineOptions(opts *options, cfg *config.Config) mig.Options {
	m := mig.Options{
		Preproc:        preproc.Options{Defines: cfg.Defines, Undefines: cfg.Undefines},
		MaxMessageSize: cfg.MaxMessageSize,
		Go: gobind.Options{
			Package:         cfg.Package,
			RuntimeImport:   cfg.RuntimeImport,
			Async:           cfg.Async,
			ServerInterface: cfg.ServerInterface,
		},
	}
	if cfg.AnyPart() {
		m.Selection = codegen.Selection{User: cfg.User, Server: cfg.Server, Header: cfg.Header}
		m.Safe = cfg.Safe
	} else {
		m.Selection = codegen.All
		m.Safe = true
	}
	if opts.syntaxOnly {
		m.Stop = mig.StageAnalyze
	}
	return m
}

func doCompile(ctx context.Context, files []string, opts *options, cfg *config.Config, rep *diag.Reporter) error {
	if ctx == nil {
		ctx = context.Background()
	}
	b := &mig.Batch{
		Options:  pipelineOptions(opts, cfg),
		Output:   cfg.Output,
		Jobs:     cfg.Jobs,
		Reporter: rep,
	}
	outcomes := b.Run(ctx, files)
	if n := mig.Failed(outcomes); n > 0 {
		rep.Progressf("%d of %d files failed", n, len(files))
		return errFailed
	}
	return nil
}

// doDumps prints the requested intermediate forms of each file in turn.
func doDumps(files []string, opts *options, cfg *config.Config, out io.Writer, rep *diag.Reporter) error {
	m := pipelineOptions(opts, cfg)
	switch {
	case opts.dLayout:
		m.Stop = mig.StageAnalyze
	case opts.dParse:
		m.Stop = mig.StageParse
	default:
		m.Stop = mig.StagePreprocess
	}

	failed := false
	for _, file := range files {
		if err := dumpFile(file, opts, m, out); err != nil {
			reportErr(rep, file, err)
			failed = true
		}
	}
	if failed {
		return errFailed
	}
	return nil
}

func dumpFile(file string, opts *options, m mig.Options, out io.Writer) error {
	if opts.dTokens {
		src, err := os.ReadFile(file)
		if err != nil {
			return &mig.StageError{Stage: mig.StageRead, File: file, Err: err}
		}
		toks, err := lexer.New(string(src), lexer.Options{KeepComments: true}).Tokenize()
		if err != nil {
			return &mig.StageError{Stage: mig.StageLex, File: file, Err: err}
		}
		for _, t := range toks {
			fmt.Fprintln(out, t)
		}
		if !opts.preprocess && !opts.dParse && !opts.dLayout {
			return nil
		}
	}

	res, err := mig.CompileFile(file, m)
	if err != nil {
		return err
	}
	if opts.preprocess {
		fmt.Fprint(out, preproc.Format(res.Tokens))
	}
	if opts.dParse {
		ast.NewPrinter(out).PrintSubsystem(res.AST)
	}
	if opts.dLayout {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(res.Subsystem); err != nil {
			return err
		}
		return enc.Close()
	}
	return nil
}

func reportErr(rep *diag.Reporter, file string, err error) {
	var se *mig.StageError
	if errors.As(err, &se) {
		rep.Failure(se.File, se.Stage.String(), se.Err)
		return
	}
	rep.Failure(file, "dump", err)
}
