package sysroot

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type app struct {
	v        *viper.Viper
	settings Settings
	cfgFile  string

	newIndex      func(*Executor) PackageIndex
	newDownloader func(kind string, execCtx *Executor) (Downloader, error)
}

func newApp() *app {
	return &app{
		v:             NewViper(),
		newIndex:      func(e *Executor) PackageIndex { return NewAptIndex(e) },
		newDownloader: NewDownloader,
	}
}

// NewRootCommand builds the command tree; every compiled-in target becomes a
// subcommand that takes no arguments.
func NewRootCommand() (*cobra.Command, error) {
	return newApp().rootCommand()
}

func (a *app) rootCommand() (*cobra.Command, error) {
	targets, err := Targets()
	if err != nil {
		return nil, err
	}

	root := &cobra.Command{
		Use:           "debsysroot",
		Short:         "Build cross-compilation sysroots from Debian packages",
		Long:          "debsysroot resolves the dependency closure of a target's packages with apt, downloads and unpacks the .deb files, makes symlinks relative and bundles the tree as a tar.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			s, err := LoadSettings(a.v, a.cfgFile)
			if err != nil {
				return err
			}
			a.settings = s
			Debug = s.Debug
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default ./debsysroot.toml)")
	root.PersistentFlags().StringP("workdir", "C", ".", "directory the sysroot is assembled in")
	root.PersistentFlags().BoolP("debug", "d", false, "debug output")
	_ = a.v.BindPFlag("workdir", root.PersistentFlags().Lookup("workdir"))
	_ = a.v.BindPFlag("debug", root.PersistentFlags().Lookup("debug"))

	for _, t := range targets {
		root.AddCommand(a.targetCommand(t))
	}
	root.AddCommand(a.targetsCommand(targets), a.resolveCommand(), versionCommand())
	return root, nil
}

func (a *app) targetCommand(t Target) *cobra.Command {
	cmd := &cobra.Command{
		Use:   t.Name,
		Short: t.Description,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f := cmd.Flags().Lookup("publish"); f.Changed {
				a.settings.Publish.Enabled = f.Value.String() == "true"
			}
			return a.build(cmd.Context(), t)
		},
	}
	cmd.Flags().Bool("publish", false, "upload the bundle to the configured bucket")
	return cmd
}

func (a *app) build(ctx context.Context, t Target) error {
	s := a.settings
	execCtx := NewExecutor(ctx)
	dl, err := a.newDownloader(s.Downloader, execCtx)
	if err != nil {
		return err
	}
	opts := BuildOptions{
		WorkDir:    s.WorkDir,
		Index:      a.newIndex(execCtx),
		Downloader: dl,
		Bundler:    &TarBundler{Digest: s.Digest},
	}
	if s.Publish.Enabled {
		opts.Publisher, err = NewPublisher(ctx, s.Publish)
		if err != nil {
			return &StageError{Stage: StagePublish, Subject: t.Name, Err: err}
		}
	}

	arrowf(colInfo, "building %s in %s\n", t.Name, s.WorkDir)
	res, err := Build(ctx, t, opts)
	if err != nil {
		return err
	}
	arrowf(colSuccess, "%s: %d packages, %d archives -> %s\n",
		t.Name, len(res.Packages), len(res.Descriptors), res.BundlePath)
	return nil
}

func (a *app) targetsCommand(targets []Target) *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List the compiled-in sysroot targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, t := range targets {
				fmt.Fprintf(out, "%-20s %s\n", t.Name, t.Description)
				fmt.Fprintf(out, "%-20s packages: %s\n", "", strings.Join(t.Packages, " "))
				fmt.Fprintf(out, "%-20s exclude:  %s\n", "", strings.Join(t.Exclude, " "))
			}
			return nil
		},
	}
}

func (a *app) resolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <target>",
		Short: "Print the resolved package set and download URIs without downloading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := FindTarget(args[0])
			if err != nil {
				return err
			}
			pkgs, descs, err := Plan(cmd.Context(), t, a.newIndex(NewExecutor(cmd.Context())))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range pkgs {
				fmt.Fprintln(out, p)
			}
			fmt.Fprintln(out)
			for _, d := range descs {
				fmt.Fprintf(out, "%s %s\n", d.Package, d.URI)
			}
			return nil
		},
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "debsysroot %s (built %s)\n", version, buildDate)
		},
	}
}

// Main is the CLI entrypoint for cmd/debsysroot.
func Main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, newApp(), os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line in args and returns the process exit code:
// 0 on success, 1 on any failure.
func run(ctx context.Context, a *app, args []string, stderr io.Writer) int {
	root, err := a.rootCommand()
	if err == nil {
		root.SetArgs(args)
		err = root.ExecuteContext(ctx)
	}
	if err != nil {
		fmt.Fprint(stderr, colArrow.Sprint("-> "))
		fmt.Fprintln(stderr, colError.Sprint(err.Error()))
		return 1
	}
	return 0
}
