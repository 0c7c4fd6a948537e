package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/harness/fetch-artifact/cmd/cmdutils"
	"github.com/harness/fetch-artifact/config"
	"github.com/harness/fetch-artifact/internal/style"
	"github.com/harness/fetch-artifact/internal/terminal"
)

// Execute runs the command line with args and returns the process exit code.
func Execute(args []string, version string) int {
	f := cmdutils.NewFactory()
	return execute(context.Background(), f, &config.Global, args, version)
}

func execute(ctx context.Context, f *cmdutils.Factory, g *config.GlobalFlags, args []string, version string) int {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// refined by loadGlobals once flags are parsed
	style.Init(terminal.Detect(false, false, false).ColorEnabled)

	expanded, err := cmdutils.ExpandArgFiles(args)
	if err != nil {
		printError(f.ErrOut, err)
		return 1
	}

	root := NewRootCmd(f, g, version)
	root.SetArgs(expanded)
	root.SetOut(f.Out)
	root.SetErr(f.ErrOut)

	if err := root.ExecuteContext(ctx); err != nil {
		printError(f.ErrOut, err)
		return 1
	}
	return 0
}

func printError(w io.Writer, err error) {
	if style.Enabled {
		fmt.Fprintln(w, style.Error.Render("Error: "+err.Error()))
		return
	}
	fmt.Fprintln(w, "Error:", err)
}
