// Package cmd wires the fetch-artifact command line.
package cmd

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/harness/fetch-artifact/cmd/cmdutils"
	"github.com/harness/fetch-artifact/config"
	internalconfig "github.com/harness/fetch-artifact/internal/config"
	"github.com/harness/fetch-artifact/internal/style"
	"github.com/harness/fetch-artifact/internal/terminal"
	"github.com/harness/fetch-artifact/module/fetch"
	"github.com/harness/fetch-artifact/util/common"
	"github.com/harness/fetch-artifact/util/common/errors"
	"github.com/harness/fetch-artifact/util/common/fileutil"
	"github.com/harness/fetch-artifact/util/common/printer"
	"github.com/harness/fetch-artifact/util/metadata"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const defaultConfigFile = "config.yaml"

// requestFlags maps the dashed spelling of each request flag to its
// canonical underscore name.
var requestFlags = map[string]string{
	"file-url":             "file_url",
	"artifact-name":        "artifact_name",
	"artifact-type":        "artifact_type",
	"artifact-description": "artifact_description",
}

// NewRootCmd returns the fetch-artifact command. g receives the parsed flags.
func NewRootCmd(f *cmdutils.Factory, g *config.GlobalFlags, version string) *cobra.Command {
	var (
		req         fetch.Request
		metadataStr string
	)

	cmd := &cobra.Command{
		Use:   "fetch-artifact",
		Short: "Download a file and log it as a versioned artifact",
		Long: heredoc.Doc(`
			Download a file from a URL and register it as a new version of an
			artifact in the experiment-tracking backend.

			The file is streamed to a temporary location, attached to the artifact
			under the last element of the URL path and removed once the backend
			has committed the upload.

			Arguments may be read from files: every @path argument is replaced by
			the lines of path, one argument per line.
		`),
		Example: heredoc.Doc(`
			# Register a CSV with the local store
			$ fetch-artifact --file_url https://example.org/data/sample.csv?v=2 \
			    --artifact_name sample --artifact_type raw_data \
			    --artifact_description "test"

			# Register against a tracking server, reading arguments from a file
			$ export FETCH_ARTIFACT_API_KEY=...
			$ fetch-artifact --api-url https://tracker.example.com --entity vision @args.txt
		`),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return loadGlobals(cmd, f, g)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if metadataStr != "" {
				md, err := metadata.ParseMetadataString(metadataStr)
				if err != nil {
					return err
				}
				req.Metadata = md
			}
			return run(cmd, f, g, req)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.SourceURL, "file_url", "", "URL to the input file")
	flags.StringVar(&req.ArtifactName, "artifact_name", "", "Name for the artifact")
	flags.StringVar(&req.ArtifactType, "artifact_type", "", "Type for the artifact")
	flags.StringVar(&req.Description, "artifact_description", "", "Description for the artifact")
	flags.StringVar(&metadataStr, "metadata", "", "Extra artifact metadata as key:value pairs separated by commas")
	for _, name := range requestFlags {
		_ = cmd.MarkFlagRequired(name)
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&g.ConfigPath, "config", "", "Config file (.yaml, .yml or .toml); defaults to ~/.fetch-artifact/"+defaultConfigFile+" when present")
	pf.StringVar(&g.Format, "format", g.Format, "Format of the result: table or json")
	pf.StringVar(&g.LogLevel, "log-level", g.LogLevel, "Log level: trace, debug, info, warn or error")
	pf.BoolVar(&g.LogJSON, "log-json", g.LogJSON, "Write logs as JSON lines")
	pf.BoolVar(&g.NoColor, "no-color", g.NoColor, "Disable colour output (also respects NO_COLOR env)")
	pf.BoolVar(&g.NoProgress, "no-progress", g.NoProgress, "Disable progress bars")

	pf.StringVar(&g.Tracking.Backend, "backend", g.Tracking.Backend, "Tracking backend: auto, remote or local")
	pf.StringVar(&g.Tracking.APIBaseURL, "api-url", g.Tracking.APIBaseURL, "Base URL of the tracking server (env "+internalconfig.EnvAPIURL+")")
	pf.StringVar(&g.Tracking.APIKey, "api-key", g.Tracking.APIKey, "API key for the tracking server (env "+internalconfig.EnvAPIKey+")")
	pf.StringVar(&g.Tracking.Entity, "entity", g.Tracking.Entity, "Entity (team or user) owning the project (env "+internalconfig.EnvEntity+")")
	pf.StringVar(&g.Tracking.Project, "project", g.Tracking.Project, "Project the run and artifact belong to (env "+internalconfig.EnvProject+")")
	pf.StringVar(&g.Tracking.StoreDir, "store-dir", g.Tracking.StoreDir, "Directory of the local artifact store (env "+internalconfig.EnvStoreDir+")")
	pf.IntVar(&g.Tracking.Retries, "tracking-retries", g.Tracking.Retries, "Retries for tracking server reads and run status updates")
	pf.DurationVar(&g.Tracking.Timeout, "tracking-timeout", g.Tracking.Timeout, "Timeout of a single tracking server call")
	pf.DurationVar(&g.Tracking.WaitTimeout, "wait-timeout", g.Tracking.WaitTimeout, "How long to wait for the artifact to be committed (0 waits forever)")
	pf.DurationVar(&g.Tracking.PollInterval, "poll-interval", g.Tracking.PollInterval, "How often to poll the backend while waiting")

	pf.IntVar(&g.Download.Retries, "download-retries", g.Download.Retries, "Retries for the download request")
	pf.DurationVar(&g.Download.Timeout, "download-timeout", g.Download.Timeout, "Timeout of each download attempt, including the body (0 disables)")
	pf.StringVar(&g.Download.TempDir, "temp-dir", g.Download.TempDir, "Directory for the temporary download (default system temp dir)")
	pf.StringVar(&g.Download.UserAgent, "user-agent", g.Download.UserAgent, "User-Agent header of the download request")
	pf.StringSliceVar(&g.Download.AllowedHosts, "allowed-host", g.Download.AllowedHosts, "Only download from hosts matching these glob patterns")

	cmd.SetGlobalNormalizationFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		if canonical, ok := requestFlags[name]; ok {
			name = canonical
		}
		return pflag.NormalizedName(name)
	})

	cmd.AddCommand(newVersionCmd(f, version))
	return cmd
}

// loadGlobals layers config file, environment and flags into g.
func loadGlobals(cmd *cobra.Command, f *cmdutils.Factory, g *config.GlobalFlags) error {
	changed := func(name string) bool {
		fl := cmd.Flags().Lookup(name)
		return fl != nil && fl.Changed
	}

	home, err := f.HomeDir()
	if err != nil {
		home = ""
	}

	path := g.ConfigPath
	if path == "" && home != "" {
		if candidate := filepath.Join(home, ".fetch-artifact", defaultConfigFile); fileutil.IsFile(candidate) {
			path = candidate
		}
	}
	if path != "" {
		cfg, err := internalconfig.LoadConfig(path)
		if err != nil {
			return errors.Wrap(err, "config "+path)
		}
		internalconfig.Apply(cfg, g, changed)
	}

	internalconfig.ApplyEnv(g, changed, f.Getenv)
	if err := internalconfig.Resolve(g, home); err != nil {
		return err
	}

	f.Terminal = terminal.Detect(g.NoColor, g.NoProgress, g.Format == config.FormatJSON)
	style.Init(f.Terminal.ColorEnabled)
	return nil
}

func run(cmd *cobra.Command, f *cmdutils.Factory, g *config.GlobalFlags, req fetch.Request) error {
	logger, err := f.Logger(g)
	if err != nil {
		return err
	}
	tracker, err := f.Tracker(g, logger)
	if err != nil {
		return err
	}
	downloader, err := f.Downloader(g, logger)
	if err != nil {
		return err
	}

	pipeline := fetch.NewPipeline(downloader, tracker,
		fetch.WithLogger(logger),
		fetch.WithReporter(f.Reporter()),
		fetch.WithTempDir(g.Download.TempDir),
		fetch.WithWaitTimeout(g.Tracking.WaitTimeout),
	)
	res, err := pipeline.Run(cmd.Context(), req)
	if err != nil {
		return err
	}
	return printResult(f, g, res)
}

func printResult(f *cmdutils.Factory, g *config.GlobalFlags, res *fetch.Result) error {
	if g.Format == config.FormatJSON {
		opts := printer.DefaultJsonOptions()
		opts.Writer = f.Out
		return printer.PrintJsonWithOptions(res, opts)
	}

	return printer.PrintFields(f.Out, []printer.Field{
		{Name: "Artifact", Value: res.Name + ":" + res.Version},
		{Name: "Type", Value: res.Type},
		{Name: "File", Value: res.Filename},
		{Name: "Size", Value: common.GetSize(res.Size)},
		{Name: "Digest", Value: res.Digest.String()},
		{Name: "Run", Value: res.RunID},
		{Name: "State", Value: string(res.State)},
		{Name: "Metadata", Value: strings.ReplaceAll(metadata.FormatMetadataOutput(res.Metadata), "\n", ", ")},
		{Name: "Duration", Value: res.Duration.Round(time.Millisecond).String()},
	})
}
