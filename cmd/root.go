package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/marcus/shelf/internal/catalog"
	"github.com/marcus/shelf/internal/config"
	"github.com/marcus/shelf/internal/connectivity"
	"github.com/marcus/shelf/internal/db"
	"github.com/marcus/shelf/internal/output"
	"github.com/marcus/shelf/internal/remote"
	"github.com/marcus/shelf/internal/suggest"
	"github.com/marcus/shelf/internal/workdir"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	version string
	baseDir string

	// baseDirOverride replaces the working directory, for tests.
	baseDirOverride *string

	// logOutput is where the CLI logger writes.
	logOutput io.Writer = os.Stderr
)

// SetVersion sets the version string
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

var rootCmd = &cobra.Command{
	Use:   "shelf",
	Short: "Book catalog that works online and offline",
	Long: `shelf - A book catalog client that talks to the catalog API when it is reachable
and falls back to a local SQLite store when it is not.

Offline changes are uploaded with 'shelf sync'; 'shelf pull' caches the remote catalog locally.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		level := slog.LevelWarn
		if debug {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{Level: level})))

		offline, _ := cmd.Flags().GetBool("offline")
		online, _ := cmd.Flags().GetBool("online")
		if offline && online {
			return fmt.Errorf("--offline and --online are mutually exclusive")
		}
		return nil
	},
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		var done *reportedError
		if errors.As(err, &done) {
			os.Exit(1)
		}
		if asJSON, _ := rootCmd.PersistentFlags().GetBool("json"); asJSON {
			output.JSONError(output.ErrorCode(err), err.Error())
		} else {
			output.Error("%v", err)
		}
		os.Exit(1)
	}
}

// reportedError marks a failure the command already printed.
type reportedError struct{ error }

func (e *reportedError) Unwrap() error { return e.error }

func reported(err error) error {
	return &reportedError{err}
}

// nameWithAliases returns "name, alias1, alias2" if aliases exist, else just "name"
func nameWithAliases(cmd *cobra.Command) string {
	if len(cmd.Aliases) > 0 {
		return cmd.Name() + ", " + strings.Join(cmd.Aliases, ", ")
	}
	return cmd.Name()
}

func init() {
	cobra.OnInitialize(initBaseDir)

	cobra.AddTemplateFunc("nameWithAliases", nameWithAliases)

	// Custom usage template that shows aliases inline
	usageTemplate := `Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if gt (len .Aliases) 0}}

Aliases:
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}{{$cmds := .Commands}}{{if eq (len .Groups) 0}}

Available Commands:{{range $cmds}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad (nameWithAliases .) (add .NamePadding 8)}} {{.Short}}{{end}}{{end}}{{else}}{{range $group := .Groups}}

{{.Title}}{{range $cmds}}{{if (and (eq .GroupID $group.ID) (or .IsAvailableCommand (eq .Name "help")))}}
  {{rpad (nameWithAliases .) (add .NamePadding 8)}} {{.Short}}{{end}}{{end}}{{end}}{{if not .AllChildCommandsHaveGroup}}

Additional Commands:{{range $cmds}}{{if (and (eq .GroupID "") (or .IsAvailableCommand (eq .Name "help")))}}
  {{rpad (nameWithAliases .) (add .NamePadding 8)}} {{.Short}}{{end}}{{end}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasHelpSubCommands}}

Additional help topics:{{range .Commands}}{{if .IsAdditionalHelpTopicCommand}}
  {{rpad .CommandPath .CommandPathPadding}} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableSubCommands}}

Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`

	cobra.AddTemplateFunc("add", func(a, b int) int { return a + b })

	rootCmd.SetUsageTemplate(usageTemplate)

	rootCmd.AddGroup(
		&cobra.Group{ID: "catalog", Title: "Catalog Commands:"},
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "cart", Title: "Cart Commands:"},
		&cobra.Group{ID: "system", Title: "System Commands:"},
	)

	rootCmd.SetFlagErrorFunc(flagError)

	rootCmd.SetHelpCommandGroupID("system")
	rootCmd.SetCompletionCommandGroupID("system")

	pf := rootCmd.PersistentFlags()
	pf.Bool("offline", false, "use the local store only")
	pf.Bool("online", false, "skip the connectivity probe and use the remote API")
	pf.String("server", "", "catalog API base URL (overrides config and SHELF_SERVER_URL)")
	pf.Bool("json", false, "JSON output")
	pf.Bool("debug", false, "debug logging on stderr")
}

// flagError adds a hint to unknown flag errors.
func flagError(cmd *cobra.Command, err error) error {
	name, ok := strings.CutPrefix(err.Error(), "unknown flag: ")
	if !ok {
		return err
	}
	if hint := suggest.GetFlagHint(name); hint != "" {
		return fmt.Errorf("%w (try %s)", err, hint)
	}
	var valid []string
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		valid = append(valid, "--"+f.Name)
	})
	if near := suggest.Closest(name, valid); len(near) > 0 {
		return fmt.Errorf("%w (did you mean %s?)", err, strings.Join(near, ", "))
	}
	return err
}

func initBaseDir() {
	if baseDirOverride != nil {
		baseDir = *baseDirOverride
		return
	}
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot determine working directory: %v\n", err)
		os.Exit(1)
	}
	baseDir = workdir.ResolveBaseDir(cwd)
}

// getBaseDir returns the base directory for the project
func getBaseDir() string {
	return baseDir
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

// serverURL resolves --server, then SHELF_SERVER_URL, then config.
func serverURL(cmd *cobra.Command) string {
	if s, _ := cmd.Flags().GetString("server"); s != "" {
		return strings.TrimRight(s, "/")
	}
	return config.GetServerURL(getBaseDir())
}

// newProber picks the connectivity source from the flags and config.
func newProber(cmd *cobra.Command, url string) connectivity.Prober {
	baseDir := getBaseDir()
	if offline, _ := cmd.Flags().GetBool("offline"); offline {
		return connectivity.Fixed(false)
	}
	if online, _ := cmd.Flags().GetBool("online"); online {
		return connectivity.Fixed(true)
	}
	if config.GetOffline(baseDir) {
		return connectivity.Fixed(false)
	}
	p := connectivity.NewProbe(url)
	p.Timeout = config.GetProbeTimeout(baseDir)
	return p
}

// session bundles the service with the resources it owns.
type session struct {
	svc    *catalog.Service
	prober connectivity.Prober
	db     *db.DB
}

func (s *session) Close() error {
	return s.db.Close()
}

// openSession opens the local store and wires it with the remote client.
func openSession(cmd *cobra.Command) (*session, error) {
	baseDir := getBaseDir()

	database, err := db.Open(baseDir)
	if err != nil {
		return nil, err
	}

	url := serverURL(cmd)
	client := remote.New(url).WithTimeout(config.GetRequestTimeout(baseDir))
	prober := newProber(cmd, url)
	svc := catalog.New(database, client, prober, catalog.WithLogger(slog.Default()))

	slog.Debug("cli: session opened", "db", database.FilePath(), "server", url)
	return &session{svc: svc, prober: prober, db: database}, nil
}
