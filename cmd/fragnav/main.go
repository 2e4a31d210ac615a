package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fragnav/fragnav/internal/devserver"
	"github.com/fragnav/fragnav/internal/logger"
	"github.com/fragnav/fragnav/internal/report"
	"github.com/fragnav/fragnav/pkg/engine"
)

var (
	version = "1.0.0"

	// Global flags
	verbose bool

	// Check flags
	baseURL    string
	outputFile string
	pretty     bool
	stream     bool
	timeout    int

	// Serve flags
	addr     string
	siteRoot string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fragnav",
		Short: "fragnav - hash-navigation site tooling",
		Long: `fragnav - tooling for hash-navigated sites.

Checks that every declared route assembles cleanly (titles, fragments,
styles, scripts), and serves a site directory with live reload during
development.`,
		Version: version,
	}

	checkCmd := &cobra.Command{
		Use:   "check [config]",
		Short: "Check every route in a site configuration",
		Long:  "Assemble every route in the site's route table and report broken fragments, scripts and templates.",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheck,
	}

	serveCmd := &cobra.Command{
		Use:   "serve [dir]",
		Short: "Serve a site directory with live reload",
		Long:  "Serve a site directory over HTTP, pushing reload notifications to connected browsers when files change.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runServe,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("fragnav %s\n", version)
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	checkCmd.Flags().StringVar(&baseURL, "base-url", "", "Override the configured base URL")
	checkCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	checkCmd.Flags().BoolVar(&pretty, "pretty", true, "Pretty-print JSON output")
	checkCmd.Flags().BoolVar(&stream, "stream", false, "Stream per-route results as they complete")
	checkCmd.Flags().IntVarP(&timeout, "timeout", "t", 10, "Request timeout in seconds")

	serveCmd.Flags().StringVarP(&addr, "addr", "a", ":8473", "Listen address")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	config, err := engine.LoadFromFile(args[0])
	if err != nil {
		return err
	}

	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if cmd.Flags().Changed("timeout") {
		config.Timeout = time.Duration(timeout) * time.Second
	}
	config.Verbose = verbose

	e, err := engine.New(config, engine.WithLogger(newLogger()))
	if err != nil {
		return err
	}
	defer e.Close()

	out := os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	writer := report.NewJSONWriter(out, pretty, stream)

	ctx, cancel := signalContext()
	defer cancel()

	rep := e.CheckSite(ctx)
	if stream {
		for i := range rep.Routes {
			if err := writer.WriteRoute(&rep.Routes[i]); err != nil {
				return err
			}
		}
	}
	if err := writer.WriteReport(rep); err != nil {
		return err
	}

	if !rep.OK() {
		return fmt.Errorf("%d of %d routes have problems", countBroken(rep), len(rep.Routes))
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	siteRoot = "."
	if len(args) == 1 {
		siteRoot = args[0]
	}

	srv := devserver.New(devserver.Config{
		Addr:   addr,
		Root:   siteRoot,
		Logger: newLogger(),
	})

	ctx, cancel := signalContext()
	defer cancel()

	return srv.Run(ctx)
}

func newLogger() *logger.Logger {
	cfg := logger.DefaultConfig()
	if verbose {
		cfg.Level = logger.DebugLevel
	}
	return logger.New(cfg)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func countBroken(rep *report.Report) int {
	n := 0
	for _, rr := range rep.Routes {
		if !rr.OK {
			n++
		}
	}
	return n
}
