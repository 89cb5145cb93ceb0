package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dshills/texcontext-mcp/internal/assistant"
	"github.com/dshills/texcontext-mcp/internal/config"
	"github.com/dshills/texcontext-mcp/internal/generator"
	"github.com/dshills/texcontext-mcp/internal/mcp"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// request flags shared by assemble and complete
var (
	filePath    string
	cursor      int
	task        string
	instruction string
	asPrompt    bool
)

var rootCmd = &cobra.Command{
	Use:   "texcontext",
	Short: "Context assembly and completion for LaTeX writing",
	Long: `texcontext assembles budget-fitted context around a cursor in a LaTeX
project and hands it to a language model.

Configuration is read from texcontext.yaml, TEXCONTEXT_* environment
variables and flags. OPENAI_API_KEY and JINA_API_KEY are honoured.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	RunE:  runServe,
}

var assembleCmd = &cobra.Command{
	Use:   "assemble",
	Short: "Print the context assembled for a cursor",
	RunE:  runAssemble,
}

var completeCmd = &cobra.Command{
	Use:   "complete",
	Short: "Stream a completion for a cursor to stdout",
	RunE:  runComplete,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Scan the project and print index and cache statistics",
	RunE:  runStatus,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "texcontext %s (built %s)\n", version, buildTime)
	},
}

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags())

	for _, c := range []*cobra.Command{assembleCmd, completeCmd} {
		c.Flags().StringVarP(&filePath, "file", "f", "", "document path relative to the project root")
		c.Flags().IntVar(&cursor, "cursor", 0, "cursor byte offset in the file")
		c.Flags().StringVarP(&task, "task", "t", "", "completion, documentation, citation or general")
		c.Flags().StringVarP(&instruction, "instruction", "i", "", "request passed to the model")
	}
	assembleCmd.Flags().BoolVar(&asPrompt, "prompt", false, "print the rendered prompt instead of the sections")

	rootCmd.AddCommand(serveCmd, assembleCmd, completeCmd, statusCmd, versionCmd)
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and builds the assistant. Logs go to stderr so
// stdout stays free for protocol messages and output.
func setup(cmd *cobra.Command) (*assistant.Service, *slog.Logger, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	svc, err := assistant.NewFromConfig(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return svc, logger, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, _ []string) error {
	svc, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	srv, err := mcp.NewServer(svc, logger.With("component", "mcp"))
	if err != nil {
		_ = svc.Close()
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	logger.Info("MCP server ready, listening on stdio", "version", version)
	if err := srv.Serve(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func request() assistant.Request {
	return assistant.Request{
		FilePath:    filePath,
		Cursor:      cursor,
		Task:        task,
		Instruction: instruction,
	}
}

func runAssemble(cmd *cobra.Command, _ []string) error {
	svc, _, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	ctx, cancel := signalContext()
	defer cancel()
	out := cmd.OutOrStdout()

	if asPrompt {
		p, _, err := svc.Prompt(ctx, request())
		if err != nil {
			return err
		}
		if p.System != "" {
			fmt.Fprintf(out, "### system\n%s\n\n", p.System)
		}
		fmt.Fprintf(out, "### user\n%s\n", p.User)
		return nil
	}

	c, err := svc.AssembleContext(ctx, request())
	if err != nil {
		return err
	}
	sections := c.Bundle.Sections()
	keys := make([]string, 0, len(sections))
	for k := range sections {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "### %s\n%s\n\n", k, sections[k])
	}
	fmt.Fprintf(out, "%d units, %d semantic matches\n", svc.Budget().Size(c.Bundle), len(c.Bundle.Semantic))
	return nil
}

func runComplete(cmd *cobra.Command, _ []string) error {
	svc, _, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	ctx, cancel := signalContext()
	defer cancel()
	out := cmd.OutOrStdout()

	for text, err := range svc.Complete(ctx, request()) {
		if err != nil {
			fmt.Fprintln(out)
			if msg := generator.UserMessage(err); msg != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), msg)
			}
			return err
		}
		fmt.Fprint(out, text)
	}
	fmt.Fprintln(out)
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	svc, _, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	ctx, cancel := signalContext()
	defer cancel()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(svc.Status(ctx))
}
