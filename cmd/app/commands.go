package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/starford/clarirag/internal"
	"github.com/starford/clarirag/internal/ingest"
	"github.com/starford/clarirag/internal/mcpserver"
	"github.com/starford/clarirag/internal/prompt"
	"github.com/starford/clarirag/internal/retrieval"
	pkgconfig "github.com/starford/clarirag/pkg/config"
)

var (
	heading = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen)
	warning = color.New(color.FgYellow)
	faint   = color.New(color.Faint)
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	path := cmd.String("config")
	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Debug("config file not found, using defaults", slog.String("path", path))
	}
	return cfg, nil
}

// setup loads the configuration and builds the shared components with a
// logger writing to w.
func setup(cmd *cli.Command, w io.Writer, opts ...internal.Option) (*internal.Components, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger := internal.NewLogger(w, cfg.App.LogLevel)
	slog.SetDefault(logger)

	comps, err := internal.NewComponents(logger, append([]internal.Option{internal.WithConfig(cfg)}, opts...)...)
	if err != nil {
		return nil, nil, err
	}
	return comps, logger, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func reindex(ctx context.Context, cmd *cli.Command) error {
	comps, logger, err := setup(cmd, os.Stderr, internal.WithIngestOptions(
		ingest.WithEvents(func(ev ingest.Event) {
			switch ev.Type {
			case ingest.EventWarning:
				warning.Fprintf(os.Stderr, "  ! %s\n", ev.Message)
			case ingest.EventProgress:
				faint.Fprintf(os.Stderr, "  [%d/%d] %s\n", ev.Current, ev.Total, ev.Message)
			}
		}),
	))
	if err != nil {
		return err
	}
	defer comps.Close()

	targets, err := comps.Select(cmd.String("corpus"))
	if err != nil {
		return err
	}

	var failed []string
	for _, t := range targets {
		heading.Printf("Reindexing %s from %s\n", t.Collection, t.Root)
		res, err := comps.Pipeline.Reindex(ctx, t)
		if err != nil {
			logger.Error("reindex: failed", slog.String("collection", t.Collection), slog.String("error", err.Error()))
			color.Red("  failed: %v", err)
			failed = append(failed, t.Collection)
			continue
		}
		success.Printf("  %d chunks from %d files", res.Chunks, res.Files)
		if res.Warnings > 0 {
			warning.Printf(" (%d warnings)", res.Warnings)
		}
		fmt.Println()
	}
	if len(failed) > 0 {
		return fmt.Errorf("reindex failed for %s", strings.Join(failed, ", "))
	}
	return nil
}

func request(cmd *cli.Command) (retrieval.Request, error) {
	query := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if query == "" {
		return retrieval.Request{}, errors.New("a question is required")
	}
	req := retrieval.Request{Query: query}
	if cmd.IsSet("code-k") {
		k := int(cmd.Int("code-k"))
		req.CodeK = &k
	}
	if cmd.IsSet("docs-k") {
		k := int(cmd.Int("docs-k"))
		req.DocsK = &k
	}
	return req, nil
}

func retrieve(ctx context.Context, cmd *cli.Command) error {
	req, err := request(cmd)
	if err != nil {
		return err
	}
	comps, _, err := setup(cmd, os.Stderr)
	if err != nil {
		return err
	}
	defer comps.Close()

	resp, err := comps.Assistant.Retrieve(ctx, req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func printPrompt(ctx context.Context, cmd *cli.Command) error {
	req, err := request(cmd)
	if err != nil {
		return err
	}
	comps, _, err := setup(cmd, os.Stderr)
	if err != nil {
		return err
	}
	defer comps.Close()

	res, err := comps.Assistant.Prompt(ctx, req)
	if err != nil {
		return err
	}
	if res.Warning != "" {
		warning.Fprintln(os.Stderr, res.Warning)
	}
	fmt.Println(res.Prompt)
	return nil
}

func ask(ctx context.Context, cmd *cli.Command) error {
	req, err := request(cmd)
	if err != nil {
		return err
	}
	comps, _, err := setup(cmd, os.Stderr)
	if err != nil {
		return err
	}
	defer comps.Close()

	answer := comps.Assistant.Answer
	if cmd.Bool("code") {
		answer = comps.Assistant.GenerateCode
	}
	res, err := answer(ctx, req)
	if err != nil {
		return err
	}

	if res.Warning != "" {
		warning.Println(res.Warning)
	}
	heading.Println("Answer")
	fmt.Println(res.Answer)
	fmt.Println()

	heading.Println("Sources")
	for i, meta := range res.Retrieval.DocsMetadata {
		fmt.Printf("  [DOC %d] %v ", i+1, meta["source_file"])
		faint.Printf("(relevance %.3f)\n", prompt.Relevance(res.Retrieval.DocsDistances[i]))
	}
	for i, meta := range res.Retrieval.CodeMetadata {
		fmt.Printf("  [CODE %d] %v ", i+1, meta["rel_path"])
		faint.Printf("(relevance %.3f)\n", prompt.Relevance(res.Retrieval.CodeDistances[i]))
	}
	faint.Printf("\n%s in %s\n", res.Model, res.Elapsed.Round(time.Millisecond))
	return nil
}

func serveMCP(_ context.Context, cmd *cli.Command) error {
	// stdout carries the protocol.
	comps, logger, err := setup(cmd, os.Stderr)
	if err != nil {
		return err
	}
	defer comps.Close()

	logger.Info("mcp: serving on stdio")
	return mcpserver.New(comps.Assistant, comps.Store, logger).ServeStdio()
}
