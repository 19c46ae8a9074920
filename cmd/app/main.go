package main

import (
	"context"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:   "clarirag",
		Usage:  "Retrieval-augmented assistant over Clarity documentation and code samples",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, the MCP endpoint and the reindex triggers",
				Action: serve,
			},
			{
				Name:  "reindex",
				Usage: "Rebuild the vector index from the corpora",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "corpus",
						Usage: "Corpus to rebuild: docs, code or all",
						Value: "all",
					},
				},
				Action: reindex,
			},
			{
				Name:      "retrieve",
				Usage:     "Print the closest chunks for a question as JSON",
				ArgsUsage: "<question>",
				Flags:     kFlags(),
				Action:    retrieve,
			},
			{
				Name:      "prompt",
				Usage:     "Print the generation prompt assembled for a question",
				ArgsUsage: "<question>",
				Flags:     kFlags(),
				Action:    printPrompt,
			},
			{
				Name:      "ask",
				Usage:     "Answer a question with the configured language model",
				ArgsUsage: "<question>",
				Flags: append(kFlags(), &cli.BoolFlag{
					Name:  "code",
					Usage: "Frame the question as a code generation request",
				}),
				Action: ask,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools on stdin/stdout",
				Action: serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func kFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "code-k", Usage: "Number of code examples (1-20, default from config)"},
		&cli.IntFlag{Name: "docs-k", Usage: "Number of documentation chunks (1-20, default from config)"},
	}
}
