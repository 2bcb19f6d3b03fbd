package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/counsel/internal/config"
	"github.com/MikeSquared-Agency/counsel/internal/orchestrator"
)

func newAskCmd() *cobra.Command {
	var (
		userContext string
		asJSON      bool
		verbose     bool
	)
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Run one question through the pipeline and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			eng, err := buildEngine(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer eng.close()

			req := orchestrator.Request{
				Question:    strings.Join(args, " "),
				UserContext: userContext,
			}
			return ask(ctx, orchestrator.New(eng.deps, logger), req, cmd.OutOrStdout(), asJSON)
		},
	}
	cmd.Flags().StringVar(&userContext, "context", "", "free-text context about the person asking")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result package as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline stages to stderr")
	return cmd
}

// ask streams the narrative to out as it is synthesised, then a short
// summary. With asJSON only the final package is printed.
func ask(ctx context.Context, p *orchestrator.Pipeline, req orchestrator.Request, out io.Writer, asJSON bool) error {
	var sink orchestrator.Sink
	if !asJSON {
		sink = orchestrator.SinkFunc(func(_ context.Context, e orchestrator.Event) {
			if e.Type != orchestrator.EventSynthesisChunk {
				return
			}
			if b, err := json.Marshal(e.Data); err == nil {
				var chunk struct {
					Text string `json:"text"`
				}
				if json.Unmarshal(b, &chunk) == nil {
					fmt.Fprint(out, chunk.Text)
				}
			}
		})
	}

	s, err := p.Run(ctx, req, sink)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	fmt.Fprintf(out, "\n\n---\nConfidence: %s (%d%%) | Agents: %d/%d | %.2fs | $%.4f\n",
		s.Confidence.Level, s.Confidence.Percentage,
		len(s.Metadata.AgentsSucceeded), len(s.Metadata.AgentsActivated),
		s.Metadata.TotalTime, s.TotalCost,
	)
	if !s.Quality.Passed {
		fmt.Fprintf(out, "Quality checks failed: %s\n", strings.Join(s.Quality.FailureReasons, ", "))
	}
	return nil
}
