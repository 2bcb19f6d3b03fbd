package main

import (
	"encoding/json"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/counsel/internal/classifier"
	"github.com/MikeSquared-Agency/counsel/internal/config"
	"github.com/MikeSquared-Agency/counsel/internal/routing"
)

// classification is what `counsel classify` prints.
type classification struct {
	Classification classifier.Classification    `json:"classification"`
	Tone           classifier.ToneState         `json:"tone"`
	Style          classifier.ConversationStyle `json:"conversation_style"`
	Routing        routing.RoutingDecision      `json:"routing"`
	Model          routing.ModelChoice          `json:"model"`
}

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [question]",
		Short: "Show how a question would be classified and routed, without calling any model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

			question := strings.Join(args, " ")
			out := classify(question, cfg, logger)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

func classify(question string, cfg config.Config, logger *slog.Logger) classification {
	c := classifier.New().Classify(question)
	tone := classifier.NewToneDetector().Detect(question)
	models := routing.NewModelRouter(cfg.Catalog, nil, logger)
	return classification{
		Classification: c,
		Tone:           tone,
		Style:          classifier.DetectStyle(question, nil),
		Routing:        routing.NewAgentRouter(nil, logger).Route(c),
		Model:          models.Select(c, tone.State),
	}
}
