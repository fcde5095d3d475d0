package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"coverscan/internal/match"
)

func newIdentifyCommand(ctx *commandContext) *cobra.Command {
	var title, issue, publisher, character string
	var confidence float64

	cmd := &cobra.Command{
		Use:   "identify",
		Short: "Search the catalog from identified cover details",
		Long: `Search the catalog from identified cover details and show the
re-ranked candidates. This runs the identification search directly,
without the vision analyzer, which is useful for troubleshooting
ranking issues.

Examples:
  coverscan identify --title "Amazing Spider-Man" --issue 300
  coverscan identify --character Batman
  coverscan identify --title "Saga" --publisher Image --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(title) == "" && strings.TrimSpace(character) == "" {
				return errors.New("at least one of --title or --character is required")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger(cfg, "cli-identify")
			if err != nil {
				return fmt.Errorf("setup logging: %w", err)
			}
			catalogClient, err := newCatalogClient(cfg)
			if err != nil {
				return err
			}
			searcher := match.NewSearcher(catalogClient, cfg.Scanner.ReprintPublishers, logger)

			candidates := searcher.SearchFromIdentification(cmd.Context(), match.Identification{
				Title:      normalizeFlagTitle(title),
				Issue:      strings.TrimSpace(issue),
				Publisher:  strings.TrimSpace(publisher),
				Character:  normalizeFlagTitle(character),
				Confidence: confidence,
			})

			if ctx.JSONMode() {
				return writeJSON(cmd, candidateReports(candidates))
			}

			out := cmd.OutOrStdout()
			if len(candidates) == 0 {
				fmt.Fprintln(out, "No catalog candidates found")
				return nil
			}
			fmt.Fprintf(out, "Found %d candidates\n\n", len(candidates))
			fmt.Fprintln(out, renderCandidateTable(candidates))
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Identified series or issue title")
	cmd.Flags().StringVar(&issue, "issue", "", "Identified issue number")
	cmd.Flags().StringVar(&publisher, "publisher", "", "Identified publisher")
	cmd.Flags().StringVar(&character, "character", "", "Identified cover character, used when no title is known")
	cmd.Flags().Float64Var(&confidence, "confidence", 1.0, "Identification confidence in [0,1]")
	return cmd
}
