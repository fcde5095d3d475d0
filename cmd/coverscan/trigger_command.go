package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"coverscan/internal/match"
)

func newTriggerCommand(ctx *commandContext) *cobra.Command {
	var ocrPath string
	var userTriggered bool
	var assumeCacheHit bool

	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Evaluate the vision trigger policy on an OCR payload",
		Long: `Evaluate the vision trigger policy without calling any external service.

The correction cache is still consulted locally when enabled, so the
decision matches what 'coverscan scan' would produce for the same payload.

Examples:
  coverscan trigger --ocr payload.json
  coverscan trigger --ocr payload.json --user-triggered
  coverscan trigger --ocr payload.json --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			payload, err := loadOCRPayload(ocrPath)
			if err != nil {
				return err
			}

			cacheHit := assumeCacheHit
			if !cacheHit && cfg.CorrectionCache.Enabled && strings.TrimSpace(payload.Text) != "" {
				store, err := openCorrectionCache(ctx)
				if err != nil {
					return err
				}
				defer store.Close()
				hit, err := store.Contains(cmd.Context(), payload.Text)
				if err != nil {
					return fmt.Errorf("consult correction cache: %w", err)
				}
				cacheHit = hit
			}

			policy := match.NewPolicy(cfg.Scanner)
			decision := policy.Decide(payload.triggerInput(userTriggered, cacheHit))

			if ctx.JSONMode() {
				return writeJSON(cmd, map[string]any{
					"should":   decision.Should,
					"reason":   string(decision.Reason),
					"cacheHit": cacheHit,
				})
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			cacheKind := statusInfo
			if cacheHit {
				cacheKind = statusOK
			}
			fmt.Fprintln(out, renderStatusLine("Cache hit", cacheKind, yesNo(cacheHit), colorize))
			if decision.Should {
				fmt.Fprintln(out, renderStatusLine("Trigger", statusOK, fmt.Sprintf("vision triggers (%s)", decision.Reason), colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Trigger", statusInfo, "vision does not trigger", colorize))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ocrPath, "ocr", "", "Path to the OCR payload JSON (required)")
	cmd.Flags().BoolVar(&userTriggered, "user-triggered", false, "Treat the scan as an explicit correction request")
	cmd.Flags().BoolVar(&assumeCacheHit, "cache-hit", false, "Assume a correction cache hit instead of consulting the cache")
	_ = cmd.MarkFlagRequired("ocr")
	return cmd
}
