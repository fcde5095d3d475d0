package main

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"coverscan/internal/config"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var ocrPath string
	var userTriggered bool

	cmd := &cobra.Command{
		Use:   "scan <image>",
		Short: "Run the full cover matching pipeline on a scanned image",
		Long: `Run the full cover matching pipeline on a scanned image.

The correction cache is consulted first, then the trigger policy decides
whether the vision analyzer runs. The OCR payload JSON carries the text
extraction and catalog candidates produced by the capture front end.

Examples:
  coverscan scan cover.jpg --ocr payload.json
  coverscan scan cover.jpg --ocr payload.json --user-triggered
  coverscan scan cover.jpg --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipe, err := newPipeline(ctx, "cli-scan")
			if err != nil {
				return err
			}
			defer pipe.Close()

			image, err := encodeImageFile(args[0])
			if err != nil {
				return err
			}

			var payload *ocrPayload
			if strings.TrimSpace(ocrPath) != "" {
				payload, err = loadOCRPayload(ocrPath)
				if err != nil {
					return err
				}
			}

			outcome := pipe.service.Scan(cmd.Context(), payload.scanInput(image, userTriggered))
			if ctx.JSONMode() {
				return writeJSON(cmd, newScanReport(outcome))
			}
			renderScanOutcome(cmd.OutOrStdout(), outcome)
			return nil
		},
	}

	cmd.Flags().StringVar(&ocrPath, "ocr", "", "Path to the OCR payload JSON for this scan")
	cmd.Flags().BoolVar(&userTriggered, "user-triggered", false, "Treat the scan as an explicit correction request")
	return cmd
}

// encodeImageFile reads an image and encodes it as the data URI the vision
// analyzer accepts.
func encodeImageFile(path string) (string, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return "", fmt.Errorf("resolve image path: %w", err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("image %s is empty", path)
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(expanded)))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
