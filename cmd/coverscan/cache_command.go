package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"coverscan/internal/correctioncache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the correction cache",
		Long: `Inspect and manage the correction cache.

The correction cache stores confirmed OCR-text-to-comic mappings so
previously corrected covers skip the vision analyzer entirely.

Commands:
  list     - List cached corrections, newest first
  remove   - Remove the correction for a given OCR text
  clear    - Remove all cached corrections`,
	}

	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheRemoveCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

type cacheEntryReport struct {
	NormalizedInput string `json:"normalizedInput"`
	InputText       string `json:"inputText"`
	ComicID         int64  `json:"comicId"`
	VolumeID        int64  `json:"volumeId,omitempty"`
	Title           string `json:"title"`
	Issue           string `json:"issue,omitempty"`
	Year            int    `json:"year,omitempty"`
	Publisher       string `json:"publisher,omitempty"`
	CoverURL        string `json:"coverUrl,omitempty"`
	Confidence      int    `json:"confidence"`
	CreatedAt       string `json:"createdAt"`
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached corrections",
		Long:  "Display the learned OCR-text-to-comic corrections, newest first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCorrectionCache(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list corrections: %w", err)
			}

			if ctx.JSONMode() {
				reports := make([]cacheEntryReport, 0, len(entries))
				for _, entry := range entries {
					reports = append(reports, cacheEntryReport{
						NormalizedInput: entry.NormalizedInput,
						InputText:       entry.InputText,
						ComicID:         entry.ComicID,
						VolumeID:        entry.VolumeID,
						Title:           entry.Title,
						Issue:           entry.Issue,
						Year:            entry.Year,
						Publisher:       entry.Publisher,
						CoverURL:        entry.CoverURL,
						Confidence:      entry.Confidence,
						CreatedAt:       entry.CreatedAt.UTC().Format(time.RFC3339),
					})
				}
				return writeJSON(cmd, reports)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Correction cache: empty")
				return nil
			}

			fmt.Fprintf(out, "Correction cache: %d entries (%s)\n\n", len(entries), store.Path())

			headers := []string{"Input", "Comic", "Title", "Issue", "Publisher", "Conf", "Saved"}
			aligns := []columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				saved := ""
				if !entry.CreatedAt.IsZero() {
					saved = entry.CreatedAt.Local().Format("2006-01-02")
				}
				rows = append(rows, []string{
					truncateText(entry.InputText, 32),
					fmt.Sprintf("%d", entry.ComicID),
					truncateText(entry.Title, 32),
					entry.Issue,
					truncateText(entry.Publisher, 20),
					fmt.Sprintf("%d", entry.Confidence),
					saved,
				})
			}
			fmt.Fprintln(out, renderTable(headers, rows, aligns))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of entries to show")
	return cmd
}

func newCacheRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <ocr-text>",
		Short: "Remove the correction for a given OCR text",
		Long: `Remove the cached correction for a given OCR text. The text is
normalized the same way lookups are, so casing and surrounding
whitespace do not matter.

Example:
  coverscan cache remove "UNCANNY X-MEN 141"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCorrectionCache(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}

			if ctx.JSONMode() {
				return writeJSON(cmd, map[string]any{
					"removed": true,
					"input":   correctioncache.Normalize(args[0]),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed correction for %q\n", correctioncache.Normalize(args[0]))
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached corrections",
		Long:  "Delete every learned correction. The cache repopulates as users confirm matches.",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCorrectionCache(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			// Clearing races with concurrent scans writing fresh
			// corrections, so take an exclusive file lock first.
			lock := flock.New(store.Path() + ".lock")
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire cache lock: %w", err)
			}
			if !locked {
				return errors.New("correction cache is locked by another coverscan process")
			}
			defer lock.Unlock()

			count, err := store.Count(cmd.Context())
			if err != nil {
				return fmt.Errorf("count corrections: %w", err)
			}
			if count == 0 {
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"removed": 0})
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Correction cache is already empty")
				return nil
			}

			if err := store.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear corrections: %w", err)
			}

			if ctx.JSONMode() {
				return writeJSON(cmd, map[string]any{"removed": count})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d corrections\n", count)
			return nil
		},
	}
}
