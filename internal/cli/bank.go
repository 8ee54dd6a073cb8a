package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/sat-prep/backend/internal/cache"
	"github.com/sat-prep/backend/internal/models"
	"github.com/sat-prep/backend/internal/questions"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import questions from an export file (- for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(cmd)

		var r io.Reader = os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open import file: %w", err)
			}
			defer f.Close()
			r = f
		}

		var envelope models.ExportEnvelope
		if err := json.NewDecoder(r).Decode(&envelope); err != nil {
			return fmt.Errorf("decode import file: %w", err)
		}

		db, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		filterCache, closeCache := newCache(cmd.Context(), cfg)
		defer closeCache()

		svc := questions.NewService(questions.NewStore(db), filterCache, cfg.FiltersCacheTTL)
		result, err := svc.ImportQuestions(cmd.Context(), envelope)
		if err != nil {
			return err
		}
		log.Printf("[import] %d questions in payload: %d created, %d versioned",
			result.TotalInPayload, result.Created, result.Versioned)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the question bank as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(cmd)
		db, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		svc := questions.NewService(questions.NewStore(db), cache.NewMemory(), cfg.FiltersCacheTTL)
		envelope, err := svc.ExportQuestions(cmd.Context())
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		if out, _ := cmd.Flags().GetString("out"); out != "" {
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			defer f.Close()
			w = f
		}

		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(envelope); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		log.Printf("[export] wrote %d questions", len(envelope.Questions))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("out", "o", "", "Write to this file instead of stdout")
}
