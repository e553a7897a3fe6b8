// fichasctl is the operator CLI: bulk-ingest a directory of spreadsheets
// and PDF reports, or ask a one-off question against the stored corpus.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/engevia/fichas-inspecao/internal/bootstrap"
	"github.com/engevia/fichas-inspecao/internal/config"
	"github.com/engevia/fichas-inspecao/internal/core/domain"
	"github.com/engevia/fichas-inspecao/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           "fichasctl",
		Short:         "Operator tooling for the inspection-sheet service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newIngestCmd(), newAskCmd())

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp(ctx context.Context) (*bootstrap.App, error) {
	cfg := config.Load()
	logger := logging.NewJSONLogger("fichasctl", cfg.LogLevel)
	return bootstrap.New(ctx, cfg, logger)
}

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <dir>",
		Short: "Ingest every spreadsheet and PDF report found in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			sheets, reports, err := collectUploads(args[0])
			if err != nil {
				return err
			}
			if len(sheets) == 0 && len(reports) == 0 {
				return fmt.Errorf("no spreadsheet or report files under %s", args[0])
			}

			if len(sheets) > 0 {
				report, err := app.Ingestor.IngestBatch(cmd.Context(), sheets)
				if err != nil {
					return fmt.Errorf("ingest spreadsheets: %w", err)
				}
				fmt.Printf("fichas: %d inserted, %d duplicates, %d failed\n",
					report.Inserted, report.Duplicates, report.Failed)
				for _, f := range report.Files {
					printOutcome(f)
				}
			}

			if len(reports) > 0 {
				report, err := app.Archiver.ArchiveReports(cmd.Context(), reports)
				if err != nil {
					return fmt.Errorf("archive reports: %w", err)
				}
				fmt.Printf("relatorios: %d archived, %d reused, %d failed\n",
					report.Archived, report.Reused, report.Failed)
				for _, f := range report.Files {
					printOutcome(f)
				}
			}
			return nil
		},
	}
}

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Build a fresh retrieval session and answer one question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			session, err := app.Chat.StartSession(cmd.Context())
			if err != nil {
				return fmt.Errorf("start session: %w", err)
			}
			defer func() {
				_ = app.Chat.EndSession(context.Background(), session.ID)
			}()

			answer, err := app.Chat.Ask(cmd.Context(), session.ID, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Println(answer.Text)
			if len(answer.Sources) > 0 {
				fmt.Println("\nFontes:")
				for _, src := range answer.Sources {
					fmt.Println("  -", src)
				}
			}
			return nil
		},
	}
}

func collectUploads(dir string) (sheets, reports []domain.UploadFile, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		kind, ok := domain.KindForFilename(name)
		if !ok {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", name, err)
		}
		file := domain.UploadFile{Filename: name, Data: data}

		switch kind {
		case domain.KindSpreadsheet:
			sheets = append(sheets, file)
		case domain.KindPDF, domain.KindWord:
			reports = append(reports, file)
		}
	}
	return sheets, reports, nil
}

func printOutcome(f domain.FileOutcome) {
	line := fmt.Sprintf("  %-40s %s", f.Filename, f.Status)
	if f.Reason != "" {
		line += " (" + f.Reason + ")"
	}
	fmt.Println(line)
}
