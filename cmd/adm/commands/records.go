// Package commands provides CLI commands for the admin tool
package commands

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"feedbackapp/internal/config"
	"feedbackapp/internal/database"
	"feedbackapp/internal/models"
	"feedbackapp/internal/observability"
	contextutils "feedbackapp/internal/utils"

	"github.com/spf13/cobra"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed feedback_record.schema.json
var recordSchema []byte

// RecordProblem lists the schema violations of one stored record
type RecordProblem struct {
	Index  int      `json:"index"`
	Errors []string `json:"errors"`
}

// VerifyReport is the outcome of checking a fallback file
type VerifyReport struct {
	Total   int             `json:"total"`
	Invalid []RecordProblem `json:"invalid"`
}

// Valid reports whether every record passed
func (r *VerifyReport) Valid() bool {
	return len(r.Invalid) == 0
}

// RecordsCommands returns the feedback record commands
func RecordsCommands(cfg *config.Config, logger *observability.Logger) *cobra.Command {
	recordsCmd := &cobra.Command{
		Use:   "records",
		Short: "Feedback record commands",
		Long: `Feedback record commands for the feedback service.

Available commands:
  check    - Probe MongoDB and show the most recent records
  stats    - Show rating statistics from the active backend
  verify   - Validate every record in the fallback file`,
	}

	recordsCmd.AddCommand(checkCmd(cfg, logger))
	recordsCmd.AddCommand(statsCmd(cfg, logger))
	recordsCmd.AddCommand(verifyCmd(cfg, logger))

	return recordsCmd
}

// checkCmd returns the check command
func checkCmd(cfg *config.Config, logger *observability.Logger) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe MongoDB and show recent records",
		Long: `Connect to the configured MongoDB deployment, print the number of stored
feedback records and the most recent ones.`,
		RunE: runCheck(cfg, logger, &limit),
	}
	cmd.Flags().IntVar(&limit, "limit", config.RecentRecordsCheckLimit, "Number of recent records to show")

	return cmd
}

// statsCmd returns the stats command
func statsCmd(cfg *config.Config, logger *observability.Logger) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show rating statistics",
		Long: `Show rating statistics computed from the active backend. The backend is chosen
the same way the server chooses it: MongoDB when reachable, the fallback file otherwise.
Nothing is written; a missing fallback file counts as no records.`,
		RunE: runStats(cfg, logger, &asJSON),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the statistics as JSON")

	return cmd
}

// verifyCmd returns the verify command
func verifyCmd(cfg *config.Config, logger *observability.Logger) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Validate the fallback file",
		Long:  `Validate every record of the JSON fallback file against the feedback record schema.`,
		RunE:  runVerify(cfg, logger, &path),
	}
	cmd.Flags().StringVar(&path, "file", "", "Fallback file to check (defaults to the configured one)")

	return cmd
}

func runCheck(cfg *config.Config, logger *observability.Logger, limit *int) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		logger.Info(ctx, "Admin command diagnostics", map[string]interface{}{
			"config_file": os.Getenv(config.ConfigFileEnvVar),
			"mongodb_uri": maskMongoURI(cfg.Database.MongoDBURI),
		})

		if cfg.Database.MongoDBURI == "" {
			return contextutils.WrapError(contextutils.ErrInvalidInput, "MONGODB_URI is not set")
		}

		store, err := database.ConnectMongo(ctx, cfg.Database, logger)
		if err != nil {
			fmt.Fprintf(out, "MongoDB connection failed: %v\n", err)
			return contextutils.WrapError(err, "failed to connect to MongoDB")
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), config.DatabaseCloseTimeout)
			defer cancel()
			if err := store.Close(closeCtx); err != nil {
				logger.Warn(ctx, "Failed to close MongoDB connection", map[string]interface{}{"error": err.Error()})
			}
		}()

		count, err := store.Count(ctx)
		if err != nil {
			return contextutils.WrapError(err, "failed to count records")
		}
		recent, err := store.Recent(ctx, *limit)
		if err != nil {
			return contextutils.WrapError(err, "failed to read recent records")
		}

		fmt.Fprintf(out, "Connected to %s (database %s, collection %s)\n",
			maskMongoURI(cfg.Database.MongoDBURI), cfg.Database.Name, cfg.Database.Collection)
		fmt.Fprintf(out, "Total records: %d\n", count)
		if len(recent) == 0 {
			fmt.Fprintln(out, "No records stored yet")
			return nil
		}
		fmt.Fprintf(out, "Most recent %d:\n", len(recent))
		printRecords(out, recent)
		return nil
	}
}

func runStats(cfg *config.Config, logger *observability.Logger, asJSON *bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		manager := database.NewManager(logger, nil)
		gateway, err := manager.OpenReadOnly(ctx, cfg.Database)
		if err != nil {
			return contextutils.WrapError(err, "failed to open storage")
		}
		defer func() {
			_ = manager.Close(context.Background())
		}()

		records, err := gateway.ListAll(ctx)
		if err != nil {
			return contextutils.WrapError(err, "failed to read records")
		}
		stats := models.ComputeStats(records)

		if *asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}

		fmt.Fprintf(out, "Backend:        %s\n", gateway.Backend())
		fmt.Fprintf(out, "Total reviews:  %d\n", stats.Total)
		fmt.Fprintf(out, "Average rating: %.2f\n", stats.AverageRating)
		for rating := models.MaxRating; rating >= models.MinRating; rating-- {
			fmt.Fprintf(out, "  %d stars: %d\n", rating, stats.RatingDistribution[strconv.Itoa(rating)])
		}
		return nil
	}
}

func runVerify(cfg *config.Config, logger *observability.Logger, path *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		file := *path
		if file == "" {
			file = cfg.Database.FallbackFile
		}

		data, err := os.ReadFile(file)
		if err != nil {
			return contextutils.WrapErrorf(contextutils.ErrStorageReadFailed, "failed to read %s: %v", file, err)
		}

		report, err := VerifyRecords(data)
		if err != nil {
			return err
		}

		for _, problem := range report.Invalid {
			for _, msg := range problem.Errors {
				fmt.Fprintf(out, "record %d: %s\n", problem.Index, msg)
			}
		}
		fmt.Fprintf(out, "%s: %d records, %d invalid\n", file, report.Total, len(report.Invalid))

		logger.Info(ctx, "Verified fallback file", map[string]interface{}{
			"path":    file,
			"total":   report.Total,
			"invalid": len(report.Invalid),
		})

		if !report.Valid() {
			return contextutils.WrapErrorf(contextutils.ErrInvalidFormat, "%d of %d records failed validation", len(report.Invalid), report.Total)
		}
		return nil
	}
}

// VerifyRecords validates each element of a fallback file against the record schema.
// An empty file counts as zero records.
func VerifyRecords(data []byte) (*VerifyReport, error) {
	var raw []json.RawMessage
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInvalidFormat, "fallback file is not a JSON array: %v", err)
		}
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(recordSchema))
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to compile record schema: %v", err)
	}

	report := &VerifyReport{Total: len(raw), Invalid: []RecordProblem{}}
	for i, doc := range raw {
		result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
		if err != nil {
			report.Invalid = append(report.Invalid, RecordProblem{Index: i, Errors: []string{err.Error()}})
			continue
		}
		if result.Valid() {
			continue
		}

		problem := RecordProblem{Index: i}
		for _, desc := range result.Errors() {
			problem.Errors = append(problem.Errors, desc.String())
		}
		report.Invalid = append(report.Invalid, problem)
	}
	return report, nil
}

func printRecords(out io.Writer, records []models.FeedbackRecord) {
	fmt.Fprintf(out, "%-26s %-6s %-40s %-40s\n", "Timestamp", "Rating", "Review", "Summary")
	for _, rec := range records {
		fmt.Fprintf(out, "%-26s %-6d %-40s %-40s\n",
			rec.Timestamp,
			rec.Rating,
			truncate(rec.Review, 40),
			truncate(rec.Summary, 40),
		)
	}
}
