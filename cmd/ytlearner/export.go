package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"github.com/pavelanni/ytlearner/internal/model"
	"github.com/pavelanni/ytlearner/internal/store"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export graded attempts as JSON or XLSX",
		RunE:  runExport,
	}
	f := cmd.Flags()
	addStoreFlags(cmd)
	f.StringP("format", "f", "json", "Output format (json, xlsx)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	st, err := store.Open(ctx, storeConfig(v))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	attempts, err := st.ListAttempts(ctx)
	if err != nil {
		return fmt.Errorf("list attempts: %w", err)
	}
	export := model.AttemptExport{
		ExportedAt:  time.Now().UTC(),
		NumAttempts: len(attempts),
		Results:     make([]model.AttemptResult, 0, len(attempts)),
	}
	for _, a := range attempts {
		export.Results = append(export.Results, model.NewAttemptResult(a))
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch strings.ToLower(v.GetString("format")) {
	case "json":
		return writeExportJSON(w, export)
	case "xlsx":
		return writeExportXLSX(w, export)
	default:
		return fmt.Errorf("unknown export format %q", v.GetString("format"))
	}
}

func writeExportJSON(w io.Writer, export model.AttemptExport) error {
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}

const (
	attemptsSheet = "Attempts"
	feedbackSheet = "Feedback"
)

// writeExportXLSX writes one row per attempt and one row per graded question.
func writeExportXLSX(w io.Writer, export model.AttemptExport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", attemptsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(feedbackSheet); err != nil {
		return fmt.Errorf("create Excel sheet: %w", err)
	}

	attemptRows := [][]any{{
		"Attempt ID", "Quiz ID", "Submitted At", "Points Earned", "Points Possible", "Score %", "Tier",
	}}
	feedbackRows := [][]any{{
		"Attempt ID", "Question ID", "Type", "Student Answer", "Points Earned", "Max Points", "Feedback",
	}}
	for _, r := range export.Results {
		attemptRows = append(attemptRows, []any{
			r.AttemptID, r.QuizID, r.SubmittedAt.Format("2006-01-02 15:04:05"),
			r.PointsEarned, r.PointsPossible, r.ScorePercent, string(r.Tier),
		})
		for _, q := range r.Questions {
			feedbackRows = append(feedbackRows, []any{
				r.AttemptID, q.QuestionID, string(q.Type), q.StudentAnswer,
				q.PointsEarned, q.MaxPoints, q.Feedback,
			})
		}
	}

	if err := setRows(f, attemptsSheet, attemptRows); err != nil {
		return err
	}
	if err := setRows(f, feedbackSheet, feedbackRows); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write Excel file: %w", err)
	}
	return nil
}

func setRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
