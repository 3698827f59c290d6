package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/tidwall/jsonc"

	"github.com/regardlab/regard/internal/api"
	"github.com/regardlab/regard/internal/app"
)

func (c *cli) testsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tests",
		Short: "List the stored tests, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(func(rt *app.Runtime) error {
				if err := rt.Controller.Refresh(cmd.Context()); err != nil {
					return err
				}
				tests := rt.Store.State().TestResults
				if len(tests) == 0 {
					c.printf("No tests yet.\n")
					return nil
				}
				t := newTable("ID", "Date", "Result", "Duration", "Tracking", "Fixations", "Stability")
				for _, r := range tests {
					date := "-"
					if d, ok := r.Date(); ok {
						date = d.Local().Format("2006-01-02 15:04")
					}
					t.Row(
						strconv.FormatInt(r.ID, 10),
						date,
						orDash(r.Result),
						fmt.Sprintf("%.1fs", r.Duration),
						fmt.Sprintf("%.1f%%", r.TrackingPercentage),
						strconv.Itoa(r.FixationCount),
						fmt.Sprintf("%.2f", r.GazeStability),
					)
				}
				c.printf("%s\n", t.String())
				return nil
			})
		},
	}
}

func (c *cli) testCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test <id>",
		Short: "Show one test",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return c.withSession(func(rt *app.Runtime) error {
				test, err := rt.Controller.ViewTest(cmd.Context(), id)
				if errors.Is(err, api.ErrNotFound) {
					return fmt.Errorf("test #%d not found", id)
				}
				if err != nil {
					return err
				}
				c.printTest(*test)
				return nil
			})
		},
	}
}

func (c *cli) printTest(t api.TestResult) {
	c.printf("Test #%d  %s\n", t.ID, orDash(t.Result))
	if d, ok := t.Date(); ok {
		c.printf("Date:              %s\n", d.Local().Format("2006-01-02 15:04"))
	}
	c.printf("Duration:          %.1fs\n", t.Duration)
	c.printf("Gaze time:         %.1fs\n", t.GazeTime)
	c.printf("Tracking:          %.1f%%\n", t.TrackingPercentage)
	c.printf("Fixations:         %d (avg %.0fms)\n", t.FixationCount, t.AvgFixationDuration)
	c.printf("Gaze stability:    %.2f\n", t.GazeStability)
	c.printf("Gaze consistency:  %.2f\n", t.GazeConsistency)
	if t.AvgEyeScreenDistance != nil {
		c.printf("Eye-screen:        %.1fcm\n", *t.AvgEyeScreenDistance)
	}
	if t.ClinicalEvaluation != "" {
		c.printf("\n%s\n", t.ClinicalEvaluation)
	}
	if t.RecommendedFollowUp {
		c.printf("Follow-up recommended\n")
	}
	if ml := t.MLPrediction; ml != nil {
		c.printf("Model: %s (%.0f%% confidence)\n", ml.PredictedResult, ml.ConfidenceScore*100)
	}
}

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show test statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(func(rt *app.Runtime) error {
				if err := rt.Controller.Refresh(cmd.Context()); err != nil {
					return err
				}
				stats := rt.Store.State().Statistics
				if stats == nil {
					c.printf("No statistics yet.\n")
					return nil
				}
				c.printf("Tests taken: %d\n", stats.TotalTests)
				if stats.Results == nil {
					if stats.Message != "" {
						c.printf("%s\n", stats.Message)
					}
					return nil
				}
				t := newTable("Result", "Count")
				t.Row(api.ResultExcellent, strconv.Itoa(stats.Results.Excellent))
				t.Row(api.ResultGood, strconv.Itoa(stats.Results.Good))
				t.Row(api.ResultAcceptable, strconv.Itoa(stats.Results.Acceptable))
				t.Row(api.ResultPoor, strconv.Itoa(stats.Results.Poor))
				c.printf("%s\n", t.String())
				if avg := stats.Averages; avg != nil {
					c.printf("Average tracking:  %.1f%%\n", avg.TrackingPercentage)
					c.printf("Average stability: %.2f\n", avg.GazeStability)
				}
				return nil
			})
		},
	}
}

func (c *cli) patientsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patients",
		Short: "List the patients visible to the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(func(rt *app.Runtime) error {
				if err := rt.Controller.LoadPatients(cmd.Context()); err != nil {
					return err
				}
				t := newTable("ID", "Name", "Username", "Age", "Tests")
				for _, p := range rt.Store.State().Patients {
					age := "-"
					if p.Age != nil {
						age = strconv.Itoa(*p.Age)
					}
					t.Row(strconv.FormatInt(p.ID, 10), p.DisplayName(), p.User.Username, age, strconv.Itoa(p.TestsCount))
				}
				c.printf("%s\n", t.String())
				return nil
			})
		},
	}
}

func (c *cli) exportCmd() *cobra.Command {
	var all bool
	var output string
	cmd := &cobra.Command{
		Use:   "export [id]",
		Short: "Download a PDF report",
		Long:  `Download the PDF report of one test, or of every test with --all.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return errors.New("give either a test id or --all")
			}
			return c.withSession(func(rt *app.Runtime) error {
				var path string
				var err error
				if all {
					path, err = rt.Controller.ExportAllTestsPDF(cmd.Context(), output)
				} else {
					var id int64
					if id, err = parseID(args[0]); err != nil {
						return err
					}
					path, err = rt.Controller.ExportTestPDF(cmd.Context(), id, output)
				}
				if err != nil {
					return err
				}
				c.printf("PDF saved to %s\n", path)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "export every test in one report")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file")
	return cmd
}

func (c *cli) predictCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "predict <file>",
		Short: "Grade test metrics with the backend model",
		Long: `Send the metrics in a JSON file to the backend model. Comments and
trailing commas are accepted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readJSONC(args[0])
			if err != nil {
				return err
			}
			return c.withSession(func(rt *app.Runtime) error {
				pred, err := rt.Controller.Predict(cmd.Context(), data)
				if err != nil {
					return err
				}
				c.printf("Result:     %s (%.0f%% confidence)\n", pred.Result, pred.Confidence*100)
				if pred.AnomalyDetected {
					c.printf("Anomaly:    detected (score %.2f)\n", pred.AnomalyScore)
				}
				if pred.ClinicalEvaluation != "" {
					c.printf("Evaluation: %s\n", pred.ClinicalEvaluation)
				}
				if pred.RecommendedFollowUp {
					c.printf("Follow-up recommended\n")
				}
				return nil
			})
		},
	}
}

// readJSONC decodes a JSON file that may carry comments.
func readJSONC(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var data map[string]any
	if err := json.Unmarshal(jsonc.ToJSON(raw), &data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return data, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(s), "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid test id %q", s)
	}
	return id, nil
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
