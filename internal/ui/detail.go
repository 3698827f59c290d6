package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/regardlab/regard/internal/api"
)

// detailView is the modal showing one stored test.
type detailView struct {
	test     api.TestResult
	viewport viewport.Model
}

func newDetailView(test api.TestResult, styles Styles, width, height int) *detailView {
	w := max(min(width-8, 80), 30)
	h := max(height-8, 8)
	vp := viewport.New(w, h)
	vp.SetContent(renderTestDetail(test, styles))
	return &detailView{test: test, viewport: vp}
}

func (d *detailView) view(theme Theme) string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(theme.BorderFocus)).
		Padding(0, 1).
		Render(d.viewport.View())
}

// renderTestDetail lists every field of a stored test.
func renderTestDetail(t api.TestResult, styles Styles) string {
	var b strings.Builder
	b.WriteString(styles.Title.Render(fmt.Sprintf("Test #%d", t.ID)))
	b.WriteString("  ")
	b.WriteString(styles.ResultStyle(t.Result).Render(resultLabel(t.Result)))
	b.WriteString("\n")
	if date, ok := t.Date(); ok {
		b.WriteString(styles.MutedText.Render(date.Local().Format("Monday 2 January 2006, 15:04")))
		b.WriteString("\n")
	}
	if t.PatientName != "" {
		b.WriteString(styles.MutedText.Render("Patient: " + t.PatientName))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	row := func(label, value string) {
		b.WriteString(styles.MutedText.Width(24).Render(label))
		b.WriteString(styles.Text.Render(value))
		b.WriteString("\n")
	}
	row("Duration", fmt.Sprintf("%.1fs", t.Duration))
	row("Gaze time", fmt.Sprintf("%.1fs", t.GazeTime))
	row("Tracking", fmt.Sprintf("%.1f%%", t.TrackingPercentage))
	row("Fixations", fmt.Sprintf("%d", t.FixationCount))
	row("Avg fixation", fmt.Sprintf("%.0fms", t.AvgFixationDuration))
	row("Min/Max fixation", fmt.Sprintf("%.0fms / %.0fms", t.MinFixationDuration, t.MaxFixationDuration))
	row("Gaze stability", fmt.Sprintf("%.2f", t.GazeStability))
	row("Gaze consistency", fmt.Sprintf("%.2f", t.GazeConsistency))
	if t.AvgEyeScreenDistance != nil {
		row("Eye-screen distance", fmt.Sprintf("%.1fcm", *t.AvgEyeScreenDistance))
	}
	row("Left/Right eye open", yesNo(t.LeftEyeOpen)+" / "+yesNo(t.RightEyeOpen))

	if t.ClinicalEvaluation != "" {
		b.WriteString("\n")
		b.WriteString(styles.AccentText.Bold(true).Render("Clinical evaluation"))
		b.WriteString("\n")
		b.WriteString(styles.Text.Render(t.ClinicalEvaluation))
		b.WriteString("\n")
	}
	if t.RecommendedFollowUp {
		b.WriteString(styles.WarningText.Render("Follow-up recommended"))
		b.WriteString("\n")
	}
	if ml := t.MLPrediction; ml != nil {
		b.WriteString("\n")
		b.WriteString(styles.AccentText.Bold(true).Render("Model prediction"))
		b.WriteString("\n")
		row("Predicted result", resultLabel(ml.PredictedResult))
		row("Confidence", fmt.Sprintf("%.0f%%", ml.ConfidenceScore*100))
		if ml.AnomalyDetected {
			row("Anomaly", fmt.Sprintf("detected (score %.2f)", ml.AnomalyScore))
		}
	}
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render("j/k scroll · p export PDF · esc close"))
	return b.String()
}
