package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/regardlab/regard/internal/analysis"
	"github.com/regardlab/regard/internal/api"
	"github.com/regardlab/regard/internal/state"
)

// renderHomeScreen renders the welcome view. Signed-out users get the
// service presentation, signed-in users the quick actions.
func renderHomeScreen(st state.State, styles Styles) string {
	var b strings.Builder
	if !st.IsAuthenticated || st.Patient == nil {
		b.WriteString(styles.Title.Render("Clinical Eye-Tracking Assessment"))
		b.WriteString("\n\n")
		b.WriteString(styles.Text.Render("Measure gaze tracking, fixations and stability in a short guided test."))
		b.WriteString("\n\n")
		b.WriteString(actionLine(styles, "l", "Sign in", "use an existing patient account"))
		b.WriteString(actionLine(styles, "n", "New account", "register as a patient"))
		return b.String()
	}

	name := st.Patient.FirstName
	if name == "" {
		name = st.Patient.Username
	}
	b.WriteString(styles.Title.Render("Welcome, " + name))
	b.WriteString("\n")
	b.WriteString(styles.MutedText.Render("Choose an action to begin"))
	b.WriteString("\n\n")
	b.WriteString(actionLine(styles, "c", "New calibration", "tune the tracker for best precision"))
	b.WriteString(actionLine(styles, "t", "New test", "run an eye-tracking test"))
	b.WriteString(actionLine(styles, "r", "My results", "review previous tests and their analysis"))
	b.WriteString(actionLine(styles, "s", "Statistics", "see trends and progress"))
	b.WriteString("\n")
	if st.IsCalibrated {
		b.WriteString(styles.SuccessText.Render("✓ Tracker calibrated"))
	} else {
		b.WriteString(styles.WarningText.Render(fmt.Sprintf("Calibration: %d/%d points", len(st.CalibrationPoints), state.CalibrationTarget)))
	}
	return b.String()
}

func actionLine(styles Styles, keyName, title, desc string) string {
	return fmt.Sprintf("  %s  %s  %s\n",
		styles.WarningText.Render("["+keyName+"]"),
		styles.Text.Bold(true).Width(16).Render(title),
		styles.MutedText.Render(desc),
	)
}

// renderCalibrationScreen draws the calibration field with the next target
// and the progress towards the calibration threshold. target is nil when
// no calibration run is active.
func renderCalibrationScreen(st state.State, styles Styles, target *state.Point, width, height int) string {
	var b strings.Builder
	b.WriteString(styles.Title.Render("Tracker calibration"))
	b.WriteString("\n")
	b.WriteString(styles.MutedText.Render("Look at each target as it appears and keep your head still."))
	b.WriteString("\n\n")

	fieldW := max(width-4, 20)
	fieldH := max(height-12, 5)
	b.WriteString(renderField(styles, target, fieldW, fieldH))
	b.WriteString("\n")

	b.WriteString(styles.Text.Render(fmt.Sprintf("Calibration points: %d/%d", len(st.CalibrationPoints), state.CalibrationTarget)))
	b.WriteString("\n")
	writeDistance(&b, st, styles)
	switch {
	case st.IsCalibrated:
		b.WriteString(styles.SuccessText.Render("✓ Calibration complete. Press t to continue to the test."))
	case target != nil:
		b.WriteString(styles.InfoText.Render("Press space while looking at the target."))
	default:
		b.WriteString(styles.MutedText.Render(fmt.Sprintf("Calibrate at least %d points. Press enter to start.", state.CalibrationTarget)))
	}
	return b.String()
}

// renderField draws a bordered area of w×h cells with a marker at target,
// given in normalized coordinates.
func renderField(styles Styles, target *state.Point, w, h int) string {
	rows := make([][]rune, h)
	for i := range rows {
		rows[i] = []rune(strings.Repeat(" ", w))
	}
	if target != nil {
		x := int(math.Round(clamp01(target.X) * float64(w-1)))
		y := int(math.Round(clamp01(target.Y) * float64(h-1)))
		rows[y][x] = '●'
	}
	lines := make([]string, h)
	for i, r := range rows {
		lines[i] = string(r)
	}
	body := strings.Join(lines, "\n")
	if target != nil {
		body = strings.ReplaceAll(body, "●", styles.DangerText.Render("●"))
	}
	return styles.Card.Padding(0).Render(body)
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}

// renderTestScreen shows the live metrics of the running test.
func renderTestScreen(st state.State, styles Styles, now time.Time) string {
	var b strings.Builder
	b.WriteString(styles.Title.Render("Eye-tracking test"))
	b.WriteString("\n\n")
	if !st.IsCalibrated {
		b.WriteString(styles.WarningText.Render("⚠ Calibration is required before running the test"))
		b.WriteString("\n\n")
	}

	cur := st.CurrentTest
	if cur == nil || cur.StartTime == nil {
		writeDistance(&b, st, styles)
		b.WriteString(styles.MutedText.Render("Press enter to start the test, then follow the targets."))
		return b.String()
	}

	elapsed := cur.Elapsed(now)
	stats := []struct{ label, value string }{
		{"Duration", fmt.Sprintf("%.1fs", elapsed.Seconds())},
		{"Tracking", fmt.Sprintf("%.0f%%", cur.TrackingPercentage)},
		{"Fixations", fmt.Sprintf("%d", cur.FixationCount)},
		{"Avg fixation", fmt.Sprintf("%.0fms", cur.AvgFixationDuration)},
		{"Stability", fmt.Sprintf("%.0f%%", cur.GazeStability*100)},
		{"Samples", fmt.Sprintf("%d", len(cur.RawData))},
	}
	cards := make([]string, 0, len(stats))
	for _, s := range stats {
		cards = append(cards, styles.Card.Width(16).Render(
			styles.MutedText.Render(s.label)+"\n"+styles.Text.Bold(true).Render(s.value),
		))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cards[:3]...))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cards[3:]...))
	b.WriteString("\n\n")
	writeDistance(&b, st, styles)
	b.WriteString(styles.DangerText.Render("Press enter to stop the test"))
	return b.String()
}

// writeDistance adds the viewing-distance line once the gaze feed has
// reported one.
func writeDistance(b *strings.Builder, st state.State, styles Styles) {
	d := st.Distance
	if d == nil {
		return
	}
	msg := analysis.DistanceMessage(d.MM, d.Measured)
	if analysis.DistanceAcceptable(d.MM, d.Measured) {
		b.WriteString(styles.SuccessText.Render("✓ " + msg))
	} else {
		b.WriteString(styles.WarningText.Render("⚠ " + msg))
	}
	b.WriteString("\n\n")
}

// renderResultsScreen lists stored tests, newest first, with the selected
// row highlighted. report is the local analysis of the last test, if any.
func renderResultsScreen(st state.State, styles Styles, selected int, report *analysis.Report) string {
	var b strings.Builder
	b.WriteString(styles.Title.Render("Test results"))
	b.WriteString("\n\n")

	if report != nil {
		b.WriteString(renderReport(styles, *report))
		b.WriteString("\n")
	}

	if len(st.TestResults) == 0 {
		b.WriteString(styles.InfoText.Render("No tests yet. Run a test to see results here."))
		return b.String()
	}

	header := fmt.Sprintf("%-6s %-12s %-11s %9s %9s %9s %9s", "#", "Date", "Result", "Duration", "Tracking", "Fixations", "Stability")
	b.WriteString(styles.MutedText.Render(header))
	b.WriteString("\n")
	for i, r := range st.TestResults {
		row := resultRow(r)
		if i == selected {
			b.WriteString(styles.Selected.Render(row))
		} else {
			b.WriteString(styles.Text.Render(row[:20]))
			b.WriteString(styles.ResultStyle(r.Result).Render(row[20:32]))
			b.WriteString(styles.Text.Render(row[32:]))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render("enter details · p export PDF · P export all"))
	return b.String()
}

func resultRow(r api.TestResult) string {
	date := "-"
	if t, ok := r.Date(); ok {
		date = t.Local().Format("2006-01-02")
	}
	return fmt.Sprintf("%-6s %-12s %-11s %8.1fs %8.1f%% %9d %9.2f",
		truncate(fmt.Sprintf("%d", r.ID), 6),
		date,
		resultLabel(r.Result),
		r.Duration,
		r.TrackingPercentage,
		r.FixationCount,
		r.GazeStability,
	)
}

func renderReport(styles Styles, r analysis.Report) string {
	var b strings.Builder
	b.WriteString(styles.AccentText.Bold(true).Render("Last test (local analysis)"))
	b.WriteString("\n")
	b.WriteString(styles.Text.Render(fmt.Sprintf("Rating %s · Tracking quality %s (%.0f%%)",
		r.Evaluation.Rating, r.Quality.Level, r.Quality.GazePercentage)))
	b.WriteString("\n")
	st := r.Statistics
	b.WriteString(styles.MutedText.Render(fmt.Sprintf("Fixations %d (avg %s, %s-%s) · Saccades %d",
		st.FixationCount, analysis.Millis(st.AvgFixation), analysis.Millis(st.MinFixation), analysis.Millis(st.MaxFixation), st.SaccadeCount)))
	b.WriteString("\n")
	for _, remark := range r.Evaluation.Remarks {
		b.WriteString(styles.MutedText.Render("  " + remark))
		b.WriteString("\n")
	}
	if r.Evaluation.FollowUp {
		b.WriteString(styles.WarningText.Render("  Follow-up recommended"))
		b.WriteString("\n")
	}
	return b.String()
}

// renderStatisticsScreen shows the aggregate figures for the patient.
func renderStatisticsScreen(st state.State, styles Styles) string {
	var b strings.Builder
	b.WriteString(styles.Title.Render("Statistics"))
	b.WriteString("\n\n")

	stats := st.Statistics
	if stats == nil {
		b.WriteString(styles.InfoText.Render("No statistics yet. Run tests to build statistics."))
		return b.String()
	}

	b.WriteString(styles.Text.Render(fmt.Sprintf("Tests taken: %d", stats.TotalTests)))
	b.WriteString("\n")
	if stats.Results == nil {
		if stats.Message != "" {
			b.WriteString("\n")
			b.WriteString(styles.InfoText.Render(stats.Message))
		}
		return b.String()
	}

	b.WriteString("\n")
	counts := []struct {
		result string
		n      int
	}{
		{api.ResultExcellent, stats.Results.Excellent},
		{api.ResultGood, stats.Results.Good},
		{api.ResultAcceptable, stats.Results.Acceptable},
		{api.ResultPoor, stats.Results.Poor},
	}
	for _, c := range counts {
		b.WriteString(styles.ResultStyle(c.result).Width(12).Render(resultLabel(c.result)))
		b.WriteString(styles.Text.Render(fmt.Sprintf("%3d ", c.n)))
		b.WriteString(styles.ResultStyle(c.result).Render(bar(c.n, stats.TotalTests, 30)))
		b.WriteString("\n")
	}
	if avg := stats.Averages; avg != nil {
		b.WriteString("\n")
		b.WriteString(styles.Text.Render(fmt.Sprintf("Average tracking:  %.1f%%", avg.TrackingPercentage)))
		b.WriteString("\n")
		b.WriteString(styles.Text.Render(fmt.Sprintf("Average stability: %.2f", avg.GazeStability)))
		b.WriteString("\n")
	}
	return b.String()
}

// bar renders n/total as a bar of at most width cells.
func bar(n, total, width int) string {
	if total <= 0 || n <= 0 {
		return ""
	}
	cells := int(math.Round(float64(n) / float64(total) * float64(width)))
	return strings.Repeat("█", max(cells, 1))
}

// renderNotifications renders the toast stack, oldest first.
func renderNotifications(notes []state.Notification, styles Styles, width int) string {
	if len(notes) == 0 {
		return ""
	}
	lines := make([]string, 0, len(notes))
	for _, n := range notes {
		lines = append(lines, styles.KindStyle(n.Kind).Render(truncate(n.Message, max(width-4, 10))))
	}
	return strings.Join(lines, "\n")
}
