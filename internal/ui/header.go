package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/regardlab/regard/internal/state"
)

var screenTitles = map[state.Screen]string{
	state.ScreenHome:        "Home",
	state.ScreenLogin:       "Sign in",
	state.ScreenRegister:    "Register",
	state.ScreenCalibration: "Calibration",
	state.ScreenTest:        "Test",
	state.ScreenResults:     "Results",
	state.ScreenStatistics:  "Statistics",
}

// renderHeader renders the top bar: logo, current screen, patient and sync
// status.
func renderHeader(st state.State, styles Styles, themeName string, width int, now time.Time) string {
	title := screenTitles[st.CurrentScreen]
	if title == "" {
		title = string(st.CurrentScreen)
	}

	left := styles.Logo.Render("regard") + "  " + title

	var right []string
	if p := st.Patient; p != nil {
		who := strings.TrimSpace(p.FirstName + " " + p.LastName)
		if who == "" {
			who = p.Username
		}
		right = append(right, who)
	} else {
		right = append(right, "signed out")
	}
	right = append(right, syncLabel(st.Sync, now))
	right = append(right, themeName)
	rightText := strings.Join(right, " · ")

	gap := max(width-lipgloss.Width(left)-lipgloss.Width(rightText)-2, 1)
	return styles.Header.Width(max(width, 1)).Render(left + strings.Repeat(" ", gap) + rightText)
}

func syncLabel(s state.SyncStatus, now time.Time) string {
	switch {
	case s.IsOffline():
		return fmt.Sprintf("offline (%d failures)", s.ConsecutiveFailures)
	case s.LastError != nil:
		return "sync failed"
	case s.LastUpdated.IsZero():
		return "not synced"
	default:
		return "synced " + humanizeAgo(now.Sub(s.LastUpdated))
	}
}

func humanizeAgo(d time.Duration) string {
	switch {
	case d < 5*time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}

// renderCommandBar lists the most useful keys for the current screen.
func renderCommandBar(st state.State, styles Styles, running bool) string {
	var cmds []string
	switch st.CurrentScreen {
	case state.ScreenLogin, state.ScreenRegister:
		cmds = []string{"tab next", "enter submit", "esc cancel"}
	case state.ScreenCalibration:
		cmds = []string{"enter start", "space record point", "t test", "esc home"}
	case state.ScreenTest:
		if running {
			cmds = []string{"enter stop test"}
		} else {
			cmds = []string{"enter start test", "c calibrate", "esc home"}
		}
	case state.ScreenResults:
		cmds = []string{"j/k select", "enter details", "p pdf", "P all pdf", "esc home"}
	default:
		if st.IsAuthenticated {
			cmds = []string{"c calibrate", "t test", "r results", "s stats", "o sign out"}
		} else {
			cmds = []string{"l sign in", "n register"}
		}
	}
	cmds = append(cmds, "? help", "q quit")
	return styles.Footer.Render(strings.Join(cmds, " · "))
}
