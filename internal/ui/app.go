package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/regardlab/regard/internal/analysis"
	"github.com/regardlab/regard/internal/api"
	"github.com/regardlab/regard/internal/prefs"
	"github.com/regardlab/regard/internal/state"
)

const defaultTick = 250 * time.Millisecond

// Actions are the user flows the UI triggers. The app controller
// implements them.
type Actions interface {
	Login(ctx context.Context, username, password string) error
	Register(ctx context.Context, req api.RegisterRequest) error
	Logout()
	GoTo(screen state.Screen)
	Dismiss(id string)

	StartCalibration()
	Calibrating() bool
	NextCalibrationPoint() (state.Point, int, bool)
	RecordCalibrationPoint(p state.Point)

	StartTest()
	TestRunning() bool
	StopTest(ctx context.Context) (*api.TestResult, error)
	LastReport() *analysis.Report

	LoadResults(ctx context.Context) error
	LoadStatistics(ctx context.Context) error
	ViewTest(ctx context.Context, id int64) (*api.TestResult, error)
	ExportTestPDF(ctx context.Context, id int64, path string) (string, error)
	ExportAllTestsPDF(ctx context.Context, path string) (string, error)
	Refresh(ctx context.Context) error
}

// Options configures the UI.
type Options struct {
	Context      context.Context
	Actions      Actions
	Store        *state.Store
	ThemeName    string
	PrefsPath    string
	LastUsername string
	Logger       *zap.Logger
	// TickEvery is how often the clock-driven parts (test duration, sync
	// age) redraw.
	TickEvery time.Duration
}

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx          context.Context
	actions      Actions
	prefsPath    string
	lastUsername string
	logger       *zap.Logger
	tickEvery    time.Duration

	keys   keyMap
	theme  Theme
	width  int
	height int
	ready  bool

	st          state.State
	now         time.Time
	feed        chan state.State
	unsubscribe func()

	target   *state.Point
	running  bool
	report   *analysis.Report
	selected int
	form     *form
	detail   *detailView
	showHelp bool
}

// New creates a model subscribed to the store. Call Close when done.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	tick := opts.TickEvery
	if tick <= 0 {
		tick = defaultTick
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := Model{
		ctx:          ctx,
		actions:      opts.Actions,
		prefsPath:    opts.PrefsPath,
		lastUsername: opts.LastUsername,
		logger:       logger,
		tickEvery:    tick,
		keys:         DefaultKeyMap(),
		theme:        GetTheme(opts.ThemeName),
		now:          time.Now(),
		feed:         make(chan state.State, 1),
		unsubscribe:  func() {},
	}
	if opts.Store != nil {
		feed := m.feed
		m.unsubscribe = opts.Store.Subscribe(func(st state.State) { pushLatest(feed, st) })
		m.st = opts.Store.State()
	}
	m.refresh()
	return m
}

// Close detaches the model from the store.
func (m Model) Close() {
	m.unsubscribe()
}

// pushLatest hands st to the UI without blocking the store, replacing any
// state the UI has not picked up yet.
func pushLatest(feed chan state.State, st state.State) {
	for {
		select {
		case feed <- st:
			return
		default:
		}
		select {
		case <-feed:
		default:
		}
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(m.tickEvery), waitForState(m.feed))
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		return m, tickCmd(m.tickEvery)

	case stateMsg:
		m.st = state.State(msg)
		m.refresh()
		return m, waitForState(m.feed)

	case testLoadedMsg:
		m.detail = newDetailView(msg.test, m.theme.Styles(), m.width, m.height)
		return m, nil

	case opDoneMsg:
		if msg.err != nil {
			m.logger.Debug("action failed", zap.String("action", msg.name), zap.Error(msg.err))
		}
		return m, nil
	}

	return m, nil
}

// refresh derives the view state that depends on the controller.
func (m *Model) refresh() {
	if n := len(m.st.TestResults); m.selected >= n {
		m.selected = max(n-1, 0)
	}
	m.syncForm()
	if m.actions == nil {
		return
	}
	m.running = m.actions.TestRunning()
	m.report = m.actions.LastReport()
	m.target = nil
	if m.actions.Calibrating() {
		if p, _, ok := m.actions.NextCalibrationPoint(); ok {
			m.target = &p
		}
	}
}

// syncForm keeps the form in step with the login and register screens.
func (m *Model) syncForm() {
	switch m.st.CurrentScreen {
	case state.ScreenLogin:
		if m.form == nil || m.form.kind != formLogin {
			m.form = newLoginForm(m.lastUsername)
		}
	case state.ScreenRegister:
		if m.form == nil || m.form.kind != formRegister {
			m.form = newRegisterForm()
		}
	default:
		m.form = nil
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	styles := m.theme.Styles()
	var b strings.Builder
	b.WriteString(renderHeader(m.st, styles, m.theme.Name, m.width, m.now))
	b.WriteString("\n")
	b.WriteString(renderCommandBar(m.st, styles, m.running))
	b.WriteString("\n\n")

	body := m.renderContent(styles)
	if m.detail != nil {
		body = lipgloss.Place(m.width, max(m.height-6, 1), lipgloss.Center, lipgloss.Center, m.detail.view(m.theme))
	}
	b.WriteString(lipgloss.NewStyle().PaddingLeft(2).Render(body))

	if toasts := renderNotifications(m.st.Notifications, styles, m.width); toasts != "" {
		b.WriteString("\n\n")
		b.WriteString(toasts)
	}
	return b.String()
}

func (m Model) renderContent(styles Styles) string {
	switch m.st.CurrentScreen {
	case state.ScreenLogin, state.ScreenRegister:
		if m.form != nil {
			return m.form.view(styles)
		}
		return ""
	case state.ScreenCalibration:
		return renderCalibrationScreen(m.st, styles, m.target, m.width, m.height)
	case state.ScreenTest:
		return renderTestScreen(m.st, styles, m.now)
	case state.ScreenResults:
		return renderResultsScreen(m.st, styles, m.selected, m.report)
	case state.ScreenStatistics:
		return renderStatisticsScreen(m.st, styles)
	default:
		return renderHomeScreen(m.st, styles)
	}
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.detail != nil {
		return m.handleDetailKey(msg)
	}
	if m.form != nil {
		return m.handleFormKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		name := m.theme.Name
		if err := prefs.Update(m.prefsPath, func(p *prefs.Prefs) { p.Theme = name }); err != nil {
			m.logger.Warn("save theme", zap.Error(err))
		}
		return m, nil
	case key.Matches(msg, m.keys.Dismiss):
		if n := len(m.st.Notifications); n > 0 {
			m.actions.Dismiss(m.st.Notifications[n-1].ID)
		}
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		return m, m.run("refresh", m.actions.Refresh)
	}

	if m.running {
		// Only stopping is allowed while samples are recorded.
		if key.Matches(msg, m.keys.Start) {
			return m, m.stopTest()
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Home):
		m.actions.GoTo(state.ScreenHome)
		return m, nil
	case key.Matches(msg, m.keys.Login):
		if !m.st.IsAuthenticated {
			m.actions.GoTo(state.ScreenLogin)
		}
		return m, nil
	case key.Matches(msg, m.keys.Register):
		if !m.st.IsAuthenticated {
			m.actions.GoTo(state.ScreenRegister)
		}
		return m, nil
	}

	if !m.st.IsAuthenticated {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Logout):
		m.actions.Logout()
		return m, nil
	case key.Matches(msg, m.keys.Calibration):
		m.actions.GoTo(state.ScreenCalibration)
		return m, nil
	case key.Matches(msg, m.keys.Test):
		m.actions.GoTo(state.ScreenTest)
		return m, nil
	case key.Matches(msg, m.keys.Results):
		return m, m.run("load results", m.actions.LoadResults)
	case key.Matches(msg, m.keys.Statistics):
		return m, m.run("load statistics", m.actions.LoadStatistics)
	}

	switch m.st.CurrentScreen {
	case state.ScreenCalibration:
		return m.handleCalibrationKey(msg)
	case state.ScreenTest:
		if key.Matches(msg, m.keys.Start) {
			m.actions.StartTest()
		}
		return m, nil
	case state.ScreenResults:
		return m.handleResultsKey(msg)
	}
	return m, nil
}

func (m Model) handleCalibrationKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Start):
		m.actions.StartCalibration()
	case key.Matches(msg, m.keys.Record):
		if !m.actions.Calibrating() {
			return m, nil
		}
		if p, _, ok := m.actions.NextCalibrationPoint(); ok {
			m.actions.RecordCalibrationPoint(p)
		}
	}
	return m, nil
}

func (m Model) handleResultsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(m.st.TestResults)
	switch {
	case key.Matches(msg, m.keys.ExportAll):
		return m, m.export(func(ctx context.Context) (string, error) {
			return m.actions.ExportAllTestsPDF(ctx, "")
		})
	case n == 0:
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.selected = min(m.selected+1, n-1)
	case key.Matches(msg, m.keys.Up):
		m.selected = max(m.selected-1, 0)
	case key.Matches(msg, m.keys.Top):
		m.selected = 0
	case key.Matches(msg, m.keys.Bottom):
		m.selected = n - 1
	case key.Matches(msg, m.keys.Open):
		return m, m.viewTest(m.st.TestResults[m.selected].ID)
	case key.Matches(msg, m.keys.Export):
		id := m.st.TestResults[m.selected].ID
		return m, m.export(func(ctx context.Context) (string, error) {
			return m.actions.ExportTestPDF(ctx, id, "")
		})
	}
	return m, nil
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Quit):
		m.detail = nil
		return m, nil
	case key.Matches(msg, m.keys.Export):
		id := m.detail.test.ID
		return m, m.export(func(ctx context.Context) (string, error) {
			return m.actions.ExportTestPDF(ctx, id, "")
		})
	}
	detail := *m.detail
	var cmd tea.Cmd
	detail.viewport, cmd = detail.viewport.Update(msg)
	m.detail = &detail
	return m, cmd
}

func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Escape) {
		m.form = nil
		m.actions.GoTo(state.ScreenHome)
		return m, nil
	}

	f := *m.form
	f.inputs = append(f.inputs[:0:0], f.inputs...)
	cmd, submit := f.update(msg, m.keys)
	m.form = &f
	if !submit {
		return m, cmd
	}

	switch f.kind {
	case formRegister:
		req := f.registration()
		return m, m.run("register", func(ctx context.Context) error {
			return m.actions.Register(ctx, req)
		})
	default:
		username, password := f.credentials()
		m.lastUsername = username
		return m, m.run("login", func(ctx context.Context) error {
			return m.actions.Login(ctx, username, password)
		})
	}
}

// Messages

type tickMsg time.Time

type stateMsg state.State

type testLoadedMsg struct {
	test api.TestResult
}

type opDoneMsg struct {
	name string
	err  error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForState(feed <-chan state.State) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-feed)
	}
}

// run executes fn off the UI goroutine. Failures are already shown as
// notifications by the controller.
func (m Model) run(name string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{name: name, err: fn(ctx)}
	}
}

func (m Model) stopTest() tea.Cmd {
	return m.run("stop test", func(ctx context.Context) error {
		_, err := m.actions.StopTest(ctx)
		return err
	})
}

func (m Model) export(fn func(context.Context) (string, error)) tea.Cmd {
	return m.run("export pdf", func(ctx context.Context) error {
		_, err := fn(ctx)
		return err
	})
}

func (m Model) viewTest(id int64) tea.Cmd {
	ctx, actions := m.ctx, m.actions
	return func() tea.Msg {
		test, err := actions.ViewTest(ctx, id)
		if err != nil {
			return opDoneMsg{name: "view test", err: err}
		}
		return testLoadedMsg{test: *test}
	}
}

// Run starts the Bubble Tea program and blocks until the user quits or the
// context is cancelled.
func Run(opts Options) error {
	m := New(opts)
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}
