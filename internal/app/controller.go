package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/regardlab/regard/internal/analysis"
	"github.com/regardlab/regard/internal/api"
	"github.com/regardlab/regard/internal/gaze"
	"github.com/regardlab/regard/internal/prefs"
	"github.com/regardlab/regard/internal/state"
)

// metricsEvery throttles how often live metrics are pushed into the store
// while a test runs.
const metricsEvery = 100 * time.Millisecond

// CalibrationGrid lists the calibration targets in normalized screen
// coordinates, in the order they are shown.
var CalibrationGrid = []state.Point{
	{X: 0.5, Y: 0.5},
	{X: 0.1, Y: 0.1},
	{X: 0.9, Y: 0.1},
	{X: 0.1, Y: 0.9},
	{X: 0.9, Y: 0.9},
}

// Controller runs the user-facing flows against the backend and the store.
// Every failure is shown as an error notification and returned; none of
// them is fatal.
type Controller struct {
	store     *state.Store
	client    api.Backend
	logger    *zap.Logger
	now       func() time.Time
	prefsPath string
	exportDir string

	mu          sync.Mutex
	calibrating bool
	tracker     *analysis.Tracker
	published   time.Time
	distanceAt  time.Time
	lastReport  *analysis.Report
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithControllerLogger sets the logger.
func WithControllerLogger(logger *zap.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithNow replaces the wall clock used for gaze timing.
func WithNow(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithPrefsPath sets the preferences file updated after a login. Empty
// uses the default location.
func WithPrefsPath(path string) ControllerOption {
	return func(c *Controller) { c.prefsPath = path }
}

// WithExportDir sets where PDF exports land when no path is given.
func WithExportDir(dir string) ControllerOption {
	return func(c *Controller) { c.exportDir = dir }
}

// NewController wires a Controller over store and client.
func NewController(store *state.Store, client api.Backend, opts ...ControllerOption) *Controller {
	c := &Controller{
		store:     store,
		client:    client,
		logger:    zap.NewNop(),
		now:       time.Now,
		exportDir: ".",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the state store the controller mutates.
func (c *Controller) Store() *state.Store {
	return c.store
}

// GoTo switches the visible screen.
func (c *Controller) GoTo(screen state.Screen) {
	c.store.SetScreen(screen)
}

// Dismiss removes a notification before it expires.
func (c *Controller) Dismiss(id string) {
	c.store.DismissNotification(id)
}

// Login authenticates and records the patient.
func (c *Controller) Login(ctx context.Context, username, password string) error {
	resp, err := c.client.Login(ctx, username, password)
	if err != nil {
		return c.fail("login", err)
	}

	patient := &state.Patient{
		ID:        resp.UserID,
		Username:  resp.Username,
		Email:     resp.Email,
		FirstName: resp.FirstName,
		LastName:  resp.LastName,
	}
	if profile, err := c.client.GetPatient(ctx); err != nil {
		c.logger.Warn("fetch patient profile", zap.Error(err))
	} else if profile.Age != nil {
		patient.Age = *profile.Age
	}

	c.store.SetPatient(patient)
	c.store.AddNotification("Signed in", state.KindSuccess)
	c.store.SetScreen(state.ScreenHome)
	c.logger.Info("signed in", zap.String("username", resp.Username))

	if err := prefs.Update(c.prefsPath, func(p *prefs.Prefs) { p.LastUsername = resp.Username }); err != nil {
		c.logger.Warn("save last username", zap.Error(err))
	}
	return nil
}

// Register creates an account and signs into it.
func (c *Controller) Register(ctx context.Context, req api.RegisterRequest) error {
	resp, err := c.client.Register(ctx, req)
	if err != nil {
		return c.fail("register", err)
	}
	c.logger.Info("registered", zap.Int64("user_id", resp.UserID))

	if err := c.Login(ctx, req.Username, req.Password); err != nil {
		c.store.SetScreen(state.ScreenLogin)
		return err
	}
	c.store.AddNotification("Registration complete. Welcome!", state.KindSuccess)
	return nil
}

// Logout drops the session and all local state.
func (c *Controller) Logout() {
	c.mu.Lock()
	c.tracker = nil
	c.calibrating = false
	c.lastReport = nil
	c.mu.Unlock()

	if err := c.client.Logout(); err != nil {
		c.logger.Warn("clear tokens", zap.Error(err))
	}
	c.store.Reset()
	c.store.AddNotification("Signed out", state.KindInfo)
	c.store.SetScreen(state.ScreenHome)
}

// StartCalibration clears previous calibration points and shows the
// calibration screen.
func (c *Controller) StartCalibration() {
	c.mu.Lock()
	if c.calibrating {
		c.mu.Unlock()
		c.store.AddNotification("Calibration already in progress", state.KindWarning)
		return
	}
	c.calibrating = true
	c.mu.Unlock()

	c.store.SetCalibrationPoints(nil)
	c.store.SetScreen(state.ScreenCalibration)
	c.store.AddNotification("Calibrating: look at each target and press space", state.KindInfo)
}

// NextCalibrationPoint returns the target to show next, its 1-based index
// and false once every target has been recorded.
func (c *Controller) NextCalibrationPoint() (state.Point, int, bool) {
	n := len(c.store.State().CalibrationPoints)
	if n >= len(CalibrationGrid) {
		return state.Point{}, n, false
	}
	return CalibrationGrid[n], n + 1, true
}

// RecordCalibrationPoint stores p and finishes calibration once enough
// points are in.
func (c *Controller) RecordCalibrationPoint(p state.Point) {
	c.store.AddCalibrationPoint(p)
	st := c.store.State()
	if !st.IsCalibrated {
		c.store.AddNotification(fmt.Sprintf("Point %d/%d recorded", len(st.CalibrationPoints), state.CalibrationTarget), state.KindInfo)
		return
	}

	c.mu.Lock()
	done := c.calibrating
	c.calibrating = false
	c.mu.Unlock()
	if done {
		c.store.AddNotification("Calibration complete. You can start the test.", state.KindSuccess)
	}
}

// Calibrating reports whether a calibration run is in progress.
func (c *Controller) Calibrating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calibrating
}

// StartTest opens a test session and starts tracking gaze samples.
func (c *Controller) StartTest() {
	c.mu.Lock()
	if c.tracker != nil {
		c.mu.Unlock()
		c.store.AddNotification("A test is already running", state.KindWarning)
		return
	}
	c.store.StartTest()
	start := c.now()
	if cur := c.store.State().CurrentTest; cur != nil && cur.StartTime != nil {
		start = *cur.StartTime
	}
	c.tracker = analysis.NewTracker(start)
	c.published = time.Time{}
	c.lastReport = nil
	c.mu.Unlock()

	c.store.SetScreen(state.ScreenTest)
	c.store.AddNotification("Test started. Follow the targets.", state.KindSuccess)
	c.logger.Info("test started", zap.Time("start", start))
}

// TestRunning reports whether a test is collecting samples.
func (c *Controller) TestRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracker != nil
}

// FeedGaze records one sample from the gaze feed. The viewing distance is
// always published, at most every metricsEvery; everything else is dropped
// while no test runs.
func (c *Controller) FeedGaze(s gaze.Sample) {
	c.mu.Lock()
	now := c.now()
	publishDistance := c.distanceAt.IsZero() || now.Sub(c.distanceAt) >= metricsEvery
	if publishDistance {
		c.distanceAt = now
	}
	if c.tracker == nil {
		c.mu.Unlock()
		if publishDistance {
			c.store.SetDistance(s.Distance())
		}
		return
	}
	c.tracker.Add(s.Time(now), s.Observation())
	var patch *state.MetricsPatch
	if c.published.IsZero() || now.Sub(c.published) >= metricsEvery {
		p := c.tracker.Metrics(now).Patch()
		patch = &p
		c.published = now
	}
	c.mu.Unlock()

	c.store.UpdateGazeData(s.GazeSample())
	if publishDistance {
		c.store.SetDistance(s.Distance())
	}
	if patch != nil {
		c.store.UpdateTestData(*patch)
	}
}

// StopTest finishes the running test, uploads it and shows the results.
// It returns nil without error when no test was running.
func (c *Controller) StopTest(ctx context.Context) (*api.TestResult, error) {
	c.mu.Lock()
	tracker := c.tracker
	c.tracker = nil
	c.mu.Unlock()
	if tracker == nil {
		c.logger.Debug("stop requested without a running test")
		return nil, nil
	}

	st := c.store.State()
	finished := c.store.FinishTest()
	if finished == nil {
		c.store.AddNotification("No test data", state.KindWarning)
		return nil, nil
	}

	end := c.now()
	if finished.EndTime != nil {
		end = *finished.EndTime
	}
	m := tracker.Metrics(end).Patch()
	c.analyze(tracker, end, st.Patient)

	req := api.CreateTestRequest{
		PatientID:           st.CurrentPatientID,
		Duration:            finished.TotalTime,
		GazeTime:            *m.GazeTime,
		TrackingPercentage:  *m.TrackingPercentage,
		FixationCount:       *m.FixationCount,
		AvgFixationDuration: *m.AvgFixationDuration,
		MaxFixationDuration: *m.MaxFixationDuration,
		MinFixationDuration: *m.MinFixationDuration,
		GazeStability:       *m.GazeStability,
		GazeConsistency:     *m.GazeConsistency,
		RawData:             tracker.RawData(finished.RawData),
	}
	result, err := c.client.CreateTest(ctx, req)
	if err != nil {
		return nil, c.fail("save test", err)
	}

	c.store.AddTestResult(*result)
	c.store.AddNotification("Test saved", state.KindSuccess)
	c.store.SetScreen(state.ScreenResults)
	c.logger.Info("test saved", zap.Int64("test_id", result.ID), zap.String("result", result.Result))
	return result, nil
}

func (c *Controller) analyze(tracker *analysis.Tracker, end time.Time, patient *state.Patient) {
	var name string
	if patient != nil {
		name = patient.FirstName + " " + patient.LastName
	}
	report, err := analysis.Analyze(tracker.Recording(end, name))
	if err != nil {
		c.logger.Debug("skip local analysis", zap.Error(err))
		return
	}
	c.mu.Lock()
	c.lastReport = &report
	c.mu.Unlock()
	c.logger.Info("local analysis",
		zap.String("rating", string(report.Evaluation.Rating)),
		zap.String("quality", string(report.Quality.Level)),
	)
}

// LastReport returns the local analysis of the last finished test, or nil.
func (c *Controller) LastReport() *analysis.Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastReport == nil {
		return nil
	}
	r := *c.lastReport
	return &r
}

// LoadResults fetches the patient's tests and shows the results screen.
func (c *Controller) LoadResults(ctx context.Context) error {
	c.store.AddNotification("Loading results...", state.KindInfo)
	page, err := c.client.GetTests(ctx)
	if err != nil {
		return c.fail("load results", err)
	}
	c.store.SetTestsPage(page)
	c.store.SetScreen(state.ScreenResults)
	return nil
}

// LoadStatistics fetches aggregate statistics and shows them.
func (c *Controller) LoadStatistics(ctx context.Context) error {
	stats, err := c.client.GetStatistics(ctx)
	if err != nil {
		return c.fail("load statistics", err)
	}
	c.store.SetStatistics(stats)
	c.store.SetScreen(state.ScreenStatistics)
	return nil
}

// LoadPatients fetches the patients visible to the account.
func (c *Controller) LoadPatients(ctx context.Context) error {
	page, err := c.client.GetPatients(ctx)
	if err != nil {
		return c.fail("load patients", err)
	}
	c.store.SetPatientsPage(page)
	return nil
}

// ViewTest fetches one test. A missing test is reported as a warning.
func (c *Controller) ViewTest(ctx context.Context, id int64) (*api.TestResult, error) {
	test, err := c.client.GetTest(ctx, id)
	if errors.Is(err, api.ErrNotFound) {
		c.store.AddNotification(fmt.Sprintf("Test #%d not found", id), state.KindWarning)
		return nil, err
	}
	if err != nil {
		return nil, c.fail("load test", err)
	}
	c.store.AddNotification(fmt.Sprintf("Test #%d loaded", id), state.KindSuccess)
	return test, nil
}

// ExportTestPDF downloads the report of one test to path, or to
// test_<id>.pdf in the export directory when path is empty. It returns the
// written path.
func (c *Controller) ExportTestPDF(ctx context.Context, id int64, path string) (string, error) {
	if path == "" {
		path = filepath.Join(c.exportDir, fmt.Sprintf("test_%d.pdf", id))
	}
	return c.export(ctx, path, func(ctx context.Context) ([]byte, error) {
		return c.client.ExportTestPDF(ctx, id)
	})
}

// ExportAllTestsPDF downloads the combined report of every test.
func (c *Controller) ExportAllTestsPDF(ctx context.Context, path string) (string, error) {
	if path == "" {
		path = filepath.Join(c.exportDir, "all_tests.pdf")
	}
	return c.export(ctx, path, c.client.ExportAllTestsPDF)
}

func (c *Controller) export(ctx context.Context, path string, fetch func(context.Context) ([]byte, error)) (string, error) {
	c.store.AddNotification("Generating PDF...", state.KindInfo)
	data, err := fetch(ctx)
	if err != nil {
		return "", c.fail("export pdf", err)
	}
	if err := writeFile(path, data); err != nil {
		return "", c.fail("export pdf", err)
	}
	c.store.AddNotification("PDF saved to "+path, state.KindSuccess)
	c.logger.Info("pdf exported", zap.String("path", path), zap.Int("bytes", len(data)))
	return path, nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Predict asks the backend model to grade data.
func (c *Controller) Predict(ctx context.Context, data any) (*api.Prediction, error) {
	pred, err := c.client.PredictTest(ctx, data)
	if err != nil {
		return nil, c.fail("predict", err)
	}
	c.store.AddNotification(fmt.Sprintf("Prediction: %s (%.0f%% confidence)", pred.Result, pred.Confidence*100), state.KindSuccess)
	return pred, nil
}

// Refresh reloads tests and statistics and reports failures.
func (c *Controller) Refresh(ctx context.Context) error {
	if err := c.sync(ctx); err != nil {
		return c.fail("refresh", err)
	}
	return nil
}

// sync fetches tests and statistics concurrently and records the outcome
// in the store's sync status. It does nothing while signed out.
func (c *Controller) sync(ctx context.Context) error {
	if !c.client.IsAuthenticated() {
		return nil
	}

	var (
		tests api.Page[api.TestResult]
		stats *api.Statistics
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		page, err := c.client.GetTests(gctx)
		if err != nil {
			return fmt.Errorf("fetch tests: %w", err)
		}
		tests = page
		return nil
	})
	g.Go(func() error {
		s, err := c.client.GetStatistics(gctx)
		if err != nil {
			return fmt.Errorf("fetch statistics: %w", err)
		}
		stats = s
		return nil
	})
	err := g.Wait()
	if err == nil {
		c.store.SetTestsPage(tests)
		c.store.SetStatistics(stats)
	}
	c.store.RecordSync(err)
	return err
}

// fail logs err, shows it as an error notification and returns it. When
// the session could not be recovered the patient is signed out locally.
func (c *Controller) fail(op string, err error) error {
	c.logger.Warn(op+" failed", zap.Error(err))
	c.store.AddNotification("Error: "+err.Error(), state.KindError)
	if errors.Is(err, api.ErrUnauthorized) && !c.client.IsAuthenticated() && c.store.State().IsAuthenticated {
		c.store.ClearPatient()
		c.store.SetScreen(state.ScreenLogin)
	}
	return err
}
