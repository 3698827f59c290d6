package api

import (
	"bytes"
	"encoding/json"
	"time"
)

// Test outcomes assigned by the backend.
const (
	ResultExcellent  = "excellent"
	ResultGood       = "good"
	ResultAcceptable = "acceptable"
	ResultPoor       = "poor"
)

// RegisterRequest is the body of /api/auth/register/.
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Age       *int   `json:"age,omitempty"`
}

// RegisterResponse mirrors a successful registration.
type RegisterResponse struct {
	Message  string `json:"message"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// AuthResponse mirrors /api/auth/login/.
type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       int64  `json:"user_id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
}

// User is the account embedded in a patient profile.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// PatientProfile mirrors /api/patients/ entries and /api/patients/me/.
type PatientProfile struct {
	ID         int64  `json:"id"`
	User       User   `json:"user"`
	Age        *int   `json:"age"`
	TestsCount int    `json:"tests_count"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// DisplayName returns "First Last", falling back to the username.
func (p PatientProfile) DisplayName() string {
	name := p.User.FirstName
	if p.User.LastName != "" {
		if name != "" {
			name += " "
		}
		name += p.User.LastName
	}
	if name == "" {
		return p.User.Username
	}
	return name
}

// MLPrediction is the model verdict attached to a stored test.
type MLPrediction struct {
	PredictedResult string  `json:"predicted_result"`
	ConfidenceScore float64 `json:"confidence_score"`
	AnomalyDetected bool    `json:"anomaly_detected"`
	AnomalyScore    float64 `json:"anomaly_score"`
	CreatedAt       string  `json:"created_at"`
}

// TestResult mirrors a stored eye-tracking test.
type TestResult struct {
	ID                   int64           `json:"id"`
	Patient              int64           `json:"patient"`
	PatientName          string          `json:"patient_name,omitempty"`
	TestDate             string          `json:"test_date"`
	Duration             float64         `json:"duration"`
	GazeTime             float64         `json:"gaze_time"`
	TrackingPercentage   float64         `json:"tracking_percentage"`
	FixationCount        int             `json:"fixation_count"`
	AvgFixationDuration  float64         `json:"avg_fixation_duration"`
	MaxFixationDuration  float64         `json:"max_fixation_duration,omitempty"`
	MinFixationDuration  float64         `json:"min_fixation_duration,omitempty"`
	AvgEyeScreenDistance *float64        `json:"avg_eye_screen_distance,omitempty"`
	GazeStability        float64         `json:"gaze_stability,omitempty"`
	GazeConsistency      float64         `json:"gaze_consistency,omitempty"`
	LeftEyeOpen          *bool           `json:"left_eye_open,omitempty"`
	RightEyeOpen         *bool           `json:"right_eye_open,omitempty"`
	Result               string          `json:"result"`
	ClinicalEvaluation   string          `json:"clinical_evaluation,omitempty"`
	RecommendedFollowUp  bool            `json:"recommended_follow_up,omitempty"`
	MLPrediction         *MLPrediction   `json:"ml_prediction,omitempty"`
	RawData              json.RawMessage `json:"raw_data,omitempty"`
	CreatedAt            string          `json:"created_at,omitempty"`
}

// Date parses TestDate. The second value is false when it is empty or
// unparseable.
func (t TestResult) Date() (time.Time, bool) {
	return parseTimestamp(t.TestDate)
}

// CreateTestRequest is the body of POST /api/tests/.
type CreateTestRequest struct {
	PatientID           *int64  `json:"patient_id,omitempty"`
	Duration            float64 `json:"duration"`
	GazeTime            float64 `json:"gaze_time"`
	TrackingPercentage  float64 `json:"tracking_percentage"`
	FixationCount       int     `json:"fixation_count"`
	AvgFixationDuration float64 `json:"avg_fixation_duration"`
	MaxFixationDuration float64 `json:"max_fixation_duration"`
	MinFixationDuration float64 `json:"min_fixation_duration"`
	GazeStability       float64 `json:"gaze_stability"`
	GazeConsistency     float64 `json:"gaze_consistency"`
	RawData             any     `json:"raw_data"`
}

// ResultCounts groups stored tests by outcome.
type ResultCounts struct {
	Excellent  int `json:"excellent"`
	Good       int `json:"good"`
	Acceptable int `json:"acceptable"`
	Poor       int `json:"poor"`
}

// Averages aggregates metrics across stored tests.
type Averages struct {
	TrackingPercentage float64 `json:"tracking_percentage"`
	GazeStability      float64 `json:"gaze_stability"`
}

// Statistics mirrors /api/tests/statistics/. Results and Averages are nil
// when the patient has no tests yet; Message then explains why.
type Statistics struct {
	TotalTests int           `json:"total_tests"`
	Message    string        `json:"message,omitempty"`
	Results    *ResultCounts `json:"results,omitempty"`
	Averages   *Averages     `json:"averages,omitempty"`
}

// Prediction mirrors /ml/predict/.
type Prediction struct {
	Result              string             `json:"result"`
	Confidence          float64            `json:"confidence"`
	Features            map[string]float64 `json:"features,omitempty"`
	AnomalyDetected     bool               `json:"anomaly_detected"`
	AnomalyScore        float64            `json:"anomaly_score"`
	TrackingPercentage  float64            `json:"tracking_percentage"`
	GazeStability       float64            `json:"gaze_stability"`
	GazeConsistency     float64            `json:"gaze_consistency"`
	ClinicalEvaluation  string             `json:"clinical_evaluation"`
	RecommendedFollowUp bool               `json:"recommended_follow_up"`
}

// Page is a list response. The backend answers either with a bare JSON
// array or with a paginated {count, next, previous, results} envelope;
// both decode into the same Page.
type Page[T any] struct {
	Count    int
	Next     string
	Previous string
	Results  []T
}

// UnmarshalJSON accepts both list shapes. Anything else (null, scalars, an
// object without results) decodes to an empty page.
func (p *Page[T]) UnmarshalJSON(data []byte) error {
	*p = Page[T]{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	switch trimmed[0] {
	case '[':
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*p = PageOf(items)
	case '{':
		var env struct {
			Count    *int            `json:"count"`
			Next     *string         `json:"next"`
			Previous *string         `json:"previous"`
			Results  json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return err
		}
		if res := bytes.TrimSpace(env.Results); len(res) > 0 && res[0] == '[' {
			if err := json.Unmarshal(res, &p.Results); err != nil {
				return err
			}
		}
		p.Count = len(p.Results)
		if env.Count != nil {
			p.Count = *env.Count
		}
		if env.Next != nil {
			p.Next = *env.Next
		}
		if env.Previous != nil {
			p.Previous = *env.Previous
		}
	}
	return nil
}

// PageOf wraps items as a single complete page.
func PageOf[T any](items []T) Page[T] {
	return Page[T]{Count: len(items), Results: items}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
}

func parseTimestamp(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
