package predict

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TobiSchelling/tuneiq/internal/records"
)

// mockModel implements Model for testing.
type mockModel struct {
	out   Output
	err   error
	panic bool
	calls int
}

func (m *mockModel) Predict(_ context.Context, _ Features) (Output, error) {
	m.calls++
	if m.panic {
		panic("boom")
	}
	return m.out, m.err
}

func TestFeaturesFromEmptyDataset(t *testing.T) {
	got := FeaturesFrom(nil)
	want := Features{0.5, 2.0, 3.5, 5, 2023, 10, 1.0, 20}
	if got != want {
		t.Errorf("expected defaults %v, got %v", want, got)
	}
	if got != DefaultFeatures() {
		t.Error("expected DefaultFeatures to match documented defaults")
	}
}

func TestFeaturesFromWithoutOptionalColumns(t *testing.T) {
	recs := []records.StreamRecord{
		{Platform: records.PlatformSpotify, Country: "Nigeria", Streams: 1_500_000},
		{Platform: records.PlatformYouTube, Country: "Ghana", Streams: 500_000},
	}
	got := FeaturesFrom(recs)
	want := DefaultFeatures()
	want[0] = 2.0
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestFeaturesFromOptionalColumns(t *testing.T) {
	recs := []records.StreamRecord{
		{
			Streams:        1_000_000,
			Listeners:      records.Float(3_000_000),
			DurationSec:    records.Float(180),
			SkipRate:       records.Float(4),
			ReleaseYear:    records.Float(2022),
			PlaylistAdds:   records.Float(100),
			Followers:      records.Float(5),
			EngagementRate: records.Float(30),
		},
		{
			Streams:     0,
			Listeners:   records.Float(1_000_000),
			DurationSec: records.Float(240),
			ReleaseYear: records.Float(2023),
		},
	}
	got := FeaturesFrom(recs)
	want := Features{1.0, 2.0, 3.5, 4, 2022, 100, 5, 30}
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestFeatureNamesOrder(t *testing.T) {
	if FeatureNames[0] != "Streams Last 30 Days (Millions)" || FeatureNames[7] != "Engagement Rate (%)" {
		t.Errorf("unexpected schema order: %v", FeatureNames)
	}
	named := DefaultFeatures().Named()
	if named["Release Year"] != DefaultReleaseYear {
		t.Errorf("expected Release Year %v, got %v", DefaultReleaseYear, named["Release Year"])
	}
}

func TestPredictDualOutput(t *testing.T) {
	conf := 0.8
	m := &mockModel{out: Output{Values: []float64{1.2e9, 350}, Confidence: &conf}}
	p := NewStaticPredictor(m)

	res := p.Predict(context.Background(), nil)
	if res.PredictedGDP == nil || *res.PredictedGDP != 1.2e9 {
		t.Errorf("expected gdp 1.2e9, got %v", res.PredictedGDP)
	}
	if res.PredictedJobs == nil || *res.PredictedJobs != 350 {
		t.Errorf("expected jobs 350, got %v", res.PredictedJobs)
	}
	if res.Confidence == nil || *res.Confidence != 0.8 {
		t.Errorf("expected confidence 0.8, got %v", res.Confidence)
	}
	if res.Degraded() {
		t.Error("expected non-degraded result")
	}
}

func TestPredictSingleOutput(t *testing.T) {
	p := NewStaticPredictor(&mockModel{out: Output{Values: []float64{42}}})
	res := p.Predict(context.Background(), nil)
	if res.PredictedGDP == nil || *res.PredictedGDP != 42 {
		t.Errorf("expected gdp 42, got %v", res.PredictedGDP)
	}
	if res.PredictedJobs != nil {
		t.Error("expected nil jobs for single-output model")
	}
}

func TestPredictModelUnavailable(t *testing.T) {
	loads := 0
	p := NewPredictor(func() (Model, error) {
		loads++
		return nil, errors.New("file not found")
	})

	res := p.Predict(context.Background(), nil)
	if res.PredictedGDP != nil || res.PredictedJobs != nil {
		t.Error("expected nil fields when model cannot load")
	}
	if !strings.Contains(res.Err, "could not be loaded") {
		t.Errorf("expected load error message, got %q", res.Err)
	}
	if p.Available() {
		t.Error("expected predictor to be unavailable")
	}
	p.Predict(context.Background(), nil)
	if loads != 1 {
		t.Errorf("expected loader to run once, ran %d times", loads)
	}
}

func TestPredictNilLoader(t *testing.T) {
	p := NewPredictor(nil)
	if p.Available() {
		t.Error("expected unavailable predictor")
	}
	if !errors.Is(p.LoadErr(), ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", p.LoadErr())
	}
}

func TestPredictInferenceError(t *testing.T) {
	p := NewStaticPredictor(&mockModel{err: errors.New("bad input")})
	res := p.Predict(context.Background(), nil)
	if !res.Degraded() || res.PredictedJobs != nil {
		t.Error("expected nil fields on inference error")
	}
	if res.Err != "bad input" {
		t.Errorf("expected error message, got %q", res.Err)
	}
}

func TestPredictRecoversPanics(t *testing.T) {
	p := NewStaticPredictor(&mockModel{panic: true})
	res := p.Predict(context.Background(), nil)
	if !res.Degraded() {
		t.Error("expected degraded result after panic")
	}

	p = NewPredictor(func() (Model, error) { panic("corrupt file") })
	res = p.Predict(context.Background(), nil)
	if !res.Degraded() {
		t.Error("expected degraded result after loader panic")
	}
}

func TestPredictEmptyOutput(t *testing.T) {
	p := NewStaticPredictor(&mockModel{out: Output{}})
	res := p.Predict(context.Background(), nil)
	if !res.Degraded() || res.Err == "" {
		t.Errorf("expected degraded result with reason, got %+v", res)
	}
}

const linearYAML = `
feature_names:
  - "Streams Last 30 Days (Millions)"
  - "Monthly Listeners (Millions)"
  - "Avg Stream Duration (Min)"
  - "Skip Rate (%)"
  - "Release Year"
  - "Playlist Adds"
  - "Followers (Millions)"
  - "Engagement Rate (%)"
outputs:
  - name: gdp
    intercept: 1000
    coefficients: [100, 0, 0, 0, 0, 0, 0, 0]
  - name: jobs
    intercept: 5
    coefficients: [0, 0, 0, 0, 0, 1, 0, 0]
confidence: 0.7
`

func TestLinearModel(t *testing.T) {
	m, err := parseLinearModel([]byte(linearYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := m.Predict(context.Background(), DefaultFeatures())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Values) != 2 || out.Values[0] != 1050 || out.Values[1] != 15 {
		t.Errorf("unexpected output %v", out.Values)
	}
	if out.Confidence == nil || *out.Confidence != 0.7 {
		t.Errorf("expected confidence 0.7, got %v", out.Confidence)
	}
}

func TestLinearModelRejectsSchemaMismatch(t *testing.T) {
	bad := strings.Replace(linearYAML, "Release Year", "Year", 1)
	if _, err := parseLinearModel([]byte(bad)); err == nil {
		t.Error("expected error for mismatched feature names")
	}

	short := `
feature_names: ["Streams Last 30 Days (Millions)"]
outputs:
  - name: gdp
    coefficients: [1]
`
	if _, err := parseLinearModel([]byte(short)); err == nil {
		t.Error("expected error for short schema")
	}
}

func TestOpenLinearFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	if err := os.WriteFile(path, []byte(linearYAML), 0o644); err != nil {
		t.Fatalf("failed to write model: %v", err)
	}

	p := NewPredictor(Open(KindLinear, path, "", 0))
	res := p.Predict(context.Background(), nil)
	if res.PredictedGDP == nil || *res.PredictedGDP != 1050 {
		t.Errorf("expected gdp 1050, got %+v", res)
	}
}

func TestOpenNone(t *testing.T) {
	p := NewPredictor(Open(KindNone, "", "", 0))
	if p.Available() {
		t.Error("expected no model for kind none")
	}
	p = NewPredictor(Open(KindLinear, filepath.Join(t.TempDir(), "missing.yaml"), "", 0))
	if p.Available() {
		t.Error("expected missing model file to be unavailable")
	}
}

func TestHTTPModel(t *testing.T) {
	var got struct {
		FeatureNames []string    `json:"feature_names"`
		Features     [][]float64 `json:"features"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"prediction": [[2500000, 12]], "confidence": 0.65}`))
	}))
	defer srv.Close()

	p := NewPredictor(Open(KindHTTP, "", srv.URL, 0))
	res := p.Predict(context.Background(), nil)
	if res.PredictedGDP == nil || *res.PredictedGDP != 2500000 {
		t.Errorf("expected gdp 2500000, got %+v", res)
	}
	if res.PredictedJobs == nil || *res.PredictedJobs != 12 {
		t.Errorf("expected jobs 12, got %+v", res)
	}
	if len(got.FeatureNames) != NumFeatures || len(got.Features) != 1 || len(got.Features[0]) != NumFeatures {
		t.Errorf("unexpected request payload: %+v", got)
	}
}

func TestHTTPModelServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewPredictor(Open(KindHTTP, "", srv.URL, 0))
	res := p.Predict(context.Background(), nil)
	if !res.Degraded() {
		t.Error("expected degraded result on server error")
	}
	if !strings.Contains(res.Err, "503") {
		t.Errorf("expected status in error, got %q", res.Err)
	}
}

func TestParseOutputShapes(t *testing.T) {
	cases := []struct {
		in   string
		want []float64
	}{
		{`[7]`, []float64{7}},
		{`[[7, 8]]`, []float64{7, 8}},
		{`{"prediction": 3}`, []float64{3}},
		{`{"predictions": [[1, 2]]}`, []float64{1, 2}},
		{"```json\n[4, 5]\n```", []float64{4, 5}},
	}
	for _, c := range cases {
		out, err := ParseOutput(c.in)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", c.in, err)
			continue
		}
		if len(out.Values) != len(c.want) {
			t.Errorf("%q: expected %v, got %v", c.in, c.want, out.Values)
			continue
		}
		for i := range c.want {
			if out.Values[i] != c.want[i] {
				t.Errorf("%q: expected %v, got %v", c.in, c.want, out.Values)
			}
		}
	}
}

func TestParseOutputInvalid(t *testing.T) {
	for _, in := range []string{"", "not json", `{"other": 1}`, `["a"]`} {
		if _, err := ParseOutput(in); err == nil {
			t.Errorf("%q: expected error", in)
		}
	}
}
