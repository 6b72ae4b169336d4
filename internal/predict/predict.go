// Package predict adapts stream records to the GDP/jobs regression model's
// input schema and wraps the model behind a facade that never fails the
// caller.
package predict

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/TobiSchelling/tuneiq/internal/records"
)

// ErrUnavailable is reported when no model is configured.
var ErrUnavailable = errors.New("prediction model unavailable")

// Output is the raw model response: [gdp] or [gdp, jobs], plus an optional
// confidence in [0, 1].
type Output struct {
	Values     []float64
	Confidence *float64
}

// Model is an opaque regression model.
type Model interface {
	Predict(ctx context.Context, f Features) (Output, error)
}

// Loader opens a model. It is called at most once per Predictor.
type Loader func() (Model, error)

// Result is the interpreted prediction. Nil numeric fields mean the model
// was unavailable or failed; Err says why.
type Result struct {
	PredictedGDP  *float64 `json:"predicted_gdp"`
	PredictedJobs *float64 `json:"predicted_jobs"`
	Confidence    *float64 `json:"confidence,omitempty"`
	Features      Features `json:"features"`
	Err           string   `json:"error,omitempty"`
}

// Degraded reports whether no numeric prediction is available.
func (r Result) Degraded() bool {
	return r.PredictedGDP == nil
}

// Predictor owns a lazily loaded model.
type Predictor struct {
	load Loader

	once    sync.Once
	model   Model
	loadErr error
}

// NewPredictor creates a predictor that loads its model on first use.
func NewPredictor(load Loader) *Predictor {
	return &Predictor{load: load}
}

// NewStaticPredictor wraps an already loaded model.
func NewStaticPredictor(m Model) *Predictor {
	return NewPredictor(func() (Model, error) { return m, nil })
}

func (p *Predictor) ensureLoaded() {
	p.once.Do(func() {
		if p.load == nil {
			p.loadErr = ErrUnavailable
			return
		}
		m, err := safeLoad(p.load)
		switch {
		case err != nil:
			p.loadErr = err
		case m == nil:
			p.loadErr = ErrUnavailable
		default:
			p.model = m
			return
		}
		log.Printf("Failed to load prediction model: %v", p.loadErr)
	})
}

func safeLoad(load Loader) (m Model, err error) {
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("model loader panicked: %v", r)
		}
	}()
	return load()
}

// Available loads the model if needed and reports whether it is usable.
func (p *Predictor) Available() bool {
	p.ensureLoaded()
	return p.model != nil
}

// LoadErr returns the reason the model is unavailable, or nil.
func (p *Predictor) LoadErr() error {
	p.ensureLoaded()
	return p.loadErr
}

// Predict runs the model over the dataset's feature vector. It never returns
// an error: failures produce a Result with nil numeric fields.
func (p *Predictor) Predict(ctx context.Context, recs []records.StreamRecord) Result {
	return p.PredictFeatures(ctx, FeaturesFrom(recs))
}

// PredictFeatures runs the model over a prepared feature vector.
func (p *Predictor) PredictFeatures(ctx context.Context, f Features) Result {
	res := Result{Features: f}

	p.ensureLoaded()
	if p.model == nil {
		res.Err = fmt.Sprintf("model could not be loaded: %v", p.loadErr)
		return res
	}

	out, err := safePredict(ctx, p.model, f)
	if err != nil {
		log.Printf("Prediction error: %v", err)
		res.Err = err.Error()
		return res
	}

	return interpret(res, out)
}

func safePredict(ctx context.Context, m Model, f Features) (out Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = Output{}, fmt.Errorf("model panicked: %v", r)
		}
	}()
	return m.Predict(ctx, f)
}

// interpret reads the raw output positionally.
func interpret(res Result, out Output) Result {
	switch {
	case len(out.Values) >= 2:
		gdp, jobs := out.Values[0], out.Values[1]
		res.PredictedGDP = &gdp
		res.PredictedJobs = &jobs
	case len(out.Values) == 1:
		gdp := out.Values[0]
		res.PredictedGDP = &gdp
	default:
		res.Err = "model returned no values"
		return res
	}
	res.Confidence = out.Confidence
	return res
}
