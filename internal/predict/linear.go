package predict

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LinearModel is a regression exported as plain coefficients, one set per
// output. It lets the trained model ship without a Python runtime.
type LinearModel struct {
	FeatureNames []string       `yaml:"feature_names"`
	Outputs      []LinearOutput `yaml:"outputs"`
	Confidence   *float64       `yaml:"confidence"`
}

// LinearOutput is one target of a LinearModel (gdp, then optionally jobs).
type LinearOutput struct {
	Name         string    `yaml:"name"`
	Intercept    float64   `yaml:"intercept"`
	Coefficients []float64 `yaml:"coefficients"`
}

// LoadLinearModel reads and validates a coefficients file.
func LoadLinearModel(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model: %w", err)
	}
	return parseLinearModel(data)
}

func parseLinearModel(data []byte) (*LinearModel, error) {
	var m LinearModel
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing model: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *LinearModel) validate() error {
	if len(m.FeatureNames) != NumFeatures {
		return fmt.Errorf("model expects %d features, schema has %d", len(m.FeatureNames), NumFeatures)
	}
	for i, name := range m.FeatureNames {
		if name != FeatureNames[i] {
			return fmt.Errorf("feature %d: model expects %q, schema has %q", i, name, FeatureNames[i])
		}
	}
	if len(m.Outputs) == 0 || len(m.Outputs) > 2 {
		return fmt.Errorf("model must have 1 or 2 outputs, has %d", len(m.Outputs))
	}
	for _, o := range m.Outputs {
		if len(o.Coefficients) != NumFeatures {
			return fmt.Errorf("output %q has %d coefficients, want %d", o.Name, len(o.Coefficients), NumFeatures)
		}
	}
	return nil
}

// Predict implements Model.
func (m *LinearModel) Predict(_ context.Context, f Features) (Output, error) {
	out := Output{Values: make([]float64, len(m.Outputs)), Confidence: m.Confidence}
	for i, o := range m.Outputs {
		y := o.Intercept
		for j, c := range o.Coefficients {
			y += c * f[j]
		}
		out.Values[i] = y
	}
	return out, nil
}
