package collect

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"os"

	"github.com/TobiSchelling/tuneiq/internal/records"
)

//go:embed sample_data/streaming_sample.csv
var sampleFS embed.FS

const samplePath = "sample_data/streaming_sample.csv"

// SampleSource serves the bundled Burna Boy dataset, or a CSV file on disk
// when a path is configured.
type SampleSource struct {
	path string
}

// NewSampleSource creates a sample source. An empty path uses the embedded
// dataset.
func NewSampleSource(path string) *SampleSource {
	return &SampleSource{path: path}
}

func (s *SampleSource) Name() string { return "Sample" }

// Fetch returns the sample rows regardless of artist: the dataset is the
// fallback baseline. A configured file that cannot be read falls back to the
// embedded dataset and reports the error.
func (s *SampleSource) Fetch(_ context.Context, _ string) ([]records.StreamRecord, error) {
	if s.path != "" {
		recs, err := readCSVFile(s.path)
		if err == nil {
			return recs, nil
		}
		embedded, eerr := Embedded()
		if eerr != nil {
			return nil, eerr
		}
		return embedded, fmt.Errorf("loading sample %s: %w", s.path, err)
	}
	return Embedded()
}

// Embedded parses the dataset compiled into the binary.
func Embedded() ([]records.StreamRecord, error) {
	data, err := sampleFS.ReadFile(samplePath)
	if err != nil {
		return nil, fmt.Errorf("reading embedded sample: %w", err)
	}
	return records.ReadCSV(bytes.NewReader(data))
}

// EmbeddedCSV returns the raw bytes of the bundled dataset.
func EmbeddedCSV() []byte {
	data, _ := sampleFS.ReadFile(samplePath)
	return data
}

func readCSVFile(path string) ([]records.StreamRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return records.ReadCSV(f)
}
