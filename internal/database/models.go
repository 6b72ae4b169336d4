package database

import "github.com/TobiSchelling/tuneiq/internal/royalty"

// Run is the stored snapshot of one pipeline run.
type Run struct {
	ID                 string                 `json:"id"`
	Artist             string                 `json:"artist"`
	PeriodID           string                 `json:"period_id"`
	Threshold          float64                `json:"threshold"`
	FXRate             float64                `json:"fx_rate"`
	Currency           string                 `json:"currency"`
	RecordCount        int                    `json:"record_count"`
	TotalStreams       int64                  `json:"total_streams"`
	Impact             royalty.ImpactEstimate `json:"impact"`
	LostRevenueNGN     float64                `json:"lost_revenue_ngn"`
	UnderpaidCountries int                    `json:"underpaid_countries"`
	PredictedGDP       *float64               `json:"predicted_gdp"`
	PredictedJobs      *float64               `json:"predicted_jobs"`
	Confidence         *float64               `json:"confidence,omitempty"`
	PredictionError    *string                `json:"prediction_error,omitempty"`
	ReportMarkdown     string                 `json:"report_markdown"`
	Sources            map[string]int         `json:"sources"`
	Replaced           []string               `json:"replaced"`
	CreatedAt          *string                `json:"created_at"`
}

// Stats contains aggregate database statistics.
type Stats struct {
	Runs            int
	Artists         int
	StoredRecords   int
	UnderpaidRows   int
	TotalLostNGN    float64
	RunsWithPredict int
}
