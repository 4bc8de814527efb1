package backtest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yourusername/race-edge/internal/features"
	"github.com/yourusername/race-edge/internal/models"
	"github.com/yourusername/race-edge/internal/predictor"
)

// DatasetRow pairs a composed vector with the prediction made from it and
// the finishing rank, for training models outside this program
type DatasetRow struct {
	RaceID      string               `json:"race_id"`
	HorseID     string               `json:"horse_id"`
	HorseNumber int                  `json:"horse_number"`
	RaceDate    time.Time            `json:"race_date"`
	Features    features.Vector      `json:"features"`
	Prediction  predictor.Prediction `json:"prediction"`
	Score       *float64             `json:"score"`
	Rank        *int                 `json:"rank"`
}

func newDatasetRow(entry models.EntryRecord, fv features.Vector, p predictor.Prediction, w features.Weights) DatasetRow {
	row := DatasetRow{
		RaceID:      entry.RaceID,
		HorseID:     entry.HorseID,
		HorseNumber: entry.HorseNumber,
		RaceDate:    entry.Date,
		Features:    fv,
		Prediction:  p,
		Rank:        entry.Rank,
	}
	if score, ok := features.Score(fv, w); ok {
		row.Score = &score
	}
	return row
}

// ExportDataset writes rows as JSON lines
func ExportDataset(rows []DatasetRow, outputPath string) error {
	if outputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create dataset file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("failed to encode dataset row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	return f.Close()
}

// ExportToJSON writes export data to JSON file
func ExportToJSON(v any, outputPath string) error {
	if outputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal export: %w", err)
	}
	return os.WriteFile(outputPath, data, 0o644)
}
