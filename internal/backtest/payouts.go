package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/yourusername/race-edge/internal/models"
)

// PayoutSource finds the payout record of a race. A race without a
// record yields models.ErrNotFound.
type PayoutSource interface {
	Payout(ctx context.Context, raceID string) (*models.PayoutRecord, error)
}

// PayoutMap is an in-memory payout source
type PayoutMap map[string]*models.PayoutRecord

// Payout returns the record for raceID
func (m PayoutMap) Payout(_ context.Context, raceID string) (*models.PayoutRecord, error) {
	rec, ok := m[raceID]
	if !ok || rec == nil {
		return nil, fmt.Errorf("payout for race %s: %w", raceID, models.ErrNotFound)
	}
	return rec, nil
}

// LoadPayoutFile reads a JSON array of payout records. Later records for
// the same race replace earlier ones.
func LoadPayoutFile(path string) (PayoutMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read payout file: %w", err)
	}
	var records []models.PayoutRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse payout file: %w", err)
	}
	out := make(PayoutMap, len(records))
	for i := range records {
		if records[i].RaceID == "" {
			continue
		}
		out[records[i].RaceID] = &records[i]
	}
	return out, nil
}
