package api

import (
	"fmt"

	"github.com/rickgao/quantdash/internal/model"
)

// ToBars converts the parallel candle arrays into bars.
// A no_data response yields an empty, non-nil slice.
func (r *CandlesResponse) ToBars(symbol, resolution string) ([]model.Bar, error) {
	if r.Status == StatusNoData {
		return []model.Bar{}, nil
	}
	if r.Status != "" && r.Status != StatusOK {
		return nil, fmt.Errorf("unexpected candle status %q", r.Status)
	}

	n := len(r.Timestamp)
	if len(r.Open) != n || len(r.High) != n || len(r.Low) != n || len(r.Close) != n {
		return nil, fmt.Errorf("candle arrays have mismatched lengths (t=%d o=%d h=%d l=%d c=%d)",
			n, len(r.Open), len(r.High), len(r.Low), len(r.Close))
	}

	bars := make([]model.Bar, n)
	for i := 0; i < n; i++ {
		bars[i] = model.Bar{
			Symbol:     symbol,
			Resolution: resolution,
			Timestamp:  r.Timestamp[i],
			Open:       r.Open[i],
			High:       r.High[i],
			Low:        r.Low[i],
			Close:      r.Close[i],
		}
		// Volume is omitted for some instruments.
		if i < len(r.Volume) {
			bars[i].Volume = r.Volume[i]
		}
	}
	return bars, nil
}

// ToModel converts a quote response to the model type.
func (q *QuoteResponse) ToModel(symbol string) model.Quote {
	return model.Quote{
		Symbol:        symbol,
		Current:       q.Current,
		Change:        q.Change,
		PercentChange: q.PercentChange,
		High:          q.High,
		Low:           q.Low,
		Open:          q.Open,
		PreviousClose: q.PreviousClose,
		Timestamp:     q.Timestamp,
	}
}
