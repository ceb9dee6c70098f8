// Package seed fills an empty estimate store with a few sample jobs so a
// fresh deployment has history to show.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Simplici0/slabquote/internal/estimate"
	"github.com/Simplici0/slabquote/internal/records"
)

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
}

type sample struct {
	clientName string
	params     string
}

var samples = []sample{
	{clientName: "Sample: garage pad", params: `{"width_ft":24,"length_ft":24,"thickness_in":6}`},
	{clientName: "Sample: patio", params: `{"width_ft":12,"length_ft":16,"thickness_in":4,"other_materials":85}`},
	{clientName: "Sample: driveway replacement", params: `{"width_ft":10,"length_ft":40,"thickness_in":5,"tearout":true}`},
}

// Run inserts the samples when the store is empty. A store that already
// holds any record is left alone, so repeated runs insert nothing.
func Run(ctx context.Context, store records.Store, calc *estimate.Calculator) (Stats, error) {
	existing, err := store.ListRecent(ctx, 1)
	if err != nil {
		return Stats{}, fmt.Errorf("check existing estimates: %w", err)
	}
	if len(existing) > 0 {
		return Stats{}, nil
	}

	stats := Stats{}
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i, s := range samples {
		var in estimate.Input
		if err := json.Unmarshal([]byte(s.params), &in); err != nil {
			return stats, fmt.Errorf("decode sample %q: %w", s.clientName, err)
		}

		name := s.clientName
		rec := records.NewRecord(&name, json.RawMessage(s.params), calc.Calculate(in))
		// Keep the listed order stable: later samples are newer.
		rec.CreatedAt = base.Add(time.Duration(i-len(samples)) * time.Second)

		if err := store.Append(ctx, rec); err != nil {
			return stats, fmt.Errorf("insert sample %q: %w", s.clientName, err)
		}
		stats.Inserts++
	}

	return stats, nil
}
