package domain

import (
	"fmt"
	"sort"
	"time"
)

// ValidateChange checks a sector change against a vehicle's recorded history
// (any order). Changes must move forward in time past every closed interval
// and past the start of the open one, and must actually change the sector.
func ValidateChange(history []SectorInterval, ch SectorChange) error {
	if ch.VehicleID == "" {
		return fmt.Errorf("%w: vehicle id is required", ErrInvalidInput)
	}
	if ch.DataMudanca.IsZero() {
		return fmt.Errorf("%w: change date is required", ErrInvalidInput)
	}
	for _, iv := range history {
		if iv.Open() {
			if !ch.DataMudanca.After(iv.DataInicio) {
				return fmt.Errorf("%w: vehicle %s change at %s is not after open interval start %s",
					ErrIntervalOverlap, ch.VehicleID, ch.DataMudanca.Format(time.DateOnly), iv.DataInicio.Format(time.DateOnly))
			}
			if iv.Sector.Codigo == ch.Para.Codigo {
				return fmt.Errorf("%w: vehicle %s already in sector %d", ErrIntervalOverlap, ch.VehicleID, ch.Para.Codigo)
			}
			continue
		}
		if ch.DataMudanca.Before(*iv.DataFim) {
			return fmt.Errorf("%w: vehicle %s change at %s precedes closed interval ending %s",
				ErrIntervalOverlap, ch.VehicleID, ch.DataMudanca.Format(time.DateOnly), iv.DataFim.Format(time.DateOnly))
		}
	}
	return nil
}

// IntervalAt resolves the interval covering at from a history slice, preferring
// the most recently started candidate. It returns nil when nothing covers at.
func IntervalAt(history []SectorInterval, at time.Time) *SectorInterval {
	var best *SectorInterval
	for i := range history {
		iv := history[i]
		if !iv.Covers(at) {
			continue
		}
		if best == nil || iv.DataInicio.After(best.DataInicio) {
			best = &iv
		}
	}
	return best
}

// OpenInterval returns the open interval in history, if any.
func OpenInterval(history []SectorInterval) *SectorInterval {
	for i := range history {
		if history[i].Open() {
			iv := history[i]
			return &iv
		}
	}
	return nil
}

// SortHistory orders intervals by start date ascending.
func SortHistory(history []SectorInterval) {
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].DataInicio.Before(history[j].DataInicio)
	})
}
