package scheduler

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidFrequency rejects non-positive frequencies at configuration time,
// before the indicator is ever scheduled.
var ErrInvalidFrequency = errors.New("frequency must be a positive number of minutes")

// NextRun returns the next whole-time boundary strictly after reference for
// the given frequency. Boundaries are clock-aligned so concurrent indicators
// with the same frequency fire together. All arithmetic is UTC.
func NextRun(frequencyMinutes int, reference time.Time) (time.Time, error) {
	if frequencyMinutes <= 0 {
		return time.Time{}, fmt.Errorf("%w: %d", ErrInvalidFrequency, frequencyMinutes)
	}
	ref := reference.UTC()
	switch {
	case frequencyMinutes < 60:
		// Next minute multiple within the hour; past the last multiple the
		// boundary is the top of the next hour.
		hour := time.Date(ref.Year(), ref.Month(), ref.Day(), ref.Hour(), 0, 0, 0, time.UTC)
		next := (ref.Minute()/frequencyMinutes + 1) * frequencyMinutes
		if next >= 60 {
			return hour.Add(time.Hour), nil
		}
		return hour.Add(time.Duration(next) * time.Minute), nil
	case frequencyMinutes == 1440:
		midnight := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
		return midnight.AddDate(0, 0, 1), nil
	case frequencyMinutes%60 == 0 && frequencyMinutes < 1440:
		step := frequencyMinutes / 60
		midnight := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
		next := (ref.Hour()/step + 1) * step
		if next >= 24 {
			return midnight.AddDate(0, 0, 1), nil
		}
		return midnight.Add(time.Duration(next) * time.Hour), nil
	default:
		// Frequencies that do not divide the hour or day align to multiples
		// of the frequency in minutes since the Unix epoch.
		freq := int64(frequencyMinutes)
		mins := ref.Unix() / 60
		if ref.Unix() < 0 && ref.Unix()%60 != 0 {
			mins--
		}
		next := (mins/freq + 1) * freq
		return time.Unix(next*60, 0).UTC(), nil
	}
}

// IsDue reports whether an indicator last run at lastRun is due at now.
// A zero lastRun means the indicator has never run and is treated as the
// epoch, making it immediately due.
func IsDue(frequencyMinutes int, lastRun, now time.Time) (bool, error) {
	if lastRun.IsZero() {
		lastRun = time.Unix(0, 0)
	}
	next, err := NextRun(frequencyMinutes, lastRun)
	if err != nil {
		return false, err
	}
	return !now.UTC().Before(next), nil
}
