package config

import "time"

// PollIntervalDuration returns the poll cadence as a duration.
func (c Conveyor) PollIntervalDuration() time.Duration {
	return secondsOr(c.PollInterval, 5*time.Second)
}

// ErrorRetryIntervalDuration returns the delay after a failed poll cycle.
func (c Conveyor) ErrorRetryIntervalDuration() time.Duration {
	return secondsOr(c.ErrorRetryInterval, 30*time.Second)
}

// BackoffInitialDuration returns the first per-record retry delay.
func (c Conveyor) BackoffInitialDuration() time.Duration {
	return secondsOr(c.BackoffInitial, 30*time.Second)
}

// BackoffMaxDuration caps the per-record retry delay.
func (c Conveyor) BackoffMaxDuration() time.Duration {
	return secondsOr(c.BackoffMax, time.Hour)
}

// IntervalDuration returns the housekeeping cadence as a duration.
func (h Housekeeping) IntervalDuration() time.Duration {
	return secondsOr(h.Interval, 10*time.Minute)
}

func secondsOr(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
