package correlate

// OutlierThreshold is the elapsed-time cutoff in milliseconds. Samples at or
// above it are excluded from the running means; they usually indicate the
// device went away rather than a slow reply.
const OutlierThreshold = 1000

// RunningAverage accumulates latency samples for the lifetime of the run.
// Samples are included only when strictly below the outlier threshold.
type RunningAverage struct {
	sum       float64
	count     int64
	mean      float64
	threshold int64
}

// NewRunningAverage creates an average with the given outlier threshold in
// milliseconds.
func NewRunningAverage(thresholdMillis int64) *RunningAverage {
	return &RunningAverage{threshold: thresholdMillis}
}

// Add offers an elapsed-time sample in milliseconds. It returns true when
// the sample was included in the statistic. Callers filter negative samples
// (clock anomalies) before offering them.
func (a *RunningAverage) Add(elapsedMillis int64) bool {
	if elapsedMillis >= a.threshold {
		return false
	}
	a.sum += float64(elapsedMillis)
	a.count++
	a.mean = a.sum / float64(a.count)
	return true
}

// Mean returns the current mean in milliseconds, 0 before any sample.
func (a *RunningAverage) Mean() float64 {
	return a.mean
}

// Count returns the number of included samples.
func (a *RunningAverage) Count() int64 {
	return a.count
}

// AverageSnapshot is an immutable view of a running average, used by
// summaries and the metrics surface.
type AverageSnapshot struct {
	Mean  float64
	Count int64
}

// Snapshot returns the current mean and included-sample count.
func (a *RunningAverage) Snapshot() AverageSnapshot {
	return AverageSnapshot{Mean: a.mean, Count: a.count}
}
