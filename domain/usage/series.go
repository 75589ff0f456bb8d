package usage

import "time"

// Granularity is a time-series bucket width.
type Granularity string

const (
	GranularityMinute Granularity = "minute"
	GranularityHour   Granularity = "hour"
	GranularityDay    Granularity = "day"
)

// ValidGranularity reports whether s names a bucket width.
func ValidGranularity(s string) bool {
	switch Granularity(s) {
	case GranularityMinute, GranularityHour, GranularityDay:
		return true
	}
	return false
}

// Duration returns the bucket width as a duration.
func (g Granularity) Duration() time.Duration {
	switch g {
	case GranularityMinute:
		return time.Minute
	case GranularityHour:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}

// AutoGranularity picks a bucket width from the range length:
// minute up to 3h, hour up to 72h, day beyond.
// This is a PURE function.
func AutoGranularity(since, until time.Time) Granularity {
	span := until.Sub(since)
	switch {
	case span <= 3*time.Hour:
		return GranularityMinute
	case span <= 72*time.Hour:
		return GranularityHour
	default:
		return GranularityDay
	}
}

// BucketStart aligns t to the start of its bucket in UTC.
// Hour buckets align to :00:00, day buckets to midnight UTC.
// This is a PURE function.
func BucketStart(t time.Time, g Granularity) time.Time {
	u := t.UTC()
	switch g {
	case GranularityMinute:
		return u.Truncate(time.Minute)
	case GranularityHour:
		return u.Truncate(time.Hour)
	default:
		return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// BucketCount is one time-series cell: events for one api+status in one bucket.
type BucketCount struct {
	Start  time.Time `json:"start"`
	API    API       `json:"api"`
	Status Status    `json:"status"`
	Count  int64     `json:"count"`
}

// Bucket groups events into boundary-aligned buckets per api per status.
// Events outside [since, until) are ignored. Results are ordered by bucket
// start, then api, then status. This is a PURE function.
func Bucket(events []Event, since, until time.Time, g Granularity) []BucketCount {
	type cell struct {
		start  time.Time
		api    API
		status Status
	}
	counts := make(map[cell]int64)
	q := Query{Since: since, Until: until}
	for _, e := range events {
		if !q.Matches(e) {
			continue
		}
		counts[cell{BucketStart(e.Timestamp, g), e.API, e.Status}]++
	}

	out := make([]BucketCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, BucketCount{Start: c.start, API: c.api, Status: c.status, Count: n})
	}
	sortBuckets(out)
	return out
}

func sortBuckets(b []BucketCount) {
	// Insertion sort: bucket counts are small and mostly ordered already.
	for i := 1; i < len(b); i++ {
		for j := i; j > 0 && bucketLess(b[j], b[j-1]); j-- {
			b[j], b[j-1] = b[j-1], b[j]
		}
	}
}

func bucketLess(a, b BucketCount) bool {
	if !a.Start.Equal(b.Start) {
		return a.Start.Before(b.Start)
	}
	if a.API != b.API {
		return a.API < b.API
	}
	return a.Status < b.Status
}
