package shipper

import (
	"fmt"
	"time"
)

// TimestampLayout is ISO-8601 with microseconds, e.g. 2024-05-01T10:00:00.123456Z.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// LogKey returns the object key for one pod's log captured at t:
// {prefix}{pod}-logs-{timestamp}.gz.
func LogKey(prefix, pod string, t time.Time) string {
	return fmt.Sprintf("%s%s-logs-%s.gz", prefix, pod, t.UTC().Format(TimestampLayout))
}

// ManifestKey returns the object key for a run manifest.
func ManifestKey(prefix, resource string, t time.Time) string {
	return fmt.Sprintf("%s%s-manifest-%s.json", prefix, resource, t.UTC().Format(TimestampLayout))
}
