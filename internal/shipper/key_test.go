package shipper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogKey(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 123456000, time.UTC)
	assert.Equal(t, "web-1-logs-2024-05-01T10:00:00.123456Z.gz", LogKey("", "web-1", at))
	assert.Equal(t, "logs/web-1-logs-2024-05-01T10:00:00.123456Z.gz", LogKey("logs/", "web-1", at))
}

func TestLogKey_NormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("KST", 9*3600)
	at := time.Date(2024, 5, 1, 19, 0, 0, 0, loc)
	assert.Equal(t, "web-1-logs-2024-05-01T10:00:00.000000Z.gz", LogKey("", "web-1", at))
}

func TestManifestKey(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "web-manifest-2024-05-01T10:00:00.000000Z.json", ManifestKey("", "web", at))
}
