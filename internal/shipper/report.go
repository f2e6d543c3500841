package shipper

import (
	"time"

	json "github.com/goccy/go-json"

	"github.com/p-blackswan/podlog-shipper/internal/k8s"
)

// Shipped describes one uploaded log object.
type Shipped struct {
	Pod             string `json:"pod"`
	Key             string `json:"key"`
	RawBytes        int    `json:"raw_bytes"`
	CompressedBytes int    `json:"compressed_bytes"`
}

// Failure describes a pod whose log was not uploaded.
type Failure struct {
	Pod   string `json:"pod"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// Report summarizes a run.
type Report struct {
	RunID       string        `json:"run_id"`
	Kind        k8s.Kind      `json:"kind"`
	Name        string        `json:"name"`
	Namespace   string        `json:"namespace"`
	Bucket      string        `json:"bucket"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Shipped     []Shipped     `json:"shipped"`
	Failed      []Failure     `json:"failed"`
	ManifestKey string        `json:"-"`
	Duration    time.Duration `json:"-"`
}

// Pods returns the number of pods the run attempted.
func (r *Report) Pods() int {
	return len(r.Shipped) + len(r.Failed)
}

// Manifest encodes the report as the JSON run manifest.
func (r *Report) Manifest() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
