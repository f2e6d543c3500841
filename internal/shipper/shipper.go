// Package shipper runs the collection pipeline: resolve the workload, list
// its pods, then fetch, compress and upload each pod's log in turn.
package shipper

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/podlog-shipper/internal/errors"
	"github.com/p-blackswan/podlog-shipper/internal/k8s"
	"github.com/p-blackswan/podlog-shipper/internal/runid"
	"github.com/p-blackswan/podlog-shipper/internal/storage"
)

const (
	logContentType      = "application/gzip"
	manifestContentType = "application/json"
)

// Cluster abstracts the Kubernetes operations the pipeline needs.
type Cluster interface {
	Resolve(ctx context.Context, ref k8s.Reference) (*k8s.Workload, error)
	ListPods(ctx context.Context, w *k8s.Workload) ([]k8s.PodInfo, error)
	GetPodLogs(ctx context.Context, namespace, podName string) (string, error)
}

// Store abstracts the object store.
type Store interface {
	Put(ctx context.Context, obj storage.Object) error
	Bucket() string
}

// Recorder receives run metrics. *metrics.Metrics implements it.
type Recorder interface {
	RecordPod(result string)
	RecordBytes(raw, compressed int)
	RecordError(stage, kind string)
}

// Options tunes a Shipper.
type Options struct {
	KeyPrefix     string
	WriteManifest bool
	// Now returns the upload timestamp; defaults to time.Now.
	Now func() time.Time
}

// Blob is one pod's compressed log, ready for upload.
type Blob struct {
	Pod        k8s.PodInfo
	Key        string
	RawSize    int
	Compressed []byte
}

// Shipper moves pod logs from the cluster into object storage.
type Shipper struct {
	cluster  Cluster
	store    Store
	recorder Recorder
	opts     Options
	logger   zerolog.Logger
}

// New creates a Shipper. recorder may be nil.
func New(cluster Cluster, store Store, recorder Recorder, opts Options, logger zerolog.Logger) *Shipper {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Shipper{
		cluster:  cluster,
		store:    store,
		recorder: recorder,
		opts:     opts,
		logger:   logger.With().Str("component", "shipper").Logger(),
	}
}

// Run performs one collection pass for ref. A resolution or enumeration
// failure aborts the run and is returned; per-pod failures are logged,
// recorded in the report, and do not stop the remaining pods.
func (s *Shipper) Run(ctx context.Context, ref k8s.Reference) (*Report, error) {
	id := runid.FromContext(ctx)
	if id == "" {
		ctx, id = runid.New(ctx)
	}
	log := s.logger.With().
		Str("run_id", id).
		Str("kind", string(ref.Kind)).
		Str("name", ref.Name).
		Str("namespace", ref.Namespace).
		Logger()

	started := s.opts.Now()
	report := &Report{
		RunID:     id,
		Kind:      ref.Kind,
		Name:      ref.Name,
		Namespace: ref.Namespace,
		Bucket:    s.store.Bucket(),
		StartedAt: started,
		Shipped:   []Shipped{},
		Failed:    []Failure{},
	}

	workload, err := s.cluster.Resolve(ctx, ref)
	if err != nil {
		s.fail(log.With().Bool("not_found", perrors.IsNotFound(err)).Logger(), "resolve", err, "failed to resolve workload")
		return report, err
	}

	pods, err := s.cluster.ListPods(ctx, workload)
	if err != nil {
		s.fail(log, "enumerate", err, "failed to list pods for workload")
		return report, err
	}
	log.Info().Int("pods", len(pods)).Msg("collecting pod logs")

	for _, pod := range pods {
		blob, err := s.Ship(ctx, pod)
		if err != nil {
			kind := perrors.KindOf(err)
			s.recorder.RecordPod("failed")
			s.recorder.RecordError(stageOf(kind), string(kind))
			ev := log.Error().Err(err).Str("pod", pod.Name).Str("error_kind", string(kind))
			if code := perrors.StorageCode(err); code != "" {
				ev = ev.Str("s3_code", code)
			}
			ev.Msg(failureMessage(kind))
			report.Failed = append(report.Failed, Failure{Pod: pod.Name, Kind: string(kind), Error: err.Error()})
			continue
		}

		s.recorder.RecordPod("shipped")
		s.recorder.RecordBytes(blob.RawSize, len(blob.Compressed))
		log.Info().
			Str("pod", pod.Name).
			Str("bucket", s.store.Bucket()).
			Str("key", blob.Key).
			Int("bytes", len(blob.Compressed)).
			Msg("pod logs uploaded")
		report.Shipped = append(report.Shipped, Shipped{
			Pod:             pod.Name,
			Key:             blob.Key,
			RawBytes:        blob.RawSize,
			CompressedBytes: len(blob.Compressed),
		})
	}

	report.FinishedAt = s.opts.Now()
	report.Duration = report.FinishedAt.Sub(started)

	if s.opts.WriteManifest {
		s.writeManifest(ctx, log, report)
	}

	log.Info().
		Int("pods", report.Pods()).
		Int("shipped", len(report.Shipped)).
		Int("failed", len(report.Failed)).
		Dur("duration", report.Duration).
		Msg("run complete")

	return report, nil
}

// Ship fetches, compresses and uploads the log of a single pod.
// Nothing is retried; any failing step discards the blob.
func (s *Shipper) Ship(ctx context.Context, pod k8s.PodInfo) (Blob, error) {
	namespace := pod.Namespace

	text, err := s.cluster.GetPodLogs(ctx, namespace, pod.Name)
	if err != nil {
		return Blob{}, err
	}

	compressed, err := Compress(text)
	if err != nil {
		return Blob{}, perrors.Internal("compressing logs for pod "+pod.Name, err)
	}

	blob := Blob{
		Pod:        pod,
		Key:        LogKey(s.opts.KeyPrefix, pod.Name, s.opts.Now()),
		RawSize:    len(text),
		Compressed: compressed,
	}

	err = s.store.Put(ctx, storage.Object{
		Key:         blob.Key,
		Body:        blob.Compressed,
		ContentType: logContentType,
	})
	if err != nil {
		return Blob{}, err
	}
	return blob, nil
}

func (s *Shipper) writeManifest(ctx context.Context, log zerolog.Logger, report *Report) {
	body, err := report.Manifest()
	if err != nil {
		s.fail(log, "manifest", perrors.Internal("encoding manifest", err), "failed to encode run manifest")
		return
	}
	key := ManifestKey(s.opts.KeyPrefix, report.Name, report.FinishedAt)
	if err := s.store.Put(ctx, storage.Object{Key: key, Body: body, ContentType: manifestContentType}); err != nil {
		s.fail(log, "manifest", err, "failed to upload run manifest")
		return
	}
	report.ManifestKey = key
	log.Info().Str("key", key).Msg("run manifest uploaded")
}

func (s *Shipper) fail(log zerolog.Logger, stage string, err error, msg string) {
	kind := perrors.KindOf(err)
	s.recorder.RecordError(stage, string(kind))
	log.Error().Err(err).Str("stage", stage).Str("error_kind", string(kind)).Msg(msg)
}

func stageOf(kind perrors.Kind) string {
	switch kind {
	case perrors.KindAPI:
		return "fetch"
	case perrors.KindStorage:
		return "upload"
	default:
		return "compress"
	}
}

func failureMessage(kind perrors.Kind) string {
	switch kind {
	case perrors.KindAPI:
		return "failed to retrieve logs for pod"
	case perrors.KindStorage:
		return "failed to upload logs for pod"
	default:
		return "unexpected error while processing pod"
	}
}

type nopRecorder struct{}

func (nopRecorder) RecordPod(string)           {}
func (nopRecorder) RecordBytes(int, int)       {}
func (nopRecorder) RecordError(string, string) {}
