package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// apiServer fakes the handful of Kubernetes endpoints a run touches.
type apiServer struct {
	mu       sync.Mutex
	requests []string
	failGet  bool
}

func (a *apiServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	a.requests = append(a.requests, r.Method+" "+r.URL.Path)
	a.mu.Unlock()

	switch r.URL.Path {
	case "/apis/apps/v1/namespaces/prod/deployments/web":
		if a.failGet {
			http.Error(w, "upstream connect error", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, &appsv1.Deployment{
			TypeMeta:   metav1.TypeMeta{Kind: "Deployment", APIVersion: "apps/v1"},
			ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "prod"},
			Spec: appsv1.DeploymentSpec{
				Selector: &metav1.LabelSelector{MatchLabels: map[string]string{"app": "web"}},
			},
		})
	case "/api/v1/namespaces/prod/pods":
		if r.URL.Query().Get("labelSelector") != "app=web" {
			http.Error(w, "unexpected selector", http.StatusBadRequest)
			return
		}
		list := &corev1.PodList{TypeMeta: metav1.TypeMeta{Kind: "PodList", APIVersion: "v1"}}
		for _, name := range []string{"web-1", "web-2"} {
			list.Items = append(list.Items, corev1.Pod{
				ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "prod", Labels: map[string]string{"app": "web"}},
			})
		}
		writeJSON(w, list)
	case "/api/v1/namespaces/prod/pods/web-1/log", "/api/v1/namespaces/prod/pods/web-2/log":
		pod := strings.Split(r.URL.Path, "/")[6]
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "log output of %s\n", pod)
	default:
		http.NotFound(w, r)
	}
}

func (a *apiServer) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// bucketServer records PutObject calls.
type bucketServer struct {
	mu   sync.Mutex
	puts map[string][]byte
}

func (b *bucketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	b.mu.Lock()
	if b.puts == nil {
		b.puts = map[string][]byte{}
	}
	b.puts[r.URL.Path] = body
	b.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func writeKubeconfig(t *testing.T, server string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kubeconfig")
	content := fmt.Sprintf(`apiVersion: v1
kind: Config
clusters:
- name: test
  cluster:
    server: %s
contexts:
- name: test
  context:
    cluster: test
    user: test
current-context: test
users:
- name: test
  user:
    token: test-token
`, server)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func setupEnv(t *testing.T, api *apiServer, bucket *bucketServer) {
	t.Helper()
	apiSrv := httptest.NewServer(api)
	t.Cleanup(apiSrv.Close)
	s3Srv := httptest.NewServer(bucket)
	t.Cleanup(s3Srv.Close)

	envs := map[string]string{
		"ENVIRONMENT":           "test",
		"LOG_LEVEL":             "info",
		"NAMESPACE":             "prod",
		"RESOURCE_TYPE":         "deployment",
		"RESOURCE_NAME":         "web",
		"BUCKET_NAME":           "pod-logs",
		"KUBECONFIG":            writeKubeconfig(t, apiSrv.URL),
		"AWS_ACCESS_KEY_ID":     "AKIDEXAMPLE",
		"AWS_SECRET_ACCESS_KEY": "secret",
		"AWS_REGION":            "us-east-1",
		"S3_ENDPOINT":           s3Srv.URL,
		"S3_USE_PATH_STYLE":     "true",
		"WRITE_MANIFEST":        "false",
		"KEY_PREFIX":            "",
		"PUSHGATEWAY_URL":       "",
	}
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

func errorLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		if m["level"] == "error" {
			out = append(out, m)
		}
	}
	return out
}

func TestRun_DeploymentEndToEnd(t *testing.T) {
	api := &apiServer{}
	bucket := &bucketServer{}
	setupEnv(t, api, bucket)

	var buf bytes.Buffer
	run(context.Background(), &buf)

	assert.Empty(t, errorLines(t, &buf))
	require.Len(t, bucket.puts, 2)
	for path, body := range bucket.puts {
		key := strings.TrimPrefix(path, "/pod-logs/")
		pod := strings.SplitN(key, "-logs-", 2)[0]
		assert.Contains(t, []string{"web-1", "web-2"}, pod)
		assert.True(t, strings.HasSuffix(key, ".gz"), key)

		r, err := gzip.NewReader(bytes.NewReader(body))
		require.NoError(t, err)
		text, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, "log output of "+pod+"\n", string(text))
	}
}

func TestRun_UnsupportedKindEndToEnd(t *testing.T) {
	api := &apiServer{}
	bucket := &bucketServer{}
	setupEnv(t, api, bucket)
	t.Setenv("RESOURCE_TYPE", "job")

	var buf bytes.Buffer
	run(context.Background(), &buf)

	assert.Zero(t, api.count())
	assert.Empty(t, bucket.puts)
	errs := errorLines(t, &buf)
	require.Len(t, errs, 1)
	assert.Equal(t, "config", errs[0]["error_kind"])
	assert.Contains(t, errs[0]["error"], "unsupported resource type")
}

func TestRun_ResolutionErrorEndToEnd(t *testing.T) {
	api := &apiServer{failGet: true}
	bucket := &bucketServer{}
	setupEnv(t, api, bucket)

	var buf bytes.Buffer
	run(context.Background(), &buf)

	assert.Empty(t, bucket.puts)
	errs := errorLines(t, &buf)
	require.Len(t, errs, 1)
	assert.Equal(t, "deployment", errs[0]["kind"])
	assert.Equal(t, "web", errs[0]["name"])
	assert.Equal(t, "prod", errs[0]["namespace"])
	assert.Equal(t, "api", errs[0]["error_kind"])
}

func TestRun_MissingConfig(t *testing.T) {
	api := &apiServer{}
	bucket := &bucketServer{}
	setupEnv(t, api, bucket)
	t.Setenv("RESOURCE_NAME", "")

	var buf bytes.Buffer
	run(context.Background(), &buf)

	assert.Zero(t, api.count())
	errs := errorLines(t, &buf)
	require.Len(t, errs, 1)
	assert.Equal(t, "failed to load config", errs[0]["message"])
}
