// Package k8s wraps the Kubernetes API calls the shipper needs: resolving a
// workload, listing the pods behind it, and reading pod logs.
package k8s

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sync"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/klog/v2"

	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/podlog-shipper/internal/errors"
)

// PodInfo contains basic pod information.
type PodInfo struct {
	Name      string
	Namespace string
	Phase     string
	Labels    map[string]string
}

// Client wraps the Kubernetes API.
type Client struct {
	clientset kubernetes.Interface
	logger    zerolog.Logger
}

// Config holds K8s client configuration.
type Config struct {
	KubeconfigPath string
}

var klogOnce sync.Once

// redirectKlog sends client-go's own diagnostics through the run logger
// instead of stderr.
func redirectKlog(logger zerolog.Logger) {
	klogOnce.Do(func() {
		fs := flag.NewFlagSet("klog", flag.ContinueOnError)
		klog.InitFlags(fs)
		klog.LogToStderr(false)
		klog.SetOutput(logger.With().Str("source", "klog").Logger())
	})
}

// NewClient creates a K8s client from kubeconfig or in-cluster config.
func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	var restConfig *rest.Config
	var err error

	if cfg.KubeconfigPath != "" {
		restConfig, err = clientcmd.BuildConfigFromFlags("", cfg.KubeconfigPath)
	} else {
		restConfig, err = rest.InClusterConfig()
	}
	if err != nil {
		return nil, perrors.Config("building k8s config", err)
	}

	cs, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, perrors.Config("creating k8s clientset", err)
	}

	redirectKlog(logger)

	return NewClientFromInterface(cs, logger), nil
}

// NewClientFromInterface creates a client from an existing kubernetes.Interface (for testing).
func NewClientFromInterface(cs kubernetes.Interface, logger zerolog.Logger) *Client {
	return &Client{
		clientset: cs,
		logger:    logger.With().Str("component", "k8s").Logger(),
	}
}

// GetPodLogs returns the full current log of a pod's default container.
func (c *Client) GetPodLogs(ctx context.Context, namespace, podName string) (string, error) {
	stream, err := c.clientset.CoreV1().Pods(namespace).GetLogs(podName, &corev1.PodLogOptions{}).Stream(ctx)
	if err != nil {
		return "", perrors.API(fmt.Sprintf("getting logs for pod %s/%s", namespace, podName), err)
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return "", perrors.API(fmt.Sprintf("reading logs for pod %s/%s", namespace, podName), err)
	}

	c.logger.Debug().
		Str("pod", podName).
		Str("namespace", namespace).
		Int("bytes", len(data)).
		Msg("fetched pod logs")

	return string(data), nil
}
