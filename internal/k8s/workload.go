package k8s

import (
	"context"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	perrors "github.com/p-blackswan/podlog-shipper/internal/errors"
)

// Kind names a workload type the shipper can collect logs from.
type Kind string

const (
	KindDeployment  Kind = "deployment"
	KindStatefulSet Kind = "statefulset"
	// KindPod is a bare pod reference; it has no selector and resolves to itself.
	KindPod Kind = "pod"
)

// Reference identifies the target workload of a run.
type Reference struct {
	Kind      Kind
	Name      string
	Namespace string
}

// Workload is a resolved workload object reduced to what enumeration needs.
type Workload struct {
	Kind          Kind
	Name          string
	Namespace     string
	LabelSelector *metav1.LabelSelector

	// pod is set only for KindPod.
	pod *PodInfo
}

type fetchFunc func(ctx context.Context, cs kubernetes.Interface, name, namespace string) (*Workload, error)

var fetchers = map[Kind]fetchFunc{
	KindDeployment:  fetchDeployment,
	KindStatefulSet: fetchStatefulSet,
	KindPod:         fetchPod,
}

// ParseKind matches s against the known kinds. Case and surrounding
// whitespace are ignored.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := fetchers[k]; !ok {
		return "", perrors.Config("parsing resource type", fmt.Errorf("%w: %q", perrors.ErrUnsupportedKind, s))
	}
	return k, nil
}

// Resolve fetches the workload named by ref with a single API read.
// Unsupported kinds fail before any API call.
func (c *Client) Resolve(ctx context.Context, ref Reference) (*Workload, error) {
	kind, err := ParseKind(string(ref.Kind))
	if err != nil {
		return nil, err
	}

	w, err := fetchers[kind](ctx, c.clientset, ref.Name, ref.Namespace)
	if err != nil {
		return nil, perrors.API(fmt.Sprintf("getting %s %s/%s", kind, ref.Namespace, ref.Name), err)
	}

	c.logger.Debug().
		Str("kind", string(kind)).
		Str("name", ref.Name).
		Str("namespace", ref.Namespace).
		Msg("resolved workload")

	return w, nil
}

func fetchDeployment(ctx context.Context, cs kubernetes.Interface, name, namespace string) (*Workload, error) {
	d, err := cs.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, err
	}
	return &Workload{
		Kind:          KindDeployment,
		Name:          d.Name,
		Namespace:     d.Namespace,
		LabelSelector: d.Spec.Selector,
	}, nil
}

func fetchStatefulSet(ctx context.Context, cs kubernetes.Interface, name, namespace string) (*Workload, error) {
	s, err := cs.AppsV1().StatefulSets(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, err
	}
	return &Workload{
		Kind:          KindStatefulSet,
		Name:          s.Name,
		Namespace:     s.Namespace,
		LabelSelector: s.Spec.Selector,
	}, nil
}

func fetchPod(ctx context.Context, cs kubernetes.Interface, name, namespace string) (*Workload, error) {
	p, err := cs.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, err
	}
	info := podInfo(p)
	return &Workload{
		Kind:      KindPod,
		Name:      p.Name,
		Namespace: p.Namespace,
		pod:       &info,
	}, nil
}

func podInfo(p *corev1.Pod) PodInfo {
	return PodInfo{
		Name:      p.Name,
		Namespace: p.Namespace,
		Phase:     string(p.Status.Phase),
		Labels:    p.Labels,
	}
}

// Selector renders the workload's label selector as a selector string,
// e.g. "app=web,tier in (frontend)". Requirements are sorted by key.
// An absent or empty selector yields ErrNoSelector.
func (w *Workload) Selector() (string, error) {
	ls := w.LabelSelector
	if ls == nil || (len(ls.MatchLabels) == 0 && len(ls.MatchExpressions) == 0) {
		return "", perrors.ErrNoSelector
	}
	sel, err := metav1.LabelSelectorAsSelector(ls)
	if err != nil {
		return "", err
	}
	return sel.String(), nil
}

// ListPods returns the pods backing w. A bare pod resolves to itself without
// a list call. A controller with an empty selector is rejected rather than
// listed, since an empty selector matches every pod in the namespace.
func (c *Client) ListPods(ctx context.Context, w *Workload) ([]PodInfo, error) {
	if w.pod != nil {
		return []PodInfo{*w.pod}, nil
	}
	selector, err := w.Selector()
	if err != nil {
		return nil, perrors.Config(fmt.Sprintf("listing pods for %s %s/%s", w.Kind, w.Namespace, w.Name), err)
	}

	pods, err := c.clientset.CoreV1().Pods(w.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: selector,
	})
	if err != nil {
		return nil, perrors.API(fmt.Sprintf("listing pods in %s with selector %q", w.Namespace, selector), err)
	}

	result := make([]PodInfo, 0, len(pods.Items))
	for i := range pods.Items {
		result = append(result, podInfo(&pods.Items[i]))
	}

	c.logger.Debug().
		Str("selector", selector).
		Str("namespace", w.Namespace).
		Int("pods", len(result)).
		Msg("listed pods")

	return result, nil
}
