package fsport

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/client-go/kubernetes"

	"github.com/bytehotd/bytehotd/internal/ports"
)

// ConfigMapFileSystem implements ports.FileSystemPort by watching a
// single Kubernetes ConfigMap instead of a local directory, so an agent
// running as a sidecar can take its watch roots from the control plane
// rather than an emptyDir mount. Each ConfigMap data/binaryData key is
// presented as a synthetic file whose path is the key name.
type ConfigMapFileSystem struct {
	client    kubernetes.Interface
	namespace string
	name      string
	logger    *slog.Logger

	mu   sync.RWMutex
	data map[string][]byte
}

// NewConfigMapFileSystem constructs a ConfigMapFileSystem over the
// named ConfigMap. logger defaults to slog.Default when nil.
func NewConfigMapFileSystem(client kubernetes.Interface, namespace, name string, logger *slog.Logger) *ConfigMapFileSystem {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigMapFileSystem{
		client:    client,
		namespace: namespace,
		name:      name,
		logger:    logger,
		data:      map[string][]byte{},
	}
}

// Watch ignores root and recursive: the ConfigMap named at construction
// is the entire watch scope. It emits a RawChange per key that was
// added, changed, or removed on every watch event for that ConfigMap.
func (c *ConfigMapFileSystem) Watch(ctx context.Context, root string, recursive bool) (<-chan ports.RawChange, error) {
	if existing, err := c.client.CoreV1().ConfigMaps(c.namespace).Get(ctx, c.name, metav1.GetOptions{}); err == nil {
		c.reconcile(existing, nil)
	} else if !apierrors.IsNotFound(err) {
		return nil, fmt.Errorf("fsport: get configmap %s/%s: %w", c.namespace, c.name, err)
	}

	watcher, err := c.client.CoreV1().ConfigMaps(c.namespace).Watch(ctx, metav1.ListOptions{
		FieldSelector: fields.OneTermEqualSelector("metadata.name", c.name).String(),
	})
	if err != nil {
		return nil, fmt.Errorf("fsport: watch configmap %s/%s: %w", c.namespace, c.name, err)
	}

	out := make(chan ports.RawChange, 64)
	go func() {
		defer close(out)
		defer watcher.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.ResultChan():
				if !ok {
					return
				}
				cm, ok := event.Object.(*corev1.ConfigMap)
				if !ok {
					continue
				}
				select {
				case <-ctx.Done():
					return
				default:
				}
				c.reconcile(cm, out)
			}
		}
	}()

	return out, nil
}

// reconcile diffs cm's current keys against the last observed snapshot
// and, when out is non-nil, emits a RawChange per add/update/removal.
func (c *ConfigMapFileSystem) reconcile(cm *corev1.ConfigMap, out chan<- ports.RawChange) {
	c.mu.Lock()
	defer c.mu.Unlock()

	observedAt := time.Now()
	seen := make(map[string]bool, len(cm.Data)+len(cm.BinaryData))

	emit := func(key string, content []byte) {
		seen[key] = true
		prior, existed := c.data[key]
		if existed && bytes.Equal(prior, content) {
			return
		}
		c.data[key] = content
		if out == nil {
			return
		}
		kind := ports.Modified
		if !existed {
			kind = ports.Created
		}
		out <- ports.RawChange{Path: key, Kind: kind, ObservedAt: observedAt}
	}

	for key, value := range cm.Data {
		emit(key, []byte(value))
	}
	for key, value := range cm.BinaryData {
		emit(key, value)
	}

	for key := range c.data {
		if seen[key] {
			continue
		}
		delete(c.data, key)
		if out != nil {
			out <- ports.RawChange{Path: key, Kind: ports.Deleted, ObservedAt: observedAt}
		}
	}
}

// Read returns the cached content for the ConfigMap key named path.
func (c *ConfigMapFileSystem) Read(ctx context.Context, path string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	content, ok := c.data[path]
	if !ok {
		return nil, fmt.Errorf("fsport: key %q not present in configmap %s/%s", path, c.namespace, c.name)
	}
	out := make([]byte, len(content))
	copy(out, content)
	return out, nil
}

// Exists reports whether path names a key currently present in the
// watched ConfigMap.
func (c *ConfigMapFileSystem) Exists(ctx context.Context, path string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.data[path]
	return ok, nil
}

// Size returns the byte length of the ConfigMap key named path.
func (c *ConfigMapFileSystem) Size(ctx context.Context, path string) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	content, ok := c.data[path]
	if !ok {
		return 0, fmt.Errorf("fsport: key %q not present in configmap %s/%s", path, c.namespace, c.name)
	}
	return int64(len(content)), nil
}

var _ ports.FileSystemPort = (*ConfigMapFileSystem)(nil)
