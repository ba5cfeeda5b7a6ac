// Package registry maps logical service names to base addresses. The
// mapping is resolved once at construction and is immutable afterwards, so
// concurrent readers need no locking.
package registry

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/genomic-pipeline-orchestrator/internal/domain"
)

// Registry resolves logical backend names to base addresses.
type Registry struct {
	endpoints map[string]string
}

// New builds a registry from a name -> base address mapping. Every address
// must be a valid absolute http(s) URL; a bad entry is a deployment error
// and fails construction.
func New(endpoints map[string]string) (*Registry, error) {
	eps := make(map[string]string, len(endpoints))
	for name, addr := range endpoints {
		if addr == "" {
			return nil, fmt.Errorf("service %q has no address configured", name)
		}
		u, err := url.Parse(addr)
		if err != nil {
			return nil, fmt.Errorf("service %q address %q: %w", name, addr, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("service %q address %q: scheme must be http or https", name, addr)
		}
		eps[name] = strings.TrimRight(addr, "/")
	}
	return &Registry{endpoints: eps}, nil
}

// FromConfig builds a registry covering the three pipeline backends.
func FromConfig(cfg domain.ServicesConfig) (*Registry, error) {
	return New(cfg.Endpoints())
}

// Resolve returns the base address for a logical service name.
func (r *Registry) Resolve(name string) (string, error) {
	addr, ok := r.endpoints[name]
	if !ok {
		return "", &domain.UnknownServiceError{Name: name}
	}
	return addr, nil
}

// Names returns the registered service names in stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
