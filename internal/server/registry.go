package server

import (
	"sort"
	"strings"
	"sync"

	"github.com/HendryAvila/memoria/internal/config"
	"github.com/HendryAvila/memoria/internal/memory"
)

// Registry is a concurrency-safe set of external server descriptions keyed
// by name.
type Registry struct {
	mu      sync.RWMutex
	servers map[string]config.ExternalServer
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{servers: make(map[string]config.ExternalServer)}
}

func validateExternal(op string, es config.ExternalServer) error {
	if strings.TrimSpace(es.Name) == "" {
		return memory.InvalidArgument(op, "external server name is required")
	}
	if strings.TrimSpace(es.Command) == "" {
		return memory.InvalidArgument(op, "external server %q: command is required", es.Name)
	}
	return nil
}

// Add registers es. Names are unique; adding an existing name fails.
func (r *Registry) Add(es config.ExternalServer) error {
	const op = "server.Registry.Add"
	if err := validateExternal(op, es); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.servers[es.Name]; ok {
		return memory.InvalidArgument(op, "external server %q already registered", es.Name)
	}
	es.Args = append([]string(nil), es.Args...)
	r.servers[es.Name] = es
	return nil
}

// Remove unregisters name.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.servers[name]; !ok {
		return memory.NotFound("server.Registry.Remove", "external server %q not registered", name)
	}
	delete(r.servers, name)
	return nil
}

// Get returns the entry for name.
func (r *Registry) Get(name string) (config.ExternalServer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	es, ok := r.servers[name]
	return es, ok
}

// List returns every entry sorted by name.
func (r *Registry) List() []config.ExternalServer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]config.ExternalServer, 0, len(r.servers))
	for _, es := range r.servers {
		out = append(out, es)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Replace swaps the whole set atomically. If any entry is invalid or names
// repeat, the registry is left unchanged.
func (r *Registry) Replace(servers []config.ExternalServer) error {
	const op = "server.Registry.Replace"
	next := make(map[string]config.ExternalServer, len(servers))
	for _, es := range servers {
		if err := validateExternal(op, es); err != nil {
			return err
		}
		if _, dup := next[es.Name]; dup {
			return memory.InvalidArgument(op, "external server %q listed twice", es.Name)
		}
		es.Args = append([]string(nil), es.Args...)
		next[es.Name] = es
	}
	r.mu.Lock()
	r.servers = next
	r.mu.Unlock()
	return nil
}

// Clear removes every entry.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.servers = make(map[string]config.ExternalServer)
	r.mu.Unlock()
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.servers)
}
