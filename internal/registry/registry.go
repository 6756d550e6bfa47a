// Package registry holds the persistent set of paired devices. The dataset
// is small, so every mutation rewrites the whole devices.json file using
// write-temp-then-rename. Save failures are logged and do not fail the
// mutation.
package registry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rvald/omcli/internal/protocol"
)

// Registry is a concurrency-safe store of paired devices keyed by id.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]protocol.Device
	path    string
}

// Load reads the registry from path, or starts empty if the file does not
// exist yet.
func Load(path string) (*Registry, error) {
	r := &Registry{
		devices: make(map[string]protocol.Device),
		path:    path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var list []protocol.Device
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	for _, d := range list {
		if d.ID == "" || d.Token == "" {
			continue // never admit a record that can't re-auth
		}
		r.devices[d.ID] = d
	}
	return r, nil
}

// Get returns a device by id.
func (r *Registry) Get(id string) (protocol.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[id]
	return d, ok
}

// List returns all devices sorted by pairing time descending.
func (r *Registry) List() []protocol.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]protocol.Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PairedAt > out[j].PairedAt
	})
	return out
}

// Count returns the number of paired devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Put adds or replaces a device record and persists.
func (r *Registry) Put(d protocol.Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[d.ID] = d
	r.save()
}

// Delete removes a device by id and persists. Returns false if absent.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[id]; !ok {
		return false
	}
	delete(r.devices, id)
	r.save()
	return true
}

// SetPushToken updates a device's push token and persists. Returns false
// if the device is unknown.
func (r *Registry) SetPushToken(id, token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return false
	}
	d.PushToken = token
	r.devices[id] = d
	r.save()
	return true
}

// SetVoipToken updates a device's VoIP token and persists. Returns false
// if the device is unknown.
func (r *Registry) SetVoipToken(id, token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return false
	}
	d.VoipToken = token
	r.devices[id] = d
	r.save()
	return true
}

// save rewrites the registry file. Caller must hold the write lock.
// Best-effort: failures are logged, the in-memory mutation stands.
func (r *Registry) save() {
	list := make([]protocol.Device, 0, len(r.devices))
	for _, d := range r.devices {
		list = append(list, d)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		slog.Warn("registry marshal failed", "error", err)
		return
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		slog.Warn("registry dir create failed", "path", r.path, "error", err)
		return
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		slog.Warn("registry write failed", "path", tmp, "error", err)
		return
	}
	if err := os.Rename(tmp, r.path); err != nil {
		os.Remove(tmp)
		slog.Warn("registry rename failed", "path", r.path, "error", err)
	}
}
