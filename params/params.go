// Package params provides the parameter container shared by a training
// host and its units: hyperparameters, model state and the automatic epoch
// and batch counters.
package params

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/reglet-dev/reglet-compose/domain/ports"
)

// Automatic keys are always present and survive Merge from the first
// operand.
const (
	KeyEpoch = "epoch"
	KeyBatch = "batch"
)

// StateSaver is implemented by values that serialize through a state
// snapshot instead of their own fields.
type StateSaver interface {
	SaveState() (any, error)
}

// StateLoader is implemented by values that restore themselves from a
// snapshot produced by StateSaver.
type StateLoader interface {
	LoadState(state any) error
}

// Parameters is a string keyed container. Keys set with a leading
// underscore are stored without it and excluded from serialization.
type Parameters struct {
	mu          sync.RWMutex
	values      map[string]any
	noSerialize map[string]bool
	logger      *slog.Logger
}

// Option configures Parameters.
type Option func(*Parameters)

// WithLogger sets the logger used for merge and overwrite warnings.
func WithLogger(l *slog.Logger) Option {
	return func(p *Parameters) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a container holding values. Keys colliding with the
// automatic counters are rejected with an error log and not overwritten.
func New(values map[string]any, opts ...Option) *Parameters {
	p := &Parameters{
		values:      map[string]any{KeyEpoch: 0, KeyBatch: 0},
		noSerialize: make(map[string]bool),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		name, serialize := splitKey(k)
		if _, exists := p.values[name]; exists {
			p.logger.Error("attribute already exists as a parameter and will not be overwritten", slog.String("key", name))
			continue
		}
		p.values[name] = values[k]
		if !serialize {
			p.noSerialize[name] = true
		}
	}
	return p
}

func splitKey(key string) (name string, serialize bool) {
	if strings.HasPrefix(key, "_") {
		return key[1:], false
	}
	return key, true
}

// Set stores a value. A leading underscore marks a new key as not
// serialized; using it on an existing serialized key is an error.
func (p *Parameters) Set(key string, v any) error {
	name, serialize := splitKey(key)
	if name == "" {
		return fmt.Errorf("empty parameter name")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	_, exists := p.values[name]
	if !serialize {
		if exists && !p.noSerialize[name] {
			return fmt.Errorf("%s already stored as a serialized value", name)
		}
		p.noSerialize[name] = true
	}
	p.values[name] = v
	return nil
}

// Get returns the value stored under key. Dotted keys drill into nested
// maps and slices ("optimizer.lr", "layers.0"). A leading underscore is
// accepted for keys that are not serialized.
func (p *Parameters) Get(key string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	parts := strings.Split(key, ".")
	head, _ := splitKey(parts[0])
	if strings.HasPrefix(parts[0], "_") && !p.noSerialize[head] {
		return nil, false
	}

	cur, ok := p.values[head]
	if !ok {
		return nil, false
	}
	for _, part := range parts[1:] {
		switch node := cur.(type) {
		case map[string]any:
			cur, ok = node[part]
		case map[any]any:
			cur, ok = node[part]
		case []any:
			i, err := strconv.Atoi(part)
			ok = err == nil && i >= 0 && i < len(node)
			if ok {
				cur = node[i]
			}
		default:
			ok = false
		}
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Lookup returns the value under key or def.
func (p *Parameters) Lookup(key string, def any) any {
	if v, ok := p.Get(key); ok {
		return v
	}
	return def
}

// Has reports whether key is set.
func (p *Parameters) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Delete removes key.
func (p *Parameters) Delete(key string) {
	name, _ := splitKey(key)
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.values, name)
	delete(p.noSerialize, name)
}

// Serialized reports whether key is included in snapshots.
func (p *Parameters) Serialized(key string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.values[key]
	return ok && !p.noSerialize[key]
}

// Keys returns all keys in sorted order.
func (p *Parameters) Keys() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Epoch returns the automatic epoch counter.
func (p *Parameters) Epoch() int {
	return p.GetIntDefault(KeyEpoch, 0)
}

// Batch returns the automatic batch counter.
func (p *Parameters) Batch() int {
	return p.GetIntDefault(KeyBatch, 0)
}

// IncEpoch increments the epoch counter and returns the new value.
func (p *Parameters) IncEpoch() int {
	return p.inc(KeyEpoch)
}

// IncBatch increments the batch counter and returns the new value.
func (p *Parameters) IncBatch() int {
	return p.inc(KeyBatch)
}

func (p *Parameters) inc(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, _ := toInt(p.values[key])
	n++
	p.values[key] = n
	return n
}

// Reset sets the automatic counters back to zero.
func (p *Parameters) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[KeyEpoch] = 0
	p.values[KeyBatch] = 0
}

// Snapshot returns the serializable values. Values implementing StateSaver
// contribute their saved state.
func (p *Parameters) Snapshot() (map[string]any, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]any, len(p.values))
	for k, v := range p.values {
		if p.noSerialize[k] {
			continue
		}
		if s, ok := v.(StateSaver); ok {
			state, err := s.SaveState()
			if err != nil {
				return nil, fmt.Errorf("save state of %s: %w", k, err)
			}
			v = state
		}
		out[k] = v
	}
	return out, nil
}

// Restore applies a snapshot. Existing values implementing StateLoader
// load the stored state; everything else is replaced.
func (p *Parameters) Restore(state map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, v := range state {
		if l, ok := p.values[k].(StateLoader); ok {
			if err := l.LoadState(v); err != nil {
				return fmt.Errorf("load state of %s: %w", k, err)
			}
			continue
		}
		p.values[k] = v
	}
	return nil
}

// Save writes a snapshot to store.
func (p *Parameters) Save(store ports.ParamStore) error {
	snap, err := p.Snapshot()
	if err != nil {
		return err
	}
	return store.Save(snap)
}

// Load restores a snapshot from store.
func (p *Parameters) Load(store ports.ParamStore) error {
	state, err := store.Load()
	if err != nil {
		return err
	}
	return p.Restore(state)
}

// Merge returns a shallow copy of p extended with the keys of other that
// p lacks. Keys present in both keep p's value; the automatic counters are
// always taken from p.
func (p *Parameters) Merge(other *Parameters) *Parameters {
	out := p.Clone()
	other.mu.RLock()
	defer other.mu.RUnlock()
	for k, v := range other.values {
		if _, exists := out.values[k]; exists {
			if k != KeyEpoch && k != KeyBatch {
				out.logger.Warn("parameter available in both sets, keeping first", slog.String("key", k))
			}
			continue
		}
		out.values[k] = v
		if other.noSerialize[k] {
			out.noSerialize[k] = true
		}
	}
	return out
}

// Clone returns a shallow copy.
func (p *Parameters) Clone() *Parameters {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := &Parameters{
		values:      make(map[string]any, len(p.values)),
		noSerialize: make(map[string]bool, len(p.noSerialize)),
		logger:      p.logger,
	}
	for k, v := range p.values {
		out.values[k] = v
	}
	for k := range p.noSerialize {
		out.noSerialize[k] = true
	}
	return out
}

// Values returns a copy of every stored value.
func (p *Parameters) Values() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]any, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// String lists the values; keys that are not serialized carry an asterisk.
func (p *Parameters) String() string {
	var b strings.Builder
	b.WriteString("Parameters(")
	for _, k := range p.Keys() {
		v, _ := p.Get(k)
		text := fmt.Sprint(v)
		if strings.Contains(text, "\n") {
			text = fmt.Sprintf("%T", v)
		}
		if !p.Serialized(k) {
			k += "*"
		}
		fmt.Fprintf(&b, "\n  %s = %s", k, text)
	}
	b.WriteString("\n)")
	return b.String()
}
