// Package testutil provides shared helpers for hook and engine tests.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-compose/hook"
)

// Recorder collects labelled hook calls in dispatch order.
type Recorder struct {
	mu    sync.Mutex
	calls []string
}

// Hook returns a hook function appending label to the recorder. When the
// invocation has an index, it is appended as "label@index".
func (r *Recorder) Hook(label string) hook.Func {
	return func(_ context.Context, inv *hook.Invocation) error {
		entry := label
		if inv.HasIndex {
			entry = fmt.Sprintf("%s@%d", label, inv.Index)
		}
		r.Record(entry)
		return nil
	}
}

// Record appends entry.
func (r *Recorder) Record(entry string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, entry)
}

// Calls returns a copy of the recorded entries.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Reset forgets every recorded entry.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// AssertCalls asserts the recorder holds exactly want, in order.
func AssertCalls(t *testing.T, r *Recorder, want ...string) {
	t.Helper()
	if len(want) == 0 {
		assert.Empty(t, r.Calls())
		return
	}
	assert.Equal(t, want, r.Calls())
}

// AssertJSONEqual compares two JSON strings for equality, ignoring formatting
func AssertJSONEqual(t *testing.T, expected, actual string, msgAndArgs ...interface{}) {
	t.Helper()

	var expectedJSON, actualJSON interface{}
	require.NoError(t, json.Unmarshal([]byte(expected), &expectedJSON), "expected JSON is invalid")
	require.NoError(t, json.Unmarshal([]byte(actual), &actualJSON), "actual JSON is invalid")

	assert.Equal(t, expectedJSON, actualJSON, msgAndArgs...)
}

// AssertMapContains asserts that a map contains all expected key-value pairs
func AssertMapContains(t *testing.T, expectedMap, actualMap map[string]interface{}, msgAndArgs ...interface{}) {
	t.Helper()

	for key, expectedValue := range expectedMap {
		actualValue, ok := actualMap[key]
		assert.True(t, ok, "map should contain key %q", key)
		assert.Equal(t, expectedValue, actualValue, msgAndArgs...)
	}
}
