// Package ledger persists the last built version of every patch source.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/peachmeow/peachmeow/pkg/types"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const lockRetryDelay = 500 * time.Millisecond

// Ledger maps a patch source to the versions last built from it.
type Ledger map[string]types.LedgerEntry

// Change is one ledger update, used to describe a commit.
type Change struct {
	Source  string
	Version string
}

// Load reads the ledger at path. A missing file yields an empty ledger.
func Load(path string) (Ledger, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Ledger{}, nil
	}
	if err != nil {
		return nil, err
	}
	l := Ledger{}
	if len(bytes.TrimSpace(data)) == 0 {
		return l, nil
	}
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	return l, nil
}

// Save writes the ledger to path as two-space indented JSON.
func (l Ledger) Save(path string) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Set records the versions built from source.
func (l Ledger) Set(source, version, cli string) {
	l[source] = types.LedgerEntry{Version: version, CLI: cli}
}

// Prune removes every source not in active and returns the removed keys sorted.
func (l Ledger) Prune(active map[string]bool) []string {
	var removed []string
	for source := range l {
		if !active[source] {
			removed = append(removed, source)
			delete(l, source)
		}
	}
	sort.Strings(removed)
	return removed
}

// UpdateMessage is the commit message of a ledger update.
func UpdateMessage(changes []Change) string {
	parts := make([]string, 0, len(changes))
	for _, c := range changes {
		parts = append(parts, fmt.Sprintf("%s → %s", c.Source, c.Version))
	}
	return "chore: " + strings.Join(parts, ", ")
}

// CleanupMessage is the commit message of a pruning.
func CleanupMessage(removed []string) string {
	return "chore: cleanup versions.json → " + strings.Join(removed, ", ")
}

// Lock is an exclusive lock held next to a ledger for the length of a run.
type Lock struct {
	f *flock.Flock
}

// Acquire blocks until the lock of the ledger at path is held or ctx ends.
func Acquire(ctx context.Context, path string) (*Lock, error) {
	f := flock.New(path + ".lock")
	ok, err := f.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock on %s: %w", f.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("failed to acquire lock on %s", f.Path())
	}
	log.Debugf("Acquired %s", f.Path())
	return &Lock{f: f}, nil
}

// Release drops the lock.
func (l *Lock) Release() error {
	return l.f.Unlock()
}
