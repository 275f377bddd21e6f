package approval

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/execguard/execguard/internal/permission"
	"github.com/execguard/execguard/internal/storage"
)

// SessionTTL is how long session-scoped approvals stay valid.
const SessionTTL = 8 * time.Hour

// cacheFileVersion is the on-disk format version.
const cacheFileVersion = 1

// CachedApproval is a single cache entry. Session-scoped entries carry an
// expiry; pattern-scoped entries do not.
type CachedApproval struct {
	Key       Key        `json:"key"`
	Decision  Decision   `json:"decision"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// NewCachedApproval builds an entry for a cacheable decision, stamping the
// session TTL on session-scoped decisions.
func NewCachedApproval(key Key, decision Decision, now time.Time) CachedApproval {
	entry := CachedApproval{
		Key:       key,
		Decision:  decision,
		CreatedAt: now,
	}
	switch decision {
	case ApproveForSession, DenyForSession:
		expires := now.Add(SessionTTL)
		entry.ExpiresAt = &expires
	}
	return entry
}

// IsExpired reports whether the entry has lapsed.
func (a CachedApproval) IsExpired(now time.Time) bool {
	return a.ExpiresAt != nil && !now.Before(*a.ExpiresAt)
}

// cacheFile is the versioned on-disk representation, one file per session.
type cacheFile struct {
	Version   int              `json:"version"`
	SessionID string           `json:"session_id"`
	Approvals []CachedApproval `json:"approvals"`
}

// Cache memoizes approval decisions keyed by content hash. Lookups return nil
// both when no entry exists and when it has expired; callers re-ask in both
// cases. Safe for concurrent use.
type Cache struct {
	mu        sync.RWMutex
	sessionID string
	store     *storage.Store
	entries   map[string]CachedApproval // KeyHash -> entry

	// now is replaceable for tests.
	now func() time.Time
}

// NewCache creates an empty cache for a session, persisted under dir.
func NewCache(sessionID, dir string) *Cache {
	return &Cache{
		sessionID: sessionID,
		store:     storage.New(dir),
		entries:   make(map[string]CachedApproval),
		now:       time.Now,
	}
}

// Load reads a session's cache file, filtering out expired entries. A missing
// file yields an empty, still-persistable cache rather than an error.
func Load(sessionID, dir string) (*Cache, error) {
	c := NewCache(sessionID, dir)

	var file cacheFile
	if err := c.store.Get(sessionID, &file); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c, nil
		}
		return nil, fmt.Errorf("failed to read approval cache: %w", err)
	}

	now := c.now()
	for _, entry := range file.Approvals {
		if entry.IsExpired(now) {
			continue
		}
		if !entry.Decision.ShouldCache() {
			// A single-use decision on disk means the file was tampered with
			// or written by a buggy version. Drop it.
			continue
		}
		c.entries[entry.Key.KeyHash] = entry
	}

	return c, nil
}

// SessionID returns the session this cache belongs to.
func (c *Cache) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// Insert stores a decision. Non-cacheable decisions are a no-op; the
// invariant that single-use decisions never reach the map or disk is
// enforced here, not at lookup.
func (c *Cache) Insert(key Key, decision Decision) {
	if !decision.ShouldCache() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key.KeyHash] = NewCachedApproval(key, decision, c.now())
}

// Lookup returns the cached decision for a path-addressed operation, or nil
// when absent or expired.
func (c *Cache) Lookup(tool, path string) *Decision {
	return c.lookupKey(KeyForPath(tool, path))
}

// LookupBash returns the cached decision for a shell command, or nil when
// absent or expired.
func (c *Cache) LookupBash(command, cwd string) *Decision {
	return c.LookupCommand("bash", command, cwd)
}

// LookupCommand resolves a shell command for any shell-running tool: first by
// the exact command hash, then against pattern-scoped approvals of earlier
// commands that generalized to the same pattern.
func (c *Cache) LookupCommand(tool, command, cwd string) *Decision {
	if d := c.lookupKey(KeyForCommand(tool, command, cwd)); d != nil {
		return d
	}
	return c.lookupCommandPattern(tool, command)
}

func (c *Cache) lookupCommandPattern(tool, command string) *Decision {
	commands, err := permission.ParseCommands(command)
	if err != nil || len(commands) == 0 {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	for _, entry := range c.entries {
		if entry.Key.Tool != tool || entry.Key.Pattern == "" {
			continue
		}
		if entry.Decision != ApproveForPattern || entry.IsExpired(now) {
			continue
		}
		if allCommandsMatch(entry.Key.Pattern, commands) {
			d := entry.Decision
			return &d
		}
	}
	return nil
}

// allCommandsMatch requires every command on the line to match, so a pipeline
// cannot smuggle an unapproved program past an approved one.
func allCommandsMatch(pattern string, commands []permission.Command) bool {
	for _, cmd := range commands {
		if !permission.MatchCommandPattern(pattern, cmd) {
			return false
		}
	}
	return true
}

// LookupKey returns the cached decision for an exact key.
func (c *Cache) LookupKey(key Key) *Decision {
	return c.lookupKey(key)
}

func (c *Cache) lookupKey(key Key) *Decision {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key.KeyHash]
	if !ok || entry.IsExpired(c.now()) {
		return nil
	}
	d := entry.Decision
	return &d
}

// ClearExpired sweeps expired entries and returns how many were dropped.
// Expiry is also checked lazily at lookup, so the sweep is optional hygiene.
func (c *Cache) ClearExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	dropped := 0
	for hash, entry := range c.entries {
		if entry.IsExpired(now) {
			delete(c.entries, hash)
			dropped++
		}
	}
	return dropped
}

// Entries returns a snapshot of all live entries.
func (c *Cache) Entries() []CachedApproval {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	out := make([]CachedApproval, 0, len(c.entries))
	for _, entry := range c.entries {
		if !entry.IsExpired(now) {
			out = append(out, entry)
		}
	}
	return out
}

// Save writes the cache atomically through the storage layer.
func (c *Cache) Save() error {
	c.mu.RLock()
	file := cacheFile{
		Version:   cacheFileVersion,
		SessionID: c.sessionID,
		Approvals: make([]CachedApproval, 0, len(c.entries)),
	}
	for _, entry := range c.entries {
		file.Approvals = append(file.Approvals, entry)
	}
	c.mu.RUnlock()

	if err := c.store.Put(c.sessionID, file); err != nil {
		return fmt.Errorf("failed to save approval cache: %w", err)
	}
	return nil
}
