package internal

import (
	"crypto/md5"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	tt "github.com/gnoswap-labs/tmscope/internal/types"
)

const (
	cacheFileName = "tokens_cache.gob"
	// cacheFormat is bumped whenever the gob layout of a result changes.
	cacheFormat = 2

	defaultCacheAge     = 24 * time.Hour
	defaultCacheEntries = 4096
)

// cacheFile is what lives on disk. A file with a different Format is
// discarded on load.
type cacheFile struct {
	Format  int
	Entries map[string]CacheEntry
}

// Fingerprint identifies the content of a source file when it was tokenized.
type Fingerprint struct {
	Sum     string
	ModTime time.Time
}

// NewFingerprint describes content read from a file whose stat, taken before
// the read, is info. A write racing the read leaves the two inconsistent,
// which the next lookup sees as a change.
func NewFingerprint(info os.FileInfo, content []byte) Fingerprint {
	sum := md5.Sum(content)
	return Fingerprint{Sum: hex.EncodeToString(sum[:]), ModTime: info.ModTime()}
}

func (f Fingerprint) matches(o Fingerprint) bool {
	return f.Sum == o.Sum && f.ModTime.Equal(o.ModTime)
}

type CacheEntry struct {
	Source Fingerprint
	// Rules is the rule configuration the issues of Result were checked with.
	Rules  string
	Result tt.FileResult
	Stored time.Time
	Used   time.Time
	// Grammars maps each grammar file to the digest it had when Result was
	// produced.
	Grammars map[string]string
}

// Cache keeps tokenization results on disk between runs. An entry is
// dropped when its source file changes, when it outlives the maximum age, or
// when a grammar it was produced with changes. Beyond the entry limit the
// least recently used entries are evicted.
type Cache struct {
	dir string

	mu         sync.Mutex
	entries    map[string]CacheEntry
	maxAge     time.Duration
	maxEntries int
	grammars   map[string]string
}

// NewCache opens the cache stored in dir, creating the directory if needed.
// An unreadable or outdated cache file starts the cache empty.
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &Cache{
		dir:        dir,
		entries:    make(map[string]CacheEntry),
		maxAge:     defaultCacheAge,
		maxEntries: defaultCacheEntries,
		grammars:   make(map[string]string),
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) path() string {
	return filepath.Join(c.dir, cacheFileName)
}

func (c *Cache) load() error {
	f, err := os.Open(c.path())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()

	var stored cacheFile
	if err := gob.NewDecoder(f).Decode(&stored); err != nil || stored.Format != cacheFormat {
		return nil
	}
	if stored.Entries != nil {
		c.entries = stored.Entries
	}
	return nil
}

// persist replaces the cache file through a rename so a concurrent reader
// never sees a partial file.
func (c *Cache) persist() error {
	tmp, err := os.CreateTemp(c.dir, "tokens_cache-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(cacheFile{Format: cacheFormat, Entries: c.entries}); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), c.path())
}

// Set stores the result tokenized from the source described by source and
// checked under rules, and writes the cache to disk.
func (c *Cache) Set(filename string, source Fingerprint, rules string, result *tt.FileResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.entries[filename] = CacheEntry{
		Source:   source,
		Rules:    rules,
		Result:   *result,
		Stored:   now,
		Used:     now,
		Grammars: maps.Clone(c.grammars),
	}
	c.evict()
	return c.persist()
}

// Get returns the stored result for filename if it is still valid and was
// checked under rules.
func (c *Cache) Get(filename, rules string) (*tt.FileResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[filename]
	if !ok {
		return nil, false
	}
	if entry.Rules != rules {
		return nil, false
	}
	if c.stale(filename, entry) {
		delete(c.entries, filename)
		return nil, false
	}

	entry.Used = time.Now()
	c.entries[filename] = entry
	res := entry.Result
	return &res, true
}

func (c *Cache) stale(filename string, entry CacheEntry) bool {
	if time.Since(entry.Stored) > c.maxAge {
		return true
	}
	if !maps.Equal(entry.Grammars, c.grammars) {
		return true
	}
	current, err := FingerprintFile(filename)
	if err != nil || !current.matches(entry.Source) {
		return true
	}
	// grammar files edited since SetDependencies
	for file, sum := range c.grammars {
		if cur, err := digest(file); err != nil || cur != sum {
			return true
		}
	}
	return false
}

// evict drops the least recently used entries beyond maxEntries.
func (c *Cache) evict() {
	excess := len(c.entries) - c.maxEntries
	if c.maxEntries <= 0 || excess <= 0 {
		return
	}
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		return c.entries[a].Used.Compare(c.entries[b].Used)
	})
	for _, name := range names[:excess] {
		delete(c.entries, name)
	}
}

// SetDependencies records the grammar files every result depends on, with
// their current digests.
func (c *Cache) SetDependencies(files ...string) error {
	sums := make(map[string]string, len(files))
	for _, file := range files {
		sum, err := digest(file)
		if err != nil {
			return fmt.Errorf("failed to hash %s: %w", file, err)
		}
		sums[file] = sum
	}

	c.mu.Lock()
	c.grammars = sums
	c.mu.Unlock()
	return nil
}

func (c *Cache) SetMaxAge(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxAge = d
}

// SetMaxEntries bounds the number of stored results. n <= 0 removes the
// bound.
func (c *Cache) SetMaxEntries(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxEntries = n
	c.evict()
}

func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.entries)
	_ = c.persist()
}

// FingerprintFile reads filename and describes its current content.
func FingerprintFile(filename string) (Fingerprint, error) {
	info, err := os.Stat(filename)
	if err != nil {
		return Fingerprint{}, err
	}
	content, err := os.ReadFile(filename)
	if err != nil {
		return Fingerprint{}, err
	}
	return NewFingerprint(info, content), nil
}

func digest(filename string) (string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
