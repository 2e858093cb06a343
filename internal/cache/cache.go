// Package cache memoizes fetched listings, file bodies and rendered markup.
//
// Entries are never invalidated: once a key is written its payload is served for
// the lifetime of the store. A FileStore keeps payloads on disk so they survive
// process restarts.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// KeyKind namespaces cache keys.
type KeyKind string

const (
	// KindListing identifies directory listings.
	KindListing KeyKind = "listing"
	// KindFile identifies raw file bodies keyed by download URL.
	KindFile KeyKind = "file"
	// KindRendered identifies rendered markup.
	KindRendered KeyKind = "rendered"
)

const (
	keySeparator      = "\x1f"
	payloadFileSuffix = ".payload"
	temporarySuffix   = ".tmp"

	cacheDirectoryPermissions = 0o755
	cacheFilePermissions      = 0o600

	errorCreateDirectoryFormat = "create cache directory %s: %w"
	errorWriteEntryFormat      = "write cache entry %s: %w"
)

// Key is a structured cache key.
type Key struct {
	Kind  KeyKind
	Owner string
	Repo  string
	Path  string
}

// ListingKey returns the key for a directory listing.
func ListingKey(owner, repo, path string) Key {
	return Key{Kind: KindListing, Owner: owner, Repo: repo, Path: path}
}

// FileKey returns the key for a file body fetched from downloadURL.
func FileKey(downloadURL string) Key {
	return Key{Kind: KindFile, Path: downloadURL}
}

// RenderedKey returns the key for rendered markup of a file.
func RenderedKey(owner, repo, path string) Key {
	return Key{Kind: KindRendered, Owner: owner, Repo: repo, Path: path}
}

// String joins the key fields with a separator that cannot occur in owner or
// repository names, so distinct keys never collide.
func (key Key) String() string {
	return strings.Join([]string{string(key.Kind), key.Owner, key.Repo, key.Path}, keySeparator)
}

// Store is a key-value store for payloads.
type Store interface {
	Get(key Key) (string, bool)
	Set(key Key, payload string)
}

// MemoryStore keeps payloads in memory.
type MemoryStore struct {
	mutex   sync.RWMutex
	entries map[string]string
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

// Get returns the payload stored under key.
func (store *MemoryStore) Get(key Key) (string, bool) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	payload, found := store.entries[key.String()]
	return payload, found
}

// Set stores payload under key.
func (store *MemoryStore) Set(key Key, payload string) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.entries[key.String()] = payload
}

// Len returns the number of stored entries.
func (store *MemoryStore) Len() int {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	return len(store.entries)
}

// FileStore keeps one file per key in a directory. Reads are served from an
// in-memory copy once a key has been seen.
type FileStore struct {
	directory string
	logger    *zap.Logger
	memory    *MemoryStore
	mutex     sync.Mutex
}

// NewFileStore creates the directory if needed and returns a FileStore.
func NewFileStore(directory string, logger *zap.Logger) (*FileStore, error) {
	if strings.TrimSpace(directory) == "" {
		return nil, errors.New("cache directory is required")
	}
	if err := os.MkdirAll(directory, cacheDirectoryPermissions); err != nil {
		return nil, fmt.Errorf(errorCreateDirectoryFormat, directory, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{directory: directory, logger: logger, memory: NewMemoryStore()}, nil
}

// Directory returns the backing directory.
func (store *FileStore) Directory() string {
	return store.directory
}

// Get returns the payload stored under key, reading it from disk on first use.
func (store *FileStore) Get(key Key) (string, bool) {
	if payload, found := store.memory.Get(key); found {
		return payload, true
	}
	// #nosec G304
	contents, readError := os.ReadFile(store.entryPath(key))
	if readError != nil {
		if !os.IsNotExist(readError) {
			store.logger.Warn("cache read failed", zap.String("key", key.String()), zap.Error(readError))
		}
		return "", false
	}
	payload := string(contents)
	store.memory.Set(key, payload)
	return payload, true
}

// Set stores payload under key. A failed disk write is logged; the payload is
// still served from memory for the rest of the process.
func (store *FileStore) Set(key Key, payload string) {
	store.memory.Set(key, payload)
	if writeError := store.write(key, payload); writeError != nil {
		store.logger.Warn("cache write failed", zap.String("key", key.String()), zap.Error(writeError))
	}
}

func (store *FileStore) write(key Key, payload string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	finalPath := store.entryPath(key)
	temporaryPath := finalPath + temporarySuffix
	if err := os.WriteFile(temporaryPath, []byte(payload), cacheFilePermissions); err != nil {
		return fmt.Errorf(errorWriteEntryFormat, finalPath, err)
	}
	if err := os.Rename(temporaryPath, finalPath); err != nil {
		_ = os.Remove(temporaryPath)
		return fmt.Errorf(errorWriteEntryFormat, finalPath, err)
	}
	return nil
}

func (store *FileStore) entryPath(key Key) string {
	digest := sha256.Sum256([]byte(key.String()))
	return filepath.Join(store.directory, hex.EncodeToString(digest[:])+payloadFileSuffix)
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileStore)(nil)
)
