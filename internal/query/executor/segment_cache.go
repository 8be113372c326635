package executor

import (
	"container/list"
	"os"
	"sync"
)

// SegmentCache is an LRU cache of downloaded segment files, bounded by
// total bytes on disk. Evicted entries have their local file removed.
type SegmentCache struct {
	mu       sync.Mutex
	maxBytes int64
	curBytes int64

	entries map[string]*list.Element
	order   *list.List // front = most recently used
}

type cachedSegment struct {
	objectPath string
	localPath  string
	sizeBytes  int64
}

// NewSegmentCache creates a cache holding at most maxBytes of segment
// files. A non-positive maxBytes defaults to 1 GiB.
func NewSegmentCache(maxBytes int64) *SegmentCache {
	if maxBytes <= 0 {
		maxBytes = 1 << 30
	}
	return &SegmentCache{
		maxBytes: maxBytes,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the local path for a cached segment, or "" on miss. A hit
// promotes the entry. Entries whose file vanished or changed size are
// dropped.
func (c *SegmentCache) Get(objectPath string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[objectPath]
	if !ok {
		return ""
	}

	entry := elem.Value.(*cachedSegment)
	info, err := os.Stat(entry.localPath)
	if err != nil || info.Size() != entry.sizeBytes {
		c.removeLocked(elem)
		return ""
	}

	c.order.MoveToFront(elem)
	return entry.localPath
}

// Put records a downloaded segment, evicting LRU entries past the byte
// budget.
func (c *SegmentCache) Put(objectPath, localPath string) {
	info, err := os.Stat(localPath)
	if err != nil {
		return
	}
	size := info.Size()

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[objectPath]; ok {
		entry := elem.Value.(*cachedSegment)
		c.curBytes += size - entry.sizeBytes
		entry.localPath = localPath
		entry.sizeBytes = size
		c.order.MoveToFront(elem)
	} else {
		elem := c.order.PushFront(&cachedSegment{
			objectPath: objectPath,
			localPath:  localPath,
			sizeBytes:  size,
		})
		c.entries[objectPath] = elem
		c.curBytes += size
	}

	for c.curBytes > c.maxBytes && c.order.Len() > 1 {
		c.removeLocked(c.order.Back())
	}
}

// removeLocked drops an entry and deletes its file. Caller holds c.mu.
func (c *SegmentCache) removeLocked(elem *list.Element) {
	entry := elem.Value.(*cachedSegment)
	c.order.Remove(elem)
	delete(c.entries, entry.objectPath)
	c.curBytes -= entry.sizeBytes
	os.Remove(entry.localPath)
}

// Size returns the total cached bytes.
func (c *SegmentCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.curBytes
}

// Len returns the number of cached segments.
func (c *SegmentCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear evicts everything, deleting the cached files.
func (c *SegmentCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.order.Len() > 0 {
		c.removeLocked(c.order.Back())
	}
}
