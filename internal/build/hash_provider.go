package build

import (
	"fmt"
	"hash/crc32"
	"os"
	"strconv"
)

// HashProvider generates content hashes for cache busting. Hashes are cached
// under a key built from the file's path, modification time, and size, so an
// unchanged file is never read twice.
type HashProvider struct {
	cache    *HashCache
	crcTable *crc32.Table
}

// NewHashProvider creates a new hash provider with the specified cache.
func NewHashProvider(cache *HashCache) *HashProvider {
	if cache == nil {
		cache = NewHashCache(4*1024*1024, 0)
	}
	return &HashProvider{
		cache:    cache,
		crcTable: crc32.MakeTable(crc32.Castagnoli),
	}
}

// ContentHash returns the CRC32 Castagnoli checksum of the file at path as a
// hex string.
func (hp *HashProvider) ContentHash(path string) (string, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	metadataKey := fmt.Sprintf("%s:%d:%d", path, stat.ModTime().UnixNano(), stat.Size())
	if hash, found := hp.cache.GetHash(metadataKey); found {
		return hash, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	contentHash := strconv.FormatUint(uint64(crc32.Checksum(content, hp.crcTable)), 16)
	hp.cache.SetHash(metadataKey, contentHash)

	return contentHash, nil
}

// Stats returns hash cache statistics.
func (hp *HashProvider) Stats() HashCacheStats {
	size, hits, misses := hp.cache.Stats()
	total := hits + misses
	hitRatio := 0.0
	if total > 0 {
		hitRatio = float64(hits) / float64(total)
	}

	return HashCacheStats{
		Entries:  size,
		Hits:     hits,
		Misses:   misses,
		HitRatio: hitRatio,
	}
}

// HashCacheStats provides hash cache performance metrics.
type HashCacheStats struct {
	Entries  int
	Hits     int64
	Misses   int64
	HitRatio float64
}
