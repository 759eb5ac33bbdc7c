package cache

import (
	"encoding/json"
	"fmt"
)

// encodeEntry marshals a whole entry. The stored copy always carries its key.
func encodeEntry(url string, entry *CacheEntry) ([]byte, error) {
	stored := *entry
	stored.URL = url
	data, err := json.Marshal(&stored)
	if err != nil {
		return nil, fmt.Errorf("marshal cache entry: %w", err)
	}
	return data, nil
}

func decodeEntry(data []byte) (*CacheEntry, error) {
	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return &entry, nil
}
