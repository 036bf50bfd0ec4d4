package twitter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"tweet-sentiment-trader-go/internal/market"
)

// Record is one cached post. CreatedAt is RFC 3339.
type Record struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

// FileCache keeps one JSON file of records per handle and day.
type FileCache struct {
	dir string
}

// NewFileCache creates a FileCache rooted at dir. The directory is created on first write.
func NewFileCache(dir string) *FileCache {
	return &FileCache{dir: dir}
}

// Path returns the cache file of handle on day.
func (c *FileCache) Path(handle string, day time.Time) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s_%s.json", handle, day.Format(market.DateLayout)))
}

// Load reads the cached records. ok is false when nothing is cached.
func (c *FileCache) Load(handle string, day time.Time) (records []Record, ok bool, err error) {
	data, err := os.ReadFile(c.Path(handle, day))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache: %w", err)
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, false, fmt.Errorf("decode cache %s: %w", c.Path(handle, day), err)
	}
	return records, true, nil
}

// Save writes records for handle on day, replacing any previous file.
func (c *FileCache) Save(handle string, day time.Time, records []Record) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if records == nil {
		records = []Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	path := c.Path(handle, day)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return os.Rename(tmp, path)
}
