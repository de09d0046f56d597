package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"
)

const diskSuffix = ".pcm.zst"

// DiskStore keeps one zstd compressed file per key under a directory.
type DiskStore struct {
	cacheDir string
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
}

// NewDiskStore creates the cache directory if needed. A compression level of 0 or
// less uses the zstd default.
func NewDiskStore(cacheDir string, compressionLevel int) (*DiskStore, error) {
	if cacheDir == "" {
		return nil, fmt.Errorf("cache directory required")
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", cacheDir, err)
	}

	level := zstd.SpeedDefault
	if compressionLevel > 0 {
		level = zstd.EncoderLevelFromZstd(compressionLevel)
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &DiskStore{
		cacheDir: cacheDir,
		encoder:  encoder,
		decoder:  decoder,
	}, nil
}

// path hashes the key; keys carry arbitrary story text.
func (d *DiskStore) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(d.cacheDir, hex.EncodeToString(sum[:])+diskSuffix)
}

func (d *DiskStore) GetAudio(_ context.Context, key string) ([]byte, bool, error) {
	compressed, err := os.ReadFile(d.path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached audio: %w", err)
	}

	data, err := d.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decompress cached audio: %w", err)
	}
	return data, true, nil
}

func (d *DiskStore) SaveAudio(_ context.Context, key string, data []byte) error {
	target := d.path(key)
	tmp, err := os.CreateTemp(d.cacheDir, "narration-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(d.encoder.EncodeAll(data, nil)); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to store cache file: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"bytes": len(data),
		"file":  target,
	}).Debug("Saved narration to disk cache")
	return nil
}

func (d *DiskStore) Stats(_ context.Context) (Stats, error) {
	stats := Stats{Backend: string(StoreTypeDisk), Location: d.cacheDir}

	err := filepath.Walk(d.cacheDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // keep walking
		}
		if !info.IsDir() && strings.HasSuffix(info.Name(), diskSuffix) {
			stats.Entries++
			stats.Bytes += info.Size()
		}
		return nil
	})
	return stats, err
}

func (d *DiskStore) Clear(_ context.Context) error {
	entries, err := os.ReadDir(d.cacheDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), diskSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(d.cacheDir, entry.Name())); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
	}
	logrus.WithField("dir", d.cacheDir).Info("Cleared narration cache")
	return nil
}
