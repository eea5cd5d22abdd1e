package dataset

import (
	"bufio"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

const archiveVersion = "audiva-dataset/v1"

// archive is the on-disk document: a version tag around the dataset
type archive struct {
	Version string   `msgpack:"version"`
	Dataset *Dataset `msgpack:"dataset"`
}

// Save writes d to path as a zstd-compressed msgpack archive
func (d *Dataset) Save(path string) error {
	if err := d.Validate(); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}

	if err := msgpack.NewEncoder(enc).Encode(&archive{Version: archiveVersion, Dataset: d}); err != nil {
		enc.Close()
		return fmt.Errorf("failed to encode archive %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to compress archive %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write archive %s: %w", path, err)
	}
	return f.Close()
}

// Load reads and validates an archive written by Save
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer dec.Close()

	var a archive
	if err := msgpack.NewDecoder(dec).Decode(&a); err != nil {
		return nil, fmt.Errorf("failed to decode archive %s: %w", path, err)
	}

	if a.Version != archiveVersion {
		return nil, fmt.Errorf("%w: archive %s has version %q, want %q", ErrInvalid, path, a.Version, archiveVersion)
	}
	if a.Dataset == nil {
		return nil, fmt.Errorf("%w: archive %s holds no dataset", ErrInvalid, path)
	}
	if err := a.Dataset.Validate(); err != nil {
		return nil, fmt.Errorf("archive %s: %w", path, err)
	}
	return a.Dataset, nil
}
