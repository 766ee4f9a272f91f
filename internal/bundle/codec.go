package bundle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hyperjump/eiga/internal/artifact"
	"github.com/hyperjump/eiga/internal/catalog"
	"github.com/hyperjump/eiga/internal/models"
	"github.com/hyperjump/eiga/internal/vector"
	"github.com/hyperjump/eiga/internal/vectorizer"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// FormatVersion is written into every artifact; Decode rejects other versions.
const FormatVersion = 1

type bundleFile struct {
	FormatVersion int                   `msgpack:"format_version"`
	Metadata      models.BundleMetadata `msgpack:"metadata"`
	Items         []models.Item         `msgpack:"items"`
	Vectorizer    vectorizer.State      `msgpack:"vectorizer"`
	Size          int                   `msgpack:"size"`
	Matrix        []float32             `msgpack:"matrix"`
}

// Encode writes b as a zstd-compressed msgpack document.
func Encode(w io.Writer, b *Bundle) error {
	if err := b.Validate(); err != nil {
		return err
	}
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	file := bundleFile{
		FormatVersion: FormatVersion,
		Metadata:      b.Metadata,
		Items:         b.Catalog.Items(),
		Vectorizer:    b.Vectorizer.State(),
		Size:          b.Matrix.Size(),
		Matrix:        b.Matrix.Data(),
	}
	if err := msgpack.NewEncoder(zw).Encode(&file); err != nil {
		_ = zw.Close()
		return fmt.Errorf("encode bundle: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush bundle: %w", err)
	}
	return nil
}

// Marshal encodes b into a byte slice.
func Marshal(b *Bundle) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a bundle written by Encode. Any decoding failure or inconsistency
// is reported as ErrArtifactCorrupt.
func Decode(r io.Reader) (*Bundle, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactCorrupt, err)
	}
	defer zr.Close()

	var file bundleFile
	if err := msgpack.NewDecoder(zr).Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactCorrupt, err)
	}
	if file.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrArtifactCorrupt, file.FormatVersion)
	}
	if len(file.Items) != file.Size {
		return nil, fmt.Errorf("%w: catalog has %d items but matrix is %dx%d",
			ErrArtifactCorrupt, len(file.Items), file.Size, file.Size)
	}
	matrix, err := vector.NewMatrix(file.Size, file.Matrix)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactCorrupt, err)
	}
	vz, err := vectorizer.FromState(file.Vectorizer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactCorrupt, err)
	}
	b := &Bundle{
		Catalog:    catalog.New(file.Items),
		Matrix:     matrix,
		Vectorizer: vz,
		Metadata:   file.Metadata,
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Unmarshal decodes a bundle from data.
func Unmarshal(data []byte) (*Bundle, error) {
	return Decode(bytes.NewReader(data))
}

// Save encodes b and stores it under key. It returns the artifact location and checksum.
func Save(ctx context.Context, store artifact.Store, key string, b *Bundle) (location, checksum string, err error) {
	data, err := Marshal(b)
	if err != nil {
		return "", "", err
	}
	location, err = store.Put(ctx, key, data)
	if err != nil {
		return "", "", fmt.Errorf("store bundle: %w", err)
	}
	return location, artifact.Checksum(data), nil
}

// Load fetches and decodes the bundle at location. When checksum is non-empty the
// artifact bytes must match it.
func Load(ctx context.Context, store artifact.Store, location, checksum string) (*Bundle, error) {
	data, err := store.Get(ctx, location)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, location)
		}
		return nil, fmt.Errorf("fetch bundle: %w", err)
	}
	if !artifact.Verify(data, checksum) {
		return nil, fmt.Errorf("%w: checksum mismatch for %s", ErrArtifactCorrupt, location)
	}
	return Unmarshal(data)
}
