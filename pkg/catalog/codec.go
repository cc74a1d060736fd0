package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/txn2/mcp-kusto/pkg/kusto"
)

// FormatVersion is bumped whenever the persisted layout changes. Entries
// written with another version are cache misses.
const FormatVersion = 1

// envelope is the persisted form of every cache record.
type envelope struct {
	Version     int    `msgpack:"v"`
	Fingerprint string `msgpack:"fp"`
	Payload     []byte `msgpack:"p"`
}

// indexRecord is the persisted database listing of a cluster.
type indexRecord struct {
	Cluster   string       `msgpack:"cluster"`
	Databases []indexEntry `msgpack:"databases"`
}

type indexEntry struct {
	Name          string `msgpack:"name"`
	AlternateName string `msgpack:"alternate_name,omitempty"`
}

// Codec serializes cache records as zstd-compressed msgpack envelopes that
// carry a format version and a SHA-256 fingerprint of the payload.
// A Codec is safe for concurrent use.
type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCodec creates a reusable codec. Close releases its resources.
func NewCodec() (*Codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return &Codec{encoder: enc, decoder: dec}, nil
}

// Close releases the compressor and decompressor.
func (c *Codec) Close() error {
	c.decoder.Close()
	return c.encoder.Close()
}

// Fingerprint returns the hex SHA-256 of the msgpack form of a database
// catalog. Equal catalogs have equal fingerprints.
func Fingerprint(db *DatabaseCatalog) (string, error) {
	payload, err := msgpack.Marshal(db)
	if err != nil {
		return "", fmt.Errorf("encoding database %s: %w", db.Name, err)
	}
	return fingerprintBytes(payload), nil
}

func fingerprintBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// EncodeDatabase serializes a database catalog. It also returns the
// fingerprint stored in the envelope.
func (c *Codec) EncodeDatabase(db *DatabaseCatalog) ([]byte, string, error) {
	return c.encode(db)
}

// DecodeDatabase deserializes a database catalog, verifying its version
// and fingerprint.
func (c *Codec) DecodeDatabase(b []byte) (*DatabaseCatalog, error) {
	var db DatabaseCatalog
	if err := c.decode(b, &db); err != nil {
		return nil, err
	}
	return &db, nil
}

// EncodeIndex serializes the database listing of a cluster.
func (c *Codec) EncodeIndex(id kusto.ClusterIdentity, infos []kusto.DatabaseInfo) ([]byte, error) {
	rec := indexRecord{Cluster: id.String(), Databases: make([]indexEntry, len(infos))}
	for i, info := range infos {
		rec.Databases[i] = indexEntry{Name: info.Name, AlternateName: info.AlternateName}
	}
	b, _, err := c.encode(rec)
	return b, err
}

// DecodeIndex deserializes the database listing of a cluster. The record
// must belong to id.
func (c *Codec) DecodeIndex(id kusto.ClusterIdentity, b []byte) ([]kusto.DatabaseInfo, error) {
	var rec indexRecord
	if err := c.decode(b, &rec); err != nil {
		return nil, err
	}
	if rec.Cluster != id.String() {
		return nil, fmt.Errorf("index belongs to %s, not %s", rec.Cluster, id)
	}
	infos := make([]kusto.DatabaseInfo, len(rec.Databases))
	for i, e := range rec.Databases {
		infos[i] = kusto.DatabaseInfo{Name: e.Name, AlternateName: e.AlternateName}
	}
	return infos, nil
}

func (c *Codec) encode(v any) ([]byte, string, error) {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return nil, "", fmt.Errorf("encoding payload: %w", err)
	}
	env := envelope{Version: FormatVersion, Fingerprint: fingerprintBytes(payload), Payload: payload}
	raw, err := msgpack.Marshal(&env)
	if err != nil {
		return nil, "", fmt.Errorf("encoding envelope: %w", err)
	}
	return c.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2)), env.Fingerprint, nil
}

func (c *Codec) decode(b []byte, v any) error {
	if len(b) == 0 {
		return fmt.Errorf("empty record")
	}
	raw, err := c.decoder.DecodeAll(b, nil)
	if err != nil {
		return fmt.Errorf("decompressing record: %w", err)
	}
	var env envelope
	if err := msgpack.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decoding envelope: %w", err)
	}
	if env.Version != FormatVersion {
		return fmt.Errorf("format version %d, want %d", env.Version, FormatVersion)
	}
	if got := fingerprintBytes(env.Payload); got != env.Fingerprint {
		return fmt.Errorf("fingerprint mismatch: stored %s, computed %s", env.Fingerprint, got)
	}
	if err := msgpack.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}
	return nil
}
