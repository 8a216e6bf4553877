// Package persist implements the append-only last-applied log:
// core.LastAppliedStore backed by a single growable file plus an
// in-memory uid -> offsets index rebuilt on open. Ground truth is
// original_source/crates/persist.
package persist

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/orka-sh/orka/internal/core"
)

// recordHeaderLen is the fixed-size prefix of every record: ts (8
// bytes, little-endian i64), uid (16 bytes), rv_len (4 bytes),
// yaml_len (4 bytes).
const recordHeaderLen = 8 + 16 + 4 + 4

// maxOffsetsPerUID bounds how many historical offsets LogStore keeps
// per uid in its in-memory index; older offsets are dropped, the same
// as the reference implementation's 64-entry cap.
const maxOffsetsPerUID = 64

// LogStore is an append-only binary log of LastApplied records,
// implementing core.LastAppliedStore. Every PutLast call appends a
// record and updates an in-memory offset index; GetLast seeks
// directly to the requested records via that index rather than
// scanning the file.
type LogStore struct {
	mu   sync.Mutex
	file *os.File
	path string

	idxMu sync.Mutex
	index map[core.UID][]int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

var _ core.LastAppliedStore = (*LogStore)(nil)

// Open opens (creating if absent) the log at path, rebuilding its
// in-memory offset index by walking every record once.
func Open(path string, zstdLevel int) (*LogStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log store at %s: %w", path, err)
	}

	index, err := buildIndex(path)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("indexing log store at %s: %w", path, err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(zstdLevel)))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &LogStore{file: f, path: path, index: index, encoder: enc, decoder: dec}, nil
}

func buildIndex(path string) (map[core.UID][]int64, error) {
	index := make(map[core.UID][]int64)

	rf, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return index, nil
		}
		return nil, err
	}
	defer rf.Close()

	var off int64
	header := make([]byte, recordHeaderLen)
	for {
		if _, err := io.ReadFull(rf, header); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, err
		}

		var uid core.UID
		copy(uid[:], header[8:24])
		rvLen := binary.LittleEndian.Uint32(header[24:28])
		yamlLen := binary.LittleEndian.Uint32(header[28:32])

		offs := append(index[uid], off)
		if len(offs) > maxOffsetsPerUID {
			offs = offs[len(offs)-maxOffsetsPerUID:]
		}
		index[uid] = offs

		skip := int64(rvLen) + int64(yamlLen)
		if _, err := rf.Seek(skip, io.SeekCurrent); err != nil {
			return nil, err
		}
		off += recordHeaderLen + skip
	}

	return index, nil
}

// PutLast appends rec to the log and records its offset in the
// in-memory index, compressing the YAML body with zstd.
func (s *LogStore) PutLast(rec core.LastApplied) error {
	compressed := s.encoder.EncodeAll(rec.YAMLBytes, nil)

	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.file.Stat()
	if err != nil {
		return fmt.Errorf("stat log store: %w", err)
	}
	off := info.Size()

	buf := make([]byte, 0, recordHeaderLen+len(rec.RV)+len(compressed))
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(rec.TS))
	buf = append(buf, tmp[:]...)
	buf = append(buf, rec.UID[:]...)
	binary.LittleEndian.PutUint32(tmp[:4], uint32(len(rec.RV)))
	buf = append(buf, tmp[:4]...)
	binary.LittleEndian.PutUint32(tmp[:4], uint32(len(compressed)))
	buf = append(buf, tmp[:4]...)
	buf = append(buf, rec.RV...)
	buf = append(buf, compressed...)

	if _, err := s.file.Write(buf); err != nil {
		return fmt.Errorf("append log store record: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync log store: %w", err)
	}

	s.idxMu.Lock()
	offs := append(s.index[rec.UID], off)
	if len(offs) > maxOffsetsPerUID {
		offs = offs[len(offs)-maxOffsetsPerUID:]
	}
	s.index[rec.UID] = offs
	s.idxMu.Unlock()

	return nil
}

// GetLast returns up to limit records for uid, most recent first,
// decompressing each YAML body. limit <= 0 defaults to 3 records, the
// same default the reference implementation uses.
func (s *LogStore) GetLast(uid core.UID, limit int) ([]core.LastApplied, error) {
	if limit <= 0 {
		limit = 3
	}

	s.idxMu.Lock()
	offs := append([]int64(nil), s.index[uid]...)
	s.idxMu.Unlock()

	rf, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open log store for read: %w", err)
	}
	defer rf.Close()

	out := make([]core.LastApplied, 0, limit)
	for i := len(offs) - 1; i >= 0 && len(out) < limit; i-- {
		rec, err := s.readAt(rf, offs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *LogStore) readAt(rf *os.File, off int64) (core.LastApplied, error) {
	header := make([]byte, recordHeaderLen)
	if _, err := rf.ReadAt(header, off); err != nil {
		return core.LastApplied{}, fmt.Errorf("read log store record header: %w", err)
	}

	ts := int64(binary.LittleEndian.Uint64(header[:8]))
	var uid core.UID
	copy(uid[:], header[8:24])
	rvLen := binary.LittleEndian.Uint32(header[24:28])
	yamlLen := binary.LittleEndian.Uint32(header[28:32])

	body := make([]byte, int64(rvLen)+int64(yamlLen))
	if _, err := rf.ReadAt(body, off+recordHeaderLen); err != nil {
		return core.LastApplied{}, fmt.Errorf("read log store record body: %w", err)
	}

	rv := string(body[:rvLen])
	compressed := body[rvLen:]
	yamlBytes, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return core.LastApplied{}, fmt.Errorf("decompress last-applied body: %w", err)
	}

	return core.LastApplied{UID: uid, RV: rv, TS: ts, YAMLBytes: yamlBytes}, nil
}

// Close releases the store's file handle and zstd resources.
func (s *LogStore) Close() error {
	s.encoder.Close()
	s.decoder.Close()
	return s.file.Close()
}
