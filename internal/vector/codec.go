package vector

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"os"
	"path/filepath"
)

// Blob layout (little endian): magic "OSIX", format version, dimension, item
// count, then per item: id length + id bytes, then the raw vector matrix row
// by row, then the search payload (length-prefixed). The payload carries the
// dimension, count, and an FNV-1a digest of the matrix so a truncated or
// bit-flipped blob is rejected on load.
const (
	blobMagic      = "OSIX"
	blobVersion    = uint32(1)
	payloadMagic   = "FLIP"
	maxIDLength    = 1 << 16
	maxIndexedRows = 1 << 28
)

// Encode writes the index to w.
func (x *Index) Encode(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(blobMagic); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	for _, v := range []uint32{blobVersion, uint32(x.dims), uint32(len(x.ids))} {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for _, id := range x.ids {
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(id))); err != nil {
			return fmt.Errorf("write id length: %w", err)
		}
		if _, err := bw.WriteString(id); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
	}
	digest := fnv.New64a()
	row := make([]byte, x.dims*4)
	for _, vec := range x.vectors {
		encodeRow(row, vec)
		if _, err := bw.Write(row); err != nil {
			return fmt.Errorf("write vector row: %w", err)
		}
		_, _ = digest.Write(row)
	}
	payload := encodePayload(uint32(x.dims), uint32(len(x.ids)), digest.Sum64())
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(payload))); err != nil {
		return fmt.Errorf("write payload length: %w", err)
	}
	if _, err := bw.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return bw.Flush()
}

// Decode reads an index previously written by Encode. Damaged or unrecognized
// input returns an error wrapping ErrCorruptIndex.
func Decode(r io.Reader) (*Index, error) {
	br := bufio.NewReader(r)
	magic := make([]byte, len(blobMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, fmt.Errorf("%w: read magic: %v", ErrCorruptIndex, err)
	}
	if string(magic) != blobMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorruptIndex, magic)
	}
	var version, dims, count uint32
	for _, p := range []*uint32{&version, &dims, &count} {
		if err := binary.Read(br, binary.LittleEndian, p); err != nil {
			return nil, fmt.Errorf("%w: read header: %v", ErrCorruptIndex, err)
		}
	}
	if version != blobVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptIndex, version)
	}
	if dims == 0 || count == 0 || count > maxIndexedRows {
		return nil, fmt.Errorf("%w: implausible header (dims=%d count=%d)", ErrCorruptIndex, dims, count)
	}
	ids := make([]string, count)
	for i := range ids {
		var n uint32
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("%w: read id length: %v", ErrCorruptIndex, err)
		}
		if n > maxIDLength {
			return nil, fmt.Errorf("%w: id length %d", ErrCorruptIndex, n)
		}
		id := make([]byte, n)
		if _, err := io.ReadFull(br, id); err != nil {
			return nil, fmt.Errorf("%w: read id: %v", ErrCorruptIndex, err)
		}
		ids[i] = string(id)
	}
	digest := fnv.New64a()
	vectors := make([][]float32, count)
	row := make([]byte, dims*4)
	for i := range vectors {
		if _, err := io.ReadFull(br, row); err != nil {
			return nil, fmt.Errorf("%w: read vector row: %v", ErrCorruptIndex, err)
		}
		_, _ = digest.Write(row)
		vectors[i] = decodeRow(row)
	}
	var payloadLen uint32
	if err := binary.Read(br, binary.LittleEndian, &payloadLen); err != nil {
		return nil, fmt.Errorf("%w: read payload length: %v", ErrCorruptIndex, err)
	}
	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(br, payload); err != nil {
		return nil, fmt.Errorf("%w: read payload: %v", ErrCorruptIndex, err)
	}
	if err := validatePayload(payload, dims, count, digest.Sum64()); err != nil {
		return nil, err
	}
	return &Index{dims: int(dims), ids: ids, vectors: vectors}, nil
}

// Save writes the index to path via a temp file and rename, so a concurrent
// loader never observes a half-written blob. Parent directories are created.
func (x *Index) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := x.Encode(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp blob: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// LoadFile reads an index blob from path.
func LoadFile(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index blob: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

func encodeRow(dst []byte, vec []float32) {
	for i, v := range vec {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}

func decodeRow(src []byte) []float32 {
	out := make([]float32, len(src)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
	return out
}

func encodePayload(dims, count uint32, sum uint64) []byte {
	out := make([]byte, len(payloadMagic)+16)
	copy(out, payloadMagic)
	binary.LittleEndian.PutUint32(out[4:], dims)
	binary.LittleEndian.PutUint32(out[8:], count)
	binary.LittleEndian.PutUint64(out[12:], sum)
	return out
}

func validatePayload(payload []byte, dims, count uint32, sum uint64) error {
	if len(payload) != len(payloadMagic)+16 || string(payload[:4]) != payloadMagic {
		return fmt.Errorf("%w: missing search payload", ErrCorruptIndex)
	}
	if binary.LittleEndian.Uint32(payload[4:]) != dims ||
		binary.LittleEndian.Uint32(payload[8:]) != count {
		return fmt.Errorf("%w: payload header disagrees with blob", ErrCorruptIndex)
	}
	if binary.LittleEndian.Uint64(payload[12:]) != sum {
		return fmt.Errorf("%w: matrix digest mismatch", ErrCorruptIndex)
	}
	return nil
}
