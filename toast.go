package exdatum

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"go.uber.org/zap"
)

// Compression identifies the algorithm of a compressed compact value. The
// values are stored in compressed headers and must never change.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses the String form of a Compression.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none", "":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression method: %q", name)
	}
}

// ExternalStore keeps compact values that are too large to store inline.
type ExternalStore interface {
	Put(data []byte) (uint64, error)
	Get(id uint64) ([]byte, error)
	Delete(id uint64) error
}

// ErrNoExternalStore is returned when an external pointer is expanded
// without a Codec that has an ExternalStore.
var ErrNoExternalStore = errors.New("exdatum: external value requires an external store")

const (
	// compressed -> length:32 rawSize:32 method:8 reserved:24 compressed...
	compressedHeaderSize = 12

	// external -> length:32 rawSize:32 id:64 storedSize:32 reserved:32 checksum:64
	externalPointerSize = 32
)

// maxLZ4Ratio bounds how much an LZ4 block can expand: a sequence never
// produces more than 255 bytes per input byte.
const maxLZ4Ratio = 255

var errIncompressible = errors.New("data is incompressible")

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("exdatum: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil,
		zstd.WithDecoderMaxMemory(MaxCompactSize),
		zstd.WithDecodeAllCapLimit(true))
	if err != nil {
		panic("exdatum: zstd decoder initialization failed: " + err.Error())
	}
}

// compressDatum turns a plain compact value into a compressed one, or fails
// with errIncompressible if that would not make it smaller.
func compressDatum(flat []byte, method Compression) ([]byte, error) {
	var out []byte
	switch method {
	case CompressionLZ4:
		out = make([]byte, compressedHeaderSize+lz4.CompressBlockBound(len(flat)))
		n, err := lz4.CompressBlock(flat, out[compressedHeaderSize:], nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if n == 0 {
			return nil, errIncompressible
		}
		out = out[:compressedHeaderSize+n]
	case CompressionZstd:
		out = make([]byte, compressedHeaderSize, compressedHeaderSize+len(flat))
		out = zstdEncoder.EncodeAll(flat, out)
	default:
		return nil, fmt.Errorf("unsupported compression method %v", method)
	}
	if len(out) >= len(flat) {
		return nil, errIncompressible
	}
	binary.LittleEndian.PutUint32(out[0:], packLengthWord(formCompressed, len(out)))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(flat)))
	out[8] = byte(method)
	out[9], out[10], out[11] = 0, 0, 0
	return out, nil
}

func decompressDatum(data []byte) ([]byte, error) {
	if len(data) < compressedHeaderSize {
		return nil, dataErrf(data, 0, nil, "invalid compressed value: %d bytes, header needs %d", len(data), compressedHeaderSize)
	}
	rawSize := int(binary.LittleEndian.Uint32(data[4:]))
	method := Compression(data[8])
	if data[9]|data[10]|data[11] != 0 {
		return nil, dataErrf(data, 9, nil, "invalid compressed value: reserved header bits set")
	}
	if rawSize > MaxCompactSize {
		return nil, dataErrf(data, 4, nil, "invalid compressed value: raw size %d exceeds %d", rawSize, MaxCompactSize)
	}
	payload := data[compressedHeaderSize:]

	var out []byte
	switch method {
	case CompressionLZ4:
		if rawSize > maxLZ4Ratio*len(payload) {
			return nil, dataErrf(data, 4, nil, "invalid compressed value: raw size %d is impossible for %d bytes of lz4", rawSize, len(payload))
		}
		out = make([]byte, rawSize)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, dataErrf(data, compressedHeaderSize, err, "invalid compressed value: lz4")
		}
		out = out[:n]
	case CompressionZstd:
		var fh zstd.Header
		if err := fh.Decode(payload); err != nil {
			return nil, dataErrf(data, compressedHeaderSize, err, "invalid compressed value: zstd frame header")
		}
		if fh.HasFCS && fh.FrameContentSize != uint64(rawSize) {
			return nil, dataErrf(data, 4, nil, "invalid compressed value: zstd frame holds %d bytes, expected %d", fh.FrameContentSize, rawSize)
		}
		// the cap limit makes DecodeAll fail instead of growing past rawSize
		var err error
		out, err = zstdDecoder.DecodeAll(payload, make([]byte, 0, rawSize))
		if err != nil {
			return nil, dataErrf(data, compressedHeaderSize, err, "invalid compressed value: zstd")
		}
	default:
		return nil, dataErrf(data, 8, nil, "invalid compressed value: unknown method %v", method)
	}
	if len(out) != rawSize {
		return nil, dataErrf(data, 4, nil, "invalid compressed value: decompressed to %d bytes, expected %d", len(out), rawSize)
	}
	return out, nil
}

type externalPointer struct {
	RawSize    int
	ID         uint64
	StoredSize int
	Checksum   uint64
}

func (p externalPointer) encode() []byte {
	buf := make([]byte, externalPointerSize)
	binary.LittleEndian.PutUint32(buf[0:], packLengthWord(formExternal, externalPointerSize))
	binary.LittleEndian.PutUint32(buf[4:], uint32(p.RawSize))
	binary.LittleEndian.PutUint64(buf[8:], p.ID)
	binary.LittleEndian.PutUint32(buf[16:], uint32(p.StoredSize))
	binary.LittleEndian.PutUint64(buf[24:], p.Checksum)
	return buf
}

func decodeExternalPointer(data []byte) (externalPointer, error) {
	if len(data) != externalPointerSize {
		return externalPointer{}, dataErrf(data, 0, nil, "invalid external pointer: %d bytes, expected %d", len(data), externalPointerSize)
	}
	if reserved := binary.LittleEndian.Uint32(data[20:]); reserved != 0 {
		return externalPointer{}, dataErrf(data, 20, nil, "invalid external pointer: reserved bits %x", reserved)
	}
	return externalPointer{
		RawSize:    int(binary.LittleEndian.Uint32(data[4:])),
		ID:         binary.LittleEndian.Uint64(data[8:]),
		StoredSize: int(binary.LittleEndian.Uint32(data[16:])),
		Checksum:   binary.LittleEndian.Uint64(data[24:]),
	}, nil
}

// Detoast returns the plain compact form of raw, decompressing it and
// fetching it from the external store as needed. Plain input is returned
// trimmed to its declared length, without copying. A nil Codec can unpack
// everything except external pointers.
func (c *Codec) Detoast(raw []byte) ([]byte, error) {
	prev := formPlain
	expectedRaw := -1
	for {
		f, data, err := readLengthWord(raw)
		if err != nil {
			return nil, err
		}
		switch {
		case prev == formCompressed && f != formPlain,
			prev == formExternal && f == formExternal:
			return nil, dataErrf(raw, 0, nil, "invalid compact value: %v form nested in %v form", f, prev)
		}
		if f == formPlain {
			if expectedRaw >= 0 && len(data) != expectedRaw {
				return nil, dataErrf(data, 0, nil, "invalid external value: %d bytes, pointer says %d", len(data), expectedRaw)
			}
			return data, nil
		}

		metrics().observeDetoast(f)
		logger().Debug("detoast", zap.Stringer("form", f), zap.Int("size", len(data)))
		switch f {
		case formCompressed:
			raw, err = decompressDatum(data)
		case formExternal:
			var ptr externalPointer
			ptr, err = decodeExternalPointer(data)
			if err == nil {
				expectedRaw = ptr.RawSize
				raw, err = c.fetchExternal(data, ptr)
			}
		default:
			panic("unreachable")
		}
		if err != nil {
			return nil, err
		}
		prev = f
	}
}

func (c *Codec) fetchExternal(data []byte, ptr externalPointer) ([]byte, error) {
	if c == nil || c.store == nil {
		return nil, ErrNoExternalStore
	}
	stored, err := c.store.Get(ptr.ID)
	if err != nil {
		return nil, fmt.Errorf("exdatum: fetching external value %d: %w", ptr.ID, err)
	}
	if len(stored) != ptr.StoredSize {
		return nil, dataErrf(data, 16, nil, "invalid external value %d: %d bytes stored, pointer says %d", ptr.ID, len(stored), ptr.StoredSize)
	}
	if sum := xxhash.Sum64(stored); sum != ptr.Checksum {
		return nil, dataErrf(data, 24, nil, "invalid external value %d: checksum %016x, pointer says %016x", ptr.ID, sum, ptr.Checksum)
	}
	return stored, nil
}

func (c *Codec) storeExternal(data []byte, rawSize int) ([]byte, error) {
	id, err := c.store.Put(data)
	if err != nil {
		return nil, fmt.Errorf("exdatum: storing external value: %w", err)
	}
	ptr := externalPointer{
		RawSize:    rawSize,
		ID:         id,
		StoredSize: len(data),
		Checksum:   xxhash.Sum64(data),
	}
	logger().Debug("stored external value", zap.Uint64("id", id), zap.Int("size", len(data)))
	return ptr.encode(), nil
}
