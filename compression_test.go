package goember

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

func encodeBlock(method byte, payload []byte, rawSize int) []byte {
	var buf bytes.Buffer
	buf.Write(make([]byte, blockChecksumSize))
	buf.WriteByte(method)
	var sizes [8]byte
	binary.LittleEndian.PutUint32(sizes[:4], uint32(len(payload)+blockHeaderSize))
	binary.LittleEndian.PutUint32(sizes[4:], uint32(rawSize))
	buf.Write(sizes[:])
	buf.Write(payload)
	return buf.Bytes()
}

func lz4Block(t *testing.T, raw []byte) []byte {
	t.Helper()
	dst := make([]byte, lz4.CompressBlockBound(len(raw)))
	var c lz4.Compressor
	n, err := c.CompressBlock(raw, dst)
	assertNilF(t, err)
	assertTrueF(t, n > 0, "input is compressible")
	return encodeBlock(compressionLZ4, dst[:n], len(raw))
}

func zstdBlock(t *testing.T, raw []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	assertNilF(t, err)
	defer enc.Close()
	return encodeBlock(compressionZSTD, enc.EncodeAll(raw, nil), len(raw))
}

func TestBlockReaderMethods(t *testing.T) {
	first := []byte(strings.Repeat("id\tname\nint\ttext\n", 20))
	second := []byte(strings.Repeat("1\tAlice\n", 50))
	third := []byte("2\tBob\n")

	var stream bytes.Buffer
	stream.Write(lz4Block(t, first))
	stream.Write(zstdBlock(t, second))
	stream.Write(encodeBlock(compressionNone, third, len(third)))

	r := newBlockReader(io.NopCloser(&stream))
	got, err := io.ReadAll(r)
	assertNilF(t, err)
	want := append(append(append([]byte{}, first...), second...), third...)
	assertDeepEqualE(t, got, want)
	assertNilE(t, r.Close())
}

func TestBlockReaderFeedsCursor(t *testing.T) {
	raw := []byte("n\ttag\nbigint\ttext\n1\ta\n2\tb\n")
	r := newBlockReader(io.NopCloser(bytes.NewReader(zstdBlock(t, raw))))
	rc, err := newResultCursor(r, 0, "l")
	assertNilF(t, err)
	var sum int64
	for rc.Next() {
		v, err := rc.GetInt64(1)
		assertNilF(t, err)
		sum += v
	}
	assertNilE(t, rc.Err())
	assertEqualE(t, sum, int64(3))
}

func TestBlockReaderCorruption(t *testing.T) {
	testcases := map[string][]byte{
		"unknown method":   encodeBlock(0x42, []byte("abc"), 3),
		"size mismatch":    encodeBlock(compressionNone, []byte("abc"), 4),
		"truncated header": make([]byte, blockChecksumSize+3),
		"truncated payload": func() []byte {
			b := encodeBlock(compressionNone, []byte("abcdef"), 6)
			return b[:len(b)-2]
		}(),
	}
	for name, stream := range testcases {
		t.Run(name, func(t *testing.T) {
			r := newBlockReader(io.NopCloser(bytes.NewReader(stream)))
			_, err := io.ReadAll(r)
			assertErrIsE(t, err, &EmberError{Number: ErrCodeCompressedBlock})
			assertEqualE(t, KindOf(err), ProtocolError)
		})
	}
}

func TestBlockReaderEmptyStream(t *testing.T) {
	r := newBlockReader(io.NopCloser(bytes.NewReader(nil)))
	got, err := io.ReadAll(r)
	assertNilF(t, err)
	assertEqualE(t, len(got), 0)
}
