// Copyright (c) 2024 Ember Data Inc. All rights reserved.

package goember

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Block envelope written by the engine for compress=1:
//
//	checksum    16 bytes
//	method       1 byte
//	compressed   uint32 LE, size of method, both sizes and the payload
//	raw          uint32 LE, size of the decompressed payload
//	payload
const (
	blockChecksumSize = 16
	blockHeaderSize   = 9
	maxBlockSize      = 1 << 30

	compressionNone byte = 0x02
	compressionLZ4  byte = 0x82
	compressionZSTD byte = 0x90
)

var (
	zstdDecoderOnce sync.Once
	zstdDecoder     *zstd.Decoder
	errZstdDecoder  error
)

// getZstdDecoder returns the process wide stateless decoder; DecodeAll is
// safe for concurrent use.
func getZstdDecoder() (*zstd.Decoder, error) {
	zstdDecoderOnce.Do(func() {
		zstdDecoder, errZstdDecoder = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
	return zstdDecoder, errZstdDecoder
}

// blockReader turns a stream of compressed blocks into the raw result
// stream. Blocks are decoded one at a time as the consumer reads.
type blockReader struct {
	src    io.ReadCloser
	header [blockChecksumSize + blockHeaderSize]byte
	comp   []byte
	raw    []byte
	pos    int
	err    error
}

func newBlockReader(src io.ReadCloser) *blockReader {
	return &blockReader{src: src}
}

func (r *blockReader) Read(p []byte) (int, error) {
	for r.pos >= len(r.raw) {
		if r.err != nil {
			return 0, r.err
		}
		if err := r.nextBlock(); err != nil {
			r.err = err
			r.raw, r.pos = r.raw[:0], 0
		}
	}
	n := copy(p, r.raw[r.pos:])
	r.pos += n
	return n, nil
}

func (r *blockReader) Close() error {
	return r.src.Close()
}

func (r *blockReader) nextBlock() error {
	if _, err := io.ReadFull(r.src, r.header[:]); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return corruptBlock(fmt.Errorf("truncated block header: %w", err))
	}
	h := r.header[blockChecksumSize:]
	method := h[0]
	compressedSize := binary.LittleEndian.Uint32(h[1:5])
	rawSize := binary.LittleEndian.Uint32(h[5:9])
	if compressedSize < blockHeaderSize || compressedSize > maxBlockSize || rawSize > maxBlockSize {
		return corruptBlock(fmt.Errorf("block sizes out of range: compressed %d, raw %d", compressedSize, rawSize))
	}
	payloadSize := int(compressedSize) - blockHeaderSize
	if cap(r.comp) < payloadSize {
		r.comp = make([]byte, payloadSize)
	}
	r.comp = r.comp[:payloadSize]
	if _, err := io.ReadFull(r.src, r.comp); err != nil {
		return corruptBlock(fmt.Errorf("truncated block payload: %w", err))
	}
	if cap(r.raw) < int(rawSize) {
		r.raw = make([]byte, rawSize)
	}
	r.raw = r.raw[:rawSize]
	r.pos = 0

	switch method {
	case compressionNone:
		if payloadSize != int(rawSize) {
			return corruptBlock(fmt.Errorf("uncompressed block of %d bytes declares %d", payloadSize, rawSize))
		}
		copy(r.raw, r.comp)
	case compressionLZ4:
		n, err := lz4.UncompressBlock(r.comp, r.raw)
		if err != nil {
			return corruptBlock(err)
		}
		if n != int(rawSize) {
			return corruptBlock(fmt.Errorf("lz4 block decoded to %d bytes, expected %d", n, rawSize))
		}
	case compressionZSTD:
		dec, err := getZstdDecoder()
		if err != nil {
			return corruptBlock(err)
		}
		out, err := dec.DecodeAll(r.comp, r.raw[:0])
		if err != nil {
			return corruptBlock(err)
		}
		if len(out) != int(rawSize) {
			return corruptBlock(fmt.Errorf("zstd block decoded to %d bytes, expected %d", len(out), rawSize))
		}
		r.raw = out
	default:
		return corruptBlock(fmt.Errorf("unknown compression method 0x%02x", method))
	}
	return nil
}

func corruptBlock(cause error) error {
	return &EmberError{
		Number:      ErrCodeCompressedBlock,
		Message:     errMsgCompressedBlockCorrupt,
		MessageArgs: []interface{}{cause},
		cause:       cause,
	}
}
