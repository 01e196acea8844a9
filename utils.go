package main

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"runtime"

	"github.com/klauspost/compress/zstd"
)

// bitWriter writes bits to a bytes.Buffer (msb-first in each byte).
type bitWriter struct {
	buf  *bytes.Buffer
	acc  byte
	nbit uint8
}

func newBitWriter(buf *bytes.Buffer) *bitWriter {
	return &bitWriter{buf: buf}
}

// writeBits writes the low n bits of v, msb-first. Full bytes are flushed to
// the buffer as they complete.
func (bw *bitWriter) writeBits(v byte, n uint8) {
	for i := n; i > 0; i-- {
		bw.acc <<= 1
		if v&(1<<(i-1)) != 0 {
			bw.acc |= 1
		}
		bw.nbit++
		if bw.nbit == 8 {
			bw.buf.WriteByte(bw.acc)
			bw.acc = 0
			bw.nbit = 0
		}
	}
}

// bitReader reads msb-first bit groups from a byte slice.
type bitReader struct {
	data []byte
	pos  int
	nbit uint8 // bits consumed from data[pos]
}

func newBitReader(data []byte) *bitReader {
	return &bitReader{data: data}
}

func (br *bitReader) bitsLeft() int {
	return (len(br.data)-br.pos)*8 - int(br.nbit)
}

// readGroup returns the next n bits as the low bits of a byte, first bit in
// the most significant position. When fewer than n bits remain, the group is
// zero-padded on the right; ok is false once the stream is fully drained.
func (br *bitReader) readGroup(n uint8) (group byte, ok bool) {
	if br.bitsLeft() == 0 {
		return 0, false
	}
	for i := uint8(0); i < n; i++ {
		group <<= 1
		if br.pos < len(br.data) {
			if br.data[br.pos]&(1<<(7-br.nbit)) != 0 {
				group |= 1
			}
			br.nbit++
			if br.nbit == 8 {
				br.nbit = 0
				br.pos++
			}
		}
	}
	return group, true
}

// xorKeystream applies a repeating XOR of key over data and returns the
// result. A nil or empty key returns data unchanged. The transform is its own
// inverse.
func xorKeystream(data, key []byte) []byte {
	if len(key) == 0 {
		return data
	}
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ key[i%len(key)]
	}
	return out
}

// compressPayload zstd-compresses the payload before embedding. Boundary-side
// transform: the codec never sees it.
func compressPayload(raw []byte) ([]byte, error) {
	var b bytes.Buffer
	enc, err := zstd.NewWriter(&b, zstd.WithEncoderConcurrency(runtime.NumCPU()))
	if err != nil {
		return nil, err
	}
	if _, err := enc.Write(raw); err != nil {
		enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func decompressPayload(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	plain, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return plain, nil
}

// noiseCanvas fills a fresh plane with pseudo-random pixel data so generated
// covers do not present flat regions where LSB changes would stand out.
// Alpha stays fully opaque.
func noiseCanvas(width, height, channels int, seed int64) (*PixelPlane, error) {
	p, err := NewPixelPlane(width, height, channels)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(seed))
	for i := range p.Samples {
		if channels == 4 && i%4 == 3 {
			p.Samples[i] = 0xFF
			continue
		}
		p.Samples[i] = byte(rng.Intn(256))
	}
	return p, nil
}
