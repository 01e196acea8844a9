// LSB steganographic engine: Embed splices a framed payload into the
// low-order bits of a PNG's channel samples, Extract recovers it. Both sides
// walk the samples in the same order (row-major, channel-major, alpha skipped
// unless configured otherwise); that shared traversal is the wire format, and
// changing it breaks every image embedded before the change.

package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat marks PNG variants the codec does not carry data
	// in: palette images, interlaced images, bit depths other than 8.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrCorruptImage marks structurally broken PNG input (bad signature,
	// chunk CRC failure, truncated or undersized pixel data).
	ErrCorruptImage = errors.New("corrupt image")
	// ErrChecksumMismatch means the recovered frame failed validation:
	// corruption, or extraction with a config/key that differs from the one
	// used to embed.
	ErrChecksumMismatch = errors.New("payload checksum mismatch")
	// ErrTruncatedStream means the frame header declares more payload than
	// the image can hold; usually a sign the image carries no frame at all.
	ErrTruncatedStream = errors.New("truncated payload stream")
	// ErrInvalidConfig rejects parameter combinations before any work runs.
	ErrInvalidConfig = errors.New("invalid embedding config")
)

// EmbedConfig is the shared contract between the embedding and extracting
// sides. Both must use identical values; it is never mutated once an
// operation starts.
type EmbedConfig struct {
	// BitsPerChannel is how many low-order bits of each sample are
	// overwritten, 1..4. Higher values trade visual fidelity for capacity.
	BitsPerChannel uint8
	// UseAlphaChannel admits the alpha samples of RGBA images into the
	// traversal. Ignored for RGB covers.
	UseAlphaChannel bool
	// ObfuscationKey, when non-empty, XORs the payload with a repeating
	// keystream before framing. Reversible masking, not encryption.
	ObfuscationKey []byte
}

func (cfg EmbedConfig) validate() error {
	if cfg.BitsPerChannel < 1 || cfg.BitsPerChannel > 4 {
		return fmt.Errorf("bits per channel %d not in 1..4: %w", cfg.BitsPerChannel, ErrInvalidConfig)
	}
	return nil
}

// carrierIter yields sample indices in embedding order. The same iterator
// drives both Embed and Extract so the traversal can never diverge.
type carrierIter struct {
	limit     int
	idx       int
	skipAlpha bool
}

func newCarrierIter(p *PixelPlane, cfg EmbedConfig) *carrierIter {
	return &carrierIter{
		limit:     len(p.Samples),
		skipAlpha: p.Channels == 4 && !cfg.UseAlphaChannel,
	}
}

func (it *carrierIter) next() (int, bool) {
	for it.idx < it.limit {
		i := it.idx
		it.idx++
		if it.skipAlpha && i%4 == 3 {
			continue
		}
		return i, true
	}
	return 0, false
}

// Embed hides payload inside coverPNG and returns the resulting PNG bytes.
// The cover is decoded fresh, validated against capacity before any sample is
// modified, and re-encoded with ancillary chunks intact.
func Embed(coverPNG, payload []byte, cfg EmbedConfig) ([]byte, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	plane, err := DecodePNG(coverPNG)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if err := ensureFits(plane, cfg, len(payload)); err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	frame := buildFrame(payload, cfg)
	br := newBitReader(frame)
	it := newCarrierIter(plane, cfg)
	mask := byte(1<<cfg.BitsPerChannel) - 1

	for {
		group, ok := br.readGroup(cfg.BitsPerChannel)
		if !ok {
			break
		}
		i, ok := it.next()
		if !ok {
			// ensureFits guarantees enough carriers for the frame.
			return nil, fmt.Errorf("embed: ran out of samples at bit %d", len(frame)*8-br.bitsLeft())
		}
		plane.Samples[i] = plane.Samples[i]&^mask | group
	}

	out, err := plane.EncodePNG()
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return out, nil
}

// Extract recovers a payload previously embedded with the same config. The
// frame header is read first to learn the payload length, then exactly that
// many payload bytes are collected and validated.
func Extract(stegoPNG []byte, cfg EmbedConfig) ([]byte, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	plane, err := DecodePNG(stegoPNG)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	it := newCarrierIter(plane, cfg)
	mask := byte(1<<cfg.BitsPerChannel) - 1

	var buf bytes.Buffer
	bw := newBitWriter(&buf)
	collect := func(totalBytes int) error {
		for buf.Len() < totalBytes {
			i, ok := it.next()
			if !ok {
				return fmt.Errorf("extract: image exhausted at %d of %d bytes: %w",
					buf.Len(), totalBytes, ErrTruncatedStream)
			}
			bw.writeBits(plane.Samples[i]&mask, cfg.BitsPerChannel)
		}
		return nil
	}

	if err := collect(frameOverhead); err != nil {
		return nil, err
	}
	header := buf.Bytes()[:frameOverhead]
	length := int(binary.BigEndian.Uint32(header[0:4]))
	if frameOverhead+length > rawCapacity(plane, cfg) {
		return nil, fmt.Errorf("extract: declared payload of %d bytes exceeds image capacity: %w",
			length, ErrTruncatedStream)
	}

	if err := collect(frameOverhead + length); err != nil {
		return nil, err
	}
	payload, err := parseFrame(buf.Bytes()[:frameOverhead+length], cfg)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	return payload, nil
}
