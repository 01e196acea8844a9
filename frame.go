// Frame layout embedded in the carrier bit-stream:
//
//	0-3: payload length (big-endian uint32)
//	4-7: CRC-32/IEEE over the payload before obfuscation
//	8-:  payload, XOR-masked when a key is set
//
// The checksum covers the plaintext payload: validating it after the
// keystream is removed is what lets extraction with a wrong key surface as a
// checksum mismatch instead of silently returning garbage.

package main

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// frameOverhead is the fixed header size: length(4) + checksum(4).
const frameOverhead = 8

// buildFrame serializes payload into a frame, applying the XOR keystream
// first when the config carries a key.
func buildFrame(payload []byte, cfg EmbedConfig) []byte {
	sum := crc32.ChecksumIEEE(payload)
	body := xorKeystream(payload, cfg.ObfuscationKey)

	frame := make([]byte, frameOverhead+len(body))
	binary.BigEndian.PutUint32(frame[0:4], uint32(len(body)))
	binary.BigEndian.PutUint32(frame[4:8], sum)
	copy(frame[frameOverhead:], body)
	return frame
}

// parseFrame validates a recovered frame and returns the payload. A checksum
// mismatch means corruption or a config/key that differs from the embedding
// side; it is reported, never repaired.
func parseFrame(frame []byte, cfg EmbedConfig) ([]byte, error) {
	if len(frame) < frameOverhead {
		return nil, fmt.Errorf("parse frame: %d bytes: %w", len(frame), ErrTruncatedStream)
	}
	length := binary.BigEndian.Uint32(frame[0:4])
	want := binary.BigEndian.Uint32(frame[4:8])

	if uint32(len(frame)-frameOverhead) < length {
		return nil, fmt.Errorf("parse frame: declared %d bytes, have %d: %w",
			length, len(frame)-frameOverhead, ErrTruncatedStream)
	}
	body := frame[frameOverhead : frameOverhead+int(length)]

	payload := xorKeystream(body, cfg.ObfuscationKey)
	if got := crc32.ChecksumIEEE(payload); got != want {
		return nil, fmt.Errorf("parse frame: checksum %08x, want %08x: %w", got, want, ErrChecksumMismatch)
	}
	return payload, nil
}
