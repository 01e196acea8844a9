// PNG decode/encode for the steganographic carrier. Only non-interlaced
// 8-bit truecolor (with or without alpha) images are accepted: LSB splicing
// needs direct access to raw channel samples, and palette or sub-byte layouts
// would not survive the round trip losslessly.

package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/zlib"
)

const pngSignature = "\x89PNG\r\n\x1a\n"

// maxSampleBytes caps the decoded sample allocation (1 GiB, e.g. 16384x16384
// RGBA). IHDR dimensions are attacker-controlled and arrive before any pixel
// data, so the claimed size must be bounded before anything is allocated.
const maxSampleBytes = 1 << 30

// IHDR color types we carry data in.
const (
	colorTypeRGB  = 2
	colorTypeRGBA = 6
)

// Scanline filter types per the PNG spec.
const (
	filterNone    = 0
	filterSub     = 1
	filterUp      = 2
	filterAverage = 3
	filterPaeth   = 4
)

// ancillaryChunk is a non-critical chunk preserved verbatim across a
// decode/encode round trip. afterIDAT keeps it on the correct side of the
// image data when the file is reassembled.
type ancillaryChunk struct {
	typ       string
	data      []byte
	afterIDAT bool
}

// PixelPlane is the flat sample view of a decoded image: row-major pixels,
// channel-major (R,G,B[,A]) within each pixel. The traversal order of Samples
// is the embedding wire format; it must be identical on the decode and encode
// paths.
type PixelPlane struct {
	Width    int
	Height   int
	Channels int // 3 (RGB) or 4 (RGBA)
	Samples  []byte

	ancillary []ancillaryChunk
}

// NewPixelPlane allocates a zeroed canvas. Used for generated cover images.
func NewPixelPlane(width, height, channels int) (*PixelPlane, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("new plane: invalid dimensions %dx%d", width, height)
	}
	if channels != 3 && channels != 4 {
		return nil, fmt.Errorf("new plane: invalid channel count %d", channels)
	}
	return &PixelPlane{
		Width:    width,
		Height:   height,
		Channels: channels,
		Samples:  make([]byte, width*height*channels),
	}, nil
}

// DecodePNG parses pngBytes into a PixelPlane. Per-chunk CRC failures and
// malformed structure report ErrCorruptImage; palette, interlaced or
// non-8-bit images report ErrUnsupportedFormat.
func DecodePNG(pngBytes []byte) (*PixelPlane, error) {
	r := bytes.NewReader(pngBytes)

	sig := make([]byte, len(pngSignature))
	if _, err := io.ReadFull(r, sig); err != nil || string(sig) != pngSignature {
		return nil, fmt.Errorf("decode png: bad signature: %w", ErrCorruptImage)
	}

	var (
		plane    *PixelPlane
		idat     bytes.Buffer
		sawIHDR  bool
		sawIDAT  bool
		sawIEND  bool
		trailing []ancillaryChunk
	)

	for !sawIEND {
		typ, data, err := readChunk(r)
		if err != nil {
			return nil, err
		}

		switch typ {
		case "IHDR":
			if sawIHDR {
				return nil, fmt.Errorf("decode png: duplicate IHDR: %w", ErrCorruptImage)
			}
			sawIHDR = true
			plane, err = parseIHDR(data)
			if err != nil {
				return nil, err
			}
		case "IDAT":
			if !sawIHDR {
				return nil, fmt.Errorf("decode png: IDAT before IHDR: %w", ErrCorruptImage)
			}
			sawIDAT = true
			idat.Write(data)
		case "IEND":
			sawIEND = true
		case "PLTE":
			// Truecolor images may carry a suggested palette; it has no
			// bearing on the sample data, keep it with the ancillaries.
			trailing = append(trailing, ancillaryChunk{typ: typ, data: data, afterIDAT: sawIDAT})
		default:
			if !sawIHDR {
				return nil, fmt.Errorf("decode png: chunk %q before IHDR: %w", typ, ErrCorruptImage)
			}
			trailing = append(trailing, ancillaryChunk{typ: typ, data: data, afterIDAT: sawIDAT})
		}
	}

	if plane == nil || !sawIDAT {
		return nil, fmt.Errorf("decode png: missing image data: %w", ErrCorruptImage)
	}
	plane.ancillary = trailing

	zr, err := zlib.NewReader(&idat)
	if err != nil {
		return nil, fmt.Errorf("decode png: inflate: %w", ErrCorruptImage)
	}
	defer zr.Close()

	rowBytes := plane.Width * plane.Channels
	raw := make([]byte, plane.Height*(1+rowBytes))
	if _, err := io.ReadFull(zr, raw); err != nil {
		return nil, fmt.Errorf("decode png: short pixel data: %w", ErrCorruptImage)
	}

	if err := unfilterScanlines(raw, plane.Samples, plane.Width, plane.Height, plane.Channels); err != nil {
		return nil, err
	}
	return plane, nil
}

// EncodePNG reassembles the plane into a valid PNG. Scanlines are written
// with filter None; correctness never depends on the filter choice, and None
// keeps the encode path trivially reversible. Ancillary chunks captured at
// decode time are emitted verbatim on their original side of the IDAT stream.
func (p *PixelPlane) EncodePNG() ([]byte, error) {
	if len(p.Samples) != p.Width*p.Height*p.Channels {
		return nil, fmt.Errorf("encode png: sample count %d does not match %dx%dx%d",
			len(p.Samples), p.Width, p.Height, p.Channels)
	}

	rowBytes := p.Width * p.Channels
	raw := make([]byte, 0, p.Height*(1+rowBytes))
	for y := 0; y < p.Height; y++ {
		raw = append(raw, filterNone)
		raw = append(raw, p.Samples[y*rowBytes:(y+1)*rowBytes]...)
	}

	var idat bytes.Buffer
	zw := zlib.NewWriter(&idat)
	if _, err := zw.Write(raw); err != nil {
		zw.Close()
		return nil, fmt.Errorf("encode png: deflate: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("encode png: deflate: %w", err)
	}

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], uint32(p.Width))
	binary.BigEndian.PutUint32(ihdr[4:8], uint32(p.Height))
	ihdr[8] = 8 // bit depth
	if p.Channels == 4 {
		ihdr[9] = colorTypeRGBA
	} else {
		ihdr[9] = colorTypeRGB
	}
	// compression, filter and interlace methods are all zero

	var out bytes.Buffer
	out.WriteString(pngSignature)
	writeChunk(&out, "IHDR", ihdr)
	for _, c := range p.ancillary {
		if !c.afterIDAT {
			writeChunk(&out, c.typ, c.data)
		}
	}
	writeChunk(&out, "IDAT", idat.Bytes())
	for _, c := range p.ancillary {
		if c.afterIDAT {
			writeChunk(&out, c.typ, c.data)
		}
	}
	writeChunk(&out, "IEND", nil)
	return out.Bytes(), nil
}

// readChunk reads one chunk and verifies its CRC. The CRC covers the type
// bytes and the data, not the length field.
func readChunk(r *bytes.Reader) (string, []byte, error) {
	var head [8]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return "", nil, fmt.Errorf("decode png: truncated chunk header: %w", ErrCorruptImage)
	}
	length := binary.BigEndian.Uint32(head[0:4])
	typ := string(head[4:8])
	if length > uint32(r.Len()) {
		return "", nil, fmt.Errorf("decode png: chunk %q length %d exceeds file: %w", typ, length, ErrCorruptImage)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return "", nil, fmt.Errorf("decode png: truncated chunk %q: %w", typ, ErrCorruptImage)
	}

	var crcBuf [4]byte
	if _, err := io.ReadFull(r, crcBuf[:]); err != nil {
		return "", nil, fmt.Errorf("decode png: truncated CRC for %q: %w", typ, ErrCorruptImage)
	}
	crc := crc32.NewIEEE()
	crc.Write(head[4:8])
	crc.Write(data)
	if crc.Sum32() != binary.BigEndian.Uint32(crcBuf[:]) {
		return "", nil, fmt.Errorf("decode png: CRC mismatch in chunk %q: %w", typ, ErrCorruptImage)
	}
	return typ, data, nil
}

func writeChunk(b *bytes.Buffer, typ string, data []byte) {
	var head [4]byte
	binary.BigEndian.PutUint32(head[:], uint32(len(data)))
	b.Write(head[:])
	b.WriteString(typ)
	b.Write(data)

	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	binary.BigEndian.PutUint32(head[:], crc.Sum32())
	b.Write(head[:])
}

func parseIHDR(data []byte) (*PixelPlane, error) {
	if len(data) != 13 {
		return nil, fmt.Errorf("decode png: IHDR length %d: %w", len(data), ErrCorruptImage)
	}
	width := binary.BigEndian.Uint32(data[0:4])
	height := binary.BigEndian.Uint32(data[4:8])
	depth := data[8]
	colorType := data[9]
	compression := data[10]
	filterMethod := data[11]
	interlace := data[12]

	if width == 0 || height == 0 || width > 1<<31-1 || height > 1<<31-1 {
		return nil, fmt.Errorf("decode png: invalid dimensions %dx%d: %w", width, height, ErrCorruptImage)
	}
	if compression != 0 || filterMethod != 0 {
		return nil, fmt.Errorf("decode png: compression=%d filter=%d: %w", compression, filterMethod, ErrCorruptImage)
	}
	if depth != 8 {
		return nil, fmt.Errorf("decode png: bit depth %d: %w", depth, ErrUnsupportedFormat)
	}
	if interlace != 0 {
		return nil, fmt.Errorf("decode png: interlaced image: %w", ErrUnsupportedFormat)
	}

	var channels int
	switch colorType {
	case colorTypeRGB:
		channels = 3
	case colorTypeRGBA:
		channels = 4
	default:
		return nil, fmt.Errorf("decode png: color type %d: %w", colorType, ErrUnsupportedFormat)
	}

	// width and height fit in 31 bits each, so the uint64 product cannot
	// itself overflow; comparing it against the cap keeps the later int
	// conversions and allocations safe.
	if total := uint64(width) * uint64(height) * uint64(channels); total > maxSampleBytes {
		return nil, fmt.Errorf("decode png: %dx%d image claims %d sample bytes, limit %d: %w",
			width, height, total, maxSampleBytes, ErrUnsupportedFormat)
	}

	return &PixelPlane{
		Width:    int(width),
		Height:   int(height),
		Channels: channels,
		Samples:  make([]byte, int(width)*int(height)*channels),
	}, nil
}

// unfilterScanlines reverses the per-row filter and writes the reconstructed
// samples into dst. raw holds height rows of (filterByte || rowBytes).
func unfilterScanlines(raw, dst []byte, width, height, channels int) error {
	rowBytes := width * channels
	bpp := channels // bytes per pixel at 8-bit depth

	var prev []byte
	for y := 0; y < height; y++ {
		line := raw[y*(1+rowBytes) : (y+1)*(1+rowBytes)]
		ft := line[0]
		row := dst[y*rowBytes : (y+1)*rowBytes]
		copy(row, line[1:])

		switch ft {
		case filterNone:
		case filterSub:
			for i := bpp; i < rowBytes; i++ {
				row[i] += row[i-bpp]
			}
		case filterUp:
			if prev != nil {
				for i := 0; i < rowBytes; i++ {
					row[i] += prev[i]
				}
			}
		case filterAverage:
			for i := 0; i < rowBytes; i++ {
				var left, up int
				if i >= bpp {
					left = int(row[i-bpp])
				}
				if prev != nil {
					up = int(prev[i])
				}
				row[i] += byte((left + up) / 2)
			}
		case filterPaeth:
			for i := 0; i < rowBytes; i++ {
				var left, up, upLeft byte
				if i >= bpp {
					left = row[i-bpp]
				}
				if prev != nil {
					up = prev[i]
					if i >= bpp {
						upLeft = prev[i-bpp]
					}
				}
				row[i] += paeth(left, up, upLeft)
			}
		default:
			return fmt.Errorf("decode png: filter type %d in row %d: %w", ft, y, ErrCorruptImage)
		}
		prev = row
	}
	return nil
}

// paeth is the predictor from the PNG spec (section 9.4).
func paeth(a, b, c byte) byte {
	pa := int(b) - int(c)
	pb := int(a) - int(c)
	pc := pa + pb
	if pa < 0 {
		pa = -pa
	}
	if pb < 0 {
		pb = -pb
	}
	if pc < 0 {
		pc = -pc
	}
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}
