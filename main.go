// Command dex-exfilimagestego embeds data in PNG images using LSB
// steganography and recovers it again. It can also generate fake records as
// the payload and simulate (without any network traffic) how the result would
// be staged for exfiltration, for detection-engineering exercises.
//
// Embed:   dex-exfilimagestego [flags] cover.png
// Extract: dex-exfilimagestego -x [flags] stego.png
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
)

func main() {
	var (
		outputPath = flag.String("o", "output.png", "output path (PNG when embedding, raw payload when extracting)")
		dataFile   = flag.String("d", "", "file containing the payload to embed; fake data is generated when omitted")
		generate   = flag.Bool("g", false, "generate fake data for embedding, overrides -d")
		dataSize   = flag.Int("s", 1024, "size of generated fake data in bytes, used with -g")
		protocol   = flag.String("e", "", "simulated exfiltration protocol after embedding: http or dns")
		extract    = flag.Bool("x", false, "extract a payload instead of embedding")
		bits       = flag.Uint("b", 1, "low-order bits overwritten per channel sample (1-4)")
		useAlpha   = flag.Bool("a", false, "also carry data in the alpha channel of RGBA images")
		key        = flag.String("k", "", "obfuscation key; payload is XORed with it (reversible masking, not encryption)")
		compress   = flag.Bool("z", false, "zstd-compress the payload before embedding (and decompress after extraction)")
		canvas     = flag.String("canvas", "", "generate a WxH noise cover instead of reading one (embed only)")
		seed       = flag.Uint64("seed", 0, "seed for fake data generation, 0 picks a random one")
	)
	flag.Parse()

	cfg := EmbedConfig{
		BitsPerChannel:  clampBits(*bits),
		UseAlphaChannel: *useAlpha,
	}
	if *key != "" {
		cfg.ObfuscationKey = []byte(*key)
	}

	if *extract {
		if flag.NArg() != 1 {
			log.Fatal("extraction needs exactly one stego image path")
		}
		if err := extractFile(flag.Arg(0), *outputPath, cfg, *compress); err != nil {
			log.Fatalf("extraction failed: %v", err)
		}
		return
	}

	coverPNG, err := loadCover(flag.Args(), *canvas, *useAlpha)
	if err != nil {
		log.Fatalf("cover image: %v", err)
	}

	payload, err := resolvePayload(*dataFile, *generate, *dataSize, *seed)
	if err != nil {
		log.Fatalf("payload: %v", err)
	}
	if *compress {
		compressed, err := compressPayload(payload)
		if err != nil {
			log.Fatalf("payload compression failed: %v", err)
		}
		log.Printf("compressed payload %d -> %d bytes", len(payload), len(compressed))
		payload = compressed
	}

	stego, err := Embed(coverPNG, payload, cfg)
	if err != nil {
		log.Fatalf("embedding failed: %v", err)
	}
	if err := os.WriteFile(*outputPath, stego, 0o644); err != nil {
		log.Fatalf("writing %s: %v", *outputPath, err)
	}
	log.Printf("data successfully embedded in %s", *outputPath)

	if *protocol != "" {
		if err := simulateExfiltration(*protocol, payload); err != nil {
			log.Fatalf("simulation failed: %v", err)
		}
	}
}

// clampBits narrows the -b flag value without truncation: anything outside
// 1..4 becomes 0, which config validation rejects, rather than aliasing a
// valid density (e.g. 257 silently wrapping to 1).
func clampBits(v uint) uint8 {
	if v > 4 {
		return 0
	}
	return uint8(v)
}

// loadCover returns the cover PNG bytes: either the file named by the single
// positional argument, or a synthesized noise canvas when -canvas is given.
func loadCover(args []string, canvas string, useAlpha bool) ([]byte, error) {
	if canvas != "" {
		var w, h int
		if _, err := fmt.Sscanf(canvas, "%dx%d", &w, &h); err != nil {
			return nil, fmt.Errorf("bad canvas spec %q, want WxH", canvas)
		}
		channels := 3
		if useAlpha {
			channels = 4
		}
		plane, err := noiseCanvas(w, h, channels, int64(w)<<32|int64(h))
		if err != nil {
			return nil, err
		}
		return plane.EncodePNG()
	}

	if len(args) != 1 {
		return nil, fmt.Errorf("need exactly one cover image path (or -canvas WxH)")
	}
	path := args[0]
	if !strings.HasSuffix(strings.ToLower(path), ".png") {
		return nil, fmt.Errorf("input image must be a PNG file")
	}
	return os.ReadFile(path)
}

// resolvePayload picks the payload source: -g wins over -d, and with neither
// set a default-sized block of fake data is generated.
func resolvePayload(dataFile string, generate bool, size int, seed uint64) ([]byte, error) {
	switch {
	case generate:
		data, err := generateFakeData(size, seed)
		if err != nil {
			return nil, err
		}
		log.Printf("generated %d bytes of fake data", size)
		return data, nil
	case dataFile != "":
		data, err := os.ReadFile(dataFile)
		if err != nil {
			return nil, err
		}
		log.Printf("read %d bytes from %s", len(data), dataFile)
		return data, nil
	default:
		log.Print("no data source specified, generating default fake data (1024 bytes)")
		return generateFakeData(1024, seed)
	}
}

func extractFile(stegoPath, outputPath string, cfg EmbedConfig, compressed bool) error {
	stego, err := os.ReadFile(stegoPath)
	if err != nil {
		return err
	}
	payload, err := Extract(stego, cfg)
	if err != nil {
		return err
	}
	if compressed {
		if payload, err = decompressPayload(payload); err != nil {
			return err
		}
	}
	if err := os.WriteFile(outputPath, payload, 0o644); err != nil {
		return err
	}
	log.Printf("extracted %d bytes to %s", len(payload), outputPath)
	return nil
}
