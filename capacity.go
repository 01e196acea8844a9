package main

import "fmt"

// CapacityError reports a payload that cannot fit in the cover image. Needed
// counts the payload plus the frame header; Available is the total byte
// capacity of the eligible samples at the configured density.
type CapacityError struct {
	Needed    int
	Available int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("payload needs %d bytes, cover image holds %d", e.Needed, e.Available)
}

// eligibleSamples counts the channel samples the traversal may touch: every
// sample for RGB, alpha excluded for RGBA unless the config opts in.
func eligibleSamples(p *PixelPlane, cfg EmbedConfig) int {
	perPixel := p.Channels
	if p.Channels == 4 && !cfg.UseAlphaChannel {
		perPixel = 3
	}
	return p.Width * p.Height * perPixel
}

// rawCapacity is the whole-byte capacity of the eligible samples, header
// included.
func rawCapacity(p *PixelPlane, cfg EmbedConfig) int {
	return eligibleSamples(p, cfg) * int(cfg.BitsPerChannel) / 8
}

// Capacity returns the maximum payload size in bytes a plane can carry under
// cfg, after the frame header is accounted for.
func Capacity(p *PixelPlane, cfg EmbedConfig) int {
	c := rawCapacity(p, cfg) - frameOverhead
	if c < 0 {
		return 0
	}
	return c
}

// ensureFits rejects oversized payloads before any sample is touched, so a
// failed embed never leaves a half-mutated plane behind.
func ensureFits(p *PixelPlane, cfg EmbedConfig, payloadLen int) error {
	needed := payloadLen + frameOverhead
	available := rawCapacity(p, cfg)
	if needed > available {
		return &CapacityError{Needed: needed, Available: available}
	}
	return nil
}
