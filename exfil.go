// Staged-transmission formatters for the exfiltration simulation. These only
// shape the payload the way the named protocol would carry it and report the
// staging; nothing is ever sent anywhere.

package main

import (
	"encoding/base32"
	"encoding/base64"
	"fmt"
	"log"
	"strings"
)

const (
	// httpChunkSize is the payload slice carried per simulated POST body.
	httpChunkSize = 4096

	// DNS limits: 63 octets per label, 253 for a full name.
	dnsMaxLabel = 63
	dnsMaxName  = 253
)

// dnsEncoding is unpadded base32; its alphabet is valid in hostnames, where
// base64's '+', '/' and '=' are not.
var dnsEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// httpExfilBodies splits the payload into the base64 request bodies a staged
// HTTP exfiltration would POST, one element per request.
func httpExfilBodies(payload []byte) []string {
	var bodies []string
	for off := 0; off < len(payload); off += httpChunkSize {
		end := off + httpChunkSize
		if end > len(payload) {
			end = len(payload)
		}
		bodies = append(bodies, base64.StdEncoding.EncodeToString(payload[off:end]))
	}
	return bodies
}

// dnsExfilQueries encodes the payload as base32 and packs it into query names
// under domain, as many ≤63-char labels per query as fit the 253-char name
// limit. Joining the data labels of every query in order and decoding
// recovers the payload.
func dnsExfilQueries(payload []byte, domain string) []string {
	encoded := strings.ToLower(dnsEncoding.EncodeToString(payload))

	var queries []string
	for len(encoded) > 0 {
		var labels []string
		room := dnsMaxName - len(domain) - 1 // dot before the domain
		if room < 2 {
			// Domain leaves no room for even a one-char data label.
			return nil
		}
		// room >= 2 guarantees every pass takes at least one character,
		// so each query makes progress.
		for len(encoded) > 0 && room >= 2 {
			n := dnsMaxLabel
			if n > len(encoded) {
				n = len(encoded)
			}
			if n > room-1 { // label plus its separating dot
				n = room - 1
			}
			labels = append(labels, encoded[:n])
			encoded = encoded[n:]
			room -= n + 1
		}
		queries = append(queries, strings.Join(labels, ".")+"."+domain)
	}
	return queries
}

// simulateExfiltration logs how the payload would be staged over the chosen
// protocol. Simulation only: no connection is opened and no data leaves the
// process, matching the exercise's safety contract.
func simulateExfiltration(protocol string, payload []byte) error {
	switch protocol {
	case "http":
		bodies := httpExfilBodies(payload)
		log.Printf("simulating HTTP exfiltration: %d bytes staged as %d POST bodies", len(payload), len(bodies))
		log.Printf("HTTP exfiltration simulation complete (no data sent)")
	case "dns":
		queries := dnsExfilQueries(payload, "example.com")
		log.Printf("simulating DNS tunneling: %d bytes staged as %d queries", len(payload), len(queries))
		log.Printf("DNS tunneling simulation complete (no data sent)")
	default:
		return fmt.Errorf("unsupported exfiltration protocol %q", protocol)
	}
	return nil
}
