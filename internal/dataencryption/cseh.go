// Package dataencryption provides the CSEH envelope format and the
// DataEncryptionService that routes between encryption providers.
//
// Wire format:
//
//	[4 bytes: 0x43 0x53 0x45 0x48]  "CSEH" magic
//	[varint32: header byte length]
//	[header bytes]                   see below
//	[ciphertext bytes]
//
// Header bytes:
//
//	[varint32: version]
//	[varint32: provider-ID length][provider-ID bytes]
//	[varint32: nonce length][nonce bytes]
//
// The 4-byte magic doubles as the idempotent-encryption marker: a payload that
// already starts with it is stored ciphertext and is never encrypted again.
package dataencryption

import (
	"bytes"
	"fmt"
	"io"
)

var magic = [4]byte{0x43, 0x53, 0x45, 0x48} // "CSEH"

// Header is the decoded CSEH envelope header.
type Header struct {
	Version    uint32
	ProviderID string
	Nonce      []byte
}

// HasMagic reports whether b starts with the CSEH magic bytes.
func HasMagic(b []byte) bool {
	return len(b) >= 4 &&
		b[0] == magic[0] && b[1] == magic[1] && b[2] == magic[2] && b[3] == magic[3]
}

// WriteHeader encodes h as a CSEH envelope prefix and writes it to w.
func WriteHeader(w io.Writer, h Header) error {
	var fields bytes.Buffer
	writeVarint32(&fields, h.Version)
	writeVarint32(&fields, uint32(len(h.ProviderID)))
	fields.WriteString(h.ProviderID)
	writeVarint32(&fields, uint32(len(h.Nonce)))
	fields.Write(h.Nonce)

	var buf bytes.Buffer
	buf.Write(magic[:])
	writeVarint32(&buf, uint32(fields.Len()))
	buf.Write(fields.Bytes())
	_, err := w.Write(buf.Bytes())
	return err
}

// ReadHeader reads the CSEH magic + varint + header fields from r.
// Returns (header, true, nil) on success, (nil, false, nil) if magic is absent,
// or (nil, true, err) on a read error after the magic has been confirmed present.
func ReadHeader(r io.Reader) (*Header, bool, error) {
	var mgc [4]byte
	if _, err := io.ReadFull(r, mgc[:]); err != nil {
		return nil, false, nil // not enough bytes — treat as no magic
	}
	if mgc != magic {
		return nil, false, nil
	}
	headerLen, err := readVarint32(r)
	if err != nil {
		return nil, true, fmt.Errorf("cseh: reading header length: %w", err)
	}
	// Guard against a crafted header advertising a huge length. Legitimate
	// headers hold a version, a short provider ID, and a 12-byte AES-GCM nonce,
	// all well under 64 bytes.
	const maxHeaderLen = 4096
	if headerLen > maxHeaderLen {
		return nil, true, fmt.Errorf("cseh: header length %d exceeds maximum %d", headerLen, maxHeaderLen)
	}
	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, true, fmt.Errorf("cseh: reading header bytes: %w", err)
	}

	fields := bytes.NewReader(headerBytes)
	version, err := readVarint32(fields)
	if err != nil {
		return nil, true, fmt.Errorf("cseh: decoding version: %w", err)
	}
	providerID, err := readLengthPrefixed(fields)
	if err != nil {
		return nil, true, fmt.Errorf("cseh: decoding provider ID: %w", err)
	}
	nonce, err := readLengthPrefixed(fields)
	if err != nil {
		return nil, true, fmt.Errorf("cseh: decoding nonce: %w", err)
	}
	return &Header{
		Version:    version,
		ProviderID: string(providerID),
		Nonce:      nonce,
	}, true, nil
}

// ── varint32 helpers ──────────────────────────────────────────────────────────

func writeVarint32(buf *bytes.Buffer, v uint32) {
	for v >= 0x80 {
		buf.WriteByte(byte(v) | 0x80)
		v >>= 7
	}
	buf.WriteByte(byte(v))
}

func readVarint32(r io.Reader) (uint32, error) {
	var v uint32
	var buf [1]byte
	for i := range 5 {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		v |= uint32(buf[0]&0x7F) << (7 * uint(i))
		if buf[0]&0x80 == 0 {
			return v, nil
		}
	}
	return 0, fmt.Errorf("cseh: varint32 overflow")
}

func readLengthPrefixed(r *bytes.Reader) ([]byte, error) {
	n, err := readVarint32(r)
	if err != nil {
		return nil, err
	}
	if int(n) > r.Len() {
		return nil, fmt.Errorf("cseh: field length %d exceeds remaining %d bytes", n, r.Len())
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
