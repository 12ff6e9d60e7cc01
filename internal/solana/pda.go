package solana

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// MetaplexProgramID is the Token Metadata program.
const MetaplexProgramID = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"

const pdaMarker = "ProgramDerivedAddress"

// ErrNoViableBump is returned when no bump seed yields an off-curve address.
var ErrNoViableBump = errors.New("unable to find a viable program address bump seed")

// FindProgramAddress returns the first off-curve address derived from seeds,
// searching bump seeds from 255 down.
func FindProgramAddress(seeds [][]byte, programID []byte) (string, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		h := sha256.New()
		for _, seed := range seeds {
			h.Write(seed)
		}
		h.Write([]byte{byte(bump)})
		h.Write(programID)
		h.Write([]byte(pdaMarker))
		sum := h.Sum(nil)
		if !IsOnCurve(sum) {
			return base58.Encode(sum), uint8(bump), nil
		}
	}
	return "", 0, ErrNoViableBump
}

// MetadataAddress derives the Metaplex metadata account for mint.
func MetadataAddress(mint string) (string, error) {
	mintBytes, err := DecodePublicKey(mint)
	if err != nil {
		return "", err
	}
	program, err := DecodePublicKey(MetaplexProgramID)
	if err != nil {
		return "", err
	}
	addr, _, err := FindProgramAddress([][]byte{[]byte("metadata"), program, mintBytes}, program)
	return addr, err
}

// MetaplexMetadata holds the descriptive fields of a metadata account.
type MetaplexMetadata struct {
	Name   string
	Symbol string
	URI    string
}

// ParseMetaplexMetadata decodes a base64 metadata account.
// Layout: key u8 (4 = MetadataV1), update authority (32), mint (32), then
// borsh strings name, symbol, uri.
func ParseMetaplexMetadata(data string) (*MetaplexMetadata, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if len(raw) < 69 || raw[0] != 4 {
		return nil, fmt.Errorf("not a metadata v1 account (%d bytes)", len(raw))
	}

	r := borshReader{buf: raw, off: 65}
	name, err := r.string(64)
	if err != nil {
		return nil, fmt.Errorf("name: %w", err)
	}
	symbol, err := r.string(32)
	if err != nil {
		return nil, fmt.Errorf("symbol: %w", err)
	}
	uri, _ := r.string(256)

	return &MetaplexMetadata{Name: name, Symbol: symbol, URI: uri}, nil
}

// ParseMintDecimals reads the decimals byte of a base64 SPL mint account.
func ParseMintDecimals(data string) (int, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return 0, fmt.Errorf("decode mint: %w", err)
	}
	// mint authority option (36) + supply (8), then decimals.
	if len(raw) < 82 {
		return 0, fmt.Errorf("mint account too short: %d bytes", len(raw))
	}
	return int(raw[44]), nil
}

type borshReader struct {
	buf []byte
	off int
}

// string reads a u32-length-prefixed string, trimming the NUL padding
// Metaplex uses for fixed-width fields.
func (r *borshReader) string(maxLen uint32) (string, error) {
	if r.off+4 > len(r.buf) {
		return "", errors.New("truncated length")
	}
	n := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	if n > maxLen || r.off+int(n) > len(r.buf) {
		return "", fmt.Errorf("invalid length %d", n)
	}
	s := strings.TrimRight(string(r.buf[r.off:r.off+int(n)]), "\x00")
	r.off += int(n)
	return s, nil
}
