package object

import (
	"fmt"
	"strings"

	gocid "github.com/ipfs/go-cid"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multihash"
)

// CidUndef is the undefined/empty CID sentinel, exported for other packages.
// An undefined CID is the uniform in-memory representation of "no head" /
// "no object"; on disk it serializes as the empty string.
var CidUndef = gocid.Undef

// ComputeCID computes a CIDv1 (raw codec, SHA2-256) for the given bytes.
func ComputeCID(data []byte) (gocid.Cid, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return gocid.Undef, fmt.Errorf("multihash: %w", err)
	}
	return gocid.NewCidV1(gocid.Raw, mh), nil
}

// CIDToString returns the base32lower multibase encoding of a CID, the form
// used in wire links, metadata files and object filenames. The undefined
// CID encodes as the empty string.
func CIDToString(c gocid.Cid) string {
	if !c.Defined() {
		return ""
	}
	encoded, _ := multibase.Encode(multibase.Base32, c.Bytes())
	return encoded
}

// ParseCID decodes a multibase CID string. The empty string parses to the
// undefined CID.
func ParseCID(s string) (gocid.Cid, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return gocid.Undef, nil
	}
	_, cidBytes, err := multibase.Decode(s)
	if err != nil {
		return gocid.Undef, fmt.Errorf("decode CID %q: %w", s, err)
	}
	c, err := gocid.Cast(cidBytes)
	if err != nil {
		return gocid.Undef, fmt.Errorf("cast CID %q: %w", s, err)
	}
	return c, nil
}

// ShortCID returns a truncated CID string for display.
func ShortCID(c gocid.Cid) string {
	s := CIDToString(c)
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
