package req

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"hash"
)

// Fingerprint returns the content hash of an object: SHA-256 over the
// heading, body, canonical attribute JSON and classification, each
// length-prefixed so no two distinct field tuples share an encoding.
// A nil body hashes like an empty one.
func Fingerprint(heading string, body *string, attrs Attributes, class Classification) string {
	h := sha256.New()
	writeField(h, []byte(heading))
	if body != nil {
		writeField(h, []byte(*body))
	} else {
		writeField(h, nil)
	}
	writeField(h, canonicalJSON(attrs))
	writeField(h, []byte(class))
	return hex.EncodeToString(h.Sum(nil))
}

// writeField writes len(b) as a big-endian uint64 followed by b.
func writeField(h hash.Hash, b []byte) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(b)))
	h.Write(n[:])
	h.Write(b)
}

// canonicalJSON encodes attributes with sorted keys. encoding/json sorts
// map keys at every depth, so equal maps always encode identically.
func canonicalJSON(attrs Attributes) []byte {
	if attrs == nil {
		attrs = Attributes{}
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return []byte("{}")
	}
	return data
}

// fingerprintObject recomputes o.ContentFingerprint from its fields.
func fingerprintObject(o *Object) {
	o.ContentFingerprint = Fingerprint(o.Heading, o.Body, o.Attributes, o.Classification)
}
