package record

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows migrating
// the algorithm without colliding with older hashes.
const (
	DomainRecord = "medikeep/record/v1"
	DomainView   = "medikeep/view/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint returns the content hash of a single record. Two records with
// the same canonical encoding share a fingerprint regardless of key order.
func Fingerprint(r Record) (string, error) {
	canonical, err := MarshalCanonical(r)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(DomainRecord, canonical), nil
}

// ViewFingerprint hashes an ordered record list. Order matters: the same
// records in a different order produce a different hash, which is what a
// sorted view snapshot needs.
func ViewFingerprint(records []Record) (string, error) {
	canonical, err := MarshalCanonical(records)
	if err != nil {
		return "", fmt.Errorf("view fingerprint: %w", err)
	}
	return hashWithDomain(DomainView, canonical), nil
}
