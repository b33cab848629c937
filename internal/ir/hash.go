package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for event digests.
// Version suffix enables future algorithm migration.
const (
	DomainWillBreak = "rmerge/will-break/v1"
	DomainDidLearn  = "rmerge/did-learn/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// WillBreakDigest identifies a "will break association" notification.
// The same (serviceID, phoneNumber) pair always yields the same digest.
func WillBreakDigest(serviceID ServiceID, phoneNumber E164) (string, error) {
	canonical, err := MarshalCanonical(map[string]string{
		"service_id":   serviceID.String(),
		"phone_number": phoneNumber.String(),
	})
	if err != nil {
		return "", fmt.Errorf("will break digest: %w", err)
	}
	return hashWithDomain(DomainWillBreak, canonical), nil
}

// DidLearnDigest identifies a learned association. The resulting record's
// unique id is part of the digest, so learning the same pair onto a
// different record yields a different digest.
func DidLearnDigest(m MergedRecipient) (string, error) {
	obj := map[string]any{
		"service_id":         m.ServiceID.String(),
		"new_phone_number":   m.NewPhoneNumber.String(),
		"is_local_recipient": m.IsLocalRecipient,
	}
	if m.OldPhoneNumber != nil {
		obj["old_phone_number"] = m.OldPhoneNumber.String()
	}
	if m.Recipient != nil {
		obj["recipient_unique_id"] = m.Recipient.UniqueID
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("did learn digest: %w", err)
	}
	return hashWithDomain(DomainDidLearn, canonical), nil
}
