package errors

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

const maxMemberIDLength = 64

// ValidateMemberID checks that id can be placed in an upstream URL path.
// Ids are opaque strings; only emptiness, length, control characters and
// URL-structural characters are rejected.
func ValidateMemberID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidMemberID, "member id cannot be empty")
	}
	if len(id) > maxMemberIDLength {
		return New(ErrCodeInvalidMemberID, "member id too long (max %d characters)", maxMemberIDLength)
	}
	for _, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidMemberID, "member id contains invalid characters")
		}
	}
	if strings.ContainsAny(id, "/?#\\") || strings.Contains(id, "..") {
		return New(ErrCodeInvalidMemberID, "member id contains invalid characters: %q", id)
	}
	return nil
}

// ValidateSnapshotID checks that id is a UUID as issued by the snapshot store.
func ValidateSnapshotID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return Wrap(ErrCodeInvalidInput, err, "invalid snapshot id %q", id)
	}
	return nil
}

// ValidateURL checks that rawURL is an absolute http or https URL with a host.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return Wrap(ErrCodeInvalidInput, err, "invalid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}
	if u.Host == "" {
		return New(ErrCodeInvalidInput, "URL must include a host")
	}
	return nil
}
