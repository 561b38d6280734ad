// Package upload validates and stores user-supplied files (avatars and
// payment receipts) in the hosted object storage buckets.
package upload

import "fmt"

// Size limits in bytes.
const (
	MaxAvatarSize  = 2 * 1024 * 1024
	MaxReceiptSize = 5 * 1024 * 1024
)

var avatarTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

var receiptTypes = map[string]bool{
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/png":       true,
	"application/pdf": true,
}

// ValidateAvatar checks an avatar candidate before any network call. It
// returns a human-readable reason when the file is rejected.
func ValidateAvatar(contentType string, size int64) error {
	if !avatarTypes[contentType] {
		return fmt.Errorf("invalid file format: use JPG, PNG or WebP")
	}
	if size > MaxAvatarSize {
		return fmt.Errorf("file too large: maximum size is 2MB")
	}
	return nil
}

// ValidateReceipt checks a payment receipt candidate before any network
// call. Receipts also accept PDF and allow up to 5 MiB.
func ValidateReceipt(contentType string, size int64) error {
	if !receiptTypes[contentType] {
		return fmt.Errorf("invalid file format: use PDF, JPG or PNG")
	}
	if size > MaxReceiptSize {
		return fmt.Errorf("file too large: maximum size is 5MB")
	}
	return nil
}
