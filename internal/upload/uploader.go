package upload

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/debtdesk/debtdesk/internal/metrics"
	"github.com/debtdesk/debtdesk/internal/supabase"
)

// Storage bucket names.
const (
	AvatarBucket  = "avatars"
	ReceiptBucket = "payment-receipts"
)

// File is an in-memory file received from a client.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Result describes a stored file.
type Result struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// Uploader stores files in Supabase object storage.
type Uploader struct {
	storage *supabase.StorageClient

	// now is swapped in tests to pin timestamp-derived names.
	now func() time.Time
}

// New creates an Uploader over the given storage client.
func New(storage *supabase.StorageClient) *Uploader {
	return &Uploader{storage: storage, now: time.Now}
}

// Avatar validates and stores an avatar under avatars/{userID}/ with a
// timestamp-derived name, upserting any previous object at that path, and
// returns its public URL.
func (u *Uploader) Avatar(ctx context.Context, userID string, f File) (*Result, error) {
	if err := ValidateAvatar(f.ContentType, int64(len(f.Data))); err != nil {
		return nil, err
	}

	filePath := fmt.Sprintf("%s/%d%s", userID, u.now().UnixMilli(), ext(f.Name))
	err := u.storage.Upload(ctx, AvatarBucket, filePath, f.Data, &supabase.UploadOptions{
		ContentType: f.ContentType,
		Upsert:      true,
	})
	metrics.RecordUpload(AvatarBucket, err)
	if err != nil {
		return nil, fmt.Errorf("upload avatar: %w", err)
	}

	return &Result{
		URL:  u.storage.GetPublicURL(AvatarBucket, filePath),
		Name: f.Name,
		Path: filePath,
	}, nil
}

// Receipt validates and stores a payment receipt under a timestamp-derived
// name and returns its public URL together with the original filename.
func (u *Uploader) Receipt(ctx context.Context, f File) (*Result, error) {
	if err := ValidateReceipt(f.ContentType, int64(len(f.Data))); err != nil {
		return nil, err
	}

	filePath := fmt.Sprintf("%d%s", u.now().UnixMilli(), ext(f.Name))
	err := u.storage.Upload(ctx, ReceiptBucket, filePath, f.Data, &supabase.UploadOptions{
		ContentType: f.ContentType,
	})
	metrics.RecordUpload(ReceiptBucket, err)
	if err != nil {
		return nil, fmt.Errorf("upload receipt: %w", err)
	}

	return &Result{
		URL:  u.storage.GetPublicURL(ReceiptBucket, filePath),
		Name: f.Name,
		Path: filePath,
	}, nil
}

// RemoveAvatar deletes the object behind a previously returned avatar URL.
func (u *Uploader) RemoveAvatar(ctx context.Context, avatarURL string) error {
	parts := strings.Split(strings.TrimSuffix(avatarURL, "/"), "/")
	if len(parts) < 2 {
		return fmt.Errorf("malformed avatar URL")
	}
	objectPath := parts[len(parts)-2] + "/" + parts[len(parts)-1]
	return u.storage.Remove(ctx, AvatarBucket, []string{objectPath})
}

// AvatarURL appends a cache-buster so clients pick up replaced avatars.
func AvatarURL(avatarURL, updatedAt string) string {
	if avatarURL == "" {
		return ""
	}
	if updatedAt == "" {
		updatedAt = fmt.Sprintf("%d", time.Now().UnixMilli())
	}
	return avatarURL + "?v=" + updatedAt
}

func ext(name string) string {
	e := path.Ext(name)
	if e == "" {
		return ""
	}
	return strings.ToLower(e)
}
