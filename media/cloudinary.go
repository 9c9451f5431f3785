// Package media relays uploaded binary content to Cloudinary and records the
// returned locator pair.
package media

import (
	"context"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"snapgram/models"
)

// Folders per upload category.
const (
	FolderProfiles = "snapgram/users/profile"
	FolderPosts    = "snapgram/posts"
)

type Cloudinary struct {
	cld *cloudinary.Cloudinary
}

// New builds the relay from a CLOUDINARY_URL-style connection string.
func New(url string) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromURL(url)
	if err != nil {
		return nil, fmt.Errorf("media: cloudinary configuration: %w", err)
	}
	return &Cloudinary{cld: cld}, nil
}

// Upload stores the content under the folder and returns its locator pair.
func (m *Cloudinary) Upload(ctx context.Context, content io.Reader, folder string) (models.Image, error) {
	res, err := m.cld.Upload.Upload(ctx, content, uploader.UploadParams{
		Folder:         folder,
		Transformation: "c_limit,w_1080,h_1080,q_auto",
	})
	if err != nil {
		return models.Image{}, fmt.Errorf("media: upload: %w", err)
	}
	return models.Image{SecureURL: res.SecureURL, PublicID: res.PublicID}, nil
}

// Destroy asks the host to remove the object. Callers treat failures as
// best-effort on replace paths.
func (m *Cloudinary) Destroy(ctx context.Context, publicID string) error {
	_, err := m.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("media: destroy %s: %w", publicID, err)
	}
	return nil
}
