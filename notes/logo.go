package notes

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/vitalvas/edgenotes/images"
	"github.com/vitalvas/edgenotes/mux"
)

// LogoID is the images row holding the site logo.
const LogoID = "logo"

const maxLogoMemory = 8 << 20

// Logo serves the stored logo with a long-lived cache lifetime.
func (a *API) Logo(c *mux.Context) (*mux.Response, error) {
	if a.cfg.Images == nil {
		return mux.Text(http.StatusNotFound, "Not found"), nil
	}

	img, err := a.cfg.Images.Get(c.Context(), LogoID)
	if errors.Is(err, images.ErrNotFound) {
		return mux.Text(http.StatusNotFound, "Not found"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("notes: load logo: %w", err)
	}

	res := mux.Blob(http.StatusOK, img.ContentType, img.Data)
	res.Header.Set("Cache-Control", "public, max-age=31536000")

	return res, nil
}

// UploadLogo replaces the logo with the multipart "file" field.
func (a *API) UploadLogo(c *mux.Context) (*mux.Response, error) {
	if a.cfg.Images == nil {
		return mux.Text(http.StatusServiceUnavailable, "Image store not configured"), nil
	}

	r := c.Request()

	if err := r.ParseMultipartForm(maxLogoMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}

		return mux.Text(http.StatusBadRequest, "No file uploaded"), nil
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return mux.Text(http.StatusBadRequest, "No file uploaded"), nil
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("notes: read upload: %w", err)
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := a.cfg.Images.Put(c.Context(), &images.Image{ID: LogoID, Data: data, ContentType: contentType}); err != nil {
		return nil, fmt.Errorf("notes: store logo: %w", err)
	}

	return mux.Text(http.StatusOK, "Logo uploaded!"), nil
}
