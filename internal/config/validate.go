package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hay-kot/criterio"
)

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	return criterio.ValidateStruct(
		criterio.Run("upload.max_bytes", c.Upload.MaxBytes, positive[int64]),
		criterio.Run("upload.max_pixels", c.Upload.MaxPixels, positive[int64]),
		c.validateMIMETypes(),
		criterio.Run("viewer.min_zoom", c.Viewer.MinZoom, minZoom),
		criterio.Run("viewer.max_zoom", c.Viewer.MaxZoom, maxZoom),
		criterio.Run("viewer.zoom_step", c.Viewer.ZoomStep, zoomStep),
		criterio.Run("encode.quality", c.Encode.Quality, quality),
		criterio.Run("output.dir", c.Output.Dir, isDirectoryOrNotExist),
		criterio.Run("window.width", c.Window.Width, positive[int]),
		criterio.Run("window.height", c.Window.Height, positive[int]),
	)
}

func (c *Config) validateMIMETypes() error {
	if len(c.Upload.MIMETypes) == 0 {
		return criterio.NewFieldErrors("upload.mime_types", errors.New("at least one type is required"))
	}
	var errs criterio.FieldErrorsBuilder
	for i, mt := range c.Upload.MIMETypes {
		if !strings.HasPrefix(mt, "image/") || len(mt) == len("image/") {
			errs = errs.Append(fmt.Sprintf("upload.mime_types[%d]", i), fmt.Errorf("%q is not an image type", mt))
		}
	}
	return errs.ToError()
}

func positive[T int | int64](v T) error {
	if v <= 0 {
		return fmt.Errorf("must be positive, got %d", v)
	}
	return nil
}

func minZoom(z float32) error {
	if !(z > 0) || z > 1 {
		return fmt.Errorf("must be in (0, 1], got %v", z)
	}
	return nil
}

func maxZoom(z float32) error {
	if !(z >= 1) {
		return fmt.Errorf("must be at least 1, got %v", z)
	}
	return nil
}

func zoomStep(s float32) error {
	if !(s > 1) {
		return fmt.Errorf("must be greater than 1, got %v", s)
	}
	return nil
}

func quality(q float64) error {
	if !(q > 0) || q > 1 {
		return fmt.Errorf("must be in (0, 1], got %v", q)
	}
	return nil
}

// isDirectoryOrNotExist validates that a path is a directory or doesn't exist.
func isDirectoryOrNotExist(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil // will be created
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}
