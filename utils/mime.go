package utils

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	// MimeTypeJPEG is regular jpgs.
	MimeTypeJPEG = "image/jpeg"

	// MimeTypePNG is regular pngs.
	MimeTypePNG = "image/png"

	// MimeTypeBMP is uncompressed windows bitmaps.
	MimeTypeBMP = "image/bmp"

	// MimeTypeTIFF is for .tif and .tiff files.
	MimeTypeTIFF = "image/tiff"

	// MimeTypePPM is for the binary netpbm .ppm format.
	MimeTypePPM = "image/x-portable-pixmap"

	// MimeTypeQOI is for .qoi "Quite OK Image" for lossless, fast encoding/decoding.
	MimeTypeQOI = "image/qoi"
)

var mimeTypesByExtension = map[string]string{
	".jpg":  MimeTypeJPEG,
	".jpeg": MimeTypeJPEG,
	".png":  MimeTypePNG,
	".bmp":  MimeTypeBMP,
	".tif":  MimeTypeTIFF,
	".tiff": MimeTypeTIFF,
	".ppm":  MimeTypePPM,
	".qoi":  MimeTypeQOI,
}

// MimeTypeFromFilename returns the image mime type matching the extension of filename.
func MimeTypeFromFilename(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if mimeType, ok := mimeTypesByExtension[ext]; ok {
		return mimeType, nil
	}
	return "", errors.Errorf("unsupported image file extension %q", ext)
}
