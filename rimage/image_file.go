package rimage

import (
	"bufio"
	"image"
	"io"
	"os"

	"github.com/disintegration/imaging"
	"github.com/lmittmann/ppm"
	"github.com/pkg/errors"
	"github.com/xfmoulet/qoi"
	"go.viam.com/utils"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	rutils "go.viam.com/ocam/utils"
)

// DefaultJPEGQuality is the quality used by WriteImageToFile for jpeg files.
const DefaultJPEGQuality = 95

// ReadImageFromFile decodes the image at path. The format is chosen by the file extension, see
// rutils.MimeTypeFromFilename. Jpeg files are rotated according to their EXIF orientation.
func ReadImageFromFile(path string) (image.Image, error) {
	mimeType, err := rutils.MimeTypeFromFilename(path)
	if err != nil {
		return nil, err
	}
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)

	img, err := DecodeImage(bufio.NewReader(f), mimeType)
	if err != nil {
		return nil, errors.Wrapf(err, "error decoding %q", path)
	}
	return img, nil
}

// DecodeImage decodes an image of the given mime type.
func DecodeImage(r io.Reader, mimeType string) (image.Image, error) {
	switch mimeType {
	case rutils.MimeTypePPM:
		return ppm.Decode(r)
	case rutils.MimeTypeQOI:
		return qoi.Decode(r)
	case rutils.MimeTypeJPEG, rutils.MimeTypePNG, rutils.MimeTypeBMP, rutils.MimeTypeTIFF:
		return imaging.Decode(r, imaging.AutoOrientation(true))
	default:
		return nil, errors.Errorf("do not know how to decode %q", mimeType)
	}
}

// WriteImageToFile encodes img to path, choosing the format from the file extension. The
// file is created or truncated, and removed again if encoding fails.
func WriteImageToFile(path string, img image.Image) (err error) {
	if img == nil {
		return errors.New("image is nil")
	}
	mimeType, err := rutils.MimeTypeFromFilename(path)
	if err != nil {
		return err
	}
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			rutils.RemoveFileNoError(path)
		}
	}()

	w := bufio.NewWriter(f)
	if err := EncodeImage(w, img, mimeType); err != nil {
		return errors.Wrapf(err, "error encoding %q", path)
	}
	return w.Flush()
}

// EncodeImage encodes img as the given mime type.
func EncodeImage(w io.Writer, img image.Image, mimeType string) error {
	switch mimeType {
	case rutils.MimeTypeJPEG:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(DefaultJPEGQuality))
	case rutils.MimeTypePNG:
		return imaging.Encode(w, img, imaging.PNG)
	case rutils.MimeTypeBMP:
		return bmp.Encode(w, img)
	case rutils.MimeTypeTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case rutils.MimeTypePPM:
		return ppm.Encode(w, img)
	case rutils.MimeTypeQOI:
		return qoi.Encode(w, img)
	default:
		return errors.Errorf("do not know how to encode %q", mimeType)
	}
}

// IsSupportedImageFile reports whether ReadImageFromFile and WriteImageToFile handle the
// extension of path.
func IsSupportedImageFile(path string) bool {
	_, err := rutils.MimeTypeFromFilename(path)
	return err == nil
}
