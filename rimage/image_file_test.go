package rimage

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"go.viam.com/ocam/utils"
)

func TestImageFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	img := gradientImage(12, 9)

	// lossless formats come back pixel for pixel
	for _, name := range []string{"out.png", "out.bmp", "out.tif", "out.TIFF", "out.ppm", "out.qoi"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			test.That(t, WriteImageToFile(path, img), test.ShouldBeNil)
			read, err := ReadImageFromFile(path)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, read.Bounds(), test.ShouldResemble, img.Bounds())
			for y := 0; y < 9; y++ {
				for x := 0; x < 12; x++ {
					r1, g1, b1, a1 := read.At(x, y).RGBA()
					r2, g2, b2, a2 := img.At(x, y).RGBA()
					test.That(t, []uint32{r1, g1, b1, a1}, test.ShouldResemble, []uint32{r2, g2, b2, a2})
				}
			}
		})
	}

	path := filepath.Join(dir, "out.jpg")
	test.That(t, WriteImageToFile(path, img), test.ShouldBeNil)
	read, err := ReadImageFromFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, read.Bounds(), test.ShouldResemble, img.Bounds())
}

func TestImageFileErrors(t *testing.T) {
	dir := t.TempDir()
	img := gradientImage(2, 2)

	err := WriteImageToFile(filepath.Join(dir, "out.gif"), img)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unsupported image file extension")

	test.That(t, WriteImageToFile(filepath.Join(dir, "out.png"), nil), test.ShouldNotBeNil)
	test.That(t, WriteImageToFile(filepath.Join(dir, "missing", "out.png"), img), test.ShouldNotBeNil)

	_, err = ReadImageFromFile(filepath.Join(dir, "missing.png"))
	test.That(t, err, test.ShouldNotBeNil)

	// a png behind a qoi extension
	var buf bytes.Buffer
	test.That(t, png.Encode(&buf, img), test.ShouldBeNil)
	lying := filepath.Join(dir, "lying.qoi")
	test.That(t, os.WriteFile(lying, buf.Bytes(), 0o600), test.ShouldBeNil)
	_, err = ReadImageFromFile(lying)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "error decoding")
}

func TestEncodeDecodeImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 8))
	img.Set(3, 3, color.NRGBA{R: 255, A: 255})

	var buf bytes.Buffer
	test.That(t, EncodeImage(&buf, img, utils.MimeTypeQOI), test.ShouldBeNil)
	decoded, err := DecodeImage(&buf, utils.MimeTypeQOI)
	test.That(t, err, test.ShouldBeNil)
	r, g, b, a := decoded.At(3, 3).RGBA()
	test.That(t, []uint32{r, g, b, a}, test.ShouldResemble, []uint32{0xffff, 0, 0, 0xffff})

	test.That(t, EncodeImage(&buf, img, "image/webp"), test.ShouldNotBeNil)
	_, err = DecodeImage(&buf, "image/webp")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestIsSupportedImageFile(t *testing.T) {
	test.That(t, IsSupportedImageFile("a/b/fisheye.JPG"), test.ShouldBeTrue)
	test.That(t, IsSupportedImageFile("fisheye.jpeg"), test.ShouldBeTrue)
	test.That(t, IsSupportedImageFile("fisheye.qoi"), test.ShouldBeTrue)
	test.That(t, IsSupportedImageFile("fisheye.webp"), test.ShouldBeFalse)
	test.That(t, IsSupportedImageFile("fisheye"), test.ShouldBeFalse)
}
