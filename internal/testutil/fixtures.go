// Package testutil provides shared fixtures for backend tests.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/require"
)

// PNGBytes returns an encoded width x height PNG filled with a solid color.
func PNGBytes(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: 120, B: 200, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// FileHeader builds a *multipart.FileHeader carrying the given content, the
// shape handlers receive for uploaded files.
func FileHeader(t *testing.T, fieldName, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile(fieldName, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r := multipart.NewReader(&buf, w.Boundary())
	form, err := r.ReadForm(int64(len(content)) + 1024)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	return form.File[fieldName][0]
}

// PNGFileHeader builds a multipart file header containing a small valid PNG.
func PNGFileHeader(t *testing.T, fieldName, filename string) *multipart.FileHeader {
	t.Helper()
	return FileHeader(t, fieldName, filename, PNGBytes(t, 8, 8))
}
