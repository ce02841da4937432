package testutil

import (
	"bytes"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/require"
)

// Sample file headers that pass the storage signature checks.
var (
	MP3Header = []byte("ID3\x04\x00\x00\x00\x00\x00\x00fake-mp3-frames")
	PNGHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDRfake-png")
)

// MultipartFile builds an uploaded file the way gin hands it to a handler.
func MultipartFile(t *testing.T, field, filename string, content []byte) (multipart.File, *multipart.FileHeader) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(10 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })

	headers := form.File[field]
	require.Len(t, headers, 1)
	file, err := headers[0].Open()
	require.NoError(t, err)
	t.Cleanup(func() { file.Close() })

	return file, headers[0]
}
