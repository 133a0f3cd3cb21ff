package server

import (
	"bytes"
	"mime/multipart"
	"testing"
)

// newMultipart writes archive as the "file" field and returns the content type.
func newMultipart(t *testing.T, buf *bytes.Buffer, archive []byte) string {
	t.Helper()
	mw := multipart.NewWriter(buf)
	fw, err := mw.CreateFormFile("file", "export.zip")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(archive); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return mw.FormDataContentType()
}
