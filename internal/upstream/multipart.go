package upstream

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
)

// FileField is the multipart field carrying the audio file.
const FileField = "file"

const defaultContentType = "application/octet-stream"

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// multipartBody streams upload as a single-part multipart body without
// buffering the file. When upload.Size is known the returned length is the
// exact body length; otherwise it is -1.
func multipartBody(upload Upload) (body io.Reader, contentType string, length int64, err error) {
	if upload.Body == nil {
		return nil, "", 0, fmt.Errorf("upload has no body")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	partType := upload.ContentType
	if partType == "" {
		partType = defaultContentType
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		FileField, quoteEscaper.Replace(upload.Filename)))
	header.Set("Content-Type", partType)
	if _, err := w.CreatePart(header); err != nil {
		return nil, "", 0, fmt.Errorf("failed to create multipart part: %w", err)
	}
	preamble := bytes.Clone(buf.Bytes())

	buf.Reset()
	if err := w.Close(); err != nil {
		return nil, "", 0, fmt.Errorf("failed to close multipart writer: %w", err)
	}
	trailer := bytes.Clone(buf.Bytes())

	file := upload.Body
	length = -1
	if upload.Size >= 0 {
		file = io.LimitReader(upload.Body, upload.Size)
		length = int64(len(preamble)) + upload.Size + int64(len(trailer))
	}

	body = io.MultiReader(bytes.NewReader(preamble), file, bytes.NewReader(trailer))
	return body, w.FormDataContentType(), length, nil
}
