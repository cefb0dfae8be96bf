package gateway

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// wordDecoder decodes RFC 2047 encoded-words in headers, with charset
// support beyond UTF-8 via x/text
var wordDecoder = &mime.WordDecoder{
	CharsetReader: func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, err
		}
		return transform.NewReader(input, enc.NewDecoder()), nil
	},
}

// decodeHeader decodes an encoded-word header value, falling back to the
// raw value when decoding fails
func decodeHeader(value string) string {
	decoded, err := wordDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// extractTextFromMessage extracts the text content from an email message.
// For multipart messages it looks for text/plain parts.
func extractTextFromMessage(msg *mail.Message) (string, error) {
	contentType := msg.Header.Get("Content-Type")

	if !strings.Contains(strings.ToLower(contentType), "multipart/") {
		bodyBytes, err := io.ReadAll(msg.Body)
		if err != nil {
			return "", err
		}
		return string(bodyBytes), nil
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		bodyBytes, err := io.ReadAll(msg.Body)
		if err != nil {
			return "", err
		}
		return string(bodyBytes), nil
	}

	boundary, ok := params["boundary"]
	if !ok {
		bodyBytes, err := io.ReadAll(msg.Body)
		if err != nil {
			return "", err
		}
		return string(bodyBytes), nil
	}

	reader := multipart.NewReader(msg.Body, boundary)
	var textParts []string
	var fallbackParts []string

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		partType := part.Header.Get("Content-Type")
		partBytes, err := io.ReadAll(part)
		if err != nil {
			continue
		}

		if strings.Contains(strings.ToLower(partType), "text/plain") {
			textParts = append(textParts, string(partBytes))
		} else if strings.Contains(strings.ToLower(partType), "text/") {
			fallbackParts = append(fallbackParts, string(partBytes))
		}
	}

	if len(textParts) > 0 {
		return strings.Join(textParts, "\n"), nil
	}
	if len(fallbackParts) > 0 {
		return strings.Join(fallbackParts, "\n"), nil
	}

	// No text parts found; return the raw remainder
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, msg.Body); err != nil {
		return "", err
	}
	return buf.String(), nil
}
