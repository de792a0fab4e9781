package service

import (
	"encoding/base64"
	"mime"
	"strings"

	"decompapi/internal/model"
)

// MinBytecodeSize is the smallest payload worth handing to the decompiler.
// The decompiler does the real structural validation.
const MinBytecodeSize = 4

// Validate turns a raw request body into a DecompileRequest.
//
// The size ceiling applies to the body as received, before any decoding. A
// text/plain body is decoded as base64; if that fails the literal bytes are
// used instead, so a misleading Content-Type never rejects a request.
func Validate(body []byte, contentType string, maxSize int64) (*model.DecompileRequest, error) {
	if len(body) == 0 {
		return nil, ErrEmptyPayload
	}
	if int64(len(body)) > maxSize {
		return nil, ErrPayloadTooLarge
	}

	req := &model.DecompileRequest{Payload: body, Encoding: model.EncodingRaw}
	if isTextContent(contentType) {
		if decoded, ok := decodeBase64(body); ok {
			req.Payload = decoded
			req.Encoding = model.EncodingBase64
		}
	}
	req.Size = len(req.Payload)

	if req.Size < MinBytecodeSize {
		return nil, ErrMalformedBytecode
	}
	return req, nil
}

func isTextContent(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	return strings.EqualFold(mediaType, "text/plain")
}

// decodeBase64 accepts standard base64 with or without padding, ignoring
// surrounding whitespace and line breaks.
func decodeBase64(body []byte) ([]byte, bool) {
	text := strings.Join(strings.Fields(string(body)), "")
	if text == "" {
		return nil, false
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding} {
		if decoded, err := enc.DecodeString(text); err == nil {
			return decoded, true
		}
	}
	return nil, false
}
