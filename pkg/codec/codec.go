// Package codec turns connection offers into compact URL-safe tokens and back.
//
// A token is gzip-compressed text in base64 with the URL alphabet
// (+ becomes -, / becomes _) and no trailing padding, the same bytes
// a browser produces with CompressionStream("gzip") and btoa.
package codec

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrCodec is returned for every token that can't be turned back into text.
var ErrCodec = errors.New("codec")

// maxInflated caps decompressed payloads; an SDP offer is a few KB.
const maxInflated = 1 << 20

// Encode compresses text into a URL-safe token.
func Encode(text string) (string, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(text)); err != nil {
		return "", fmt.Errorf("%w: compress: %v", ErrCodec, err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("%w: compress: %v", ErrCodec, err)
	}
	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode reverses Encode.
// Whitespace anywhere in the token is ignored.
func Decode(token string) (string, error) {
	b64, err := normalize(token)
	if err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("%w: base64: %v", ErrCodec, err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%w: inflate: %v", ErrCodec, err)
	}
	defer func() { _ = zr.Close() }()
	text, err := io.ReadAll(io.LimitReader(zr, maxInflated+1))
	if err != nil {
		return "", fmt.Errorf("%w: inflate: %v", ErrCodec, err)
	}
	if len(text) > maxInflated {
		return "", fmt.Errorf("%w: inflated payload is too big", ErrCodec)
	}
	if !utf8.Valid(text) {
		return "", fmt.Errorf("%w: not utf-8", ErrCodec)
	}
	return string(text), nil
}

// normalize strips whitespace, restores the standard alphabet and the padding.
func normalize(token string) (string, error) {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		switch r {
		case '-':
			return '+'
		case '_':
			return '/'
		}
		return r
	}, token)
	s = strings.TrimRight(s, "=")
	if s == "" {
		return "", fmt.Errorf("%w: empty token", ErrCodec)
	}
	switch len(s) % 4 {
	case 1:
		return "", fmt.Errorf("%w: bad token length %d", ErrCodec, len(s))
	case 2:
		s += "=="
	case 3:
		s += "="
	}
	return s, nil
}
