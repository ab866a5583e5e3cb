package codec

import (
	"errors"
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "ascii", text: "hello"},
		{name: "json", text: `{"playerId":"p1","sdp":{"type":"offer","sdp":"v=0\r\no=- 1 2 IN IP4 127.0.0.1\r\n"}}`},
		{name: "unicode", text: "Ada Лавлейс 🎮 日本語"},
		{name: "long", text: strings.Repeat("a=candidate:1 1 udp 2130706431 192.168.1.2 5000 typ host\r\n", 200)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := Encode(tt.text)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if strings.ContainsAny(token, "+/=") {
				t.Errorf("token %q is not url-safe", token)
			}
			got, err := Decode(token)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got != tt.text {
				t.Errorf("Decode(Encode(x)) = %q, want %q", got, tt.text)
			}
		})
	}
}

func TestDecodeToleratesWhitespace(t *testing.T) {
	token, err := Encode("copy-paste")
	if err != nil {
		t.Fatal(err)
	}
	mangled := " " + token[:5] + "\n" + token[5:10] + "\t " + token[10:] + "\r\n"
	got, err := Decode(mangled)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != "copy-paste" {
		t.Errorf("got %q", got)
	}
}

func TestDecodeAcceptsPadding(t *testing.T) {
	token, _ := Encode("padded")
	for len(token)%4 != 0 {
		token += "="
	}
	if got, err := Decode(token); err != nil || got != "padded" {
		t.Errorf("Decode(padded) = %q, %v", got, err)
	}
}

func TestDecodeErrors(t *testing.T) {
	valid, _ := Encode("x")
	tests := []struct {
		name  string
		token string
	}{
		{name: "percent", token: "%%%"},
		{name: "empty", token: ""},
		{name: "spaces", token: "   "},
		{name: "remainder one", token: "abcde"},
		{name: "not gzip", token: "aGVsbG8gd29ybGQ"},
		{name: "truncated", token: valid[:len(valid)-4]},
		{name: "bad alphabet", token: "ab!d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.token)
			if !errors.Is(err, ErrCodec) {
				t.Errorf("Decode(%q) = %q, %v, want ErrCodec", tt.token, got, err)
			}
		})
	}
}

func TestDecodeRejectsInvalidUTF8(t *testing.T) {
	token, err := Encode(string([]byte{0xff, 0xfe, 0xfd}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(token); !errors.Is(err, ErrCodec) {
		t.Errorf("got %v, want ErrCodec", err)
	}
}
