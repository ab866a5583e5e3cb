package transport

import "testing"

func TestShareURL(t *testing.T) {
	tests := []struct {
		base, key, token string
		want             string
	}{
		{base: "https://x.io/pad", key: "hostPeerId", token: "abc", want: "https://x.io/pad?hostPeerId=abc"},
		{base: "https://x.io/pad?lang=en", key: "remoteSDP", token: "H4sI-_", want: "https://x.io/pad?lang=en&remoteSDP=H4sI-_"},
		{base: "http://localhost:8000/", key: "hostPeerId", token: "a b", want: "http://localhost:8000/?hostPeerId=a+b"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, err := ShareURL(tt.base, tt.key, tt.token)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("ShareURL() = %v, want %v", got, tt.want)
			}
			if tok := TokenFromURL(got, tt.key); tok != tt.token {
				t.Errorf("TokenFromURL() = %q, want %q", tok, tt.token)
			}
		})
	}
}

func TestTokenFromURLMissing(t *testing.T) {
	for _, raw := range []string{"", "https://x.io/pad", "https://x.io/pad?hostPeerId=", "://bad"} {
		if tok := TokenFromURL(raw, "hostPeerId"); tok != "" {
			t.Errorf("TokenFromURL(%q) = %q", raw, tok)
		}
	}
}
