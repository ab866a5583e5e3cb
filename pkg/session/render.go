package session

import (
	"encoding/base64"
	"strings"

	"github.com/giongto35/touchcoop/pkg/config"
	"github.com/skip2/go-qrcode"
)

// Renderer makes a scannable image out of a share link.
type Renderer interface {
	Render(url string) ([]byte, error)
}

// QrRenderer renders PNG QR codes.
type QrRenderer struct {
	Size  int
	Level qrcode.RecoveryLevel
}

func NewQrRenderer(conf config.Qr) QrRenderer {
	size := conf.Size
	if size <= 0 {
		size = 256
	}
	return QrRenderer{Size: size, Level: RecoveryLevel(conf.Level)}
}

func (r QrRenderer) Render(url string) ([]byte, error) { return qrcode.Encode(url, r.Level, r.Size) }

// RecoveryLevel maps L, M, Q, H to the QR error correction levels.
// Anything else is M.
func RecoveryLevel(level string) qrcode.RecoveryLevel {
	switch strings.ToUpper(level) {
	case "L":
		return qrcode.Low
	case "Q":
		return qrcode.High
	case "H":
		return qrcode.Highest
	default:
		return qrcode.Medium
	}
}

// ShareableInvitation is what a player needs to join: a link and its picture.
type ShareableInvitation struct {
	// PlayerId is empty when the player id is only known after JOIN.
	PlayerId string
	ShareURL string
	Image    []byte
}

// DataURL returns the image as a data:image/png;base64 URL.
func (i ShareableInvitation) DataURL() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(i.Image)
}
