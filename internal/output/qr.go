package output

import (
	"io"

	"github.com/mdp/qrterminal/v3"
	"rsc.io/qr"
)

// QRConfig configures terminal QR rendering.
type QRConfig struct {
	Level      qr.Level
	QuietZone  int
	HalfBlocks bool
}

// DefaultQRConfig suits long login URLs: medium correction, compact blocks.
func DefaultQRConfig() QRConfig {
	return QRConfig{
		Level:      qr.M,
		QuietZone:  1,
		HalfBlocks: true,
	}
}

// CanRenderQR reports whether w is a terminal that can show a QR code.
func CanRenderQR(w io.Writer) bool {
	return IsTerminal(w)
}

// RenderQR draws data as a QR code so the login page can be opened on a
// phone. Nothing is written when w is not a terminal.
func RenderQR(w io.Writer, data string, cfg QRConfig) error {
	if !CanRenderQR(w) {
		return nil
	}
	return renderQR(w, data, cfg)
}

func renderQR(w io.Writer, data string, cfg QRConfig) error {
	// qrterminal swallows encoding errors, so check capacity up front.
	if _, err := qr.Encode(data, cfg.Level); err != nil {
		return err
	}

	qrterminal.GenerateWithConfig(data, qrterminal.Config{
		Level:          cfg.Level,
		Writer:         w,
		QuietZone:      cfg.QuietZone,
		HalfBlocks:     cfg.HalfBlocks,
		BlackChar:      qrterminal.BLACK_BLACK,
		WhiteChar:      qrterminal.WHITE_WHITE,
		WhiteBlackChar: qrterminal.WHITE_BLACK,
		BlackWhiteChar: qrterminal.BLACK_WHITE,
	})
	return nil
}
