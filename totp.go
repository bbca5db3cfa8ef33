package saasAuth

import (
	"bytes"
	"crypto/subtle"
	"encoding/base64"
	"image/png"
	"strings"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const totpSecretBytes = 20

// totpManager wraps TOTP generation and validation with the engine settings.
type totpManager struct {
	issuer string
	digits otp.Digits
	period uint
	skew   uint
	qrSize int
}

func newTOTPManager(cfg TwoFactorConfig, business string) *totpManager {
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = business
	}
	if issuer == "" {
		issuer = "saasAuth"
	}
	digits := otp.DigitsSix
	if cfg.Digits == 8 {
		digits = otp.DigitsEight
	}
	return &totpManager{
		issuer: issuer,
		digits: digits,
		period: uint(cfg.Period / time.Second),
		skew:   cfg.Skew,
		qrSize: cfg.QRCodeSize,
	}
}

// Generate returns a fresh base32 secret and its otpauth:// URI.
func (m *totpManager) Generate(account string) (secret, uri string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.issuer,
		AccountName: account,
		Period:      m.period,
		SecretSize:  totpSecretBytes,
		Digits:      m.digits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// Verify checks code against secret at t, accepting skew periods either side,
// and reports the time step it matched.
func (m *totpManager) Verify(code, secret string, t time.Time) (int64, bool) {
	code = strings.TrimSpace(code)
	if code == "" || secret == "" || len(code) != m.digits.Length() {
		return 0, false
	}
	period := int64(m.period)
	base := t.Unix() / period
	skew := int64(m.skew)
	for i := -skew; i <= skew; i++ {
		step := base + i
		if step < 0 {
			continue
		}
		want, err := m.Code(secret, time.Unix(step*period, 0))
		if err != nil {
			return 0, false
		}
		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 {
			return step, true
		}
	}
	return 0, false
}

// Code returns the code for secret at t.
func (m *totpManager) Code(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t, totp.ValidateOpts{
		Period:    m.period,
		Digits:    m.digits,
		Algorithm: otp.AlgorithmSHA1,
	})
}

// replayWindow is how long a used code stays marked: long enough to cover
// every period it can validate in.
func (m *totpManager) replayWindow() time.Duration {
	return time.Duration(2*m.skew+2) * time.Duration(m.period) * time.Second
}

// QRCode renders uri as a PNG data URL.
func (m *totpManager) QRCode(uri string) (string, error) {
	code, err := qr.Encode(uri, qr.M, qr.Auto)
	if err != nil {
		return "", err
	}
	code, err = barcode.Scale(code, m.qrSize, m.qrSize)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, code); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
