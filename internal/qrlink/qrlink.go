// Package qrlink renders scan deep links as QR codes.
package qrlink

import (
	"fmt"
	"net/url"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const defaultSize = 256

// Generator builds deep links under a public base URL and encodes them
// as PNG QR codes.
type Generator struct {
	BaseURL string
	Size    int
}

// New creates a generator. Size <= 0 uses the default.
func New(baseURL string, size int) *Generator {
	if size <= 0 {
		size = defaultSize
	}
	return &Generator{BaseURL: strings.TrimRight(baseURL, "/"), Size: size}
}

// Link returns the scan deep link carrying the signed token.
func (g *Generator) Link(token string) string {
	return fmt.Sprintf("%s/v1/attendance/scan?token=%s", g.BaseURL, url.QueryEscape(token))
}

// PNG encodes the deep link for the token as a QR PNG.
func (g *Generator) PNG(token string) ([]byte, error) {
	return qrcode.Encode(g.Link(token), qrcode.Medium, g.Size)
}
