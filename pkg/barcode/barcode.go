// Package barcode validates and canonicalizes product barcodes. Providers use
// UPC and EAN numbering inconsistently, so lookups go through Normalize first.
package barcode

import (
	"regexp"
	"strings"
)

var barcodePattern = regexp.MustCompile(`^\d{8,14}$`)

// IsValid reports whether s is an 8-14 digit numeric barcode.
func IsValid(s string) bool {
	return barcodePattern.MatchString(s)
}

// Normalize reconciles UPC and EAN numbering spaces: it strips leading zeros,
// then pads short codes to 8 digits (UPC-E shorthand promoted to UPC-A length)
// and 9-12 digit codes to 13 (UPC-A promoted to EAN-13). Anything else is
// returned unchanged. No checksum validation is performed.
func Normalize(s string) string {
	trimmed := strings.TrimLeft(s, "0")
	switch n := len(trimmed); {
	case n <= 7:
		return pad(trimmed, 8)
	case n >= 9 && n <= 12:
		return pad(trimmed, 13)
	default:
		return s
	}
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
