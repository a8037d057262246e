package gst

import (
	"errors"
	"strings"
)

const gstinCharset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

var (
	ErrGSTINLength   = errors.New("gstin must be 15 characters")
	ErrGSTINState    = errors.New("gstin has an invalid state code")
	ErrGSTINPAN      = errors.New("gstin has an invalid PAN")
	ErrGSTINEntity   = errors.New("gstin has an invalid entity number")
	ErrGSTINDefault  = errors.New("gstin 14th character must be Z")
	ErrGSTINChecksum = errors.New("gstin checksum mismatch")
)

// NormalizeGSTIN upper-cases and trims a GSTIN.
func NormalizeGSTIN(gstin string) string {
	return strings.ToUpper(strings.TrimSpace(gstin))
}

// ValidateGSTIN checks the structure and mod-36 check character of gstin.
func ValidateGSTIN(gstin string) error {
	g := NormalizeGSTIN(gstin)
	if len(g) != 15 {
		return ErrGSTINLength
	}
	if !ValidStateCode(g[:2]) {
		return ErrGSTINState
	}
	pan := g[2:12]
	for i := 0; i < 10; i++ {
		c := pan[i]
		switch {
		case i < 5 || i == 9:
			if c < 'A' || c > 'Z' {
				return ErrGSTINPAN
			}
		default:
			if c < '0' || c > '9' {
				return ErrGSTINPAN
			}
		}
	}
	entity := g[12]
	if !((entity >= '1' && entity <= '9') || (entity >= 'A' && entity <= 'Z')) {
		return ErrGSTINEntity
	}
	if g[13] != 'Z' {
		return ErrGSTINDefault
	}
	check, ok := ChecksumChar(g[:14])
	if !ok || check != g[14] {
		return ErrGSTINChecksum
	}
	return nil
}

// ChecksumChar computes the check character for the first 14 characters of
// a GSTIN.
func ChecksumChar(first14 string) (byte, bool) {
	if len(first14) != 14 {
		return 0, false
	}
	sum := 0
	for i := 0; i < 14; i++ {
		value := strings.IndexByte(gstinCharset, first14[i])
		if value < 0 {
			return 0, false
		}
		factor := 1
		if i%2 == 1 {
			factor = 2
		}
		product := value * factor
		sum += product/36 + product%36
	}
	return gstinCharset[(36-sum%36)%36], true
}

// StateCode returns the two digit state prefix of gstin, or "" when it is
// too short.
func StateCode(gstin string) string {
	g := NormalizeGSTIN(gstin)
	if len(g) < 2 {
		return ""
	}
	return g[:2]
}

// ValidStateCode accepts 01-38 plus 97 (other territory) and 99 (centre
// jurisdiction).
func ValidStateCode(code string) bool {
	if len(code) != 2 || code[0] < '0' || code[0] > '9' || code[1] < '0' || code[1] > '9' {
		return false
	}
	n := int(code[0]-'0')*10 + int(code[1]-'0')
	return (n >= 1 && n <= 38) || n == 97 || n == 99
}
