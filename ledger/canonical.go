package ledger

import (
	"bytes"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"
)

const hexDigits = "0123456789abcdef"

// canonicalEncoding renders the hashed fields of b as sorted-key JSON with
// ", " and ": " separators, the layout produced by most JSON libraries'
// "sort keys" mode with default separators.
func canonicalEncoding(b Block) []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"index": `)
	buf.WriteString(strconv.FormatUint(b.Index, 10))
	buf.WriteString(`, "nonce": `)
	buf.WriteString(strconv.FormatUint(b.Nonce, 10))
	buf.WriteString(`, "previous_hash": `)
	writeString(&buf, b.PreviousHash)
	buf.WriteString(`, "timestamp": `)
	writeReal(&buf, b.Timestamp)
	buf.WriteString(`, "transactions": [`)
	for i, tx := range b.Transactions {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(`{"amount": `)
		writeReal(&buf, tx.Amount)
		buf.WriteString(`, "from": `)
		writeParty(&buf, tx.From)
		buf.WriteString(`, "to": `)
		writeParty(&buf, tx.To)
		buf.WriteByte('}')
	}
	buf.WriteString("]}")
	return buf.Bytes()
}

func writeParty(buf *bytes.Buffer, p Party) {
	if p.IsMint() {
		buf.WriteString("null")
		return
	}
	writeString(buf, string(p))
}

// writeReal prints the shortest decimal that round-trips f. Integral values
// keep a ".0" suffix; exponents below -4 or from 16 up switch to e-notation.
func writeReal(buf *bytes.Buffer, f float64) {
	switch {
	case math.IsNaN(f):
		buf.WriteString("NaN")
		return
	case math.IsInf(f, 1):
		buf.WriteString("Infinity")
		return
	case math.IsInf(f, -1):
		buf.WriteString("-Infinity")
		return
	}
	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, _ := strconv.Atoi(sci[strings.LastIndexByte(sci, 'e')+1:])
	if exp < -4 || exp >= 16 {
		buf.WriteString(sci)
		return
	}
	fixed := strconv.FormatFloat(f, 'f', -1, 64)
	buf.WriteString(fixed)
	if !strings.ContainsRune(fixed, '.') {
		buf.WriteString(".0")
	}
}

// writeString quotes s using only printable ASCII.
func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			switch {
			case r >= 0x20 && r <= 0x7e:
				buf.WriteRune(r)
			case r > 0xffff:
				hi, lo := utf16.EncodeRune(r)
				writeUnicodeEscape(buf, hi)
				writeUnicodeEscape(buf, lo)
			default:
				writeUnicodeEscape(buf, r)
			}
		}
	}
	buf.WriteByte('"')
}

func writeUnicodeEscape(buf *bytes.Buffer, r rune) {
	buf.WriteString(`\u`)
	buf.WriteByte(hexDigits[(r>>12)&0xf])
	buf.WriteByte(hexDigits[(r>>8)&0xf])
	buf.WriteByte(hexDigits[(r>>4)&0xf])
	buf.WriteByte(hexDigits[r&0xf])
}
