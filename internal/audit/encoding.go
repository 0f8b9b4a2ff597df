package audit

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ignite/personal-audit/internal/pkg/logger"
)

type unitLayout int

const (
	byteUnits unitLayout = iota
	utf16LE
	utf16BE
	utf16BOM
)

var (
	errOddLength       = errors.New("truncated data: odd number of bytes")
	errInvalidSequence = errors.New("invalid byte sequence")
	errUndefinedByte   = errors.New("byte maps to <undefined>")
	errImplausible     = errors.New("decoded text contains no ASCII characters")
)

// Encoding is a named text encoding with strict decoding. The x/text
// decoders substitute U+FFFD for bad input, so each encoding carries the
// check that turns substitution into an error.
type Encoding struct {
	Name   string
	codec  encoding.Encoding
	layout unitLayout
	check  func(raw []byte, decoded string) error
}

// Supported encodings, named the way users pass them on the command line.
var (
	// UTF16 requires a byte order mark and follows it.
	UTF16 = Encoding{
		Name:   "utf-16",
		codec:  unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM),
		layout: utf16BOM,
		check:  checkUTF16,
	}
	// UTF16LE and UTF16BE read BOM-less UTF-16 in a fixed byte order.
	UTF16LE = Encoding{
		Name:   "utf-16-le",
		codec:  unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM),
		layout: utf16LE,
		check:  checkUTF16,
	}
	UTF16BE = Encoding{
		Name:   "utf-16-be",
		codec:  unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM),
		layout: utf16BE,
		check:  checkUTF16,
	}
	// UTF8 drops a leading BOM.
	UTF8 = Encoding{
		Name:  "utf-8",
		codec: unicode.UTF8BOM,
		check: checkUTF8,
	}
	// Latin1 and ISO88591 accept every byte.
	Latin1 = Encoding{
		Name:  "latin-1",
		codec: charmap.ISO8859_1,
	}
	// CP1252 is Windows-1252.
	CP1252 = Encoding{
		Name:  "cp1252",
		codec: charmap.Windows1252,
		check: checkCP1252,
	}
	ISO88591 = Encoding{
		Name:  "iso-8859-1",
		codec: charmap.ISO8859_1,
	}
)

// detectionOrder is the order in which encodings are probed.
var detectionOrder = []Encoding{UTF16, UTF16LE, UTF16BE, UTF8, Latin1, CP1252, ISO88591}

// Decode converts data to a string, failing on any byte the encoding
// cannot represent.
func (e Encoding) Decode(data []byte) (string, error) {
	out, _, err := transform.Bytes(e.codec.NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", e.Name, err)
	}
	text := string(out)
	if e.check != nil {
		if err := e.check(data, text); err != nil {
			return "", fmt.Errorf("%s: %w", e.Name, err)
		}
	}
	return text, nil
}

// FirstLine returns the raw bytes of the first line, terminator included.
func (e Encoding) FirstLine(data []byte) []byte {
	switch e.layout {
	case utf16LE:
		return cutUnits(data, 0x0A, 0x00)
	case utf16BE:
		return cutUnits(data, 0x00, 0x0A)
	case utf16BOM:
		if bytes.HasPrefix(data, []byte{0xFE, 0xFF}) {
			return cutUnits(data, 0x00, 0x0A)
		}
		return cutUnits(data, 0x0A, 0x00)
	default:
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			return data[:i+1]
		}
		return data
	}
}

// cutUnits scans two-byte code units for the newline unit {a, b}.
func cutUnits(data []byte, a, b byte) []byte {
	for i := 0; i+1 < len(data); i += 2 {
		if data[i] == a && data[i+1] == b {
			return data[:i+2]
		}
	}
	return data
}

func checkUTF16(raw []byte, decoded string) error {
	if len(raw)%2 != 0 {
		return errOddLength
	}
	if strings.ContainsRune(decoded, utf8.RuneError) {
		return errInvalidSequence
	}
	return nil
}

func checkUTF8(raw []byte, _ string) error {
	if !utf8.Valid(raw) {
		return errInvalidSequence
	}
	return nil
}

// checkCP1252 rejects the bytes Windows-1252 leaves unassigned.
func checkCP1252(raw []byte, _ string) error {
	for _, b := range raw {
		switch b {
		case 0x81, 0x8D, 0x8F, 0x90, 0x9D:
			return errUndefinedByte
		}
	}
	return nil
}

// LookupEncoding finds a supported encoding by name, ignoring case.
func LookupEncoding(name string) (Encoding, bool) {
	for _, e := range detectionOrder {
		if strings.EqualFold(e.Name, name) {
			return e, true
		}
	}
	return Encoding{}, false
}

// DetectEncoding returns the first encoding under which the first line of
// data decodes cleanly.
func DetectEncoding(data []byte) (Encoding, error) {
	for _, enc := range detectionOrder {
		if err := probe(enc, data); err != nil {
			logger.Debug("encoding rejected", "encoding", enc.Name, "error", err)
			continue
		}
		return enc, nil
	}
	return Encoding{}, ErrEncodingUndetermined
}

func probe(enc Encoding, data []byte) error {
	line, err := enc.Decode(enc.FirstLine(data))
	if err != nil {
		return err
	}
	// Without a BOM any even run of 8-bit text decodes as UTF-16. Paired
	// 8-bit bytes never yield a unit below 0x80, a real header always does.
	if enc.layout == utf16LE || enc.layout == utf16BE {
		if line != "" && !hasASCII(line) {
			return errImplausible
		}
	}
	return nil
}

func hasASCII(s string) bool {
	for _, r := range s {
		if r < utf8.RuneSelf {
			return true
		}
	}
	return false
}
