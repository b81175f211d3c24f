package label

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const sniffLen = 4096

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Charsets chardet may report for manifests exported by spreadsheet tools.
var detectedCharsets = map[string]encoding.Encoding{
	"ISO-8859-1":   charmap.Windows1252,
	"windows-1252": charmap.Windows1252,
	"ISO-8859-9":   charmap.ISO8859_9,
	"ISO-8859-15":  charmap.ISO8859_15,
	"UTF-16LE":     unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM),
	"UTF-16BE":     unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM),
}

// utf8Reader returns r decoded to UTF-8 with any byte order mark removed.
// Manifests without a BOM that are not valid UTF-8 are decoded with the
// charset chardet reports, falling back to Windows-1252.
func utf8Reader(r io.Reader) (io.Reader, error) {
	br := bufio.NewReaderSize(r, sniffLen)

	head, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("peek: %w", err)
	}

	enc, bomLen := sniff(head, err == io.EOF)

	if bomLen > 0 {
		_, _ = br.Discard(bomLen)
	}

	if enc == nil {
		return br, nil
	}

	return transform.NewReader(br, enc.NewDecoder()), nil
}

// sniff picks the encoding of a stream from its first bytes. A nil encoding
// means the stream is already UTF-8; bomLen bytes should be skipped.
func sniff(head []byte, complete bool) (enc encoding.Encoding, bomLen int) {
	switch {
	case bytes.HasPrefix(head, bomUTF8):
		return nil, len(bomUTF8)
	case bytes.HasPrefix(head, bomUTF16LE):
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), 0
	case bytes.HasPrefix(head, bomUTF16BE):
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM), 0
	}

	if !complete {
		head = dropPartialRune(head)
	}

	if utf8.Valid(head) {
		return nil, 0
	}

	if res, err := chardet.NewTextDetector().DetectBest(head); err == nil {
		if res.Charset == "UTF-8" {
			return nil, 0
		}

		if enc, ok := detectedCharsets[res.Charset]; ok {
			return enc, 0
		}
	}

	return charmap.Windows1252, 0
}

// dropPartialRune trims a multi-byte sequence cut off at the end of b.
func dropPartialRune(b []byte) []byte {
	i := len(b) - 1
	for i > 0 && len(b)-i < utf8.UTFMax && !utf8.RuneStart(b[i]) {
		i--
	}

	if i >= 0 && !utf8.FullRune(b[i:]) {
		return b[:i]
	}

	return b
}
