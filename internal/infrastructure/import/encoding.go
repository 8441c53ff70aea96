package csvimport

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// delimiterSampleLines is the number of lines inspected by DetectDelimiter
const delimiterSampleLines = 5

// NormalizeText converts raw delimited-file bytes into UTF-8 text with LF line
// endings and no null bytes. Input that is not valid UTF-8 is read as
// Windows-1251, the default encoding of Russian spreadsheet exports.
func NormalizeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	data = bytes.ReplaceAll(data, []byte{0}, nil)
	if len(bytes.TrimSpace(data)) == 0 {
		return "", ErrEmptyFile
	}

	if !utf8.Valid(data) {
		decoded, _, err := transform.Bytes(charmap.Windows1251.NewDecoder(), data)
		if err != nil {
			return "", fmt.Errorf("%w: transcode windows-1251: %v", ErrDecodeFailed, err)
		}
		data = decoded
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return text, nil
}

// DetectDelimiter picks ';' when it is strictly more frequent than ',' in the
// first few lines, and ',' otherwise.
func DetectDelimiter(text string) rune {
	lines := strings.SplitN(text, "\n", delimiterSampleLines+1)
	if len(lines) > delimiterSampleLines {
		lines = lines[:delimiterSampleLines]
	}
	sample := strings.Join(lines, "\n")
	if strings.Count(sample, ";") > strings.Count(sample, ",") {
		return ';'
	}
	return ','
}
