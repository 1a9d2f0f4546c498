package tokenize

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/shinji-kodama/each/internal/model"
)

// DecodeError reports malformed input under the strict policy.
type DecodeError struct {
	// Encoding is the canonical name of the encoding in use.
	Encoding string

	// Offset is the byte offset of the first malformed sequence, or -1 when
	// the decoder cannot report it.
	Offset int

	// Byte is the offending byte when Offset is known.
	Byte byte
}

func (e *DecodeError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("input is not valid %s", e.Encoding)
	}
	return fmt.Sprintf("'%s' codec can't decode byte 0x%02x in position %d", e.Encoding, e.Byte, e.Offset)
}

// Canonical names of the encodings handled outside htmlindex.
const (
	nameASCII  = "ascii"
	nameLatin1 = "iso-8859-1"
)

// exactLabels maps labels that the WHATWG index would alias to windows-1252
// onto the encodings they name.
var exactLabels = map[string]string{
	"ascii":          nameASCII,
	"us-ascii":       nameASCII,
	"646":            nameASCII,
	"ansi-x3.4-1968": nameASCII,
	"latin1":         nameLatin1,
	"latin-1":        nameLatin1,
	"l1":             nameLatin1,
	"iso-8859-1":     nameLatin1,
	"iso8859-1":      nameLatin1,
	"iso-ir-100":     nameLatin1,
	"cp819":          nameLatin1,
	"ibm819":         nameLatin1,
	"8859":           nameLatin1,
}

// LookupEncoding resolves an encoding label such as "utf-8", "latin1",
// "utf_16le" or "shift_jis". Python-style underscores are accepted.
// It returns the encoding and its canonical name.
//
// Latin-1 and ASCII labels keep their exact meaning rather than the WHATWG
// windows-1252 alias. ASCII has no x/text codec: it is returned as
// encoding.Nop and Decode checks the 7-bit range itself.
func LookupEncoding(name string) (encoding.Encoding, string, error) {
	label := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
	switch label {
	case "utf8", "u8":
		label = "utf-8"
	}

	switch exactLabels[label] {
	case nameASCII:
		return encoding.Nop, nameASCII, nil
	case nameLatin1:
		return charmap.ISO8859_1, nameLatin1, nil
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, "", fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	canonical, err := htmlindex.Name(enc)
	if err != nil {
		canonical = label
	}
	return enc, canonical, nil
}

// Decode converts raw input bytes into text using the named encoding and
// malformed-input policy.
func Decode(data []byte, encodingName string, policy model.DecodePolicy) (string, error) {
	enc, canonical, err := LookupEncoding(encodingName)
	if err != nil {
		return "", err
	}
	switch canonical {
	case "utf-8":
		return decodeUTF8(data, policy)
	case nameASCII:
		return decodeASCII(data, policy)
	}

	// x/text decoders substitute U+FFFD for malformed input; the policy is
	// applied to the decoded text.
	text, err := enc.NewDecoder().String(string(data))
	if err != nil {
		return "", fmt.Errorf("decoding %s input: %w", canonical, err)
	}
	switch policy {
	case model.PolicyStrict:
		if strings.ContainsRune(text, utf8.RuneError) {
			return "", &DecodeError{Encoding: canonical, Offset: -1}
		}
	case model.PolicyIgnore:
		text = strings.ReplaceAll(text, string(utf8.RuneError), "")
	}
	return text, nil
}

// decodeASCII treats every byte >= 0x80 as malformed.
func decodeASCII(data []byte, policy model.DecodePolicy) (string, error) {
	if policy == model.PolicyPassthrough {
		return string(data), nil
	}

	var b strings.Builder
	b.Grow(len(data))
	for i, c := range data {
		if c < utf8.RuneSelf {
			b.WriteByte(c)
			continue
		}
		switch policy {
		case model.PolicyStrict:
			return "", &DecodeError{Encoding: nameASCII, Offset: i, Byte: c}
		case model.PolicyReplace:
			b.WriteRune(utf8.RuneError)
		}
	}
	return b.String(), nil
}

// decodeUTF8 applies the policy byte by byte, so that replace and ignore act
// on each malformed byte individually.
func decodeUTF8(data []byte, policy model.DecodePolicy) (string, error) {
	if utf8.Valid(data) || policy == model.PolicyPassthrough {
		return string(data), nil
	}

	var b strings.Builder
	b.Grow(len(data))
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size <= 1 {
			switch policy {
			case model.PolicyStrict:
				return "", &DecodeError{Encoding: "utf-8", Offset: i, Byte: data[i]}
			case model.PolicyReplace:
				b.WriteRune(utf8.RuneError)
			}
			i++
			continue
		}
		b.Write(data[i : i+size])
		i += size
	}
	return b.String(), nil
}
