package decode

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// ErrUnsupportedCharset is returned for a charset name no decoder handles.
var ErrUnsupportedCharset = errors.New("unsupported charset")

// lookupCharset maps a charset name to its encoding. UTF-8 maps to nil.
func lookupCharset(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "gbk", "gb2312", "cp936":
		return simplifiedchinese.GBK, nil
	case "gb18030":
		return simplifiedchinese.GB18030, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCharset, name)
	}
}

// ValidateCharset reports whether name is a supported charset.
func ValidateCharset(name string) error {
	_, err := lookupCharset(name)
	return err
}

// ToUTF8 transcodes body from the named charset to UTF-8.
func ToUTF8(body []byte, charset string) ([]byte, error) {
	enc, err := lookupCharset(charset)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return body, nil
	}

	out, _, err := transform.Bytes(enc.NewDecoder(), body)
	if err != nil {
		return nil, fmt.Errorf("decode %s body: %w", charset, err)
	}
	return out, nil
}
