package normalize

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	ListDelimiter = ","
	MaxListLen    = 191
)

var ErrInvalidList = errors.New("invalid list field")

// EncodeList serializes a list-valued movie field for storage. Elements
// containing the delimiter, and encodings longer than MaxListLen, are rejected
// rather than coerced.
func EncodeList(values []string) (string, error) {
	for _, v := range values {
		if strings.Contains(v, ListDelimiter) {
			return "", fmt.Errorf("%w: element %q contains %q", ErrInvalidList, v, ListDelimiter)
		}
	}
	encoded := strings.Join(values, ListDelimiter)
	if n := utf8.RuneCountInString(encoded); n > MaxListLen {
		return "", fmt.Errorf("%w: encoded length %d exceeds %d", ErrInvalidList, n, MaxListLen)
	}
	return encoded, nil
}

// DecodeList is the inverse of EncodeList. An empty string decodes to nil.
func DecodeList(encoded string) []string {
	if strings.TrimSpace(encoded) == "" {
		return nil
	}
	return strings.Split(encoded, ListDelimiter)
}
