package audit

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEncodingUndetermined  = errors.New("could not determine file encoding")
	ErrParseFailed           = errors.New("all parsing methods failed")
	ErrMissingRequiredColumn = errors.New("required column not found")
	ErrUnsupportedEncoding   = errors.New("unsupported encoding")
)

// MissingColumnError names the absent column and what the file did have.
type MissingColumnError struct {
	Column    string
	Available []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("'%s' column not found. Available columns: %s", e.Column, quoteList(e.Available))
}

func (e *MissingColumnError) Unwrap() error { return ErrMissingRequiredColumn }

// quoteList renders names as ['a', 'b'].
func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
