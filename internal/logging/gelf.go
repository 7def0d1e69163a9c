package logging

import (
	"io"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGelfWriter connects a GELF UDP writer to a Graylog server. Returns nil
// when the address cannot be resolved; logging continues without Graylog.
func NewGelfWriter(address string) io.Writer {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil
	}
	return w
}
