package serial

import (
	"bytes"
	"strings"
)

const maxLineLength = 1024

// lineFramer splits a byte stream into newline-terminated lines. Lines longer
// than maxLineLength are discarded up to the next newline.
type lineFramer struct {
	buf      []byte
	overflow bool
}

// feed appends chunk and calls emit for every complete line, with a trailing
// \r trimmed and invalid UTF-8 replaced. It returns how many overlong lines
// were discarded.
func (f *lineFramer) feed(chunk []byte, emit func(line string)) (discarded int) {
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			f.append(chunk)
			return discarded
		}

		f.append(chunk[:i])
		chunk = chunk[i+1:]

		if f.overflow {
			discarded++
		} else {
			line := bytes.TrimSuffix(f.buf, []byte{'\r'})
			emit(strings.ToValidUTF8(string(line), "�"))
		}
		f.buf = f.buf[:0]
		f.overflow = false
	}
	return discarded
}

func (f *lineFramer) append(b []byte) {
	if f.overflow {
		return
	}
	if len(f.buf)+len(b) > maxLineLength {
		f.overflow = true
		f.buf = f.buf[:0]
		return
	}
	f.buf = append(f.buf, b...)
}

// reset drops any partial line, used when the port is reopened.
func (f *lineFramer) reset() {
	f.buf = f.buf[:0]
	f.overflow = false
}
