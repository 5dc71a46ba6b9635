package logmux

import (
	"bytes"
	"strings"
)

// framer splits the chunk stream of each source into lines. Chunks carry no
// alignment, so an unterminated tail is held until the next chunk of the same
// source or the end of the run.
type framer struct {
	max     int
	partial map[string]*bytes.Buffer
}

func newFramer(max int) *framer {
	return &framer{max: max, partial: make(map[string]*bytes.Buffer)}
}

func (f *framer) push(source string, data []byte) []string {
	buf := f.partial[source]
	if buf == nil {
		buf = &bytes.Buffer{}
		f.partial[source] = buf
	}

	var lines []string
	for len(data) > 0 {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			buf.Write(data)
			break
		}
		buf.Write(data[:idx])
		lines = append(lines, trimLine(buf.String()))
		buf.Reset()
		data = data[idx+1:]
	}
	for f.max > 0 && buf.Len() >= f.max {
		lines = append(lines, string(buf.Next(f.max)))
	}
	return lines
}

func (f *framer) flush(source string) []string {
	buf := f.partial[source]
	if buf == nil || buf.Len() == 0 {
		return nil
	}
	line := trimLine(buf.String())
	buf.Reset()
	return []string{line}
}

func trimLine(line string) string {
	return strings.TrimSuffix(line, "\r")
}
