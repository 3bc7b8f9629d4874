package agent

import "bytes"

// lineSplitter is an io.Writer that splits a byte stream on newlines
// and hands complete lines to a callback. The OS delivers process
// output in arbitrary-sized chunks with no line-alignment guarantee, so
// an incomplete trailing fragment is retained and prefixed onto the
// next chunk.
type lineSplitter struct {
	buf  []byte
	emit func(line string)
}

func newLineSplitter(emit func(line string)) *lineSplitter {
	return &lineSplitter{emit: emit}
}

func (s *lineSplitter) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	for {
		idx := bytes.IndexByte(s.buf, '\n')
		if idx < 0 {
			return len(p), nil
		}
		line := s.buf[:idx]
		s.buf = s.buf[idx+1:]
		s.emit(string(bytes.TrimSuffix(line, []byte("\r"))))
	}
}

// Flush emits any buffered trailing fragment as a final line.
func (s *lineSplitter) Flush() {
	if len(s.buf) == 0 {
		return
	}
	line := string(bytes.TrimSuffix(s.buf, []byte("\r")))
	s.buf = nil
	if line != "" {
		s.emit(line)
	}
}
