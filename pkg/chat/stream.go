package chat

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/harunnryd/tutorcore/pkg/frames"
)

const maxLineBytes = 1 << 20

// StreamStats summarizes one assembled stream.
type StreamStats struct {
	Lines   int
	Deltas  int
	Ignored int
	Done    bool
}

// Assemble reads r line by line, in order, until a done event or the end of
// the body. It returns whatever text was accumulated together with the read
// error, if any, so callers can decide what a partial reply is worth.
// A line longer than maxLineBytes is skipped as a decode error.
func Assemble(r io.Reader, onEvent func(frames.Event)) (string, StreamStats, error) {
	var (
		b     strings.Builder
		stats StreamStats
	)
	handle := func(ev frames.Event) bool {
		stats.Lines++
		if onEvent != nil {
			onEvent(ev)
		}
		switch ev.Kind {
		case frames.KindDelta:
			stats.Deltas++
			b.WriteString(ev.Text)
		case frames.KindDone:
			stats.Done = true
			return true
		default:
			stats.Ignored++
		}
		return false
	}

	reader := bufio.NewReaderSize(r, maxLineBytes)
	for {
		line, err := reader.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			err = skipLine(reader)
			if handle(frames.Ignored(frames.IgnoreDecodeError)) {
				return b.String(), stats, nil
			}
		} else if len(line) > 0 && (err == nil || errors.Is(err, io.EOF)) {
			if handle(frames.DecodeBytes(trimEOL(line))) {
				return b.String(), stats, nil
			}
		}
		if errors.Is(err, io.EOF) {
			return b.String(), stats, nil
		}
		if err != nil {
			return b.String(), stats, err
		}
	}
}

// skipLine consumes the remainder of an over-long line.
func skipLine(reader *bufio.Reader) error {
	for {
		_, err := reader.ReadSlice('\n')
		if !errors.Is(err, bufio.ErrBufferFull) {
			return err
		}
	}
}

func trimEOL(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte("\n"))
	return bytes.TrimSuffix(line, []byte("\r"))
}
