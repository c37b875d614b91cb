package sse

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
)

// maxLineBytes bounds one inbound protocol message.
const maxLineBytes = 1 << 20

// ScanMessages decodes the inbound byte stream as UTF-8 text, splits it on
// line boundaries and hands each candidate message to dispatch. Lines that
// are empty or begin with an SSE field prefix ("data:", "event:") are echo
// artifacts, not payload, and are skipped. A line that fails to parse as
// JSON, or that exceeds maxLineBytes, is logged and skipped; nothing a
// peer sends can abort the stream. Returns when the input is exhausted or
// the underlying read fails.
//
// dispatch receives its own copy of the line and may retain it.
func ScanMessages(r io.Reader, log *slog.Logger, dispatch func(json.RawMessage)) error {
	br := bufio.NewReaderSize(r, 64*1024)

	process := func(line []byte) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			return
		}
		if bytes.HasPrefix(line, []byte("data:")) || bytes.HasPrefix(line, []byte("event:")) {
			return
		}
		if !json.Valid(line) {
			log.Warn("skipping malformed inbound line", "bytes", len(line))
			return
		}
		msg := make(json.RawMessage, len(line))
		copy(msg, line)
		dispatch(msg)
	}

	var (
		line     []byte
		overflow bool
	)
	endLine := func() {
		if overflow {
			log.Warn("skipping oversized inbound line", "limit", maxLineBytes)
		} else {
			process(line)
		}
		line = line[:0]
		overflow = false
	}

	// ReadLine hands back at most one buffer's worth per call, so an
	// over-long line is drained fragment by fragment and dropped at its
	// end instead of ending the scan.
	for {
		fragment, isPrefix, err := br.ReadLine()
		if len(fragment) > 0 && !overflow {
			if len(line)+len(fragment) > maxLineBytes {
				overflow = true
			} else {
				line = append(line, fragment...)
			}
		}
		if err != nil {
			if overflow || len(line) > 0 {
				endLine()
			}
			if err == io.EOF {
				return nil
			}
			return err
		}
		if isPrefix {
			continue
		}
		endLine()
	}
}
