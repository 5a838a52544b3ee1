/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"sync"
)

// ContentReader extracts message payloads from a byte stream framed with
// Content-Length headers. The reader tolerates garbage between frames: it
// scans forward until it finds the next "Content-Length:" token, so a
// corrupted frame does not poison the rest of the stream.
//
// ContentReader is not safe for concurrent use; the session owns a single
// receive goroutine that is the only caller.
type ContentReader struct {
	reader *bufio.Reader
}

// NewContentReader creates a ContentReader over r.
func NewContentReader(r io.Reader) *ContentReader {
	return &ContentReader{reader: bufio.NewReader(r)}
}

const contentLengthToken = "Content-Length:"

// Read blocks until a complete framed message is available and returns its
// payload. When the underlying stream ends, Read returns ErrStreamClosed.
func (c *ContentReader) Read() ([]byte, error) {
	for {
		if err := c.scanToken(contentLengthToken); err != nil {
			return nil, err
		}

		length, err := c.readLength()
		if err != nil {
			if err == errMalformedHeader {
				// Not a number where one was expected. Resume scanning for
				// the next header token.
				continue
			}
			return nil, err
		}

		if err := c.scanToken("\r\n\r\n"); err != nil {
			return nil, err
		}

		body := make([]byte, length)
		if _, err := io.ReadFull(c.reader, body); err != nil {
			return nil, ErrStreamClosed
		}
		return body, nil
	}
}

var errMalformedHeader = fmt.Errorf("malformed header")

// scanToken consumes bytes until the token has been matched in full. A
// mismatch restarts the match, keeping the current byte as a possible first
// token byte.
func (c *ContentReader) scanToken(token string) error {
	matched := 0
	for matched < len(token) {
		b, err := c.reader.ReadByte()
		if err != nil {
			return ErrStreamClosed
		}
		if b == token[matched] {
			matched++
		} else if b == token[0] {
			matched = 1
		} else {
			matched = 0
		}
	}
	return nil
}

// readLength skips optional spaces and tabs, then parses the decimal byte
// count that follows. The first byte after the digits is left unconsumed for
// the terminator scan.
func (c *ContentReader) readLength() (int, error) {
	var b byte
	var err error
	for {
		b, err = c.reader.ReadByte()
		if err != nil {
			return 0, ErrStreamClosed
		}
		if b != ' ' && b != '\t' {
			break
		}
	}

	if b < '0' || b > '9' {
		return 0, errMalformedHeader
	}

	digits := []byte{b}
	for {
		b, err = c.reader.ReadByte()
		if err != nil {
			return 0, ErrStreamClosed
		}
		if b < '0' || b > '9' {
			if err := c.reader.UnreadByte(); err != nil {
				return 0, ErrStreamClosed
			}
			break
		}
		digits = append(digits, b)
	}

	length, err := strconv.Atoi(string(digits))
	if err != nil {
		return 0, errMalformedHeader
	}
	return length, nil
}

// ContentWriter frames message payloads with Content-Length headers and
// writes them to a byte stream. Writes are serialized, so a ContentWriter is
// safe for concurrent use.
type ContentWriter struct {
	writer io.Writer

	// writeMu keeps header and body of one frame contiguous on the wire.
	writeMu sync.Mutex
}

// NewContentWriter creates a ContentWriter over w.
func NewContentWriter(w io.Writer) *ContentWriter {
	return &ContentWriter{writer: w}
}

// Write frames payload and writes it as a single frame.
func (c *ContentWriter) Write(payload []byte) error {
	frame := make([]byte, 0, len(contentLengthToken)+len(payload)+16)
	frame = append(frame, contentLengthToken...)
	frame = append(frame, ' ')
	frame = strconv.AppendInt(frame, int64(len(payload)), 10)
	frame = append(frame, "\r\n\r\n"...)
	frame = append(frame, payload...)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.writer.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// pipeEnd is one end of an in-memory bidirectional byte stream. Reads pull
// from one direction's pipe, writes push into the other's.
type pipeEnd struct {
	reader *io.PipeReader
	writer *io.PipeWriter

	closeOnce sync.Once
}

func (p *pipeEnd) Read(b []byte) (int, error)  { return p.reader.Read(b) }
func (p *pipeEnd) Write(b []byte) (int, error) { return p.writer.Write(b) }

func (p *pipeEnd) Close() error {
	p.closeOnce.Do(func() {
		p.reader.Close()
		p.writer.Close()
	})
	return nil
}

// NewPipe creates a synchronous in-memory bidirectional stream and returns
// its two ends. Bytes written to one end become readable on the other.
// Closing either end unblocks reads and writes on both.
func NewPipe() (io.ReadWriteCloser, io.ReadWriteCloser) {
	clientReader, serverWriter := io.Pipe()
	serverReader, clientWriter := io.Pipe()
	client := &pipeEnd{reader: clientReader, writer: clientWriter}
	server := &pipeEnd{reader: serverReader, writer: serverWriter}
	return client, server
}
