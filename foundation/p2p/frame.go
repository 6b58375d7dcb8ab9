// Package p2p provides the length-framed TCP transport used between nodes.
// A frame is an 8 byte big-endian length followed by that many payload bytes.
package p2p

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// HeaderSize is the number of bytes in the frame length prefix.
const HeaderSize = 8

// DefaultMaxFrameSize bounds the payload a peer can make us allocate.
const DefaultMaxFrameSize = 32 << 20

// Set of error variables for the transport.
var (
	ErrNetwork  = errors.New("network error")
	ErrProtocol = errors.New("protocol error")
)

// WriteFrame writes the payload with its length prefix in a single write.
func WriteFrame(w io.Writer, payload []byte) error {
	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint64(buf[:HeaderSize], uint64(len(payload)))
	copy(buf[HeaderSize:], payload)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("%w: write frame: %w", ErrNetwork, err)
	}

	return nil
}

// ReadFrame reads one frame, accumulating short reads. A clean EOF before the
// length prefix means the peer disconnected.
func ReadFrame(r io.Reader, maxSize uint64) ([]byte, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: peer disconnected: %w", ErrNetwork, err)
		}
		return nil, fmt.Errorf("%w: read frame length: %w", ErrNetwork, err)
	}

	length := binary.BigEndian.Uint64(header[:])
	if maxSize == 0 {
		maxSize = DefaultMaxFrameSize
	}

	if length > maxSize {
		return nil, fmt.Errorf("%w: frame length %d exceeds %d", ErrProtocol, length, maxSize)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: read frame payload: %w", ErrNetwork, err)
	}

	return payload, nil
}
