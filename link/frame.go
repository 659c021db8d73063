package link

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// Формат кадра:
//
//	0xCC | type (1) | length (2, LE) | payload | crc32 payload (4, LE)
const (
	frameMagic      = 0xCC
	frameHeaderSize = 4
	MaxPayload      = 1024
)

// FrameType: канал, к которому относится кадр
type FrameType byte

const (
	FrameAck   FrameType = 0x01 // команда с подтверждением
	FrameNoAck FrameType = 0x02 // команда без подтверждения (PCMD)
	FrameEvent FrameType = 0x03 // событие устройства
)

var (
	// ErrChecksum: контрольная сумма кадра не совпала
	ErrChecksum = errors.New("frame checksum mismatch")
	// ErrFrameTooLarge: длина кадра больше MaxPayload
	ErrFrameTooLarge = errors.New("frame too large")
)

// WriteFrame записывает кадр одним вызовом Write
func WriteFrame(w io.Writer, t FrameType, payload []byte) error {
	if len(payload) > MaxPayload {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	buf := make([]byte, frameHeaderSize, frameHeaderSize+len(payload)+4)
	buf[0] = frameMagic
	buf[1] = byte(t)
	binary.LittleEndian.PutUint16(buf[2:], uint16(len(payload)))
	buf = append(buf, payload...)
	buf = binary.LittleEndian.AppendUint32(buf, crc32.ChecksumIEEE(payload))
	_, err := w.Write(buf)
	return err
}

// ReadFrame читает следующий кадр. Байты до маркера пропускаются.
func ReadFrame(r *bufio.Reader) (FrameType, []byte, error) {
	skipped := 0
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, nil, err
		}
		if b == frameMagic {
			break
		}
		skipped++
	}
	if skipped > 0 {
		logger.Printf("Warning: skipped %d bytes before frame marker", skipped)
	}

	var header [frameHeaderSize - 1]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}
	t := FrameType(header[0])
	length := int(binary.LittleEndian.Uint16(header[1:]))
	if length > MaxPayload {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}

	body := make([]byte, length+4)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	payload := body[:length]
	if crc32.ChecksumIEEE(payload) != binary.LittleEndian.Uint32(body[length:]) {
		return 0, nil, ErrChecksum
	}
	return t, payload, nil
}
