package feature

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
)

var logger = log.New(os.Stdout, "[Feature-Codec] ", log.LstdFlags|log.Lshortfile)

var (
	// ErrUnknownCommand: ID команды отсутствует в каталоге
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUnknownEvent: ID события отсутствует в каталоге
	ErrUnknownEvent = errors.New("unknown event")
	// ErrShortPayload: сообщение короче своих аргументов
	ErrShortPayload = errors.New("short payload")
)

// argsDecoder читает аргументы фиксированного размера одного типа сообщения
type argsDecoder func(r io.Reader) (any, error)

func decoderFor[T any]() argsDecoder {
	return func(r io.Reader) (any, error) {
		var v T
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

// commandDecoders: таблица декодеров команд по ID
var commandDecoders = map[ID]argsDecoder{
	IDAllStates:     decoderFor[AllStates](),
	IDTakeOff:       decoderFor[TakeOff](),
	IDLanding:       decoderFor[Landing](),
	IDEmergency:     decoderFor[Emergency](),
	IDPCMD:          decoderFor[PCMD](),
	IDMoveTo:        decoderFor[MoveTo](),
	IDCancelMoveTo:  decoderFor[CancelMoveTo](),
	IDMoveBy:        decoderFor[MoveBy](),
	IDFollowMeStart: decoderFor[FollowMeStart](),
	IDFollowMeStop:  decoderFor[FollowMeStop](),
	IDSetMaxTilt:    decoderFor[SetMaxTilt](),
}

// eventDecoders: таблица декодеров событий по ID
var eventDecoders = map[ID]argsDecoder{
	IDAllStatesChanged:   decoderFor[AllStatesChanged](),
	IDFlyingStateChanged: decoderFor[FlyingStateChanged](),
	IDMoveToChanged:      decoderFor[MoveToChanged](),
	IDMoveByEnd:          decoderFor[MoveByEnd](),
	IDFollowMeModeInfo:   decoderFor[FollowMeModeInfo](),
	IDFollowMeState:      decoderFor[FollowMeState](),
	IDMaxTiltChanged:     decoderFor[MaxTiltChanged](),
}

// EncodeCommand сериализует команду: ID (little-endian), затем аргументы
func EncodeCommand(cmd Command) ([]byte, error) {
	return encode(cmd.CommandID(), cmd)
}

// EncodeEvent сериализует событие так же, как команду
func EncodeEvent(ev Event) ([]byte, error) {
	return encode(ev.EventID(), ev)
}

func encode(id ID, args any) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, uint16(id)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, args); err != nil {
		return nil, fmt.Errorf("failed to encode message %#04x: %w", uint16(id), err)
	}
	return buf.Bytes(), nil
}

// DecodeCommand разбирает команду, закодированную EncodeCommand
func DecodeCommand(data []byte) (Command, error) {
	v, err := decode(data, commandDecoders, ErrUnknownCommand)
	if err != nil {
		return nil, err
	}
	return v.(Command), nil
}

// DecodeEvent разбирает событие, полученное от устройства
func DecodeEvent(data []byte) (Event, error) {
	v, err := decode(data, eventDecoders, ErrUnknownEvent)
	if err != nil {
		return nil, err
	}
	return v.(Event), nil
}

func decode(data []byte, decoders map[ID]argsDecoder, unknown error) (any, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("message of %d bytes: %w", len(data), ErrShortPayload)
	}
	id := ID(binary.LittleEndian.Uint16(data))
	decoder, exists := decoders[id]
	if !exists {
		return nil, fmt.Errorf("%w: %#04x", unknown, uint16(id))
	}
	v, err := decoder(bytes.NewReader(data[2:]))
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("message %#04x: %w", uint16(id), ErrShortPayload)
		}
		return nil, fmt.Errorf("failed to decode message %#04x: %w", uint16(id), err)
	}
	return v, nil
}

// IsNoAck сообщает, идет ли команда по каналу без подтверждения
func IsNoAck(cmd Command) bool {
	return cmd.CommandID() == IDPCMD
}

// LogUnknown логирует сообщение, которое не удалось декодировать
func LogUnknown(data []byte, err error) {
	logger.Printf("Warning: dropping undecodable message (%d bytes): %v", len(data), err)
}
