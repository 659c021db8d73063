package flightlog

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"pilot-bridge/pilotingitf"
)

var logger = log.New(os.Stdout, "[Flight-Log] ", log.LstdFlags|log.Lshortfile)

var (
	// ErrClosed возвращается после закрытия хранилища
	ErrClosed = errors.New("flight log closed")
	// ErrConflict: запись с таким ID уже есть
	ErrConflict = errors.New("flight record already exists")
)

// Config представляет конфигурацию журнала полетов
type Config struct {
	DSN string `mapstructure:"dsn"` // Строка подключения PostgreSQL; пустая отключает журнал
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{}
}

// MoveKind: тип завершенного перемещения
type MoveKind string

const (
	MoveLocation MoveKind = "location"
	MoveRelative MoveKind = "relative"
)

// Displacement: фактическое смещение относительного перемещения
type Displacement struct {
	DX   float64 `json:"dx"`
	DY   float64 `json:"dy"`
	DZ   float64 `json:"dz"`
	DYaw float64 `json:"dyaw"`
}

// Record: одна запись журнала
type Record struct {
	ID         uuid.UUID     `json:"id"`
	Kind       MoveKind      `json:"kind"`
	Successful bool          `json:"successful"`
	Latitude   float64       `json:"latitude,omitempty"`
	Longitude  float64       `json:"longitude,omitempty"`
	Altitude   float64       `json:"altitude,omitempty"`
	Target     Displacement  `json:"target"`
	Actual     *Displacement `json:"actual,omitempty"`
	RecordedAt time.Time     `json:"recordedAt"`
}

// RecordOf строит запись из результата перемещения
func RecordOf(info pilotingitf.FinishedFlightInfo, at time.Time) (Record, bool) {
	rec := Record{ID: uuid.New(), Successful: info.WasSuccessful(), RecordedAt: at.UTC()}
	switch f := info.(type) {
	case pilotingitf.FinishedLocationFlightInfo:
		rec.Kind = MoveLocation
		rec.Latitude = f.Move.Latitude
		rec.Longitude = f.Move.Longitude
		rec.Altitude = f.Move.Altitude
	case pilotingitf.FinishedRelativeMoveFlightInfo:
		rec.Kind = MoveRelative
		rec.Target = Displacement{DX: f.Move.DX, DY: f.Move.DY, DZ: f.Move.DZ, DYaw: f.Move.DYaw}
		rec.Actual = &Displacement{DX: f.ActualDX, DY: f.ActualDY, DZ: f.ActualDZ, DYaw: f.ActualDYaw}
	default:
		return Record{}, false
	}
	return rec, true
}

// Store сохраняет записи журнала
type Store interface {
	Save(ctx context.Context, rec Record) error
	// List возвращает последние записи, новые первыми
	List(ctx context.Context, limit int) ([]Record, error)
	Close()
}
