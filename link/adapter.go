package link

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"pilot-bridge/common"
	"pilot-bridge/feature"
)

var logger = log.New(os.Stdout, "[Link-Adapter] ", log.LstdFlags|log.Lshortfile)

// ErrNotConnected возвращается, когда нет соединения с устройством
var ErrNotConnected = errors.New("not connected")

// Config представляет конфигурацию последовательного канала
type Config struct {
	DevicePath        string        `mapstructure:"device_path"`        // Путь к устройству, например "/dev/rfcomm0"
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval"` // Интервал переподключения при ошибках
	WriteQueue        int           `mapstructure:"write_queue"`        // Размер очереди исходящих кадров
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		DevicePath:        "/dev/rfcomm0",
		ReconnectInterval: 5 * time.Second,
		WriteQueue:        64,
	}
}

// Opener открывает соединение с устройством
type Opener func(path string) (io.ReadWriteCloser, error)

// OpenDevice открывает tty устройства без захвата управляющего терминала
func OpenDevice(path string) (io.ReadWriteCloser, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("device %s does not exist. Please run 'sudo rfcomm bind' first", path)
	}
	file, err := os.OpenFile(path, os.O_RDWR|unix.O_NOCTTY|os.O_SYNC, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return file, nil
}

type outFrame struct {
	kind    FrameType
	payload []byte
}

// Adapter: транспорт поверх последовательного канала. Реализует common.Transport.
type Adapter struct {
	config    Config
	open      Opener
	handler   common.DeviceHandler
	conn      io.ReadWriteCloser
	connMutex sync.RWMutex
	writes    chan outFrame  // Очередь исходящих кадров
	stopChan  chan struct{}  // Канал для graceful shutdown
	wg        sync.WaitGroup // WaitGroup для синхронизации горутин
}

var _ common.Transport = (*Adapter)(nil)

// NewAdapter создает адаптер. opener может быть nil (OpenDevice).
func NewAdapter(config Config, opener Opener) *Adapter {
	if opener == nil {
		opener = OpenDevice
	}
	if config.WriteQueue <= 0 {
		config.WriteQueue = DefaultConfig().WriteQueue
	}
	return &Adapter{
		config:   config,
		open:     opener,
		writes:   make(chan outFrame, config.WriteQueue),
		stopChan: make(chan struct{}),
	}
}

// Start запускает работу адаптера; события передаются handler
func (a *Adapter) Start(handler common.DeviceHandler) error {
	if handler == nil {
		return errors.New("device handler is required")
	}
	a.handler = handler
	logger.Printf("Starting link adapter with device: %s", a.config.DevicePath)

	a.wg.Add(3)
	go a.readLoop()
	go a.writeLoop()
	go a.reconnectLoop()
	return nil
}

// Stop останавливает работу адаптера
func (a *Adapter) Stop() error {
	logger.Println("Stopping link adapter...")
	close(a.stopChan)
	// закрытие соединения разблокирует readLoop
	a.closeConnection(a.getConnection())
	a.wg.Wait()
	logger.Println("Link adapter stopped")
	return nil
}

// IsConnected проверяет, подключен ли адаптер
func (a *Adapter) IsConnected() bool {
	return a.getConnection() != nil
}

func (a *Adapter) getConnection() io.ReadWriteCloser {
	a.connMutex.RLock()
	defer a.connMutex.RUnlock()
	return a.conn
}

// closeConnection закрывает conn, если он еще текущий, и сообщает о потере связи
func (a *Adapter) closeConnection(conn io.ReadWriteCloser) {
	if conn == nil {
		return
	}
	a.connMutex.Lock()
	if a.conn != conn {
		a.connMutex.Unlock()
		return
	}
	a.conn.Close()
	a.conn = nil
	a.connMutex.Unlock()

	logger.Println("Link connection closed")
	if a.handler != nil {
		a.handler.LinkDown()
	}
}

// connect устанавливает соединение с устройством
func (a *Adapter) connect() error {
	logger.Printf("Attempting to connect to %s", a.config.DevicePath)
	conn, err := a.open(a.config.DevicePath)
	if err != nil {
		return err
	}

	a.connMutex.Lock()
	select {
	case <-a.stopChan:
		a.connMutex.Unlock()
		conn.Close()
		return errors.New("adapter stopped")
	default:
	}
	a.conn = conn
	a.connMutex.Unlock()

	// кадры, поставленные в очередь до соединения, устарели
drain:
	for {
		select {
		case <-a.writes:
		default:
			break drain
		}
	}

	logger.Println("Link connection established")
	a.handler.LinkUp()
	return nil
}

// SendCommand ставит команду с подтверждением в очередь
func (a *Adapter) SendCommand(cmd feature.Command) bool {
	return a.enqueue(FrameAck, cmd)
}

// SendNoAckCommand ставит команду без подтверждения в очередь
func (a *Adapter) SendNoAckCommand(cmd feature.Command) bool {
	return a.enqueue(FrameNoAck, cmd)
}

func (a *Adapter) enqueue(kind FrameType, cmd feature.Command) bool {
	if !a.IsConnected() {
		return false
	}
	payload, err := feature.EncodeCommand(cmd)
	if err != nil {
		logger.Printf("Failed to encode command: %v", err)
		return false
	}
	select {
	case a.writes <- outFrame{kind: kind, payload: payload}:
		return true
	default:
		logger.Printf("Warning: write queue is full, dropping command %#04x", uint16(cmd.CommandID()))
		return false
	}
}

// readLoop читает кадры событий из соединения
func (a *Adapter) readLoop() {
	defer a.wg.Done()
	logger.Println("Starting link read loop")

	var current io.ReadWriteCloser
	var reader *bufio.Reader
	for {
		select {
		case <-a.stopChan:
			logger.Println("Read loop stopped")
			return
		default:
		}

		conn := a.getConnection()
		if conn == nil {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		if conn != current {
			current = conn
			reader = bufio.NewReader(conn)
		}

		kind, payload, err := ReadFrame(reader)
		if errors.Is(err, ErrChecksum) || errors.Is(err, ErrFrameTooLarge) {
			logger.Printf("Warning: dropping frame: %v", err)
			continue
		}
		if err != nil {
			logger.Printf("Read error: %v", err)
			a.closeConnection(conn)
			continue
		}
		if kind != FrameEvent {
			logger.Printf("Warning: unexpected frame type %#02x, dropping", byte(kind))
			continue
		}

		ev, err := feature.DecodeEvent(payload)
		if err != nil {
			feature.LogUnknown(payload, err)
			continue
		}
		a.handler.HandleEvent(ev)
	}
}

// writeLoop отправляет кадры из очереди
func (a *Adapter) writeLoop() {
	defer a.wg.Done()
	logger.Println("Starting link write loop")

	for {
		select {
		case <-a.stopChan:
			logger.Println("Write loop stopped")
			return
		case frame := <-a.writes:
			conn := a.getConnection()
			if conn == nil {
				logger.Printf("Cannot send frame: %v", ErrNotConnected)
				continue
			}
			if err := WriteFrame(conn, frame.kind, frame.payload); err != nil {
				logger.Printf("Write error: %v", err)
				a.closeConnection(conn)
			}
		}
	}
}

// reconnectLoop управляет переподключением при ошибках
func (a *Adapter) reconnectLoop() {
	defer a.wg.Done()
	logger.Println("Starting link reconnect loop")

	if err := a.connect(); err != nil {
		logger.Printf("Initial connection failed: %v", err)
	}

	ticker := time.NewTicker(a.config.ReconnectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopChan:
			logger.Println("Reconnect loop stopped")
			return
		case <-ticker.C:
			if !a.IsConnected() {
				logger.Println("Attempting to reconnect...")
				if err := a.connect(); err != nil {
					logger.Printf("Reconnection failed: %v", err)
				}
			}
		}
	}
}
