package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var logger = log.New(os.Stdout, "[Updater] ", log.LstdFlags|log.Lshortfile)

// UploadPath: путь загрузки прошивки на устройстве
const UploadPath = "/api/v1/update/upload"

// StatusCodeUnknown: код ответа, когда HTTP обмен не завершился
const StatusCodeUnknown = -1

var (
	// ErrCanceled возвращается писателю тела запроса после отмены
	ErrCanceled = errors.New("upload canceled")
	// errUploadDone закрывает тело после получения ответа
	errUploadDone = errors.New("upload finished")
)

// Config представляет конфигурацию клиента загрузки
type Config struct {
	BaseURL     string        `mapstructure:"base_url"`     // Адрес HTTP сервера устройства
	SegmentSize int           `mapstructure:"segment_size"` // Размер сегмента записи тела
	Timeout     time.Duration `mapstructure:"timeout"`      // Общий таймаут запроса (0 = без таймаута)
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		BaseURL:     "http://192.168.42.1",
		SegmentSize: 8192,
	}
}

// Status: состояние запроса
type Status int

const (
	StatusPending Status = iota
	StatusSuccess
	StatusFailed
	StatusCanceled
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusCanceled:
		return "canceled"
	}
	return "pending"
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Listener получает прогресс и результат загрузки
type Listener interface {
	OnRequestProgress(percent int)
	OnRequestComplete(status Status, code int)
}

// Dispatcher выполняет обратные вызовы в контексте владельца
type Dispatcher func(fn func())

// serialDispatcher выполняет вызовы по одному
func serialDispatcher() Dispatcher {
	var mu sync.Mutex
	return func(fn func()) {
		mu.Lock()
		defer mu.Unlock()
		fn()
	}
}

// Client загружает прошивку на устройство
type Client struct {
	config   Config
	http     *http.Client
	dispatch Dispatcher
}

// NewClient создает клиента. httpClient и dispatch могут быть nil.
func NewClient(config Config, httpClient *http.Client, dispatch Dispatcher) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	if dispatch == nil {
		dispatch = serialDispatcher()
	}
	if config.SegmentSize <= 0 {
		config.SegmentSize = DefaultConfig().SegmentSize
	}
	return &Client{config: config, http: httpClient, dispatch: dispatch}
}

// Request: загрузка в процессе или завершенная
type Request struct {
	ID   uuid.UUID
	Size int64

	listener Listener
	dispatch Dispatcher
	cancel   context.CancelFunc
	body     *io.PipeWriter
	canceled atomic.Bool

	mu       sync.Mutex
	status   Status
	code     int
	progress int

	done chan struct{}
}

// Status возвращает текущее состояние запроса
func (r *Request) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// HTTPCode возвращает код ответа или StatusCodeUnknown
func (r *Request) HTTPCode() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.code
}

// Progress возвращает последний сообщенный прогресс в процентах
func (r *Request) Progress() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress
}

// Done закрывается после вызова OnRequestComplete
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// Cancel отменяет загрузку и не ждет ее завершения. Результат
// StatusCanceled сообщается после остановки передачи.
func (r *Request) Cancel() {
	if !r.canceled.CompareAndSwap(false, true) {
		return
	}
	logger.Printf("Canceling upload %s", r.ID)
	r.cancel()
	r.body.CloseWithError(ErrCanceled)
}

// Upload начинает потоковую загрузку size байт из src
func (c *Client) Upload(ctx context.Context, src io.Reader, size int64, listener Listener) *Request {
	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()

	r := &Request{
		ID:       uuid.New(),
		Size:     size,
		listener: listener,
		dispatch: c.dispatch,
		cancel:   cancel,
		body:     pw,
		code:     StatusCodeUnknown,
		done:     make(chan struct{}),
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + UploadPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, pr)
	if err != nil {
		logger.Printf("Failed to build upload request: %v", err)
		cancel()
		pw.Close()
		pr.Close()
		go r.complete(StatusFailed, StatusCodeUnknown)
		return r
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Request-ID", r.ID.String())

	logger.Printf("Starting upload %s: %d bytes to %s", r.ID, size, url)

	var writer sync.WaitGroup
	writer.Add(1)
	go func() {
		defer writer.Done()
		r.writeBody(src, pw, c.config.SegmentSize)
	}()

	go func() {
		status, code := r.send(c.http, req)
		pr.CloseWithError(errUploadDone)
		writer.Wait()
		r.complete(status, code)
		cancel()
	}()

	return r
}

// send выполняет запрос и переводит ответ в результат
func (r *Request) send(client *http.Client, req *http.Request) (Status, int) {
	resp, err := client.Do(req)
	if r.canceled.Load() {
		if err == nil {
			resp.Body.Close()
		}
		return StatusCanceled, StatusCodeUnknown
	}
	if err != nil {
		logger.Printf("Upload %s failed: %v", r.ID, err)
		return StatusFailed, StatusCodeUnknown
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		logger.Printf("Upload %s rejected with HTTP %d", r.ID, resp.StatusCode)
		return StatusFailed, resp.StatusCode
	}
	return StatusSuccess, resp.StatusCode
}

// writeBody пишет тело сегментами и сообщает прогресс после каждого
func (r *Request) writeBody(src io.Reader, pw *io.PipeWriter, segmentSize int) {
	buf := make([]byte, segmentSize)
	var sent int64
	for {
		n, err := io.ReadFull(src, buf)
		if n > 0 {
			if _, werr := pw.Write(buf[:n]); werr != nil {
				return
			}
			sent += int64(n)
			r.reportProgress(sent)
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			pw.Close()
			return
		}
		if err != nil {
			pw.CloseWithError(fmt.Errorf("failed to read upload source: %w", err))
			return
		}
	}
}

// reportProgress сообщает прогресс, только если он вырос
func (r *Request) reportProgress(sent int64) {
	if r.Size <= 0 || r.canceled.Load() {
		return
	}
	percent := int(min(sent*100/r.Size, 100))

	r.mu.Lock()
	if percent <= r.progress {
		r.mu.Unlock()
		return
	}
	r.progress = percent
	r.mu.Unlock()

	r.dispatch(func() { r.listener.OnRequestProgress(percent) })
}

func (r *Request) complete(status Status, code int) {
	r.mu.Lock()
	r.status = status
	r.code = code
	r.mu.Unlock()

	logger.Printf("Upload %s complete: %s (%d)", r.ID, status, code)
	r.dispatch(func() { r.listener.OnRequestComplete(status, code) })
	close(r.done)
}
