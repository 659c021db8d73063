package pilotingitf

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"pilot-bridge/common"
	"pilot-bridge/feature"
)

// Values: значения пилотирования в процентах [-100, 100]
type Values struct {
	Roll  int8
	Pitch int8
	Yaw   int8
	Gaz   int8
}

// command кодирует значения в PCMD. Положительный pitch пользователя
// означает наклон назад, поэтому знак на устройстве инвертирован.
func (v Values) command(seq uint32) feature.PCMD {
	var flag uint8
	if v.Pitch != 0 || v.Roll != 0 {
		flag = 1
	}
	return feature.PCMD{
		Flag:  flag,
		Roll:  v.Roll,
		Pitch: -v.Pitch,
		Yaw:   v.Yaw,
		Gaz:   v.Gaz,
		Seq:   seq,
	}
}

// CommandLoop периодически отправляет PCMD с последними значениями владельца.
// Владельцем может быть только один интерфейс; без владельца уходят нулевые значения.
type CommandLoop struct {
	transport common.Transport
	period    time.Duration

	mu       sync.Mutex
	owner    Kind
	hasOwner bool

	values  atomic.Pointer[Values]
	seq     atomic.Uint32
	enabled atomic.Bool

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewCommandLoop создает цикл PCMD с заданным периодом
func NewCommandLoop(transport common.Transport, period time.Duration) *CommandLoop {
	l := &CommandLoop{
		transport: transport,
		period:    period,
		stopChan:  make(chan struct{}),
	}
	l.values.Store(&Values{})
	return l
}

// Start запускает периодическую отправку
func (l *CommandLoop) Start(ctx context.Context) {
	logger.Printf("Starting PCMD loop, period %v", l.period)
	l.wg.Add(1)
	go l.run(ctx)
}

// Stop останавливает цикл и ждет завершения горутины. Повторный вызов ничего не делает.
func (l *CommandLoop) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopChan)
		l.wg.Wait()
		logger.Println("PCMD loop stopped")
	})
}

func (l *CommandLoop) run(ctx context.Context) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.Tick()
		}
	}
}

// Tick отправляет одну команду, если цикл включен
func (l *CommandLoop) Tick() bool {
	if !l.enabled.Load() {
		return false
	}
	v := l.values.Load()
	return l.transport.SendNoAckCommand(v.command(l.seq.Add(1)))
}

// SetEnabled включает или выключает отправку (связь с устройством)
func (l *CommandLoop) SetEnabled(enabled bool) {
	l.enabled.Store(enabled)
}

// ResetSequence обнуляет счетчик последовательности
func (l *CommandLoop) ResetSequence() {
	l.seq.Store(0)
}

// Acquire передает цикл интерфейсу owner. При передаче от другого
// владельца счетчик последовательности сохраняется.
func (l *CommandLoop) Acquire(owner Kind) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.hasOwner && l.owner == owner {
		return
	}
	l.owner = owner
	l.hasOwner = true
	l.values.Store(&Values{})
}

// Release освобождает цикл, если owner им владеет: значения обнуляются,
// счетчик сбрасывается.
func (l *CommandLoop) Release(owner Kind) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.hasOwner || l.owner != owner {
		return
	}
	l.hasOwner = false
	l.values.Store(&Values{})
	l.seq.Store(0)
}

// Set обновляет значения, если owner владеет циклом
func (l *CommandLoop) Set(owner Kind, v Values) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.hasOwner || l.owner != owner {
		return false
	}
	l.values.Store(&v)
	return true
}

// Owner возвращает текущего владельца
func (l *CommandLoop) Owner() (Kind, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner, l.hasOwner
}

// Current возвращает значения, которые будут отправлены следующим тиком
func (l *CommandLoop) Current() Values {
	return *l.values.Load()
}

// reset возвращает цикл в исходное состояние после потери связи
func (l *CommandLoop) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hasOwner = false
	l.values.Store(&Values{})
	l.seq.Store(0)
}
