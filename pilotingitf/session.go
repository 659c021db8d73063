package pilotingitf

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"pilot-bridge/common"
	"pilot-bridge/feature"
)

var logger = log.New(os.Stdout, "[Piloting] ", log.LstdFlags|log.Lshortfile)

// Config представляет конфигурацию сессии пилотирования
type Config struct {
	PCMDPeriod      time.Duration `mapstructure:"pcmd_period"`              // Период отправки PCMD
	SettingTimeout  time.Duration `mapstructure:"setting_rollback_timeout"` // Откат неподтвержденных настроек (0 = без отката)
	MaxPitchRollMin float64       `mapstructure:"max_pitch_roll_min"`       // Границы max pitch/roll до первого отчета устройства
	MaxPitchRollMax float64       `mapstructure:"max_pitch_roll_max"`
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		PCMDPeriod:      50 * time.Millisecond,
		SettingTimeout:  0,
		MaxPitchRollMin: 5,
		MaxPitchRollMax: 35,
	}
}

type linkState int

const (
	linkDown linkState = iota
	linkConnecting
	linkConnected
)

// Session: контекст протокола одного устройства. Все события устройства,
// вызовы пользователя и таймеры обрабатываются под одним мьютексом, что
// дает строгую сериализацию. Реализует common.DeviceHandler.
type Session struct {
	config    Config
	transport common.Transport
	loop      *CommandLoop

	mu     sync.Mutex
	link   linkState
	flying feature.FlyingState

	manual   *Manual
	followMe *FollowMe
	lookAt   *LookAt
	guided   *Guided

	versions    map[Kind]uint64
	latest      map[Kind]Snapshot
	subscribers map[int]chan Snapshot
	nextSubID   int
}

var _ common.DeviceHandler = (*Session)(nil)

// NewSession создает сессию поверх транспорта
func NewSession(config Config, transport common.Transport) *Session {
	return &Session{
		config:      config,
		transport:   transport,
		loop:        NewCommandLoop(transport, config.PCMDPeriod),
		versions:    make(map[Kind]uint64),
		latest:      make(map[Kind]Snapshot),
		subscribers: make(map[int]chan Snapshot),
	}
}

// Start запускает цикл PCMD
func (s *Session) Start(ctx context.Context) {
	s.loop.Start(ctx)
}

// Stop останавливает цикл PCMD и закрывает подписки
func (s *Session) Stop() {
	s.loop.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
}

// Loop возвращает цикл PCMD сессии
func (s *Session) Loop() *CommandLoop {
	return s.loop
}

// run выполняет fn в контексте протокола и публикует изменения
func (s *Session) run(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
	s.settle()
}

// Post выполняет fn в контексте протокола. fn не должен вызывать методы сессии.
func (s *Session) Post(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// schedule запускает fn в контексте протокола через d
func (s *Session) schedule(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, func() { s.run(fn) })
}

// LinkUp вызывается транспортом при установке связи
func (s *Session) LinkUp() {
	s.run(func() {
		if s.link != linkDown {
			logger.Println("Warning: link up while already connected, ignoring")
			return
		}
		logger.Println("Link up, requesting all states")
		s.link = linkConnecting
		s.flying = feature.StateLanded
		s.manual = newManual(s)
		s.followMe = newFollowMe(s)
		s.lookAt = newLookAt(s)
		s.guided = newGuided(s)
		if !s.transport.SendCommand(feature.AllStates{}) {
			logger.Println("Warning: failed to send AllStates request")
		}
	})
}

// LinkDown вызывается транспортом при потере связи
func (s *Session) LinkDown() {
	s.run(func() {
		if s.link == linkDown {
			return
		}
		logger.Println("Link down, unpublishing piloting interfaces")
		s.link = linkDown
		s.loop.SetEnabled(false)
		s.loop.reset()
		for _, itf := range s.interfaces() {
			itf.base().published = false
			itf.dispose()
		}
		s.settle()
		s.manual, s.followMe, s.lookAt, s.guided = nil, nil, nil, nil
	})
}

// HandleEvent обрабатывает событие устройства
func (s *Session) HandleEvent(ev feature.Event) {
	s.run(func() {
		if s.link == linkDown {
			logger.Printf("Warning: event %#04x without link, dropping", uint16(ev.EventID()))
			return
		}
		switch e := ev.(type) {
		case feature.AllStatesChanged:
			s.onAllStates()
		case feature.FlyingStateChanged:
			s.flying = e.State
			for _, itf := range s.interfaces() {
				itf.flyingStateChanged(e.State)
			}
		default:
			for _, itf := range s.interfaces() {
				itf.handleEvent(ev)
			}
		}
	})
}

// onAllStates завершает начальный обмен и публикует интерфейсы
func (s *Session) onAllStates() {
	if s.link != linkConnecting {
		return
	}
	logger.Println("All states received, piloting interfaces published")
	s.link = linkConnected
	for _, itf := range s.interfaces() {
		itf.connected()
		itf.base().published = true
	}
	s.loop.ResetSequence()
	s.loop.SetEnabled(true)
}

// interfaces возвращает интерфейсы текущего соединения в порядке публикации
func (s *Session) interfaces() []iface {
	if s.manual == nil {
		return nil
	}
	return []iface{s.manual, s.followMe, s.lookAt, s.guided}
}

// current возвращает интерфейс данного вида для текущего соединения
func (s *Session) current(kind Kind) *itfBase {
	for _, itf := range s.interfaces() {
		if b := itf.base(); b.kind == kind {
			return b
		}
	}
	return nil
}

// settle выбирает интерфейс по умолчанию и рассылает измененные снимки
func (s *Session) settle() {
	if s.link == linkConnected {
		others := false
		for _, itf := range s.interfaces() {
			b := itf.base()
			if b.kind != KindManual && b.state == Active {
				others = true
			}
		}
		s.manual.setActive(!others)
	}

	for _, itf := range s.interfaces() {
		b := itf.base()
		snap, changed := b.changed()
		if !changed {
			continue
		}
		s.versions[b.kind]++
		snap.Version = s.versions[b.kind]
		b.last.Version = snap.Version
		if snap.Published {
			s.latest[b.kind] = snap
		} else {
			delete(s.latest, b.kind)
		}
		s.notify(snap)
	}
}

// notify рассылает снимок подписчикам (неблокирующе)
func (s *Session) notify(snap Snapshot) {
	for _, ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			logger.Printf("Warning: subscriber channel is full, dropping %s snapshot v%d", snap.Kind, snap.Version)
		}
	}
}

// Subscribe возвращает канал снимков и функцию отписки
func (s *Session) Subscribe(buffer int) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, buffer)

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(ch)
			}
		})
	}
}

// Snapshot возвращает последний снимок опубликованного интерфейса
func (s *Session) Snapshot(kind Kind) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.latest[kind]
	return snap, ok
}

// Snapshots возвращает снимки всех опубликованных интерфейсов
func (s *Session) Snapshots() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snaps := make([]Snapshot, 0, len(s.latest))
	for _, kind := range []Kind{KindManual, KindFollowMe, KindLookAt, KindGuided} {
		if snap, ok := s.latest[kind]; ok {
			snaps = append(snaps, snap)
		}
	}
	return snaps
}

// Connected сообщает, завершен ли начальный обмен состояниями
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.link == linkConnected
}

// FlyingState возвращает последнее летное состояние устройства
func (s *Session) FlyingState() feature.FlyingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flying
}

// Manual возвращает ручной интерфейс или nil, если он не опубликован
func (s *Session) Manual() *Manual {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.link != linkConnected {
		return nil
	}
	return s.manual
}

// FollowMe возвращает интерфейс follow-me или nil, если он не опубликован
func (s *Session) FollowMe() *FollowMe {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.link != linkConnected {
		return nil
	}
	return s.followMe
}

// LookAt возвращает интерфейс look-at или nil, если он не опубликован
func (s *Session) LookAt() *LookAt {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.link != linkConnected {
		return nil
	}
	return s.lookAt
}

// Guided возвращает интерфейс guided или nil, если он не опубликован
func (s *Session) Guided() *Guided {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.link != linkConnected {
		return nil
	}
	return s.guided
}

// send отправляет подтверждаемую команду, ошибка только логируется
func (s *Session) send(cmd feature.Command) {
	if !s.transport.SendCommand(cmd) {
		logger.Printf("Warning: failed to send command %#04x", uint16(cmd.CommandID()))
	}
}
