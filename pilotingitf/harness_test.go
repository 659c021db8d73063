package pilotingitf

import (
	"testing"

	"github.com/stretchr/testify/mock"

	"pilot-bridge/feature"
)

// MockTransport для тестирования
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) SendCommand(cmd feature.Command) bool {
	args := m.Called(cmd)
	return args.Bool(0)
}

func (m *MockTransport) SendNoAckCommand(cmd feature.Command) bool {
	args := m.Called(cmd)
	return args.Bool(0)
}

// harness подключает сессию к мок-транспорту и считает уведомления по видам
type harness struct {
	t         *testing.T
	transport *MockTransport
	session   *Session
	snaps     <-chan Snapshot
	counts    map[Kind]int
	last      map[Kind]Snapshot
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithConfig(t, DefaultConfig())
}

func newHarnessWithConfig(t *testing.T, config Config) *harness {
	transport := &MockTransport{}
	transport.Test(t)
	session := NewSession(config, transport)
	snaps, cancel := session.Subscribe(1024)
	t.Cleanup(cancel)
	return &harness{
		t:         t,
		transport: transport,
		session:   session,
		snaps:     snaps,
		counts:    make(map[Kind]int),
		last:      make(map[Kind]Snapshot),
	}
}

// expect ожидает ровно одну подтверждаемую команду
func (h *harness) expect(cmd feature.Command) {
	h.transport.On("SendCommand", cmd).Return(true).Once()
}

// expectPCMD ожидает ровно один PCMD
func (h *harness) expectPCMD(cmd feature.PCMD) {
	h.transport.On("SendNoAckCommand", cmd).Return(true).Once()
}

// verify проверяет, что все ожидаемые команды отправлены
func (h *harness) verify() {
	h.t.Helper()
	h.transport.AssertExpectations(h.t)
}

// connect выполняет начальный обмен; events приходят до AllStatesChanged
func (h *harness) connect(events ...feature.Event) {
	h.t.Helper()
	h.expect(feature.AllStates{})
	h.session.LinkUp()
	for _, ev := range events {
		h.session.HandleEvent(ev)
	}
	h.session.HandleEvent(feature.AllStatesChanged{})
	h.verify()
}

func (h *harness) disconnect() {
	h.session.LinkDown()
}

func (h *harness) event(ev feature.Event) {
	h.session.HandleEvent(ev)
}

func (h *harness) drain() {
	for {
		select {
		case snap, ok := <-h.snaps:
			if !ok {
				return
			}
			h.counts[snap.Kind]++
			h.last[snap.Kind] = snap
		default:
			return
		}
	}
}

// changes возвращает число уведомлений для вида
func (h *harness) changes(kind Kind) int {
	h.drain()
	return h.counts[kind]
}

// snapshot возвращает последний полученный снимок вида
func (h *harness) snapshot(kind Kind) Snapshot {
	h.drain()
	return h.last[kind]
}

func (h *harness) followMe() FollowMePayload {
	return h.snapshot(KindFollowMe).Payload.(FollowMePayload)
}

func (h *harness) guided() GuidedPayload {
	return h.snapshot(KindGuided).Payload.(GuidedPayload)
}

func (h *harness) manual() ManualPayload {
	return h.snapshot(KindManual).Payload.(ManualPayload)
}

func flying() feature.Event { return feature.FlyingStateChanged{State: feature.StateFlying} }
func landed() feature.Event { return feature.FlyingStateChanged{State: feature.StateLanded} }

func modeInfo(mode feature.Mode, requirements, improvements feature.InputSet) feature.Event {
	return feature.FollowMeModeInfo{Mode: mode, Requirements: requirements, Improvements: improvements}
}

func followState(mode feature.Mode, behavior feature.Behavior) feature.Event {
	return feature.FollowMeState{Mode: mode, Behavior: behavior}
}
