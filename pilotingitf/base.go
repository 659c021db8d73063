package pilotingitf

import "pilot-bridge/feature"

// iface: общее поведение интерфейсов пилотирования внутри сессии
type iface interface {
	base() *itfBase
	// handleEvent обрабатывает событие устройства
	handleEvent(ev feature.Event)
	// flyingStateChanged вызывается при смене летного состояния
	flyingStateChanged(st feature.FlyingState)
	// connected вызывается по окончании начального обмена состояниями
	connected()
	// dispose освобождает ресурсы при потере связи
	dispose()
	// requestDeactivate просит устройство прекратить активное поведение
	requestDeactivate() bool
}

// itfBase хранит состояние, общее для всех интерфейсов
type itfBase struct {
	kind      Kind
	session   *Session
	published bool

	state        State
	availability IssueSet
	quality      IssueSet

	// usesLoop: интерфейс управляет циклом PCMD, пока активен
	usesLoop bool
	piloting Values

	payload func() Payload
	last    Snapshot
}

func (b *itfBase) base() *itfBase { return b }

// alive проверяет, что интерфейс опубликован и принадлежит текущему соединению
func (b *itfBase) alive() bool {
	return b.published && b.session.current(b.kind) == b
}

// setState меняет состояние и передает цикл PCMD при входе/выходе из ACTIVE
func (b *itfBase) setState(st State) {
	if st == b.state {
		return
	}
	old := b.state
	b.state = st
	if !b.usesLoop {
		return
	}
	switch {
	case st == Active:
		b.piloting = Values{}
		b.session.loop.Acquire(b.kind)
	case old == Active:
		b.piloting = Values{}
		b.session.loop.Release(b.kind)
	}
}

// pilot применяет изменение значений пилотирования. Значения уходят в цикл
// только пока интерфейс активен.
func (b *itfBase) pilot(update func(v *Values)) {
	update(&b.piloting)
	if b.state == Active {
		b.session.loop.Set(b.kind, b.piloting)
	}
}

func (b *itfBase) snapshot() Snapshot {
	snap := Snapshot{
		Kind:               b.kind,
		Published:          b.published,
		State:              b.state,
		AvailabilityIssues: b.availability,
		QualityIssues:      b.quality,
	}
	if b.payload != nil {
		snap.Payload = b.payload()
	}
	return snap
}

// changed строит снимок и сообщает, отличается ли он от последнего отправленного
func (b *itfBase) changed() (Snapshot, bool) {
	snap := b.snapshot()
	if !snap.Published && !b.last.Published {
		return snap, false
	}
	if sameContent(snap, b.last) {
		return snap, false
	}
	b.last = snap
	return snap, true
}

// clampPercent ограничивает значение диапазоном [-100, 100]
func clampPercent(v int) int8 {
	switch {
	case v > 100:
		return 100
	case v < -100:
		return -100
	}
	return int8(v)
}
