package pilotingitf

import "pilot-bridge/feature"

// LookAt: интерфейс, при котором дрон стоит на месте и смотрит на цель
type LookAt struct {
	tracking
}

func newLookAt(s *Session) *LookAt {
	l := &LookAt{tracking: newTracking(s, KindLookAt)}
	l.payload = func() Payload { return LookAtPayload{} }
	l.refresh()
	return l
}

func (l *LookAt) refresh() {
	l.recompute(feature.ModeLookAt)
}

func (l *LookAt) handleEvent(ev feature.Event) {
	switch e := ev.(type) {
	case feature.FollowMeModeInfo:
		l.avail.update(e)
	case feature.FollowMeState:
		l.executing = e.Mode == feature.ModeLookAt && e.Behavior != feature.BehaviorIdle
	default:
		return
	}
	l.refresh()
}

func (l *LookAt) flyingStateChanged(st feature.FlyingState) {
	l.flying(st)
	l.refresh()
}

func (l *LookAt) connected() {
	l.tracking.connected()
	l.refresh()
}

func (l *LookAt) dispose() {}

// Activate просит устройство смотреть на цель
func (l *LookAt) Activate() bool {
	var ok bool
	l.session.run(func() {
		ok = l.activate(feature.ModeLookAt)
	})
	return ok
}

// Deactivate останавливает look-at
func (l *LookAt) Deactivate() bool {
	var ok bool
	l.session.run(func() {
		ok = l.alive() && l.requestDeactivate()
	})
	return ok
}

// SetPitch задает наклон в процентах [-100, 100]
func (l *LookAt) SetPitch(v int) {
	l.session.run(func() {
		if l.alive() {
			l.setPitch(v)
		}
	})
}

// SetRoll задает крен в процентах [-100, 100]
func (l *LookAt) SetRoll(v int) {
	l.session.run(func() {
		if l.alive() {
			l.setRoll(v)
		}
	})
}

// SetVerticalSpeed задает вертикальную скорость в процентах [-100, 100]
func (l *LookAt) SetVerticalSpeed(v int) {
	l.session.run(func() {
		if l.alive() {
			l.setVerticalSpeed(v)
		}
	})
}
