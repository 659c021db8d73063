package pilotingitf

import "pilot-bridge/feature"

// Manual: интерфейс ручного пилотирования. Активен по умолчанию, когда
// ни один другой интерфейс не активен.
type Manual struct {
	itfBase
	flying       feature.FlyingState
	maxPitchRoll *setting[float64]
	min, max     float64
}

func newManual(s *Session) *Manual {
	m := &Manual{
		itfBase: itfBase{kind: KindManual, session: s, usesLoop: true, state: Idle},
		min:     s.config.MaxPitchRollMin,
		max:     s.config.MaxPitchRollMax,
	}
	m.maxPitchRoll = newSetting(m.min, s.config.SettingTimeout, s.schedule)
	m.payload = m.payloadSnapshot
	return m
}

func (m *Manual) payloadSnapshot() Payload {
	return ManualPayload{
		CanTakeOff: m.canTakeOff(),
		CanLand:    m.canLand(),
		MaxPitchRoll: DoubleSetting{
			Value:    m.maxPitchRoll.value,
			Min:      m.min,
			Max:      m.max,
			Updating: m.maxPitchRoll.updating,
		},
	}
}

func (m *Manual) canTakeOff() bool {
	return m.flying == feature.StateLanded
}

func (m *Manual) canLand() bool {
	switch m.flying {
	case feature.StateTakingOff, feature.StateHovering, feature.StateFlying,
		feature.StateUserTakeOff, feature.StateMotorRamping:
		return true
	}
	return false
}

// setActive вызывается сессией при выборе интерфейса по умолчанию
func (m *Manual) setActive(active bool) {
	if active {
		m.setState(Active)
	} else {
		m.setState(Idle)
	}
}

func (m *Manual) handleEvent(ev feature.Event) {
	e, ok := ev.(feature.MaxTiltChanged)
	if !ok {
		return
	}
	if e.Max > e.Min {
		m.min, m.max = float64(e.Min), float64(e.Max)
	}
	m.maxPitchRoll.confirm(float64(e.Current))
}

func (m *Manual) flyingStateChanged(st feature.FlyingState) {
	m.flying = st
}

func (m *Manual) connected() {}

func (m *Manual) dispose() {
	m.maxPitchRoll.cancel()
}

// ручной интерфейс нельзя деактивировать
func (m *Manual) requestDeactivate() bool { return false }

// Activate деактивирует активный интерфейс, чтобы ручной стал активным
func (m *Manual) Activate() bool {
	var ok bool
	m.session.run(func() {
		if !m.alive() || m.state != Idle {
			return
		}
		for _, itf := range m.session.interfaces() {
			if itf.base().state == Active && itf.requestDeactivate() {
				ok = true
			}
		}
	})
	return ok
}

// Deactivate всегда false: ручной интерфейс активен, пока нет другого
func (m *Manual) Deactivate() bool { return false }

// TakeOff просит дрон взлететь
func (m *Manual) TakeOff() bool {
	var ok bool
	m.session.run(func() {
		if !m.alive() || !m.canTakeOff() {
			return
		}
		m.session.send(feature.TakeOff{})
		ok = true
	})
	return ok
}

// Land просит дрон приземлиться
func (m *Manual) Land() bool {
	var ok bool
	m.session.run(func() {
		if !m.alive() || !m.canLand() {
			return
		}
		m.session.send(feature.Landing{})
		ok = true
	})
	return ok
}

// EmergencyCutOut немедленно останавливает моторы
func (m *Manual) EmergencyCutOut() bool {
	var ok bool
	m.session.run(func() {
		if !m.alive() {
			return
		}
		m.session.send(feature.Emergency{})
		ok = true
	})
	return ok
}

// SetMaxPitchRoll задает максимальный наклон в градусах, значение
// ограничивается границами устройства
func (m *Manual) SetMaxPitchRoll(v float64) bool {
	var ok bool
	m.session.run(func() {
		if !m.alive() {
			return
		}
		v = min(max(v, m.min), m.max)
		ok = true
		if v == m.maxPitchRoll.value && !m.maxPitchRoll.updating {
			return
		}
		m.maxPitchRoll.request(v, func(v float64) bool {
			m.session.send(feature.SetMaxTilt{Value: float32(v)})
			return true
		})
	})
	return ok
}

func (m *Manual) control(update func(v *Values)) {
	m.session.run(func() {
		if m.alive() {
			m.pilot(update)
		}
	})
}

// SetPitch задает наклон в процентах [-100, 100]
func (m *Manual) SetPitch(v int) { m.control(func(p *Values) { p.Pitch = clampPercent(v) }) }

// SetRoll задает крен в процентах [-100, 100]
func (m *Manual) SetRoll(v int) { m.control(func(p *Values) { p.Roll = clampPercent(v) }) }

// SetYawRotationSpeed задает скорость вращения в процентах [-100, 100]
func (m *Manual) SetYawRotationSpeed(v int) {
	m.control(func(p *Values) { p.Yaw = clampPercent(v) })
}

// SetVerticalSpeed задает вертикальную скорость в процентах [-100, 100]
func (m *Manual) SetVerticalSpeed(v int) {
	m.control(func(p *Values) { p.Gaz = clampPercent(v) })
}

// Hover обнуляет наклон и крен
func (m *Manual) Hover() {
	m.control(func(p *Values) {
		p.Pitch = 0
		p.Roll = 0
	})
}
