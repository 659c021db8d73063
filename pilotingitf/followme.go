package pilotingitf

import "pilot-bridge/feature"

// FollowMe: интерфейс следования за целью
type FollowMe struct {
	tracking
	mode *setting[FollowMode]
	// behavior: последнее поведение, сообщенное устройством
	behavior Behavior
}

func newFollowMe(s *Session) *FollowMe {
	f := &FollowMe{tracking: newTracking(s, KindFollowMe)}
	f.mode = newSetting(FollowGeographic, s.config.SettingTimeout, s.schedule)
	f.payload = f.payloadSnapshot
	f.refresh()
	return f
}

func (f *FollowMe) payloadSnapshot() Payload {
	return FollowMePayload{
		Mode: EnumSetting[FollowMode]{
			Value:     f.mode.value,
			Updating:  f.mode.updating,
			Supported: f.supportedModes(),
		},
		Behavior: f.currentBehavior(),
	}
}

// currentBehavior: поведение устройства, пока интерфейс активен
func (f *FollowMe) currentBehavior() Behavior {
	if f.state != Active {
		return BehaviorInactive
	}
	return f.behavior
}

// supportedModes: режимы, о которых устройство сообщило до окончания подключения
func (f *FollowMe) supportedModes() EnumSet[FollowMode] {
	var modes EnumSet[FollowMode]
	for dm, fm := range followModes {
		if f.avail.supports(dm) {
			modes = modes.With(fm)
		}
	}
	return modes
}

func (f *FollowMe) refresh() {
	f.recompute(f.mode.value.deviceMode())
}

func (f *FollowMe) handleEvent(ev feature.Event) {
	switch e := ev.(type) {
	case feature.FollowMeModeInfo:
		f.avail.update(e)
	case feature.FollowMeState:
		fm, ours := followModes[e.Mode]
		f.executing = ours && e.Behavior != feature.BehaviorIdle
		if !f.executing {
			f.behavior = BehaviorInactive
			break
		}
		f.behavior = behaviorOf(e.Behavior)
		if f.mode.value != fm || f.mode.updating {
			f.mode.confirm(fm)
		}
	default:
		return
	}
	f.refresh()
}

func (f *FollowMe) flyingStateChanged(st feature.FlyingState) {
	f.flying(st)
	f.refresh()
}

func (f *FollowMe) connected() {
	f.tracking.connected()
	f.refresh()
}

func (f *FollowMe) dispose() {
	f.mode.cancel()
}

// Activate запускает следование в выбранном режиме. Состояние меняется
// только после подтверждения устройством.
func (f *FollowMe) Activate() bool {
	var ok bool
	f.session.run(func() {
		ok = f.activate(f.mode.value.deviceMode())
	})
	return ok
}

// Deactivate останавливает следование
func (f *FollowMe) Deactivate() bool {
	var ok bool
	f.session.run(func() {
		ok = f.alive() && f.requestDeactivate()
	})
	return ok
}

// SetMode выбирает режим следования. Пока интерфейс активен, режим
// отправляется устройству; иначе значение только сохраняется.
func (f *FollowMe) SetMode(mode FollowMode) bool {
	var ok bool
	f.session.run(func() {
		if !f.alive() || !f.supportedModes().Has(mode) {
			return
		}
		ok = true
		if mode == f.mode.value && !f.mode.updating {
			return
		}
		f.mode.request(mode, func(v FollowMode) bool {
			if f.state != Active {
				return false
			}
			f.session.send(feature.FollowMeStart{Mode: v.deviceMode()})
			return true
		})
		f.refresh()
	})
	return ok
}

// SetPitch задает наклон в процентах [-100, 100]
func (f *FollowMe) SetPitch(v int) {
	f.session.run(func() {
		if f.alive() {
			f.setPitch(v)
		}
	})
}

// SetRoll задает крен в процентах [-100, 100]
func (f *FollowMe) SetRoll(v int) {
	f.session.run(func() {
		if f.alive() {
			f.setRoll(v)
		}
	})
}

// SetVerticalSpeed задает вертикальную скорость в процентах [-100, 100]
func (f *FollowMe) SetVerticalSpeed(v int) {
	f.session.run(func() {
		if f.alive() {
			f.setVerticalSpeed(v)
		}
	})
}
