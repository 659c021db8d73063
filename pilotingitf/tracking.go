package pilotingitf

import "pilot-bridge/feature"

// inputIssues сопоставляет входные условия устройства с проблемами
var inputIssues = map[feature.Input]Issue{
	feature.DroneCalibrated:       DroneNotCalibrated,
	feature.DroneGPSGoodAccuracy:  DroneGPSInfoInaccurate,
	feature.TargetGPSGoodAccuracy: TargetGPSInfoInaccurate,
	feature.TargetBarometerOK:     TargetBarometerInfoInaccurate,
	feature.DroneFarEnough:        DroneTooCloseToTarget,
	feature.DroneHighEnough:       DroneTooCloseToGround,
	feature.ImageDetection:        TargetDetectionInfoMissing,
	feature.TargetGoodSpeed:       TargetHorizontalSpeedKO,
	feature.DroneCloseEnough:      DroneTooFarFromTarget,
}

// issuesOf переводит невыполненные условия в набор проблем
func issuesOf(missing feature.InputSet) IssueSet {
	var issues IssueSet
	for _, in := range missing.Inputs() {
		if issue, ok := inputIssues[in]; ok {
			issues |= IssuesOf(issue)
		}
	}
	return issues
}

// availability хранит отчеты устройства по режимам и считает проблемы
// для выбранного режима
type availability struct {
	airborne bool
	infos    map[feature.Mode]feature.FollowMeModeInfo
	// frozen: набор поддерживаемых режимов зафиксирован после подключения
	frozen bool
}

func newAvailability() availability {
	return availability{infos: make(map[feature.Mode]feature.FollowMeModeInfo)}
}

// update сохраняет отчет. После подключения отчеты о неизвестных
// режимах игнорируются.
func (a *availability) update(info feature.FollowMeModeInfo) {
	if _, known := a.infos[info.Mode]; a.frozen && !known {
		logger.Printf("Ignoring info for unsupported mode %d", info.Mode)
		return
	}
	a.infos[info.Mode] = info
}

func (a *availability) supports(mode feature.Mode) bool {
	_, ok := a.infos[mode]
	return ok
}

// issues возвращает проблемы доступности и качества для режима
func (a *availability) issues(mode feature.Mode) (IssueSet, IssueSet) {
	var avail, quality IssueSet
	if !a.airborne {
		avail |= IssuesOf(DroneNotFlying)
	}
	if info, ok := a.infos[mode]; ok {
		avail |= issuesOf(info.Requirements.Missing())
		quality = issuesOf(info.Improvements.Missing())
	}
	return avail, quality
}

// tracking: общая часть интерфейсов, которые следуют за целью
type tracking struct {
	itfBase
	avail availability
	// executing: устройство сообщает, что выполняет поведение этого интерфейса
	executing bool
}

func newTracking(s *Session, kind Kind) tracking {
	return tracking{
		itfBase: itfBase{kind: kind, session: s, usesLoop: true},
		avail:   newAvailability(),
	}
}

// recompute пересчитывает состояние для режима mode.
// Пока устройство выполняет поведение и дрон в воздухе, интерфейс остается
// активным, а проблемы требований режима применяются после остановки.
func (t *tracking) recompute(mode feature.Mode) {
	avail, quality := t.avail.issues(mode)
	switch {
	case t.executing && t.avail.airborne:
		t.setState(Active)
		t.availability = 0
		t.quality = quality
	case avail != 0:
		t.setState(Unavailable)
		t.availability = avail
		t.quality = 0
	default:
		t.setState(Idle)
		t.availability = 0
		t.quality = quality
	}
}

func (t *tracking) flying(st feature.FlyingState) {
	t.avail.airborne = st.Airborne()
}

func (t *tracking) connected() {
	t.avail.frozen = true
}

// activate отправляет команду запуска, если интерфейс готов
func (t *tracking) activate(mode feature.Mode) bool {
	if !t.alive() || t.state != Idle {
		return false
	}
	t.session.send(feature.FollowMeStart{Mode: mode})
	return true
}

func (t *tracking) requestDeactivate() bool {
	if t.state != Active {
		return false
	}
	t.session.send(feature.FollowMeStop{})
	return true
}

// setPitch задает наклон в процентах [-100, 100]
func (t *tracking) setPitch(v int) {
	t.pilot(func(p *Values) { p.Pitch = clampPercent(v) })
}

func (t *tracking) setRoll(v int) {
	t.pilot(func(p *Values) { p.Roll = clampPercent(v) })
}

func (t *tracking) setVerticalSpeed(v int) {
	t.pilot(func(p *Values) { p.Gaz = clampPercent(v) })
}
