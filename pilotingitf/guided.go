package pilotingitf

import (
	"math"

	"pilot-bridge/feature"
)

// guidedMove: перемещение, ожидающее результата от устройства.
// directive == nil для команды остановки, отправленной при деактивации.
type guidedMove struct {
	seq       uint64
	directive Directive
}

// Guided: интерфейс перемещения по точкам и относительных перемещений
type Guided struct {
	itfBase
	airborne bool

	// location: текущее перемещение к точке, устройство ведет одно такое
	location *guidedMove
	// superseded: перемещения к точке, замененные новыми до отчета устройства
	superseded []guidedMove
	// relative: относительные перемещения в порядке отправки; устройство
	// отвечает на них строго по очереди
	relative []guidedMove
	nextSeq  uint64

	latest   FinishedFlightInfo
	finished uint64
}

func newGuided(s *Session) *Guided {
	g := &Guided{itfBase: itfBase{kind: KindGuided, session: s}}
	g.payload = g.payloadSnapshot
	g.refresh()
	return g
}

func (g *Guided) payloadSnapshot() Payload {
	return GuidedPayload{
		CurrentDirective:         g.current(),
		LatestFinishedFlightInfo: g.latest,
		FinishedFlights:          g.finished,
	}
}

// current: последнее отправленное незавершенное перемещение пользователя
func (g *Guided) current() Directive {
	var best *guidedMove
	if g.location != nil {
		best = g.location
	}
	for i := range g.relative {
		m := &g.relative[i]
		if m.directive != nil && (best == nil || m.seq > best.seq) {
			best = m
		}
	}
	if best == nil {
		return nil
	}
	return best.directive
}

func (g *Guided) outstanding() bool {
	return g.location != nil || len(g.relative) > 0
}

func (g *Guided) refresh() {
	switch {
	case !g.airborne:
		g.setState(Unavailable)
		g.availability = IssuesOf(DroneNotFlying)
	case g.outstanding():
		g.setState(Active)
		g.availability = 0
	default:
		g.setState(Idle)
		g.availability = 0
	}
}

func (g *Guided) push() uint64 {
	g.nextSeq++
	return g.nextSeq
}

func (g *Guided) handleEvent(ev feature.Event) {
	switch e := ev.(type) {
	case feature.MoveToChanged:
		g.moveToChanged(e)
	case feature.MoveByEnd:
		g.moveByEnded(e)
	default:
		return
	}
	g.refresh()
}

// moveToChanged обновляет текущее перемещение к точке значениями устройства
func (g *Guided) moveToChanged(e feature.MoveToChanged) {
	dir := LocationDirective{
		Latitude:    e.Latitude,
		Longitude:   e.Longitude,
		Altitude:    e.Altitude,
		Orientation: orientationOf(e.OrientationMode, e.Heading),
	}
	if e.Status == feature.MoveRunning {
		if g.lateRunning(dir) {
			return
		}
		if g.location == nil {
			g.location = &guidedMove{seq: g.push()}
		}
		g.location.directive = dir
		return
	}
	switch {
	case g.isSuperseded(dir):
		// отчет о замененном перемещении, текущее продолжается
		g.superseded = g.superseded[1:]
	case g.location == nil:
		logger.Printf("Warning: move to ended (status %d) without pending move", e.Status)
		g.superseded = nil
	default:
		g.location = nil
		g.superseded = nil
	}
	g.finish(FinishedLocationFlightInfo{Move: dir, Successful: e.Status == feature.MoveDone})
}

// lateRunning: запоздалый отчет о ходе замененного перемещения
func (g *Guided) lateRunning(dir LocationDirective) bool {
	if len(g.superseded) == 0 || g.superseded[0].directive != Directive(dir) {
		return false
	}
	return g.location == nil || g.location.directive != Directive(dir)
}

// isSuperseded сообщает, относится ли отчет к старейшему замененному
// перемещению, а не к текущему
func (g *Guided) isSuperseded(dir LocationDirective) bool {
	if len(g.superseded) == 0 {
		return false
	}
	if g.location != nil && g.location.directive == Directive(dir) {
		return false
	}
	if g.superseded[0].directive != Directive(dir) {
		logger.Printf("Warning: move to report does not match superseded move %+v", g.superseded[0].directive)
	}
	return true
}

// moveByEnded сопоставляет ответ с самым старым относительным перемещением
func (g *Guided) moveByEnded(e feature.MoveByEnd) {
	if len(g.relative) == 0 {
		logger.Println("Warning: move by ended without pending move, ignoring")
		return
	}
	head := g.relative[0]
	g.relative = g.relative[1:]
	dir, ok := head.directive.(RelativeMoveDirective)
	if !ok {
		return
	}
	g.finish(FinishedRelativeMoveFlightInfo{
		Move:       dir,
		Successful: e.Error == feature.MoveByOK,
		ActualDX:   float64(e.DX),
		ActualDY:   float64(e.DY),
		ActualDZ:   float64(e.DZ),
		ActualDYaw: radToDeg(float64(e.DPsi)),
	})
}

func (g *Guided) finish(info FinishedFlightInfo) {
	g.latest = info
	g.finished++
}

func (g *Guided) flyingStateChanged(st feature.FlyingState) {
	g.airborne = st.Airborne()
	if !g.airborne && g.outstanding() {
		logger.Println("Drone not flying, dropping pending guided moves")
		g.location = nil
		g.relative = nil
	}
	g.refresh()
}

func (g *Guided) connected() {}

func (g *Guided) dispose() {}

// requestDeactivate отменяет перемещение к точке и останавливает
// относительные перемещения
func (g *Guided) requestDeactivate() bool {
	if g.state != Active {
		return false
	}
	sent := false
	if g.location != nil {
		g.session.send(feature.CancelMoveTo{})
		sent = true
	}
	if n := len(g.relative); n > 0 && g.relative[n-1].directive != nil {
		g.session.send(feature.MoveBy{})
		g.relative = append(g.relative, guidedMove{seq: g.push()})
		sent = true
	}
	return sent
}

// MoveToLocation перемещает дрон к точке. Heading в градусах.
func (g *Guided) MoveToLocation(latitude, longitude, altitude float64, orientation Orientation) bool {
	var ok bool
	g.session.run(func() {
		if !g.alive() || g.state == Unavailable {
			return
		}
		dir := LocationDirective{
			Latitude:    latitude,
			Longitude:   longitude,
			Altitude:    altitude,
			Orientation: orientation,
		}
		g.session.send(feature.MoveTo{
			Latitude:        latitude,
			Longitude:       longitude,
			Altitude:        altitude,
			OrientationMode: orientation.Mode,
			Heading:         float32(orientation.Heading),
		})
		if g.location != nil {
			g.superseded = append(g.superseded, *g.location)
		}
		g.location = &guidedMove{seq: g.push(), directive: dir}
		g.refresh()
		ok = true
	})
	return ok
}

// MoveToRelativePosition перемещает дрон относительно текущей позиции:
// метры вперед, вправо, вниз и поворот в градусах.
func (g *Guided) MoveToRelativePosition(dx, dy, dz, dyaw float64) bool {
	var ok bool
	g.session.run(func() {
		if !g.alive() || g.state == Unavailable {
			return
		}
		g.session.send(feature.MoveBy{
			DX:   float32(dx),
			DY:   float32(dy),
			DZ:   float32(dz),
			DPsi: float32(degToRad(dyaw)),
		})
		g.relative = append(g.relative, guidedMove{
			seq:       g.push(),
			directive: RelativeMoveDirective{DX: dx, DY: dy, DZ: dz, DYaw: dyaw},
		})
		g.refresh()
		ok = true
	})
	return ok
}

// Deactivate прерывает текущие перемещения
func (g *Guided) Deactivate() bool {
	var ok bool
	g.session.run(func() {
		ok = g.alive() && g.requestDeactivate()
	})
	return ok
}

func degToRad(deg float64) float64 { return deg * math.Pi / 180 }

func radToDeg(rad float64) float64 { return rad * 180 / math.Pi }
