package pilotingitf

import "pilot-bridge/feature"

// Directive: перемещение, запрошенное пользователем
type Directive interface {
	directiveType() string
}

// Orientation: ориентация при перемещении к точке.
// Heading в градусах, имеет смысл только для режимов с курсом.
type Orientation struct {
	Mode    feature.OrientationMode `json:"mode"`
	Heading float64                 `json:"heading"`
}

// OrientationNone сохраняет текущую ориентацию
var OrientationNone = Orientation{Mode: feature.OrientationNone}

// OrientationToTarget разворачивает дрон к цели
var OrientationToTarget = Orientation{Mode: feature.OrientationToTarget}

// HeadingStart: поворот на курс перед движением
func HeadingStart(heading float64) Orientation {
	return Orientation{Mode: feature.OrientationHeadingStart, Heading: heading}
}

// HeadingDuring: поворот на курс во время движения
func HeadingDuring(heading float64) Orientation {
	return Orientation{Mode: feature.OrientationHeadingDuring, Heading: heading}
}

func orientationOf(mode feature.OrientationMode, heading float32) Orientation {
	switch mode {
	case feature.OrientationHeadingStart, feature.OrientationHeadingDuring:
		return Orientation{Mode: mode, Heading: float64(heading)}
	}
	return Orientation{Mode: mode}
}

// LocationDirective: перемещение к географической точке
type LocationDirective struct {
	Latitude    float64     `json:"latitude"`
	Longitude   float64     `json:"longitude"`
	Altitude    float64     `json:"altitude"`
	Orientation Orientation `json:"orientation"`
}

func (LocationDirective) directiveType() string { return "location" }

// RelativeMoveDirective: перемещение относительно позиции, в метрах и
// градусах. DX вперед, DY вправо, DZ вниз.
type RelativeMoveDirective struct {
	DX   float64 `json:"dx"`
	DY   float64 `json:"dy"`
	DZ   float64 `json:"dz"`
	DYaw float64 `json:"dyaw"`
}

func (RelativeMoveDirective) directiveType() string { return "relative" }

// FinishedFlightInfo: результат перемещения
type FinishedFlightInfo interface {
	Directive() Directive
	WasSuccessful() bool
}

type FinishedLocationFlightInfo struct {
	Move       LocationDirective `json:"directive"`
	Successful bool              `json:"successful"`
}

func (f FinishedLocationFlightInfo) Directive() Directive { return f.Move }
func (f FinishedLocationFlightInfo) WasSuccessful() bool  { return f.Successful }

// FinishedRelativeMoveFlightInfo содержит фактическое смещение
type FinishedRelativeMoveFlightInfo struct {
	Move       RelativeMoveDirective `json:"directive"`
	Successful bool                  `json:"successful"`
	ActualDX   float64               `json:"actualDx"`
	ActualDY   float64               `json:"actualDy"`
	ActualDZ   float64               `json:"actualDz"`
	ActualDYaw float64               `json:"actualDyaw"`
}

func (f FinishedRelativeMoveFlightInfo) Directive() Directive { return f.Move }
func (f FinishedRelativeMoveFlightInfo) WasSuccessful() bool  { return f.Successful }
