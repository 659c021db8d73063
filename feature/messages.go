package feature

// ID сообщения: номер фичи в старшем байте, номер сообщения в младшем
type ID uint16

const (
	featureCommon   = 0x00
	featurePiloting = 0x01
	featureFollowMe = 0x02
	featureSettings = 0x03
)

func makeID(feature, msg byte) ID {
	return ID(uint16(feature)<<8 | uint16(msg))
}

func (id ID) Feature() byte { return byte(id >> 8) }

// Command: сообщение устройству
type Command interface {
	CommandID() ID
}

// Event: сообщение от устройства
type Event interface {
	EventID() ID
}

// ID команд
var (
	IDAllStates     = makeID(featureCommon, 0x01)
	IDTakeOff       = makeID(featurePiloting, 0x01)
	IDLanding       = makeID(featurePiloting, 0x02)
	IDEmergency     = makeID(featurePiloting, 0x03)
	IDPCMD          = makeID(featurePiloting, 0x04)
	IDMoveTo        = makeID(featurePiloting, 0x05)
	IDCancelMoveTo  = makeID(featurePiloting, 0x06)
	IDMoveBy        = makeID(featurePiloting, 0x07)
	IDFollowMeStart = makeID(featureFollowMe, 0x01)
	IDFollowMeStop  = makeID(featureFollowMe, 0x02)
	IDSetMaxTilt    = makeID(featureSettings, 0x01)
)

// ID событий
var (
	IDAllStatesChanged   = makeID(featureCommon, 0x81)
	IDFlyingStateChanged = makeID(featurePiloting, 0x81)
	IDMoveToChanged      = makeID(featurePiloting, 0x82)
	IDMoveByEnd          = makeID(featurePiloting, 0x83)
	IDFollowMeModeInfo   = makeID(featureFollowMe, 0x81)
	IDFollowMeState      = makeID(featureFollowMe, 0x82)
	IDMaxTiltChanged     = makeID(featureSettings, 0x81)
)

// FlyingState: летное состояние, сообщаемое устройством
type FlyingState uint8

const (
	StateLanded FlyingState = iota
	StateTakingOff
	StateHovering
	StateFlying
	StateLanding
	StateEmergency
	StateUserTakeOff
	StateMotorRamping
	StateEmergencyLanding
)

// Airborne сообщает, находится ли дрон в воздухе
func (s FlyingState) Airborne() bool {
	switch s {
	case StateHovering, StateFlying:
		return true
	}
	return false
}

// OrientationMode: ориентация дрона при перемещении к точке
type OrientationMode uint8

const (
	OrientationNone OrientationMode = iota
	OrientationToTarget
	OrientationHeadingStart
	OrientationHeadingDuring
)

// MoveStatus: состояние перемещения к точке
type MoveStatus uint8

const (
	MoveRunning MoveStatus = iota
	MoveDone
	MoveCanceled
	MoveError
)

// MoveByError: результат относительного перемещения
type MoveByError uint8

const (
	MoveByOK MoveByError = iota
	MoveByUnknown
	MoveByBusy
	MoveByNotAvailable
	MoveByInterrupted
)

// Mode: режим фичи следования
type Mode uint8

const (
	ModeNone Mode = iota
	ModeLookAt
	ModeGeographic
	ModeRelative
	ModeLeash
)

// Behavior: что дрон делает в режиме следования
type Behavior uint8

const (
	BehaviorIdle Behavior = iota
	BehaviorFollow
	BehaviorLookAt
)

// Общие

// AllStates запрашивает у устройства все состояния
type AllStates struct{}

// AllStatesChanged завершает выдачу состояний после AllStates
type AllStatesChanged struct{}

// Пилотирование

type TakeOff struct{}
type Landing struct{}
type Emergency struct{}

// PCMD: периодическая команда пилотирования без подтверждения.
// Flag = 1, когда крен и тангаж должны применяться.
type PCMD struct {
	Flag  uint8
	Roll  int8
	Pitch int8
	Yaw   int8
	Gaz   int8
	Seq   uint32
}

// MoveTo перемещает дрон к точке. Heading в градусах.
type MoveTo struct {
	Latitude        float64
	Longitude       float64
	Altitude        float64
	OrientationMode OrientationMode
	Heading         float32
}

type CancelMoveTo struct{}

// MoveBy перемещает дрон относительно позиции. Расстояния в метрах,
// DPsi в радианах.
type MoveBy struct {
	DX   float32
	DY   float32
	DZ   float32
	DPsi float32
}

type FlyingStateChanged struct {
	State FlyingState
}

type MoveToChanged struct {
	Latitude        float64
	Longitude       float64
	Altitude        float64
	OrientationMode OrientationMode
	Heading         float32
	Status          MoveStatus
}

// MoveByEnd сообщает фактическое смещение относительного перемещения
type MoveByEnd struct {
	DX    float32
	DY    float32
	DZ    float32
	DPsi  float32
	Error MoveByError
}

// Следование

type FollowMeStart struct {
	Mode Mode
}

type FollowMeStop struct{}

// FollowMeModeInfo сообщает выполненные условия режима.
// Без всех Requirements режим недоступен, Improvements влияют только на качество.
type FollowMeModeInfo struct {
	Mode         Mode
	Requirements InputSet
	Improvements InputSet
}

type FollowMeState struct {
	Mode      Mode
	Behavior  Behavior
	Animation uint8
}

// Настройки

// SetMaxTilt задает максимальный наклон в градусах
type SetMaxTilt struct {
	Value float32
}

type MaxTiltChanged struct {
	Current float32
	Min     float32
	Max     float32
}

func (AllStates) CommandID() ID     { return IDAllStates }
func (TakeOff) CommandID() ID       { return IDTakeOff }
func (Landing) CommandID() ID       { return IDLanding }
func (Emergency) CommandID() ID     { return IDEmergency }
func (PCMD) CommandID() ID          { return IDPCMD }
func (MoveTo) CommandID() ID        { return IDMoveTo }
func (CancelMoveTo) CommandID() ID  { return IDCancelMoveTo }
func (MoveBy) CommandID() ID        { return IDMoveBy }
func (FollowMeStart) CommandID() ID { return IDFollowMeStart }
func (FollowMeStop) CommandID() ID  { return IDFollowMeStop }
func (SetMaxTilt) CommandID() ID    { return IDSetMaxTilt }

func (AllStatesChanged) EventID() ID   { return IDAllStatesChanged }
func (FlyingStateChanged) EventID() ID { return IDFlyingStateChanged }
func (MoveToChanged) EventID() ID      { return IDMoveToChanged }
func (MoveByEnd) EventID() ID          { return IDMoveByEnd }
func (FollowMeModeInfo) EventID() ID   { return IDFollowMeModeInfo }
func (FollowMeState) EventID() ID      { return IDFollowMeState }
func (MaxTiltChanged) EventID() ID     { return IDMaxTiltChanged }
