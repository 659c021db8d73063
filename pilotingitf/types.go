package pilotingitf

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind: вид интерфейса пилотирования
type Kind uint8

const (
	KindManual Kind = iota
	KindFollowMe
	KindLookAt
	KindGuided
)

var kindNames = map[Kind]string{
	KindManual:   "manual",
	KindFollowMe: "followme",
	KindLookAt:   "lookat",
	KindGuided:   "guided",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// ParseKind возвращает вид по имени
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(name, s) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown piloting interface %q", s)
}

// State: состояние активации интерфейса
type State uint8

const (
	Unavailable State = iota
	Idle
	Active
)

func (s State) String() string {
	switch s {
	case Unavailable:
		return "unavailable"
	case Idle:
		return "idle"
	case Active:
		return "active"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Issue: причина недоступности интерфейса или снижения его качества
type Issue uint8

const (
	DroneNotFlying Issue = iota
	DroneNotCalibrated
	DroneGPSInfoInaccurate
	TargetGPSInfoInaccurate
	TargetBarometerInfoInaccurate
	DroneTooCloseToTarget
	DroneTooCloseToGround
	TargetDetectionInfoMissing
	TargetHorizontalSpeedKO
	DroneTooFarFromTarget

	issueCount
)

var issueNames = [issueCount]string{
	"drone_not_flying",
	"drone_not_calibrated",
	"drone_gps_info_inaccurate",
	"target_gps_info_inaccurate",
	"target_barometer_info_inaccurate",
	"drone_too_close_to_target",
	"drone_too_close_to_ground",
	"target_detection_info_missing",
	"target_horizontal_speed_ko",
	"drone_too_far_from_target",
}

func (i Issue) String() string {
	if i < issueCount {
		return issueNames[i]
	}
	return fmt.Sprintf("issue(%d)", uint8(i))
}

// IssueSet: множество проблем
type IssueSet uint32

func IssuesOf(issues ...Issue) IssueSet {
	var s IssueSet
	for _, i := range issues {
		s |= 1 << i
	}
	return s
}

func (s IssueSet) Has(i Issue) bool { return s&(1<<i) != 0 }

func (s IssueSet) Empty() bool { return s == 0 }

// Issues перечисляет проблемы по возрастанию
func (s IssueSet) Issues() []Issue {
	issues := []Issue{}
	for i := Issue(0); i < issueCount; i++ {
		if s.Has(i) {
			issues = append(issues, i)
		}
	}
	return issues
}

// MarshalJSON кодирует множество списком имен
func (s IssueSet) MarshalJSON() ([]byte, error) {
	names := []string{}
	for _, i := range s.Issues() {
		names = append(names, i.String())
	}
	return json.Marshal(names)
}

// EnumSet: множество значений перечисления
type EnumSet[T ~uint8] uint64

func EnumSetOf[T ~uint8](values ...T) EnumSet[T] {
	var s EnumSet[T]
	for _, v := range values {
		s |= 1 << v
	}
	return s
}

func (s EnumSet[T]) Has(v T) bool { return s&(1<<v) != 0 }

func (s EnumSet[T]) With(v T) EnumSet[T] { return s | 1<<v }

func (s EnumSet[T]) Values() []T {
	values := []T{}
	for v := 0; v < 64; v++ {
		if s&(1<<v) != 0 {
			values = append(values, T(v))
		}
	}
	return values
}

func (s EnumSet[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Values())
}

// EnumSetting: наблюдаемое состояние настройки-перечисления
type EnumSetting[T ~uint8] struct {
	Value     T          `json:"value"`
	Updating  bool       `json:"updating"`
	Supported EnumSet[T] `json:"supported"`
}

// DoubleSetting: наблюдаемое состояние числовой настройки с границами
type DoubleSetting struct {
	Value    float64 `json:"value"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Updating bool    `json:"updating"`
}

// Snapshot: неизменяемый снимок интерфейса. Подписчики получают новый
// снимок при каждом изменении полей.
type Snapshot struct {
	Kind               Kind     `json:"kind"`
	Published          bool     `json:"published"`
	State              State    `json:"state"`
	AvailabilityIssues IssueSet `json:"availabilityIssues"`
	QualityIssues      IssueSet `json:"qualityIssues"`
	Version            uint64   `json:"version"`
	Payload            Payload  `json:"payload,omitempty"`
}

// Payload: часть снимка, зависящая от вида. Реализации сравнимы через ==.
type Payload interface {
	payloadKind() Kind
}

// sameContent сравнивает снимки без учета версии
func sameContent(a, b Snapshot) bool {
	a.Version = b.Version
	return a == b
}
