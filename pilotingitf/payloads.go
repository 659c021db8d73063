package pilotingitf

import (
	"fmt"

	"pilot-bridge/feature"
)

// FollowMode: режим следования, выбираемый пользователем
type FollowMode uint8

const (
	FollowGeographic FollowMode = iota
	FollowRelative
	FollowLeash
)

func (m FollowMode) String() string {
	switch m {
	case FollowGeographic:
		return "geographic"
	case FollowRelative:
		return "relative"
	case FollowLeash:
		return "leash"
	}
	return "unknown"
}

func (m FollowMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *FollowMode) UnmarshalText(text []byte) error {
	for _, v := range []FollowMode{FollowGeographic, FollowRelative, FollowLeash} {
		if v.String() == string(text) {
			*m = v
			return nil
		}
	}
	return fmt.Errorf("unknown follow mode %q", text)
}

var followModes = map[feature.Mode]FollowMode{
	feature.ModeGeographic: FollowGeographic,
	feature.ModeRelative:   FollowRelative,
	feature.ModeLeash:      FollowLeash,
}

func (m FollowMode) deviceMode() feature.Mode {
	for dm, fm := range followModes {
		if fm == m {
			return dm
		}
	}
	return feature.ModeNone
}

// Behavior: текущее поведение дрона при следовании
type Behavior uint8

const (
	BehaviorInactive Behavior = iota
	BehaviorFollowing
	BehaviorStationary
)

func (b Behavior) String() string {
	switch b {
	case BehaviorFollowing:
		return "following"
	case BehaviorStationary:
		return "stationary"
	}
	return "inactive"
}

func (b Behavior) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func behaviorOf(b feature.Behavior) Behavior {
	switch b {
	case feature.BehaviorFollow:
		return BehaviorFollowing
	case feature.BehaviorLookAt:
		return BehaviorStationary
	}
	return BehaviorInactive
}

type ManualPayload struct {
	CanTakeOff   bool          `json:"canTakeOff"`
	CanLand      bool          `json:"canLand"`
	MaxPitchRoll DoubleSetting `json:"maxPitchRoll"`
}

func (ManualPayload) payloadKind() Kind { return KindManual }

type FollowMePayload struct {
	Mode     EnumSetting[FollowMode] `json:"mode"`
	Behavior Behavior                `json:"behavior"`
}

func (FollowMePayload) payloadKind() Kind { return KindFollowMe }

// LookAtPayload пуст: у LookAt нет своих полей
type LookAtPayload struct{}

func (LookAtPayload) payloadKind() Kind { return KindLookAt }

// GuidedPayload: оба поля могут быть nil. FinishedFlights: число
// результатов с момента подключения.
type GuidedPayload struct {
	CurrentDirective         Directive          `json:"currentDirective"`
	LatestFinishedFlightInfo FinishedFlightInfo `json:"latestFinishedFlightInfo"`
	FinishedFlights          uint64             `json:"finishedFlights"`
}

func (GuidedPayload) payloadKind() Kind { return KindGuided }
