package pilotingitf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pilot-bridge/feature"
)

func TestFollowMePublication(t *testing.T) {
	h := newHarness(t)

	assert.Nil(t, h.session.FollowMe())
	assert.Equal(t, 0, h.changes(KindFollowMe))

	h.connect()
	require.NotNil(t, h.session.FollowMe())
	assert.Equal(t, 1, h.changes(KindFollowMe))
	assert.True(t, h.snapshot(KindFollowMe).Published)

	h.disconnect()
	assert.Nil(t, h.session.FollowMe())
	assert.Equal(t, 2, h.changes(KindFollowMe))
	assert.False(t, h.snapshot(KindFollowMe).Published)
}

func TestFollowMeActivation(t *testing.T) {
	h := newHarness(t)
	h.connect(
		landed(),
		modeInfo(feature.ModeGeographic, feature.AllInputsExcept(feature.ImageDetection), feature.AllInputs),
	)
	fm := h.session.FollowMe()
	require.NotNil(t, fm)

	// недоступен: дрон на земле, нет детекции цели
	assert.Equal(t, 1, h.changes(KindFollowMe))
	snap := h.snapshot(KindFollowMe)
	assert.Equal(t, Unavailable, snap.State)
	assert.Equal(t, IssuesOf(DroneNotFlying, TargetDetectionInfoMissing), snap.AvailabilityIssues)
	assert.False(t, fm.Activate())
	assert.False(t, fm.Deactivate())

	h.event(modeInfo(feature.ModeGeographic, feature.AllInputs, feature.AllInputs))
	assert.Equal(t, 2, h.changes(KindFollowMe))
	assert.Equal(t, Unavailable, h.snapshot(KindFollowMe).State)
	assert.Equal(t, IssuesOf(DroneNotFlying), h.snapshot(KindFollowMe).AvailabilityIssues)
	assert.False(t, fm.Activate())

	h.event(flying())
	assert.Equal(t, 3, h.changes(KindFollowMe))
	assert.Equal(t, Idle, h.snapshot(KindFollowMe).State)
	assert.True(t, h.snapshot(KindFollowMe).AvailabilityIssues.Empty())

	assert.False(t, fm.Deactivate())
	assert.Equal(t, FollowGeographic, h.followMe().Mode.Value)
	h.expect(feature.FollowMeStart{Mode: feature.ModeGeographic})
	assert.True(t, fm.Activate())
	h.verify()
	// состояние меняется только по подтверждению
	assert.Equal(t, 3, h.changes(KindFollowMe))

	h.event(followState(feature.ModeGeographic, feature.BehaviorFollow))
	assert.Equal(t, 4, h.changes(KindFollowMe))
	assert.Equal(t, Active, h.snapshot(KindFollowMe).State)
	assert.Equal(t, BehaviorFollowing, h.followMe().Behavior)
	assert.Equal(t, Idle, h.snapshot(KindManual).State)
	assert.False(t, fm.Activate())

	// посадка без события остановки
	h.event(landed())
	assert.Equal(t, 5, h.changes(KindFollowMe))
	assert.Equal(t, Unavailable, h.snapshot(KindFollowMe).State)
	assert.Equal(t, IssuesOf(DroneNotFlying), h.snapshot(KindFollowMe).AvailabilityIssues)
	assert.Equal(t, BehaviorInactive, h.followMe().Behavior)
	assert.Equal(t, Active, h.snapshot(KindManual).State)
	assert.False(t, fm.Activate())
	assert.False(t, fm.Deactivate())

	h.event(flying())
	assert.Equal(t, 6, h.changes(KindFollowMe))
	assert.Equal(t, Active, h.snapshot(KindFollowMe).State)
	assert.Equal(t, BehaviorFollowing, h.followMe().Behavior)
	assert.False(t, fm.Activate())

	h.expect(feature.FollowMeStop{})
	assert.True(t, fm.Deactivate())
	h.verify()

	h.event(followState(feature.ModeNone, feature.BehaviorIdle))
	assert.Equal(t, 7, h.changes(KindFollowMe))
	assert.Equal(t, Idle, h.snapshot(KindFollowMe).State)
	assert.False(t, fm.Deactivate())

	// режим, не заявленный при подключении, игнорируется
	h.event(modeInfo(feature.ModeRelative, feature.AllInputsExcept(feature.ImageDetection), feature.AllInputs))
	assert.Equal(t, 7, h.changes(KindFollowMe))

	h.event(modeInfo(feature.ModeGeographic, feature.AllInputsExcept(feature.ImageDetection), feature.AllInputs))
	assert.Equal(t, 8, h.changes(KindFollowMe))
	assert.Equal(t, Unavailable, h.snapshot(KindFollowMe).State)
	assert.Equal(t, IssuesOf(TargetDetectionInfoMissing), h.snapshot(KindFollowMe).AvailabilityIssues)
	assert.False(t, fm.Activate())
	assert.False(t, fm.Deactivate())
}

func TestFollowMeIssues(t *testing.T) {
	h := newHarness(t)
	h.connect(
		landed(),
		modeInfo(feature.ModeGeographic, feature.AllInputsExcept(feature.ImageDetection), feature.AllInputs),
		modeInfo(feature.ModeRelative, feature.AllInputsExcept(feature.TargetGPSGoodAccuracy), feature.AllInputs),
	)

	// учитывается только выбранный режим (geographic)
	assert.Equal(t, 1, h.changes(KindFollowMe))
	snap := h.snapshot(KindFollowMe)
	assert.Equal(t, Unavailable, snap.State)
	assert.Equal(t, IssuesOf(DroneNotFlying, TargetDetectionInfoMissing), snap.AvailabilityIssues)
	assert.True(t, snap.QualityIssues.Empty())

	h.event(modeInfo(feature.ModeGeographic, feature.AllInputs, feature.AllInputs))
	assert.Equal(t, 2, h.changes(KindFollowMe))
	assert.Equal(t, IssuesOf(DroneNotFlying), h.snapshot(KindFollowMe).AvailabilityIssues)

	// отчет по невыбранному режиму не вызывает уведомления
	h.event(modeInfo(feature.ModeRelative, feature.AllInputs, feature.AllInputs))
	assert.Equal(t, 2, h.changes(KindFollowMe))

	h.event(flying())
	assert.Equal(t, 3, h.changes(KindFollowMe))
	snap = h.snapshot(KindFollowMe)
	assert.Equal(t, Idle, snap.State)
	assert.True(t, snap.AvailabilityIssues.Empty())
	assert.True(t, snap.QualityIssues.Empty())

	h.event(modeInfo(feature.ModeGeographic, feature.AllInputs, feature.AllInputsExcept(feature.DroneFarEnough)))
	assert.Equal(t, 4, h.changes(KindFollowMe))
	snap = h.snapshot(KindFollowMe)
	assert.Equal(t, Idle, snap.State)
	assert.Equal(t, IssuesOf(DroneTooCloseToTarget), snap.QualityIssues)

	// повторная доставка того же отчета
	h.event(modeInfo(feature.ModeGeographic, feature.AllInputs, feature.AllInputsExcept(feature.DroneFarEnough)))
	assert.Equal(t, 4, h.changes(KindFollowMe))

	h.event(followState(feature.ModeGeographic, feature.BehaviorFollow))
	assert.Equal(t, 5, h.changes(KindFollowMe))
	snap = h.snapshot(KindFollowMe)
	assert.Equal(t, Active, snap.State)
	assert.Equal(t, IssuesOf(DroneTooCloseToTarget), snap.QualityIssues)

	// пока устройство следует, проблемы требований откладываются
	h.event(modeInfo(feature.ModeGeographic,
		feature.AllInputsExcept(feature.DroneGPSGoodAccuracy),
		feature.AllInputsExcept(feature.DroneFarEnough)))
	assert.Equal(t, 5, h.changes(KindFollowMe))
	snap = h.snapshot(KindFollowMe)
	assert.Equal(t, Active, snap.State)
	assert.True(t, snap.AvailabilityIssues.Empty())

	h.event(followState(feature.ModeGeographic, feature.BehaviorIdle))
	assert.Equal(t, 6, h.changes(KindFollowMe))
	snap = h.snapshot(KindFollowMe)
	assert.Equal(t, Unavailable, snap.State)
	assert.Equal(t, IssuesOf(DroneGPSInfoInaccurate), snap.AvailabilityIssues)
	assert.True(t, snap.QualityIssues.Empty())
}

func TestFollowMeMode(t *testing.T) {
	h := newHarness(t)
	h.connect(
		flying(),
		followState(feature.ModeGeographic, feature.BehaviorFollow),
		modeInfo(feature.ModeGeographic, feature.AllInputs, feature.AllInputs),
		modeInfo(feature.ModeRelative, feature.AllInputs, feature.AllInputs),
		modeInfo(feature.ModeLeash, feature.AllInputs, feature.AllInputs),
	)
	fm := h.session.FollowMe()
	require.NotNil(t, fm)

	assert.Equal(t, 1, h.changes(KindFollowMe))
	assert.Equal(t, EnumSetting[FollowMode]{
		Value:     FollowGeographic,
		Supported: EnumSetOf(FollowGeographic, FollowRelative, FollowLeash),
	}, h.followMe().Mode)

	steps := []struct {
		mode   FollowMode
		device feature.Mode
	}{
		{FollowLeash, feature.ModeLeash},
		{FollowGeographic, feature.ModeGeographic},
		{FollowRelative, feature.ModeRelative},
	}
	count := 1
	for _, step := range steps {
		// пока интерфейс активен, режим сразу отправляется устройству
		h.expect(feature.FollowMeStart{Mode: step.device})
		assert.True(t, fm.SetMode(step.mode))
		h.verify()
		count++
		assert.Equal(t, count, h.changes(KindFollowMe))
		assert.Equal(t, step.mode, h.followMe().Mode.Value)
		assert.True(t, h.followMe().Mode.Updating)

		h.event(followState(step.device, feature.BehaviorFollow))
		count++
		assert.Equal(t, count, h.changes(KindFollowMe))
		assert.Equal(t, step.mode, h.followMe().Mode.Value)
		assert.False(t, h.followMe().Mode.Updating)
	}

	h.event(followState(feature.ModeRelative, feature.BehaviorIdle))
	assert.Equal(t, 8, h.changes(KindFollowMe))
	assert.Equal(t, Idle, h.snapshot(KindFollowMe).State)
	assert.Equal(t, FollowRelative, h.followMe().Mode.Value)

	// неактивен: значение сохраняется без команды
	assert.True(t, fm.SetMode(FollowGeographic))
	assert.Equal(t, 9, h.changes(KindFollowMe))
	assert.Equal(t, Idle, h.snapshot(KindFollowMe).State)
	assert.Equal(t, FollowGeographic, h.followMe().Mode.Value)
	assert.False(t, h.followMe().Mode.Updating)

	h.expect(feature.FollowMeStart{Mode: feature.ModeGeographic})
	assert.True(t, fm.Activate())
	h.verify()
	h.event(followState(feature.ModeGeographic, feature.BehaviorFollow))
	assert.Equal(t, 10, h.changes(KindFollowMe))
	assert.Equal(t, Active, h.snapshot(KindFollowMe).State)
	assert.Equal(t, FollowGeographic, h.followMe().Mode.Value)

	h.expect(feature.FollowMeStop{})
	assert.True(t, fm.Deactivate())
	h.verify()
	h.event(followState(feature.ModeNone, feature.BehaviorIdle))
	assert.Equal(t, 11, h.changes(KindFollowMe))
	assert.Equal(t, Idle, h.snapshot(KindFollowMe).State)
	assert.Equal(t, FollowGeographic, h.followMe().Mode.Value)
	assert.False(t, h.followMe().Mode.Updating)
}

func TestFollowMeSupportedModes(t *testing.T) {
	h := newHarness(t)
	h.connect(
		flying(),
		followState(feature.ModeGeographic, feature.BehaviorFollow),
		modeInfo(feature.ModeGeographic, feature.AllInputs, feature.AllInputs),
		modeInfo(feature.ModeRelative, feature.AllInputs, feature.AllInputs),
	)
	fm := h.session.FollowMe()
	require.NotNil(t, fm)

	assert.Equal(t, 1, h.changes(KindFollowMe))
	assert.Equal(t, EnumSetOf(FollowGeographic, FollowRelative), h.followMe().Mode.Supported)

	h.event(modeInfo(feature.ModeLeash, feature.AllInputs, feature.AllInputs))
	assert.Equal(t, 1, h.changes(KindFollowMe))
	assert.Equal(t, EnumSetOf(FollowGeographic, FollowRelative), h.followMe().Mode.Supported)

	// неподдерживаемый режим отклоняется без команды
	assert.False(t, fm.SetMode(FollowLeash))
	assert.Equal(t, 1, h.changes(KindFollowMe))
	assert.Equal(t, FollowGeographic, h.followMe().Mode.Value)
}

func TestFollowMeBehavior(t *testing.T) {
	h := newHarness(t)
	h.connect(flying(), followState(feature.ModeRelative, feature.BehaviorFollow))

	assert.Equal(t, 1, h.changes(KindFollowMe))
	assert.Equal(t, BehaviorFollowing, h.followMe().Behavior)

	tests := []struct {
		behavior feature.Behavior
		expected Behavior
	}{
		{feature.BehaviorLookAt, BehaviorStationary},
		{feature.BehaviorFollow, BehaviorFollowing},
		{feature.BehaviorIdle, BehaviorInactive},
	}
	for i, tt := range tests {
		h.event(followState(feature.ModeRelative, tt.behavior))
		assert.Equal(t, 2+i, h.changes(KindFollowMe))
		assert.Equal(t, tt.expected, h.followMe().Behavior)
	}
}

func TestFollowMePiloting(t *testing.T) {
	h := newHarness(t)
	h.connect(flying(), followState(feature.ModeRelative, feature.BehaviorFollow))
	fm := h.session.FollowMe()
	require.NotNil(t, fm)

	assert.Equal(t, 1, h.changes(KindFollowMe))
	assert.Equal(t, Active, h.snapshot(KindFollowMe).State)
	owner, ok := h.session.Loop().Owner()
	assert.True(t, ok)
	assert.Equal(t, KindFollowMe, owner)

	h.expectPCMD(feature.PCMD{Seq: 1})
	assert.True(t, h.session.Loop().Tick())
	h.verify()

	fm.SetPitch(2)
	fm.SetRoll(4)
	fm.SetVerticalSpeed(8)
	h.expectPCMD(feature.PCMD{Flag: 1, Roll: 4, Pitch: -2, Gaz: 8, Seq: 2})
	assert.True(t, h.session.Loop().Tick())
	h.verify()

	h.event(followState(feature.ModeRelative, feature.BehaviorIdle))
	assert.Equal(t, 2, h.changes(KindFollowMe))
	assert.Equal(t, Idle, h.snapshot(KindFollowMe).State)

	// значения больше не применяются, цикл перешел к ручному интерфейсу
	fm.SetPitch(16)
	fm.SetRoll(32)
	fm.SetVerticalSpeed(64)
	owner, _ = h.session.Loop().Owner()
	assert.Equal(t, KindManual, owner)

	// счетчик сброшен при освобождении цикла
	h.expectPCMD(feature.PCMD{Seq: 1})
	assert.True(t, h.session.Loop().Tick())
	h.verify()
}

func TestFollowMeSettingRollback(t *testing.T) {
	config := DefaultConfig()
	config.SettingTimeout = 20 * time.Millisecond
	h := newHarnessWithConfig(t, config)
	h.connect(
		flying(),
		followState(feature.ModeGeographic, feature.BehaviorFollow),
		modeInfo(feature.ModeGeographic, feature.AllInputs, feature.AllInputs),
		modeInfo(feature.ModeRelative, feature.AllInputs, feature.AllInputs),
	)
	fm := h.session.FollowMe()
	require.NotNil(t, fm)

	h.expect(feature.FollowMeStart{Mode: feature.ModeRelative})
	assert.True(t, fm.SetMode(FollowRelative))
	h.verify()
	assert.True(t, h.followMe().Mode.Updating)

	// без подтверждения значение откатывается
	assert.Eventually(t, func() bool {
		return h.changes(KindFollowMe) == 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, FollowGeographic, h.followMe().Mode.Value)
	assert.False(t, h.followMe().Mode.Updating)
}
