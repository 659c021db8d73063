package pilotingitf

import "time"

// scheduler выполняет fn в контексте протокола через d
type scheduler func(d time.Duration, fn func()) *time.Timer

// setting: значение, которое меняет пользователь и асинхронно подтверждает
// устройство. Изменение применяется сразу и помечено updating до отчета устройства.
type setting[T comparable] struct {
	value     T
	confirmed T
	updating  bool

	// gen отменяет таймеры отката старых изменений
	gen   uint64
	timer *time.Timer

	timeout  time.Duration
	schedule scheduler
}

func newSetting[T comparable](initial T, timeout time.Duration, schedule scheduler) *setting[T] {
	return &setting[T]{value: initial, confirmed: initial, timeout: timeout, schedule: schedule}
}

// request применяет v локально. send отправляет команду и сообщает, была ли
// она отправлена; если нет, v сохраняется без ожидания подтверждения.
func (st *setting[T]) request(v T, send func(T) bool) {
	st.value = v
	st.gen++
	st.stopTimer()
	if !send(v) {
		st.confirmed = v
		st.updating = false
		return
	}
	st.updating = true
	if st.timeout > 0 && st.schedule != nil {
		gen := st.gen
		st.timer = st.schedule(st.timeout, func() { st.rollback(gen) })
	}
}

// confirm записывает значение устройства, оно важнее локального изменения
func (st *setting[T]) confirm(v T) {
	st.value = v
	st.confirmed = v
	st.updating = false
	st.gen++
	st.stopTimer()
}

func (st *setting[T]) rollback(gen uint64) {
	if gen != st.gen || !st.updating {
		return
	}
	logger.Printf("Warning: setting change not confirmed in %v, rolling back", st.timeout)
	st.value = st.confirmed
	st.updating = false
	st.timer = nil
}

// cancel останавливает ожидающий откат
func (st *setting[T]) cancel() {
	st.gen++
	st.stopTimer()
}

func (st *setting[T]) stopTimer() {
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
}
