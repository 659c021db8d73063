package flightlog

import (
	"context"
	"sync"
	"time"

	"pilot-bridge/pilotingitf"
)

// Recorder сохраняет каждый новый результат Guided перемещения
type Recorder struct {
	store       Store
	snapshots   <-chan pilotingitf.Snapshot
	now         func() time.Time
	saveTimeout time.Duration

	seen uint64 // FinishedFlights последнего сохраненного результата
	wg   sync.WaitGroup
}

func NewRecorder(store Store, snapshots <-chan pilotingitf.Snapshot) *Recorder {
	return &Recorder{
		store:       store,
		snapshots:   snapshots,
		now:         time.Now,
		saveTimeout: 5 * time.Second,
	}
}

// Start читает снимки до закрытия канала или отмены ctx
func (r *Recorder) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-r.snapshots:
				if !ok {
					return
				}
				r.observe(ctx, snap)
			}
		}
	}()
}

// Wait ждет завершения горутины Start
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) observe(ctx context.Context, snap pilotingitf.Snapshot) {
	if snap.Kind != pilotingitf.KindGuided {
		return
	}
	if !snap.Published {
		// счетчик начинается заново после переподключения
		r.seen = 0
		return
	}
	payload, ok := snap.Payload.(pilotingitf.GuidedPayload)
	if !ok || payload.LatestFinishedFlightInfo == nil || payload.FinishedFlights <= r.seen {
		return
	}
	if payload.FinishedFlights > r.seen+1 {
		logger.Printf("Warning: %d flight results were not observed", payload.FinishedFlights-r.seen-1)
	}
	r.seen = payload.FinishedFlights

	rec, ok := RecordOf(payload.LatestFinishedFlightInfo, r.now())
	if !ok {
		return
	}
	saveCtx, cancel := context.WithTimeout(ctx, r.saveTimeout)
	defer cancel()
	if err := r.store.Save(saveCtx, rec); err != nil {
		logger.Printf("Failed to save flight record %s: %v", rec.ID, err)
		return
	}
	logger.Printf("Recorded %s move %s (successful: %t)", rec.Kind, rec.ID, rec.Successful)
}
