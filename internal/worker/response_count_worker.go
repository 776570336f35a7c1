package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/classpulse-backend/internal/config"
	"github.com/stemsi/classpulse-backend/internal/model"
)

const (
	CountBatchSize    = 50
	CountBatchTimeout = 2 * time.Second
	CountPollTimeout  = 1 * time.Second
)

// ResponseCounter applies response count deltas to sessions.
type ResponseCounter interface {
	AddResponseCounts(ctx context.Context, ids []uuid.UUID, deltas []int) error
	AddResponseCount(ctx context.Context, id uuid.UUID, delta int) error
}

// ResponseCountWorker folds queued submission counts into
// sessions.response_count in batches.
type ResponseCountWorker struct {
	counter ResponseCounter
	rdb     *redis.Client
	log     zerolog.Logger
}

func NewResponseCountWorker(counter ResponseCounter, rdb *redis.Client, log zerolog.Logger) *ResponseCountWorker {
	return &ResponseCountWorker{
		counter: counter,
		rdb:     rdb,
		log:     log.With().Str("component", "response_count_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *ResponseCountWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResponseCountWorker started")

	batch := make([]model.ResponseCountJob, 0, CountBatchSize)
	lastFlush := time.Now()

	for {
		// Should flush?
		if len(batch) > 0 &&
			(len(batch) >= CountBatchSize || time.Since(lastFlush) >= CountBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, CountPollTimeout, config.WorkerKey.PersistResponseCountQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var job model.ResponseCountJob
			if err := json.Unmarshal([]byte(item[1]), &job); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}
			if job.Delta == 0 {
				job.Delta = 1
			}

			batch = append(batch, job)
		}
	}
}

// ----------------------------------------------------------------
// Batch update with single-row fallback
// ----------------------------------------------------------------

func (w *ResponseCountWorker) flushSafe(ctx context.Context, batch []model.ResponseCountJob) {
	if len(batch) == 0 {
		return
	}

	ids, deltas := SumDeltas(batch)
	if err := w.counter.AddResponseCounts(ctx, ids, deltas); err != nil {
		w.log.Warn().Err(err).Msg("bulk count update failed, using fallback")

		for i, id := range ids {
			if err := w.counter.AddResponseCount(ctx, id, deltas[i]); err != nil {
				w.log.Error().Err(err).Str("session_id", id.String()).Msg("single count update failed, requeueing")
				raw, _ := json.Marshal(model.ResponseCountJob{SessionID: id, Delta: deltas[i]})
				w.rdb.RPush(ctx, config.WorkerKey.PersistResponseCountQueue, raw)
			}
		}
		return
	}

	w.log.Debug().Int("jobs", len(batch)).Int("sessions", len(ids)).Msg("Response counts flushed")
}

// SumDeltas collapses jobs into one delta per session, in first-seen order.
func SumDeltas(batch []model.ResponseCountJob) ([]uuid.UUID, []int) {
	index := make(map[uuid.UUID]int, len(batch))
	ids := make([]uuid.UUID, 0, len(batch))
	deltas := make([]int, 0, len(batch))
	for _, job := range batch {
		if i, ok := index[job.SessionID]; ok {
			deltas[i] += job.Delta
			continue
		}
		index[job.SessionID] = len(ids)
		ids = append(ids, job.SessionID)
		deltas = append(deltas, job.Delta)
	}
	return ids, deltas
}
