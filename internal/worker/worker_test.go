package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"dogsitter/internal/config"
	"dogsitter/internal/database"
	"dogsitter/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func testBooking(id int64) *models.Booking {
	start := models.Today().AddDays(3)
	return &models.Booking{
		ID:          id,
		UserID:      1,
		DogSitterID: 2,
		StartDate:   start,
		EndDate:     start.AddDays(2),
		TotalPrice:  200000,
		Status:      models.StatusPending,
		Version:     1,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	ledger := &fakeLedger{}
	worker := NewLedgerWorker(db, ledger, nil, config.WorkerConfig{}, nil)

	ctx := context.Background()
	booking := testBooking(1)
	if err := worker.EnqueueTask(ctx, TaskUpsert, booking); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusCompleted {
		t.Fatalf("expected status=completed, got %s", status)
	}
	if retryCount != 0 {
		t.Fatalf("expected retry_count=0, got %d", retryCount)
	}
	if nextRetry.Valid {
		t.Fatalf("expected next_retry_at NULL on success")
	}
	if ledger.upsertCalls != 1 {
		t.Fatalf("expected upsert call, got %d", ledger.upsertCalls)
	}
	if ledger.lastBooking == nil || ledger.lastBooking.TotalPrice != booking.TotalPrice {
		t.Fatalf("expected booking snapshot to reach the ledger, got %+v", ledger.lastBooking)
	}
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	ledger := &fakeLedger{err: errors.New("boom")}
	worker := NewLedgerWorker(db, ledger, nil, config.WorkerConfig{MaxRetries: 3, InitialDelay: time.Second}, nil)

	ctx := context.Background()
	if err := worker.EnqueueTask(ctx, TaskUpsert, testBooking(2)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusRetry {
		t.Fatalf("expected status=retry, got %s", status)
	}
	if retryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", retryCount)
	}
	if !nextRetry.Valid || nextRetry.Time.Before(time.Now()) {
		t.Fatalf("expected next_retry_at in future, got %v", nextRetry)
	}

	// Not due yet, so polling must skip it.
	processed, err := worker.pollOnce(ctx)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if processed != 0 {
		t.Fatalf("expected no due tasks, got %d", processed)
	}
}

func TestProcessTaskFail(t *testing.T) {
	db := newTestDB(t)
	ledger := &fakeLedger{err: errors.New("fatal")}
	worker := NewLedgerWorker(db, ledger, nil, config.WorkerConfig{MaxRetries: 1}, nil)

	ctx := context.Background()
	if err := worker.EnqueueTask(ctx, TaskUpsert, testBooking(3)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	task, _ := worker.tryLocalQueue()
	worker.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusFailed {
		t.Fatalf("expected status=failed, got %s", status)
	}
	failed, err := db.GetFailedSyncTasks(ctx)
	if err != nil {
		t.Fatalf("failed tasks: %v", err)
	}
	if len(failed) != 1 || failed[0].LastError == nil || *failed[0].LastError != "fatal" {
		t.Fatalf("expected one failed task with last error, got %+v", failed)
	}
}

func TestProcessTaskBadPayload(t *testing.T) {
	db := newTestDB(t)
	worker := NewLedgerWorker(db, &fakeLedger{}, nil, config.WorkerConfig{}, nil)

	ctx := context.Background()
	task := models.SyncTask{TaskType: TaskUpsert, BookingID: 9, Payload: "invalid json"}
	if err := db.CreateSyncTask(ctx, &task); err != nil {
		t.Fatalf("create: %v", err)
	}
	worker.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusFailed {
		t.Fatalf("expected status=failed, got %s", status)
	}
}

func TestLedgerWorker_Apply(t *testing.T) {
	ledger := &fakeLedger{}
	worker := NewLedgerWorker(nil, ledger, nil, config.WorkerConfig{}, nil)
	ctx := context.Background()

	t.Run("Upsert", func(t *testing.T) {
		if err := worker.apply(ctx, TaskUpsert, taskPayload{Booking: testBooking(1)}); err != nil {
			t.Fatalf("apply: %v", err)
		}
		if ledger.upsertCalls != 1 {
			t.Fatalf("expected 1 upsert call, got %d", ledger.upsertCalls)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := worker.apply(ctx, TaskDelete, taskPayload{BookingID: 123}); err != nil {
			t.Fatalf("apply: %v", err)
		}
		if ledger.deleteCalls != 1 {
			t.Fatalf("expected 1 delete call, got %d", ledger.deleteCalls)
		}
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		if err := worker.apply(ctx, TaskUpdateStatus, taskPayload{BookingID: 123, Status: models.StatusConfirmed}); err != nil {
			t.Fatalf("apply: %v", err)
		}
		if ledger.statusCalls != 1 || ledger.lastStatus != models.StatusConfirmed {
			t.Fatalf("expected 1 status call with confirmed, got %d %q", ledger.statusCalls, ledger.lastStatus)
		}
	})

	t.Run("MissingData", func(t *testing.T) {
		if err := worker.apply(ctx, TaskUpsert, taskPayload{}); err == nil {
			t.Fatalf("expected error for missing booking")
		}
		if err := worker.apply(ctx, TaskUpdateStatus, taskPayload{BookingID: 1}); err == nil {
			t.Fatalf("expected error for missing status")
		}
		if err := worker.apply(ctx, "archive", taskPayload{BookingID: 1}); err == nil {
			t.Fatalf("expected error for unknown task type")
		}
	})
}

func TestLedgerWorker_EnqueueTask(t *testing.T) {
	db := newTestDB(t)
	worker := NewLedgerWorker(db, &fakeLedger{}, nil, config.WorkerConfig{}, nil)
	ctx := context.Background()

	t.Run("ValidTask", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, TaskDelete, testBooking(1)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		task, ok := worker.tryLocalQueue()
		if !ok {
			t.Fatalf("expected queued task")
		}
		payload, err := decodePayload(task.Payload)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if payload.BookingID != 1 || payload.Booking != nil {
			t.Fatalf("delete payload should carry only the id, got %+v", payload)
		}
	})

	t.Run("InvalidTaskType", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, "", testBooking(1)); err == nil {
			t.Fatalf("expected error for empty task type")
		}
		if err := worker.EnqueueTask(ctx, "archive", testBooking(1)); err == nil {
			t.Fatalf("expected error for unknown task type")
		}
	})

	t.Run("InvalidBooking", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, TaskUpsert, nil); err == nil {
			t.Fatalf("expected error for missing booking")
		}
		if err := worker.EnqueueTask(ctx, TaskUpsert, &models.Booking{}); err == nil {
			t.Fatalf("expected error for missing booking id")
		}
	})
}

func TestLedgerWorker_PollPending(t *testing.T) {
	db := newTestDB(t)
	ledger := &fakeLedger{}
	worker := NewLedgerWorker(db, ledger, nil, config.WorkerConfig{}, nil)
	ctx := context.Background()

	for i := 0; i < localQueueCap+2; i++ {
		if err := worker.EnqueueTask(ctx, TaskUpdateStatus, testBooking(int64(i+1))); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	// Drain the memory queue; the overflow stays pending in the database.
	for {
		task, ok := worker.tryLocalQueue()
		if !ok {
			break
		}
		worker.processTask(ctx, &task)
	}

	processed, err := worker.pollOnce(ctx)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if processed != 2 {
		t.Fatalf("expected 2 overflow tasks, got %d", processed)
	}
	if ledger.statusCalls != localQueueCap+2 {
		t.Fatalf("expected %d status calls, got %d", localQueueCap+2, ledger.statusCalls)
	}
}

func TestLedgerWorker_QueuedAndPolledTaskAppliedOnce(t *testing.T) {
	db := newTestDB(t)
	ledger := &fakeLedger{}
	worker := NewLedgerWorker(db, ledger, nil, config.WorkerConfig{}, nil)
	ctx := context.Background()

	if err := worker.EnqueueTask(ctx, TaskUpsert, testBooking(11)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	queued, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}

	// Polling reaches the row first; the queued copy must then be skipped.
	if _, err := worker.pollOnce(ctx); err != nil {
		t.Fatalf("poll: %v", err)
	}
	worker.processTask(ctx, &queued)

	if ledger.upsertCalls != 1 {
		t.Fatalf("expected one upsert, got %d", ledger.upsertCalls)
	}
	status, _, _ := loadTaskStatus(t, db, queued.ID)
	if status != models.SyncStatusCompleted {
		t.Fatalf("expected status=completed, got %s", status)
	}
}

func TestLedgerWorker_StartReleasesStaleTasks(t *testing.T) {
	db := newTestDB(t)
	ledger := &fakeLedger{}
	worker := NewLedgerWorker(db, ledger, nil, config.WorkerConfig{PollInterval: 10 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	task := models.SyncTask{TaskType: TaskDelete, BookingID: 12, Payload: `{"booking_id":12}`}
	if err := db.CreateSyncTask(ctx, &task); err != nil {
		t.Fatalf("create: %v", err)
	}
	if claimed, err := db.ClaimSyncTask(ctx, task.ID); err != nil || !claimed {
		t.Fatalf("claim: %v %v", claimed, err)
	}

	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		if status, _, _ := loadTaskStatus(t, db, task.ID); status == models.SyncStatusCompleted {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("stale task was not processed")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if ledger.calls() != 1 {
		t.Fatalf("expected one ledger call, got %d", ledger.calls())
	}
}

func TestLedgerWorker_RedisQueue(t *testing.T) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer s.Close()
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	db := newTestDB(t)
	ledger := &fakeLedger{err: errors.New("sheets down")}
	worker := NewLedgerWorker(db, ledger, client, config.WorkerConfig{MaxRetries: 1}, nil)
	ctx := context.Background()

	if err := worker.EnqueueTask(ctx, TaskUpsert, testBooking(5)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, ok := worker.tryLocalQueue(); ok {
		t.Fatalf("task should go to redis, not the memory queue")
	}

	task, ok := worker.tryRedis(ctx)
	if !ok {
		t.Fatalf("expected task from redis")
	}
	if task.BookingID != 5 {
		t.Fatalf("expected booking 5, got %d", task.BookingID)
	}
	worker.processTask(ctx, &task)

	dead, err := client.LRange(ctx, deadLetterKey, 0, -1).Result()
	if err != nil {
		t.Fatalf("lrange: %v", err)
	}
	if len(dead) != 1 {
		t.Fatalf("expected 1 dead letter, got %d", len(dead))
	}
	var deadTask models.SyncTask
	if err := json.Unmarshal([]byte(dead[0]), &deadTask); err != nil {
		t.Fatalf("decode dead letter: %v", err)
	}
	if deadTask.ID != task.ID {
		t.Fatalf("expected dead letter for task %d, got %d", task.ID, deadTask.ID)
	}
}

func TestLedgerWorker_StartStops(t *testing.T) {
	db := newTestDB(t)
	ledger := &fakeLedger{}
	worker := NewLedgerWorker(db, ledger, nil, config.WorkerConfig{PollInterval: 10 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := worker.EnqueueTask(ctx, TaskUpsert, testBooking(7)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for ledger.calls() == 0 {
		select {
		case <-deadline:
			t.Fatalf("task was not processed")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not stop")
	}
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}
	d1 := policy.NextDelay(1)
	d2 := policy.NextDelay(2)
	d3 := policy.NextDelay(5)

	if d1 != time.Second {
		t.Fatalf("attempt1 expected 1s, got %s", d1)
	}
	if d2 != 2*time.Second {
		t.Fatalf("attempt2 expected 2s, got %s", d2)
	}
	if d3 != 5*time.Second {
		t.Fatalf("attempt5 expected capped 5s, got %s", d3)
	}
	if d := (RetryPolicy{}).NextDelay(0); d != time.Second {
		t.Fatalf("zero policy expected 1s, got %s", d)
	}
}

func TestRetryPolicyExhausted(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3}
	if policy.Exhausted(2) {
		t.Fatalf("attempt 2 of 3 should retry")
	}
	if !policy.Exhausted(3) {
		t.Fatalf("attempt 3 of 3 should dead-letter")
	}
	if (RetryPolicy{}).Exhausted(100) {
		t.Fatalf("zero MaxRetries never exhausts")
	}
}

// Helpers

type fakeLedger struct {
	mu          sync.Mutex
	err         error
	upsertCalls int
	deleteCalls int
	statusCalls int
	lastBooking *models.Booking
	lastStatus  string
}

func (f *fakeLedger) UpsertBooking(_ context.Context, b *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++
	f.lastBooking = b
	return f.err
}

func (f *fakeLedger) DeleteBookingRow(_ context.Context, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	return f.err
}

func (f *fakeLedger) UpdateBookingStatus(_ context.Context, _ int64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	f.lastStatus = status
	return f.err
}

func (f *fakeLedger) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upsertCalls + f.deleteCalls + f.statusCalls
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.db")
	logger := zerolog.Nop()
	db, err := database.NewDB(path, &logger)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func loadTaskStatus(t *testing.T, db *database.DB, id int64) (status string, retryCount int, nextRetry sql.NullTime) {
	t.Helper()
	row := db.QueryRowContext(context.Background(), `SELECT status, retry_count, next_retry_at FROM sync_queue WHERE id = ?`, id)
	if err := row.Scan(&status, &retryCount, &nextRetry); err != nil {
		t.Fatalf("scan task: %v", err)
	}
	return status, retryCount, nextRetry
}
