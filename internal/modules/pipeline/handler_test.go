package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/seopilot/core/internal/models"
	redisc "github.com/seopilot/core/internal/pkg/redis"
	"github.com/seopilot/core/internal/pkg/taskqueue"
)

func newTestTasks(t *testing.T) *taskqueue.Service {
	t.Helper()
	mr := miniredis.RunT(t)
	rc, err := redisc.Connect("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	return taskqueue.NewService(rc)
}

func TestExecuteCompletesTask(t *testing.T) {
	env := newTestEnv(t)
	conn := env.seedConnection(t, models.ModeApprove)
	tasks := newTestTasks(t)
	ctx := context.Background()

	h := NewHandler(env.runner, tasks, env.db, nil)
	task, err := tasks.Enqueue(ctx, TaskTypeRun, map[string]string{"connection_id": conn.ID}, TaskTypeRun+":"+conn.ID, conn.ID)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	h.execute(task.ID, *conn)

	got, err := tasks.GetByID(ctx, task.ID)
	if err != nil || got == nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Status != taskqueue.TaskCompleted {
		t.Errorf("task status = %q, want %q", got.Status, taskqueue.TaskCompleted)
	}
}

func TestExecuteCancelsTaskWhenRunInProgress(t *testing.T) {
	env := newTestEnv(t)
	conn := env.seedConnection(t, models.ModeApprove)
	tasks := newTestTasks(t)
	ctx := context.Background()

	// Another executor holds the run guard for this connection.
	if _, err := env.locker.AcquireLock(ctx, runLockPrefix+conn.ID, time.Minute); err != nil {
		t.Fatal(err)
	}

	h := NewHandler(env.runner, tasks, env.db, nil)
	task, err := tasks.Enqueue(ctx, TaskTypeRun, map[string]string{"connection_id": conn.ID}, TaskTypeRun+":"+conn.ID, conn.ID)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	h.execute(task.ID, *conn)

	got, err := tasks.GetByID(ctx, task.ID)
	if err != nil || got == nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Status != taskqueue.TaskCancelled {
		t.Errorf("task status = %q, want %q", got.Status, taskqueue.TaskCancelled)
	}

	// The dedup slot is free again, so the next trigger queues a fresh run.
	next, err := tasks.Enqueue(ctx, TaskTypeRun, map[string]string{"connection_id": conn.ID}, TaskTypeRun+":"+conn.ID, conn.ID)
	if err != nil {
		t.Fatalf("enqueue again: %v", err)
	}
	if next.ID == task.ID {
		t.Fatal("dedup slot still held by the cancelled task")
	}
	if next.Status != taskqueue.TaskPending {
		t.Errorf("new task status = %q", next.Status)
	}
}
