package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/rs/zerolog"
)

type recordingSubmitter struct {
	mu      sync.Mutex
	batches [][]Job
	done    chan struct{}
}

func (r *recordingSubmitter) SubmitBatch(jobs []Job) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, jobs)
	if r.done != nil {
		close(r.done)
		r.done = nil
	}
	return len(jobs)
}

func staticProvider(jobs ...Job) func(context.Context) ([]Job, error) {
	return func(ctx context.Context) ([]Job, error) { return jobs, nil }
}

func TestParseScheduleTime(t *testing.T) {
	tests := []struct {
		input   string
		want    ScheduleTime
		wantErr bool
	}{
		{"05:00", ScheduleTime{5, 0}, false},
		{"23:59", ScheduleTime{23, 59}, false},
		{"0:7", ScheduleTime{0, 7}, false},
		{"24:00", ScheduleTime{}, true},
		{"12:60", ScheduleTime{}, true},
		{"noon", ScheduleTime{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseScheduleTime(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseScheduleTime() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseScheduleTime() = %v, want %v", got, tt.want)
			}
		})
	}

	if s := (ScheduleTime{Hour: 5, Minute: 3}).String(); s != "05:03" {
		t.Errorf("String() = %q", s)
	}
}

func TestNewScheduler_Validation(t *testing.T) {
	pool := &recordingSubmitter{}

	if _, err := NewScheduler(Config{JobProvider: staticProvider()}, pool, zerolog.Nop()); err == nil {
		t.Error("expected error without schedule times")
	}
	if _, err := NewScheduler(Config{ScheduleTimes: []string{"5am"}, JobProvider: staticProvider()}, pool, zerolog.Nop()); err == nil {
		t.Error("expected error for bad schedule time")
	}
	if _, err := NewScheduler(Config{ScheduleTimes: []string{"05:00"}}, pool, zerolog.Nop()); err == nil {
		t.Error("expected error without job provider")
	}
}

func TestScheduler_ShouldRunOncePerMinute(t *testing.T) {
	s, err := NewScheduler(Config{ScheduleTimes: []string{"05:00", "14:30"}, JobProvider: staticProvider()}, &recordingSubmitter{}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	at := time.Date(2024, 3, 1, 14, 30, 5, 0, time.UTC)
	if !s.shouldRun(at) {
		t.Fatal("expected run at 14:30")
	}
	if s.shouldRun(at.Add(30 * time.Second)) {
		t.Error("should not run twice in the same minute")
	}
	if s.shouldRun(at.Add(time.Minute)) {
		t.Error("should not run at 14:31")
	}
	if !s.shouldRun(at.AddDate(0, 0, 1)) {
		t.Error("expected run at 14:30 the next day")
	}
}

func TestScheduler_NextRun(t *testing.T) {
	s, err := NewScheduler(Config{ScheduleTimes: []string{"14:00", "05:00"}, JobProvider: staticProvider()}, &recordingSubmitter{}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		now  time.Time
		want time.Time
	}{
		{time.Date(2024, 3, 1, 4, 0, 0, 0, time.UTC), time.Date(2024, 3, 1, 5, 0, 0, 0, time.UTC)},
		{time.Date(2024, 3, 1, 5, 0, 0, 0, time.UTC), time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)},
		{time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC), time.Date(2024, 3, 2, 5, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := s.NextRun(tt.now); !got.Equal(tt.want) {
			t.Errorf("NextRun(%v) = %v, want %v", tt.now, got, tt.want)
		}
	}
}

func TestScheduler_TriggerNow(t *testing.T) {
	pool := &recordingSubmitter{}
	job := &funcJob{subject: "alice", fn: func(ctx context.Context) error { return nil }}
	s, err := NewScheduler(Config{ScheduleTimes: []string{"05:00"}, JobProvider: staticProvider(job, job)}, pool, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	if got := s.TriggerNow(); got != 2 {
		t.Errorf("TriggerNow() = %d, want 2", got)
	}
	if len(pool.batches) != 1 {
		t.Errorf("batches = %d, want 1", len(pool.batches))
	}
}

func TestScheduler_ProviderErrorSubmitsNothing(t *testing.T) {
	pool := &recordingSubmitter{}
	provider := func(ctx context.Context) ([]Job, error) { return nil, errors.New("db down") }
	s, err := NewScheduler(Config{ScheduleTimes: []string{"05:00"}, JobProvider: provider}, pool, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	if got := s.TriggerNow(); got != 0 {
		t.Errorf("TriggerNow() = %d, want 0", got)
	}
	if len(pool.batches) != 0 {
		t.Error("nothing should be submitted")
	}
}

func TestScheduler_RunOnStartupAndShutdown(t *testing.T) {
	defer leaktest.Check(t)()

	pool := &recordingSubmitter{done: make(chan struct{})}
	done := pool.done
	job := &funcJob{subject: "alice", fn: func(ctx context.Context) error { return nil }}
	s, err := NewScheduler(Config{ScheduleTimes: []string{"05:00"}, RunOnStartup: true, JobProvider: staticProvider(job)}, pool, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	s.Start()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("startup run did not submit jobs")
	}
	s.Shutdown(time.Second)
}
