package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/tutorcore/internal/clock"
	"github.com/example/tutorcore/internal/syncqueue"
	"github.com/example/tutorcore/pkg/models"
)

type sentReminder struct {
	userID int64
	count  int
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentReminder
	fail map[int64]bool
}

func (f *fakeNotifier) SendReminders(userID int64, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[userID] {
		return errors.New("blocked by user")
	}
	f.sent = append(f.sent, sentReminder{userID, count})
	return nil
}

type fakeReminders struct {
	byHour map[int][]models.UserProfile
	due    map[int64]int
}

func (f fakeReminders) GetUsersForNotification(ctx context.Context, hour int) ([]models.UserProfile, error) {
	return f.byHour[hour], nil
}

func (f fakeReminders) CountAllDue(ctx context.Context, userID int64, now time.Time) (int, error) {
	return f.due[userID], nil
}

type fakeFlusher struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeFlusher) FlushAll(ctx context.Context) map[int64]syncqueue.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return map[int64]syncqueue.Status{1: syncqueue.StatusSuccess, 2: syncqueue.StatusOffline}
}

func TestCheckReminders(t *testing.T) {
	reminders := fakeReminders{
		byHour: map[int][]models.UserProfile{
			9: {{ID: 1}, {ID: 2}, {ID: 3}},
		},
		due: map[int64]int{1: 12, 2: 0, 3: 4},
	}

	tests := []struct {
		name string
		hour int
		fail map[int64]bool
		want []sentReminder
	}{
		{name: "users with due items", hour: 9, want: []sentReminder{{1, 12}, {3, 4}}},
		{name: "failed send does not stop others", hour: 9, fail: map[int64]bool{1: true}, want: []sentReminder{{3, 4}}},
		{name: "outside notification hours", hour: 23, want: nil},
		{name: "nobody at this hour", hour: 10, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &fakeNotifier{fail: tt.fail}
			clk := clock.NewFake(time.Date(2026, 4, 1, tt.hour, 0, 0, 0, time.UTC))
			s := New(notifier, reminders, nil, clk, DefaultOptions())

			s.CheckReminders(context.Background())

			if len(notifier.sent) != len(tt.want) {
				t.Fatalf("sent %+v, want %+v", notifier.sent, tt.want)
			}
			for i := range tt.want {
				if notifier.sent[i] != tt.want[i] {
					t.Errorf("sent[%d] = %+v, want %+v", i, notifier.sent[i], tt.want[i])
				}
			}
		})
	}
}

func TestRunManualCheck(t *testing.T) {
	notifier := &fakeNotifier{}
	reminders := fakeReminders{due: map[int64]int{7: 3}}
	s := New(notifier, reminders, nil, clock.NewFake(time.Now()), DefaultOptions())

	if err := s.RunManualCheck(context.Background(), 7); err != nil {
		t.Fatalf("RunManualCheck: %v", err)
	}
	if err := s.RunManualCheck(context.Background(), 8); err != nil {
		t.Fatalf("RunManualCheck: %v", err)
	}
	if len(notifier.sent) != 1 || notifier.sent[0] != (sentReminder{7, 3}) {
		t.Fatalf("sent = %+v", notifier.sent)
	}
}

func TestInNotificationHours(t *testing.T) {
	s := New(nil, nil, nil, nil, Options{StartHour: 8, EndHour: 22})
	for hour, want := range map[int]bool{7: false, 8: true, 15: true, 22: true, 23: false} {
		if got := s.InNotificationHours(hour); got != want {
			t.Errorf("InNotificationHours(%d) = %v, want %v", hour, got, want)
		}
	}
}

func TestPeriodicFlush(t *testing.T) {
	flusher := &fakeFlusher{}
	s := New(nil, nil, flusher, nil, Options{FlushInterval: 20 * time.Millisecond})

	s.FlushPending(context.Background())
	if flusher.calls != 1 {
		t.Fatalf("FlushPending made %d calls", flusher.calls)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		flusher.mu.Lock()
		calls := flusher.calls
		flusher.mu.Unlock()
		if calls >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("scheduled flush never ran")
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()
}
