package observe

import (
	"os"
	"syscall"
	"testing"
	"time"
)

func TestTimingFreezesOnComplete(t *testing.T) {
	timing := NewTiming()
	time.Sleep(5 * time.Millisecond)
	timing.Complete()

	first := timing.Duration()
	time.Sleep(5 * time.Millisecond)
	if timing.Duration() != first {
		t.Errorf("duration changed after Complete: %v -> %v", first, timing.Duration())
	}
	if timing.UptimeMillis() < 5 {
		t.Errorf("expected at least 5ms uptime, got %d", timing.UptimeMillis())
	}
}

func TestTimingUptimeNonDecreasing(t *testing.T) {
	timing := NewTiming()
	last := timing.UptimeMillis()
	for i := 0; i < 100; i++ {
		now := timing.UptimeMillis()
		if now < last {
			t.Fatalf("uptime went backwards: %d -> %d", last, now)
		}
		last = now
	}
}

type sent struct {
	pid int
	sig syscall.Signal
}

func fakeDeadline(limit, grace time.Duration) (*Deadline, *[]sent) {
	var signals []sent
	d := NewDeadline(limit, grace)
	d.signal = func(pid int, sig syscall.Signal) error {
		signals = append(signals, sent{pid, sig})
		return nil
	}
	return d, &signals
}

func TestDeadline(t *testing.T) {
	tests := []struct {
		desc    string
		limit   time.Duration
		grace   time.Duration
		uptimes []time.Duration
		want    []Action
	}{
		{
			desc:    "disabled",
			limit:   0,
			uptimes: []time.Duration{time.Hour},
			want:    []Action{ActionNone},
		},
		{
			desc:    "before limit",
			limit:   time.Second,
			grace:   time.Second,
			uptimes: []time.Duration{100 * time.Millisecond, 900 * time.Millisecond},
			want:    []Action{ActionNone, ActionNone},
		},
		{
			desc:    "term then kill after grace",
			limit:   time.Second,
			grace:   500 * time.Millisecond,
			uptimes: []time.Duration{time.Second, 1200 * time.Millisecond, 1500 * time.Millisecond, 2 * time.Second},
			want:    []Action{ActionTerminate, ActionNone, ActionKill, ActionNone},
		},
		{
			desc:    "no grace kills immediately",
			limit:   time.Second,
			uptimes: []time.Duration{time.Second, 2 * time.Second},
			want:    []Action{ActionKill, ActionNone},
		},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			d, _ := fakeDeadline(tt.limit, tt.grace)
			for i, uptime := range tt.uptimes {
				got, err := d.Check(42, uptime)
				if err != nil {
					t.Fatalf("Check(%v) returned error: %v", uptime, err)
				}
				if got != tt.want[i] {
					t.Errorf("Check(%v) = %s, expected %s", uptime, got, tt.want[i])
				}
			}
		})
	}
}

func TestDeadlineSignals(t *testing.T) {
	d, signals := fakeDeadline(time.Second, time.Second)
	d.Check(7, time.Second)
	d.Check(7, 2*time.Second)

	if len(*signals) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(*signals))
	}
	if (*signals)[0] != (sent{7, syscall.SIGTERM}) {
		t.Errorf("expected SIGTERM first, got %+v", (*signals)[0])
	}
	if (*signals)[1] != (sent{7, syscall.SIGKILL}) {
		t.Errorf("expected SIGKILL second, got %+v", (*signals)[1])
	}
	if !d.Expired() {
		t.Error("expected deadline to be expired")
	}
}

func TestExists(t *testing.T) {
	if !Exists(os.Getpid()) {
		t.Error("own process must exist")
	}
	if Exists(1 << 23) {
		t.Error("pid above pid_max must not exist")
	}
}

func TestForwardToMissingProcess(t *testing.T) {
	if err := Forward(1<<23, syscall.SIGTERM); err != nil {
		t.Errorf("forwarding to a gone process must be a no-op, got %v", err)
	}
}
