package watch

import (
	"errors"
	"testing"
	"time"
)

func TestNewSpec(t *testing.T) {
	tests := []struct {
		desc     string
		command  string
		interval time.Duration
		wantErr  bool
	}{
		{"valid", "sleep", time.Second, false},
		{"empty command", "", time.Second, true},
		{"blank command", "   ", time.Second, true},
		{"zero interval", "sleep", 0, true},
		{"negative interval", "sleep", -time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			spec, err := NewSpec(tt.command, []string{"1"}, tt.interval)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSpec) {
					t.Errorf("expected ErrInvalidSpec, got %v", err)
				}
				if spec != nil {
					t.Errorf("expected nil spec on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSpecIsImmutable(t *testing.T) {
	args := []string{"-c", "true"}
	spec, err := NewSpec("sh", args, time.Second)
	if err != nil {
		t.Fatalf("NewSpec failed: %v", err)
	}

	args[1] = "false"
	if spec.Args()[1] != "true" {
		t.Errorf("spec shares the caller's slice")
	}

	got := spec.Args()
	got[0] = "changed"
	if spec.Args()[0] != "-c" {
		t.Errorf("Args returned the internal slice")
	}
}

func TestSpecFromMillis(t *testing.T) {
	spec, err := SpecFromMillis("node", []string{"test.js"}, 500)
	if err != nil {
		t.Fatalf("SpecFromMillis failed: %v", err)
	}
	if spec.Interval() != 500*time.Millisecond {
		t.Errorf("interval = %s, expected 500ms", spec.Interval())
	}
	if spec.Command() != "node" {
		t.Errorf("command = %q, expected node", spec.Command())
	}
	if spec.String() != "node test.js every 500ms" {
		t.Errorf("String() = %q", spec.String())
	}
}
