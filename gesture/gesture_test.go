package gesture

import (
	"context"
	"testing"
	"time"

	"dubtap/hotkey"
)

const ctrl = hotkey.KeyLeftCtrl

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func down(k hotkey.Key, at int) hotkey.Event { return hotkey.Event{Key: k, Down: true, At: ms(at)} }
func up(k hotkey.Key, at int) hotkey.Event   { return hotkey.Event{Key: k, At: ms(at)} }

func newMachine() *Machine {
	return New(TargetFor("linux"), DefaultThreshold)
}

func feed(m *Machine, events ...hotkey.Event) []Intent {
	var out []Intent
	for _, ev := range events {
		if in := m.Handle(ev); in != None {
			out = append(out, in)
		}
	}
	return out
}

func TestSequences(t *testing.T) {
	tests := []struct {
		name      string
		events    []hotkey.Event
		want      []Intent
		wantState State
	}{
		{
			name:      "double press within threshold begins",
			events:    []hotkey.Event{down(ctrl, 0), up(ctrl, 50), down(ctrl, 200)},
			want:      []Intent{Begin},
			wantState: Held,
		},
		{
			name:      "slow second press restarts gesture",
			events:    []hotkey.Event{down(ctrl, 0), up(ctrl, 50), down(ctrl, 500)},
			want:      nil,
			wantState: Pressed,
		},
		{
			name:      "threshold is inclusive",
			events:    []hotkey.Event{down(ctrl, 0), up(ctrl, 100), down(ctrl, 400)},
			want:      []Intent{Begin},
			wantState: Held,
		},
		{
			name:      "release of held key ends",
			events:    []hotkey.Event{down(ctrl, 0), up(ctrl, 50), down(ctrl, 200), up(ctrl, 2000)},
			want:      []Intent{Begin, End},
			wantState: Idle,
		},
		{
			name:      "slow press then fast press begins",
			events:    []hotkey.Event{down(ctrl, 0), up(ctrl, 50), down(ctrl, 900), up(ctrl, 950), down(ctrl, 1100)},
			want:      []Intent{Begin},
			wantState: Held,
		},
		{
			name:      "other key while held ends then resets",
			events:    []hotkey.Event{down(ctrl, 0), up(ctrl, 50), down(ctrl, 200), down("a", 300)},
			want:      []Intent{Begin, End},
			wantState: Idle,
		},
		{
			name:      "other key release while held ends",
			events:    []hotkey.Event{down(ctrl, 0), up(ctrl, 50), down(ctrl, 200), up(hotkey.KeyLeftShift, 300)},
			want:      []Intent{Begin, End},
			wantState: Idle,
		},
		{
			name:      "other key between presses cancels gesture",
			events:    []hotkey.Event{down(ctrl, 0), up(ctrl, 50), down("c", 100), down(ctrl, 150)},
			want:      nil,
			wantState: Pressed,
		},
		{
			name:      "other key while pressed resets",
			events:    []hotkey.Event{down(ctrl, 0), down("c", 10)},
			want:      nil,
			wantState: Idle,
		},
		{
			name:      "other key while idle is ignored",
			events:    []hotkey.Event{down("a", 0), up("a", 10)},
			want:      nil,
			wantState: Idle,
		},
		{
			name:      "third press while held is ignored",
			events:    []hotkey.Event{down(ctrl, 0), up(ctrl, 50), down(ctrl, 200), down(ctrl, 250)},
			want:      []Intent{Begin},
			wantState: Held,
		},
		{
			name:      "repeated press while pressed is ignored",
			events:    []hotkey.Event{down(ctrl, 0), down(ctrl, 20)},
			want:      nil,
			wantState: Pressed,
		},
		{
			name:      "keyup while idle is ignored",
			events:    []hotkey.Event{up(ctrl, 0)},
			want:      nil,
			wantState: Idle,
		},
		{
			name:      "release of other variant is ignored",
			events:    []hotkey.Event{down(ctrl, 0), up(ctrl, 50), down(ctrl, 200), up(hotkey.KeyRightCtrl, 300)},
			want:      []Intent{Begin},
			wantState: Held,
		},
		{
			name:      "second press with other variant begins",
			events:    []hotkey.Event{down(ctrl, 0), up(ctrl, 50), down(hotkey.KeyRightCtrl, 100), up(hotkey.KeyRightCtrl, 900)},
			want:      []Intent{Begin, End},
			wantState: Idle,
		},
		{
			name:      "meta is not the target on linux",
			events:    []hotkey.Event{down(hotkey.KeyLeftMeta, 0), up(hotkey.KeyLeftMeta, 50), down(hotkey.KeyLeftMeta, 100)},
			want:      nil,
			wantState: Idle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMachine()
			got := feed(m, tt.events...)
			if len(got) != len(tt.want) {
				t.Fatalf("intents = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("intent[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
			if m.State() != tt.wantState {
				t.Errorf("state = %v, want %v", m.State(), tt.wantState)
			}
		})
	}
}

func TestReset(t *testing.T) {
	m := newMachine()
	if got := m.Reset(); got != None {
		t.Errorf("Reset() on idle = %v, want none", got)
	}
	feed(m, down(ctrl, 0), up(ctrl, 50), down(ctrl, 100))
	if got := m.Reset(); got != End {
		t.Errorf("Reset() while held = %v, want end", got)
	}
	if m.State() != Idle {
		t.Errorf("state = %v, want idle", m.State())
	}
}

func TestTargetFor(t *testing.T) {
	for _, tt := range []struct {
		goos string
		key  hotkey.Key
	}{
		{"darwin", hotkey.KeyLeftMeta},
		{"darwin", hotkey.KeyRightMeta},
		{"linux", hotkey.KeyLeftCtrl},
		{"windows", hotkey.KeyRightCtrl},
		{"windows", hotkey.KeyCombo},
	} {
		t.Run(tt.goos+"/"+string(tt.key), func(t *testing.T) {
			if !TargetFor(tt.goos).Contains(tt.key) {
				t.Errorf("TargetFor(%q) does not contain %q", tt.goos, tt.key)
			}
		})
	}
	if TargetFor("darwin").Contains(hotkey.KeyLeftCtrl) {
		t.Error("ctrl should not be the darwin target")
	}
}

func TestRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fk := hotkey.NewFake()
	intents := newMachine().Run(ctx, fk.Events())

	fk.SimAt(ctrl, true, ms(0))
	fk.SimAt(ctrl, false, ms(40))
	fk.SimAt(ctrl, true, ms(120))
	fk.SimAt(ctrl, false, ms(1500))

	for _, want := range []Intent{Begin, End} {
		select {
		case got := <-intents:
			if got != want {
				t.Fatalf("got %v, want %v", got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %v", want)
		}
	}

	cancel()
	select {
	case _, ok := <-intents:
		if ok {
			t.Error("expected intents channel to close")
		}
	case <-time.After(time.Second):
		t.Fatal("intents channel not closed after cancel")
	}
}
