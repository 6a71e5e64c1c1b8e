package dialog

import "testing"

func TestConfirmQueue(t *testing.T) {
	p := New()
	var answers []bool
	p.Confirm(Config{Title: "first"}, func(ok bool) { answers = append(answers, ok) })
	p.Confirm(Config{Title: "second"}, func(ok bool) { answers = append(answers, ok) })

	if p.Pending() != 2 {
		t.Fatalf("Pending = %d, want 2", p.Pending())
	}
	if got := p.Current().Config.Title; got != "first" {
		t.Fatalf("Current = %q, want first", got)
	}

	p.Resolve(true)
	if got := p.Current().Config.Title; got != "second" {
		t.Fatalf("Current = %q, want second", got)
	}
	p.Resolve(false)

	if p.Current() != nil {
		t.Error("queue should be empty")
	}
	if p.Resolve(true) {
		t.Error("Resolve on empty queue should report false")
	}
	if len(answers) != 2 || !answers[0] || answers[1] {
		t.Errorf("answers = %v, want [true false]", answers)
	}
}

func TestAlertAlwaysAcknowledges(t *testing.T) {
	p := New()
	calls := 0
	p.Alert(Config{Title: "note", CancelLabel: "ignored"}, func() { calls++ })

	confirm, cancel := p.Current().Labels()
	if confirm != DefaultConfirmLabel || cancel != "" {
		t.Errorf("Labels = %q, %q", confirm, cancel)
	}
	p.Resolve(false)
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}

	p.Alert(Config{Title: "no callback"}, nil)
	if !p.Resolve(true) {
		t.Error("alert without callback should still resolve")
	}
}

func TestLabels(t *testing.T) {
	tests := []struct {
		name        string
		req         Request
		wantConfirm string
		wantCancel  string
	}{
		{"confirm defaults", Request{Kind: KindConfirm}, "OK", ""},
		{"confirm custom", Request{Kind: KindConfirm, Config: Config{ConfirmLabel: "Leave", CancelLabel: "Stay"}}, "Leave", "Stay"},
		{"alert custom", Request{Kind: KindAlert, Config: Config{ConfirmLabel: "Ready!", CancelLabel: "x"}}, "Ready!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, x := tt.req.Labels()
			if c != tt.wantConfirm || x != tt.wantCancel {
				t.Errorf("Labels = %q, %q; want %q, %q", c, x, tt.wantConfirm, tt.wantCancel)
			}
		})
	}
}

func TestCloseRejectsPending(t *testing.T) {
	p := New()
	results := map[string][]bool{}
	for _, name := range []string{"a", "b"} {
		name := name
		p.Confirm(Config{Title: name}, func(ok bool) { results[name] = append(results[name], ok) })
	}
	p.Close()
	p.Close()

	for _, name := range []string{"a", "b"} {
		if got := results[name]; len(got) != 1 || got[0] {
			t.Errorf("%s resolved %v, want exactly [false]", name, got)
		}
	}
	if p.Resolve(true) {
		t.Error("Resolve after Close should report false")
	}

	late := 0
	p.Confirm(Config{Title: "late"}, func(ok bool) {
		if ok {
			t.Error("late confirm accepted")
		}
		late++
	})
	if late != 1 || p.Pending() != 0 {
		t.Errorf("late confirm: calls = %d, pending = %d", late, p.Pending())
	}
}

func TestOnChange(t *testing.T) {
	p := New()
	var seen []string
	p.OnChange = func(r *Request) {
		if r == nil {
			seen = append(seen, "")
			return
		}
		seen = append(seen, r.Config.Title)
	}
	p.Alert(Config{Title: "a"}, nil)
	p.Alert(Config{Title: "b"}, nil)
	p.Resolve(true)
	p.Resolve(true)

	want := []string{"a", "b", ""}
	if len(seen) != len(want) {
		t.Fatalf("seen = %q, want %q", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("seen = %q, want %q", seen, want)
		}
	}
}

func TestResolveFromCallbackQueuesNext(t *testing.T) {
	p := New()
	second := false
	p.Confirm(Config{Title: "a"}, func(bool) {
		p.Confirm(Config{Title: "b"}, func(ok bool) { second = ok })
	})
	p.Resolve(true)
	if cur := p.Current(); cur == nil || cur.Config.Title != "b" {
		t.Fatalf("Current = %+v, want b", cur)
	}
	p.Resolve(true)
	if !second {
		t.Error("second confirm not resolved")
	}
}
