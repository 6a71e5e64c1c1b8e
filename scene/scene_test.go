package scene

import "testing"

func TestNewScene(t *testing.T) {
	s := NewScene()
	if s.Root() == nil || s.Root().Name != "root" {
		t.Fatal("missing root")
	}
	if !s.Root().Interactable || !s.deviceInput {
		t.Error("root should be interactable and device input on by default")
	}
}

func TestStepRunsUpdates(t *testing.T) {
	s := newTestScene()
	var total float64
	n := NewContainer("ticker")
	n.OnUpdate = func(dt float64) { total += dt }
	s.Root().AddChild(n)

	// A node added from inside an update starts ticking next frame.
	var added *Node
	spawner := NewContainer("spawner")
	spawner.OnUpdate = func(float64) {
		if added == nil {
			added = NewContainer("added")
			added.OnUpdate = func(float64) {}
			s.Root().AddChild(added)
		}
	}
	s.Root().AddChild(spawner)

	step(s, 3)
	if !approxEqualTol(total, 3.0/60, 1e-12) {
		t.Errorf("total dt = %v", total)
	}
	if s.Frame() != 3 {
		t.Errorf("Frame = %d, want 3", s.Frame())
	}

	n.Dispose()
	step(s, 1)
	if !approxEqualTol(total, 3.0/60, 1e-12) {
		t.Error("disposed node kept updating")
	}
}

func TestStepRefreshesTransformsBeforeInput(t *testing.T) {
	s := newTestScene()
	btn := NewRect("btn", 10, 10, ColorWhite)
	btn.Interactable = true
	s.Root().AddChild(btn)
	clicks := 0
	btn.OnClick = func(ClickContext) { clicks++ }

	// Moved by an update in the same frame the click is processed.
	btn.OnUpdate = func(float64) { btn.SetPosition(200, 200) }
	s.InjectClick(205, 205)
	step(s, 2)
	if clicks != 1 {
		t.Errorf("clicks = %d, want 1", clicks)
	}
}
