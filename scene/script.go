package scene

import (
	"github.com/juju/errors"
	"gopkg.in/yaml.v3"
)

// Step is one action in a UI script.
//
//	steps:
//	  - action: click
//	    target: select-button
//	  - action: wait
//	    frames: 10
//	  - action: drag
//	    from: [100, 400]
//	    to: [300, 400]
//	    frames: 8
//
// click takes either a target node name or x/y. Actions other than click,
// drag and wait go to the runner's handlers.
type Step struct {
	Action string    `yaml:"action"`
	Target string    `yaml:"target,omitempty"`
	X      float64   `yaml:"x,omitempty"`
	Y      float64   `yaml:"y,omitempty"`
	From   []float64 `yaml:"from,omitempty"`
	To     []float64 `yaml:"to,omitempty"`
	Frames int       `yaml:"frames,omitempty"`
	Path   string    `yaml:"path,omitempty"`
}

type script struct {
	Steps []Step `yaml:"steps"`
}

// StepHandler runs a custom script action.
type StepHandler func(Step) error

// ScriptRunner sequences injected input across frames. Attach it with
// Scene.SetScriptRunner.
type ScriptRunner struct {
	steps     []Step
	cursor    int
	waitCount int
	done      bool
	handlers  map[string]StepHandler

	// Err holds the first step failure; the runner keeps going after it.
	Err error
}

// LoadScript parses a YAML UI script.
func LoadScript(data []byte) (*ScriptRunner, error) {
	var sc script
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, errors.Annotate(err, "parsing UI script")
	}
	if len(sc.Steps) == 0 {
		return nil, errors.NotValidf("UI script without steps")
	}
	for i, st := range sc.Steps {
		if st.Action == "drag" && (len(st.From) != 2 || len(st.To) != 2) {
			return nil, errors.NotValidf("step %d: drag needs from and to as [x, y]", i)
		}
	}
	return &ScriptRunner{steps: sc.Steps, handlers: map[string]StepHandler{}}, nil
}

// Handle registers fn for a custom action.
func (r *ScriptRunner) Handle(action string, fn StepHandler) {
	r.handlers[action] = fn
}

// Done reports whether every step has run.
func (r *ScriptRunner) Done() bool {
	return r.done
}

// SetScriptRunner attaches a runner; it advances once per Update, before
// input is processed.
func (s *Scene) SetScriptRunner(r *ScriptRunner) {
	s.runner = r
}

func (r *ScriptRunner) fail(err error) {
	logger.Warningf("UI script: %v", err)
	if r.Err == nil {
		r.Err = err
	}
}

func (r *ScriptRunner) step(s *Scene) {
	if r.done {
		return
	}
	// Wait for pending injections to drain before advancing.
	if len(s.injectQueue) > 0 {
		return
	}
	if r.waitCount > 0 {
		r.waitCount--
		return
	}
	if r.cursor >= len(r.steps) {
		r.done = true
		return
	}

	st := r.steps[r.cursor]
	r.cursor++
	logger.Debugf("UI script step %d: %s", r.cursor, st.Action)

	switch st.Action {
	case "click":
		x, y := st.X, st.Y
		if st.Target != "" {
			n := s.root.Find(st.Target)
			if n == nil || !n.Visible {
				r.fail(errors.NotFoundf("step %d: node %q", r.cursor, st.Target))
				break
			}
			x, y = n.WorldCenter()
		}
		s.InjectClick(x, y)
	case "drag":
		s.InjectDrag(st.From[0], st.From[1], st.To[0], st.To[1], st.Frames)
	case "wait":
		if st.Frames > 0 {
			r.waitCount = st.Frames - 1 // this frame counts as one
		}
	default:
		fn, ok := r.handlers[st.Action]
		if !ok {
			r.fail(errors.NotSupportedf("step %d: action %q", r.cursor, st.Action))
			break
		}
		if err := fn(st); err != nil {
			r.fail(errors.Annotatef(err, "step %d: %s", r.cursor, st.Action))
		}
	}

	if r.cursor >= len(r.steps) && r.waitCount == 0 && len(s.injectQueue) == 0 {
		r.done = true
	}
}
