package scene

import (
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("kalcame.scene")

const defaultCommandCap = 256

// Scene owns the node tree, input state, and render buffers.
type Scene struct {
	root  *Node
	debug bool

	// ClearColor, when non-nil, fills the target before drawing.
	ClearColor *Color

	commands  []RenderCommand
	sortBuf   []RenderCommand
	updateBuf []*Node

	captured     [maxPointers]*Node
	pointers     [maxPointers]pointerState
	hitBuf       []*Node
	dragDeadZone float64
	touchMap     [maxPointers]ebiten.TouchID
	touchUsed    [maxPointers]bool
	prevTouchIDs []ebiten.TouchID
	deviceInput  bool
	injectQueue  []syntheticPointerEvent

	runner *ScriptRunner
	frame  uint64
}

// NewScene creates a new scene with a pre-created root container.
// Device input is enabled.
func NewScene() *Scene {
	root := NewContainer("root")
	root.Interactable = true
	return &Scene{
		root:         root,
		commands:     make([]RenderCommand, 0, defaultCommandCap),
		sortBuf:      make([]RenderCommand, 0, defaultCommandCap),
		dragDeadZone: defaultDragDeadZone,
		deviceInput:  true,
	}
}

// Root returns the scene's root container node.
func (s *Scene) Root() *Node {
	return s.root
}

// Frame returns the number of updates run so far.
func (s *Scene) Frame() uint64 {
	return s.frame
}

// Update runs one tick at the game's TPS.
func (s *Scene) Update() {
	s.Step(1.0 / float64(ebiten.TPS()))
}

// Step runs one tick of dt seconds: node updates, then the script runner,
// then input.
func (s *Scene) Step(dt float64) {
	s.frame++
	s.runUpdates(dt)
	// Refresh world transforms so hit testing sees this frame's layout.
	updateWorldTransform(s.root, identityTransform, 1.0, false)
	if s.runner != nil {
		s.runner.step(s)
	}
	s.processInput()
}

// runUpdates calls OnUpdate on every node. Callbacks are collected first so
// they may change the tree.
func (s *Scene) runUpdates(dt float64) {
	s.updateBuf = collectUpdaters(s.root, s.updateBuf[:0])
	for _, n := range s.updateBuf {
		if !n.disposed && n.OnUpdate != nil {
			n.OnUpdate(dt)
		}
	}
	clear(s.updateBuf)
}

func collectUpdaters(n *Node, buf []*Node) []*Node {
	if n.OnUpdate != nil {
		buf = append(buf, n)
	}
	for _, c := range n.children {
		buf = collectUpdaters(c, buf)
	}
	return buf
}

// Draw traverses the scene tree, emits render commands, sorts them, and
// draws them onto screen.
func (s *Scene) Draw(screen *ebiten.Image) {
	if s.ClearColor != nil {
		screen.Fill(s.ClearColor.toRGBA())
	}

	var stats debugStats
	var t0 time.Time
	if s.debug {
		t0 = time.Now()
	}

	s.buildCommands()

	if s.debug {
		stats.buildTime = time.Since(t0)
		stats.commandCount = len(s.commands)
		t0 = time.Now()
	}

	s.submit(screen)

	if s.debug {
		stats.submitTime = time.Since(t0)
		s.debugLog(stats)
	}
}

func (s *Scene) buildCommands() {
	clear(s.commands)
	s.commands = s.commands[:0]
	treeOrder := 0
	s.traverse(s.root, identityTransform, 1.0, false, &treeOrder)
	s.mergeSort()
}

// SetDebugMode enables or disables debug mode. When enabled, disposed-node
// use panics and per-frame render stats are logged at DEBUG.
func (s *Scene) SetDebugMode(enabled bool) {
	s.debug = enabled
	globalDebug = enabled
}

// globalDebug mirrors the most recently set Scene debug flag so node
// operations, which lack a Scene pointer, can check it.
var globalDebug bool
