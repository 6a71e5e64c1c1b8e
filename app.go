package kalcame

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/juju/errors"

	"github.com/phanxgames/kalcame/camera"
	"github.com/phanxgames/kalcame/config"
	"github.com/phanxgames/kalcame/dialog"
	"github.com/phanxgames/kalcame/eventloop"
	"github.com/phanxgames/kalcame/i18n"
	"github.com/phanxgames/kalcame/imageres"
	"github.com/phanxgames/kalcame/scene"
)

const (
	headerHeight = 48
	keyStep      = 0.05
)

// AppConfig wires an App.
type AppConfig struct {
	Config    config.Config
	Device    camera.Device
	Localizer i18n.Localizer
	Picker    Picker

	// Theme defaults to DefaultTheme.
	Theme *Theme
	// CameraOptions are passed to every camera.Open, after the ones
	// derived from Config.
	CameraOptions []camera.Option
}

// App is the ebiten.Game. It owns the event queue, the controller and the
// scene, and routes between the selector and the trace view.
type App struct {
	cfg    AppConfig
	cancel context.CancelFunc

	queue   *eventloop.Queue
	store   *imageres.Store
	dialogs *dialog.Provider
	ctrl    *Controller

	scene    *scene.Scene
	header   *scene.Node
	title    *scene.Node
	language *button
	content  *scene.Node
	camera   *CameraLayer
	selector *SelectorView
	trace    *TraceView
	overlay  *dialogOverlay

	w, h      int
	closeOnce sync.Once
}

// NewApp builds the scene and mounts the controller.
func NewApp(ctx context.Context, cfg AppConfig) (*App, error) {
	if err := cfg.Config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if cfg.Localizer == nil {
		return nil, errors.NotValidf("missing localizer")
	}
	if cfg.Theme == nil {
		th, err := DefaultTheme()
		if err != nil {
			return nil, errors.Annotate(err, "loading theme")
		}
		cfg.Theme = &th
	}
	th := *cfg.Theme
	loc := cfg.Localizer

	ctx, cancel := context.WithCancel(ctx)
	a := &App{
		cfg:     cfg,
		cancel:  cancel,
		queue:   &eventloop.Queue{},
		store:   imageres.NewStore(),
		dialogs: dialog.New(),
		scene:   scene.NewScene(),
		w:       cfg.Config.Window.Width,
		h:       cfg.Config.Window.Height,
	}
	a.scene.ClearColor = &th.Background
	a.scene.SetDebugMode(cfg.Config.Debug.Scene)

	cc := cfg.Config.Camera
	policy := CameraEager
	if cc.Policy == config.PolicyLazy {
		policy = CameraLazy
	}
	a.ctrl = NewController(ctx, ControllerConfig{
		Device:         cfg.Device,
		Poster:         a.queue,
		Localizer:      loc,
		Dialogs:        a.dialogs,
		ConfirmBack:    cfg.Config.Trace.ConfirmBack,
		Policy:         policy,
		DefaultOpacity: cfg.Config.Trace.DefaultOpacity,
		Constraints: camera.Constraints{
			Facing: camera.Facing(cc.Facing),
			Width:  cc.Width,
			Height: cc.Height,
			FPS:    cc.FPS,
		},
		CameraTimeout: cc.Timeout,
		CameraOptions: cfg.CameraOptions,
	})

	root := a.scene.Root()

	a.header = scene.NewRect("header", 0, headerHeight, th.Surface)
	a.header.Interactable = true
	a.header.SetZIndex(5)
	a.title = newLabel("title", loc.T("title"), th.Title, scene.ColorWhite, scene.TextAlignLeft)
	a.language = newButton("language", a.languageLabel(), th.Small, buttonWidth, headerHeight-2*8, th.Surface, th.Accent, a.cycleLanguage)
	a.header.AddChild(a.title)
	a.header.AddChild(a.language.node)

	a.content = scene.NewContainer("content")
	a.content.Interactable = true
	a.content.SetPosition(0, headerHeight)

	a.camera = NewCameraLayer()
	a.selector = NewSelectorView(SelectorViewConfig{
		Theme:     th,
		Localizer: loc,
		Store:     a.store,
		Picker:    cfg.Picker,
		OnSelect:  a.ctrl.SelectImage,
	})
	a.trace = NewTraceView(TraceViewConfig{
		Theme:      th,
		Localizer:  loc,
		Resolve:    a.store.Resolve,
		Transition: cfg.Config.Trace.Transition,
		OnOpacity:  func(v float64) { a.ctrl.SetOpacity(v) },
		OnChange:   a.ctrl.RequestBack,
		OnBack:     a.ctrl.RequestBack,
	})
	a.content.AddChild(a.camera.Root())
	a.content.AddChild(a.selector.Root())
	a.content.AddChild(a.trace.Root())

	a.overlay = newDialogOverlay(th, a.dialogs)
	a.dialogs.OnChange = a.overlay.show

	root.AddChild(a.content)
	root.AddChild(a.header)
	root.AddChild(a.overlay.root)
	if cfg.Config.Debug.ShowFPS {
		root.AddChild(scene.NewFPSWidget())
	}

	a.layout()
	a.ctrl.OnChange(a.render)
	a.ctrl.Mount()
	a.render()
	return a, nil
}

// Controller returns the navigation controller.
func (a *App) Controller() *Controller { return a.ctrl }

// Scene returns the scene graph.
func (a *App) Scene() *scene.Scene { return a.scene }

// Camera returns the shared camera layer.
func (a *App) Camera() *CameraLayer { return a.camera }

// Selector returns the selector view.
func (a *App) Selector() *SelectorView { return a.selector }

// Trace returns the trace view.
func (a *App) Trace() *TraceView { return a.trace }

// Dialogs returns the dialog provider.
func (a *App) Dialogs() *dialog.Provider { return a.dialogs }

// Store returns the image resource store.
func (a *App) Store() *imageres.Store { return a.store }

// Update implements ebiten.Game.
func (a *App) Update() error {
	a.queue.Drain()
	if files := ebiten.DroppedFiles(); files != nil {
		a.drop(DroppedBlobs(files))
	}
	a.handleKeys()
	a.step(1.0 / float64(ebiten.TPS()))
	return nil
}

// Step runs one loop turn without reading devices: pending camera results
// are applied, then the scene advances by dt seconds.
func (a *App) Step(dt float64) {
	a.queue.Drain()
	a.step(dt)
}

func (a *App) step(dt float64) {
	// Tracks can die between controller changes.
	s := a.ctrl.Session()
	a.camera.Render(s)
	a.selector.Render(s)
	if a.ctrl.State() == Tracing {
		a.trace.Render(a.traceProps())
	}
	a.scene.Step(dt)
}

// Draw implements ebiten.Game.
func (a *App) Draw(screen *ebiten.Image) {
	a.camera.Sync()
	a.trace.Sync()
	a.scene.Draw(screen)
}

// Layout implements ebiten.Game.
func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth != a.w || outsideHeight != a.h {
		a.w, a.h = outsideWidth, outsideHeight
		a.layout()
	}
	return a.w, a.h
}

// Close unmounts the controller, rejects pending dialogs and frees
// textures. It is safe to call more than once.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.ctrl.Unmount()
		a.dialogs.Close()
		a.trace.Release()
		a.camera.Release()
		a.cancel()
		created, revoked := a.store.Stats()
		logger.Debugf("closed: %d images created, %d revoked", created, revoked)
	})
}

func (a *App) layout() {
	w, h := float64(a.w), float64(a.h)
	a.header.SetSize(w, headerHeight)
	a.title.SetPosition(padding, (headerHeight-a.cfg.Theme.Title.LineHeight())/2)
	a.language.node.SetPosition(math.Max(0, w-buttonWidth-padding), 8)
	a.camera.Layout(w, h-headerHeight)
	a.selector.Layout(w, h-headerHeight)
	a.trace.Layout(w, h-headerHeight)
	a.overlay.layout(w, h)
}

func (a *App) traceProps() TraceProps {
	return TraceProps{
		Session:  a.ctrl.Session(),
		Resource: a.ctrl.Resource(),
		Opacity:  a.ctrl.Opacity(),
	}
}

func (a *App) render() {
	tracing := a.ctrl.State() == Tracing
	a.selector.Root().Visible = !tracing
	a.trace.Root().Visible = tracing
	s := a.ctrl.Session()
	a.camera.Render(s)
	a.selector.Render(s)
	a.trace.Render(a.traceProps())
}

func (a *App) drop(blobs []imageres.Blob) {
	if len(blobs) == 0 {
		return
	}
	if a.ctrl.State() != Selecting {
		logger.Infof("ignoring %d dropped files while tracing", len(blobs))
		return
	}
	a.selector.PickFirst(blobs)
}

func (a *App) handleKeys() {
	if a.dialogs.Current() != nil {
		switch {
		case inpututil.IsKeyJustPressed(ebiten.KeyEnter):
			a.dialogs.Resolve(true)
		case inpututil.IsKeyJustPressed(ebiten.KeyEscape):
			a.dialogs.Resolve(false)
		}
		return
	}
	if a.ctrl.State() != Tracing {
		return
	}
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowLeft):
		a.ctrl.SetOpacity(a.ctrl.Opacity() - keyStep)
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowRight):
		a.ctrl.SetOpacity(a.ctrl.Opacity() + keyStep)
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape), inpututil.IsKeyJustPressed(ebiten.KeyBackspace):
		a.ctrl.RequestBack()
	}
}

func (a *App) languageLabel() string {
	loc := a.cfg.Localizer
	return fmt.Sprintf("%s: %s", loc.T("language"), i18n.Name(loc.Language()))
}

func (a *App) cycleLanguage() {
	loc := a.cfg.Localizer
	next := i18n.Next(loc.Language())
	if err := loc.SetLanguage(next); err != nil {
		logger.Warningf("switching language to %s: %v", next, err)
	}
	a.relabel()
}

func (a *App) relabel() {
	loc := a.cfg.Localizer
	a.title.SetText(loc.T("title"))
	a.language.setText(a.languageLabel())
	a.selector.Relabel()
	a.trace.Relabel()
	a.selector.Layout(float64(a.w), float64(a.h-headerHeight))
}
