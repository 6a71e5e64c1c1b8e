package kalcame

import (
	"context"
	"math"
	"time"

	"github.com/juju/errors"

	"github.com/phanxgames/kalcame/camera"
	"github.com/phanxgames/kalcame/dialog"
	"github.com/phanxgames/kalcame/eventloop"
	"github.com/phanxgames/kalcame/i18n"
	"github.com/phanxgames/kalcame/imageres"
)

// ErrInvalidTransition is returned when a controller operation is not
// allowed in the current state.
const ErrInvalidTransition = errors.ConstError("invalid state transition")

// DefaultOpacity is the blend factor a freshly selected image starts at.
const DefaultOpacity = 0.5

// State is the controller's navigation state.
type State uint8

const (
	// Selecting shows the image selector. It is the initial state.
	Selecting State = iota
	// Tracing shows the held image over the camera feed.
	Tracing
)

func (s State) String() string {
	if s == Tracing {
		return "tracing"
	}
	return "selecting"
}

// CameraPolicy decides when the camera session is opened.
type CameraPolicy uint8

const (
	// CameraEager opens the session on Mount.
	CameraEager CameraPolicy = iota
	// CameraLazy opens it on the first accepted selection.
	CameraLazy
)

// Confirmer asks the user a yes/no question. *dialog.Provider implements it.
type Confirmer interface {
	Confirm(cfg dialog.Config, done func(bool))
}

// ControllerConfig wires a Controller to its collaborators.
type ControllerConfig struct {
	Device    camera.Device
	Poster    eventloop.Poster
	Localizer i18n.Localizer

	// Dialogs is required when ConfirmBack is set.
	Dialogs     Confirmer
	ConfirmBack bool

	Policy CameraPolicy
	// DefaultOpacity is taken as given, zero included; callers wanting the
	// stock value pass the DefaultOpacity constant.
	DefaultOpacity float64
	Constraints    camera.Constraints
	// CameraTimeout bounds negotiation; zero waits forever.
	CameraTimeout time.Duration
	CameraOptions []camera.Option
}

// Controller is the navigation state machine. It owns the camera session
// for its whole lifetime and the single live image resource. All methods
// must be called from the UI goroutine.
type Controller struct {
	cfg ControllerConfig
	ctx context.Context

	state    State
	resource *imageres.Resource
	session  *camera.Session
	opacity  float64

	mounted   bool
	unmounted bool

	listeners []func()
}

// NewController returns a controller in the Selecting state.
func NewController(ctx context.Context, cfg ControllerConfig) *Controller {
	cfg.DefaultOpacity = ClampOpacity(cfg.DefaultOpacity)
	if cfg.Constraints == (camera.Constraints{}) {
		cfg.Constraints = camera.DefaultConstraints()
	}
	return &Controller{
		cfg:     cfg,
		ctx:     ctx,
		opacity: cfg.DefaultOpacity,
	}
}

// OnChange registers fn to run after every state or opacity change.
func (c *Controller) OnChange(fn func()) {
	c.listeners = append(c.listeners, fn)
}

func (c *Controller) changed() {
	for _, fn := range c.listeners {
		fn()
	}
}

// State returns the navigation state.
func (c *Controller) State() State { return c.state }

// Resource returns the held resource while Tracing, nil otherwise.
func (c *Controller) Resource() *imageres.Resource { return c.resource }

// Session returns the camera session, nil before it is opened.
func (c *Controller) Session() *camera.Session { return c.session }

// Opacity returns the current blend factor in [0, 1].
func (c *Controller) Opacity() float64 { return c.opacity }

// Localizer returns the injected localizer.
func (c *Controller) Localizer() i18n.Localizer { return c.cfg.Localizer }

// Unmounted reports whether Unmount has run.
func (c *Controller) Unmounted() bool { return c.unmounted }

// SetOpacity stores the clamped blend factor and returns it.
func (c *Controller) SetOpacity(v float64) float64 {
	v = ClampOpacity(v)
	if v == c.opacity {
		return v
	}
	c.opacity = v
	c.changed()
	return v
}

// Mount activates the controller. Under the eager policy it opens the
// camera session. Mounting twice, or after Unmount, does nothing.
func (c *Controller) Mount() {
	if c.mounted || c.unmounted {
		return
	}
	c.mounted = true
	logger.Debugf("mounted (camera %s)", c.policyName())
	if c.cfg.Policy == CameraEager {
		c.openSession()
	}
}

func (c *Controller) policyName() string {
	if c.cfg.Policy == CameraLazy {
		return "lazy"
	}
	return "eager"
}

func (c *Controller) openSession() {
	if c.session != nil || c.cfg.Device == nil {
		return
	}
	opts := append([]camera.Option{camera.WithConstraints(c.cfg.Constraints)}, c.cfg.CameraOptions...)
	if c.cfg.CameraTimeout > 0 {
		opts = append(opts, camera.WithTimeout(c.cfg.CameraTimeout))
	}
	c.session = camera.Open(c.ctx, c.cfg.Device, c.cfg.Poster, opts...)
	// Settlement happens on a later loop turn; views poll the session.
	c.cfg.Poster.Post(c.watchSession)
}

// watchSession re-posts itself until the session settles, then notifies
// listeners once.
func (c *Controller) watchSession() {
	s := c.session
	if s == nil || c.unmounted {
		return
	}
	if s.State() == camera.Requesting {
		c.cfg.Poster.Post(c.watchSession)
		return
	}
	logger.Infof("camera %s", s.State())
	c.changed()
}

// SelectImage moves from Selecting to Tracing(r) and resets the opacity.
// Outside Selecting it returns ErrInvalidTransition and revokes r, since
// nothing else will ever own it.
func (c *Controller) SelectImage(r *imageres.Resource) error {
	if r == nil {
		return errors.NotValidf("nil resource")
	}
	if c.unmounted || c.state != Selecting {
		r.Revoke()
		return errors.Annotatef(ErrInvalidTransition, "select image while %s", c.describe())
	}
	if r.Revoked() {
		return errors.NotValidf("revoked resource %s", r.URI())
	}
	c.resource = r
	c.state = Tracing
	c.opacity = c.cfg.DefaultOpacity
	logger.Infof("tracing %q (%s)", r.Source().Name, r.URI())
	if c.cfg.Policy == CameraLazy {
		c.openSession()
	}
	c.changed()
	return nil
}

// GoBack revokes the held resource and returns to Selecting.
func (c *Controller) GoBack() error {
	if c.unmounted || c.state != Tracing {
		return errors.Annotatef(ErrInvalidTransition, "go back while %s", c.describe())
	}
	r := c.resource
	c.resource = nil
	r.Revoke()
	c.state = Selecting
	logger.Debugf("back to selecting, revoked %s", r.URI())
	c.changed()
	return nil
}

// RequestBack is the user's back action. With ConfirmBack set it asks
// first; otherwise it is GoBack. Errors are logged, not returned, as the
// state may have moved on while the question was open.
func (c *Controller) RequestBack() {
	if !c.cfg.ConfirmBack || c.cfg.Dialogs == nil {
		if err := c.GoBack(); err != nil {
			logger.Debugf("back ignored: %v", err)
		}
		return
	}
	if c.state != Tracing {
		return
	}
	loc := c.cfg.Localizer
	c.cfg.Dialogs.Confirm(dialog.Config{
		Title:        loc.T("confirmBackTitle"),
		Message:      loc.T("confirmBackMessage"),
		ConfirmLabel: loc.T("ok"),
		CancelLabel:  loc.T("cancel"),
	}, func(ok bool) {
		if !ok {
			return
		}
		if err := c.GoBack(); err != nil {
			logger.Debugf("confirmed back ignored: %v", err)
		}
	})
}

// Unmount revokes the held resource, if any, then closes the camera
// session. Later calls do nothing.
func (c *Controller) Unmount() {
	if c.unmounted {
		return
	}
	c.unmounted = true
	if c.resource != nil {
		c.resource.Revoke()
		c.resource = nil
	}
	c.state = Selecting
	if c.session != nil {
		c.session.Close()
	}
	logger.Debugf("unmounted")
}

func (c *Controller) describe() string {
	if c.unmounted {
		return "unmounted"
	}
	return c.state.String()
}

// ClampOpacity limits v to [0, 1]. NaN becomes 0.
func ClampOpacity(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
