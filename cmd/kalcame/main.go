// Command kalcame opens the tracing window.
//
//	kalcame [flags] [image ...]
//
// Images named on the command line are offered first by the select button.
// With -auto-pick the first of them is opened straight away.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo/v2"
	"github.com/juju/loggo/v2/loggocolor"

	"github.com/phanxgames/kalcame"
	"github.com/phanxgames/kalcame/camera"
	"github.com/phanxgames/kalcame/camera/gstcam"
	"github.com/phanxgames/kalcame/config"
	"github.com/phanxgames/kalcame/i18n"
	"github.com/phanxgames/kalcame/scene"
)

var logger = loggo.GetLogger("kalcame.cmd")

type options struct {
	configPath string
	autoPick   bool

	// Overrides; applied only when the flag is given.
	language   string
	device     string
	devicePath string
	policy     string
	opacity    float64
	confirm    bool
	pickerDir  string
	logSpec    string
	showFPS    bool
	debug      bool
	script     string
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, paths, cfg, err := parseArgs(args)
	if errors.Is(err, gnuflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "kalcame: %v\n", err)
		return 2
	}

	if _, err := loggo.ReplaceDefaultWriter(loggocolor.NewWriter(os.Stderr)); err != nil {
		fmt.Fprintf(os.Stderr, "kalcame: %v\n", err)
	}
	if err := loggo.ConfigureLoggers(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "kalcame: log config %q: %v\n", cfg.Log, err)
		return 2
	}

	loc := newLocalizer(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := kalcame.NewApp(ctx, kalcame.AppConfig{
		Config:    cfg,
		Device:    newDevice(cfg),
		Localizer: loc,
		Picker:    &kalcame.DirPicker{Dir: cfg.Picker.Dir, Paths: paths},
	})
	if err != nil {
		logger.Errorf("%v", err)
		return 1
	}
	defer app.Close()

	if opts.autoPick && len(paths) > 0 {
		autoPick(app, paths[0])
	}
	if cfg.Debug.Script != "" {
		if err := attachScript(app, cfg.Debug.Script); err != nil {
			logger.Errorf("%v", err)
			return 2
		}
	}

	ebiten.SetWindowTitle(cfg.Window.Title)
	ebiten.SetWindowSize(cfg.Window.Width, cfg.Window.Height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	if err := ebiten.RunGame(app); err != nil {
		logger.Errorf("%v", err)
		return 1
	}
	return 0
}

func parseArgs(args []string) (options, []string, config.Config, error) {
	var o options
	f := gnuflag.NewFlagSet("kalcame", gnuflag.ContinueOnError)
	f.StringVar(&o.configPath, "config", "", "configuration file (default $XDG_CONFIG_HOME/kalcame/config.yaml)")
	f.BoolVar(&o.autoPick, "auto-pick", false, "open the first image argument at start")
	f.StringVar(&o.language, "lang", "", "interface language (en, es, fr, de)")
	f.StringVar(&o.device, "camera", "", "camera kind: gst or pattern")
	f.StringVar(&o.devicePath, "device", "", "V4L2 device path, e.g. /dev/video0")
	f.StringVar(&o.policy, "camera-policy", "", "when to open the camera: eager or lazy")
	f.Float64Var(&o.opacity, "opacity", 0, "initial image opacity in [0, 1]")
	f.BoolVar(&o.confirm, "confirm-back", false, "ask before leaving the trace view")
	f.StringVar(&o.pickerDir, "dir", "", "directory the select button cycles through")
	f.StringVar(&o.logSpec, "log", "", "loggo configuration, e.g. <root>=DEBUG")
	f.BoolVar(&o.showFPS, "fps", false, "show FPS")
	f.BoolVar(&o.debug, "debug", false, "log scene render statistics")
	f.StringVar(&o.script, "script", "", "YAML UI script to run")
	if err := f.Parse(true, args); err != nil {
		return o, nil, config.Config{}, err
	}

	path, optional := o.configPath, false
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return o, nil, config.Config{}, errors.Trace(err)
		}
		path, optional = p, true
	}
	cfg, err := config.Load(path, optional)
	if err != nil {
		return o, nil, config.Config{}, errors.Trace(err)
	}

	f.Visit(func(fl *gnuflag.Flag) {
		switch fl.Name {
		case "lang":
			cfg.Language = o.language
		case "camera":
			cfg.Camera.Kind = o.device
		case "device":
			cfg.Camera.Device = o.devicePath
		case "camera-policy":
			cfg.Camera.Policy = o.policy
		case "opacity":
			cfg.Trace.DefaultOpacity = o.opacity
		case "confirm-back":
			cfg.Trace.ConfirmBack = o.confirm
		case "dir":
			cfg.Picker.Dir = o.pickerDir
		case "log":
			cfg.Log = o.logSpec
		case "fps":
			cfg.Debug.ShowFPS = o.showFPS
		case "debug":
			cfg.Debug.Scene = o.debug
		case "script":
			cfg.Debug.Script = o.script
		}
	})
	if err := cfg.Validate(); err != nil {
		return o, nil, config.Config{}, errors.Trace(err)
	}
	return o, f.Args(), cfg, nil
}

// newLocalizer picks the saved language, then the configured one, then
// the environment's.
func newLocalizer(cfg config.Config) *i18n.Translator {
	catalog := i18n.Builtin()
	var prefs *i18n.Prefs
	if dir, err := config.Dir(); err == nil {
		prefs = &i18n.Prefs{Path: filepath.Join(dir, "prefs.yaml")}
	}
	saved := cfg.Language
	if prefs != nil {
		if lang, err := prefs.Language(); err != nil {
			logger.Warningf("reading preferences: %v", err)
		} else if lang != "" && cfg.Language == "" {
			saved = lang
		}
	}
	return i18n.NewTranslator(catalog, i18n.Detect(catalog, saved, os.Getenv), prefs)
}

func newDevice(cfg config.Config) camera.Device {
	if cfg.Camera.Kind == config.DevicePattern {
		return &camera.PatternDevice{}
	}
	return gstcam.New(gstcam.Config{Device: cfg.Camera.Device})
}

func autoPick(app *kalcame.App, path string) {
	blob, err := kalcame.BlobFromFile(path)
	if err != nil {
		logger.Warningf("auto-pick: %v", err)
		return
	}
	app.Selector().Pick(blob)
}

// attachScript runs a UI script against the live window. Besides click,
// drag and wait it understands pick (path) and back.
func attachScript(app *kalcame.App, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Annotate(err, "reading UI script")
	}
	runner, err := scene.LoadScript(data)
	if err != nil {
		return errors.Trace(err)
	}
	runner.Handle("pick", func(s scene.Step) error {
		blob, err := kalcame.BlobFromFile(s.Path)
		if err != nil {
			return errors.Trace(err)
		}
		if !app.Selector().Pick(blob) {
			return errors.Errorf("%s was not accepted", s.Path)
		}
		return nil
	})
	runner.Handle("back", func(scene.Step) error {
		return errors.Trace(app.Controller().GoBack())
	})
	app.Scene().SetScriptRunner(runner)
	return nil
}
