// Package kalcame is an image-tracing aid. It lays a reference image, at an
// adjustable opacity, over a live camera feed so the picture can be traced
// onto paper held under the camera.
//
// # Structure
//
// [Controller] is the navigation state machine. It starts in [Selecting],
// where a [SelectorView] turns a picked file into an [imageres.Resource],
// and moves to [Tracing] once a resource is accepted. [TraceView] then
// composites the camera feed (object-cover) with the reference image
// (object-contain) at the controller's opacity. Going back revokes the
// resource before the selector is shown again.
//
// The controller opens one [camera.Session] and keeps it until Unmount.
// Negotiation runs on its own goroutine; the result is applied on a later
// turn of the [eventloop.Queue] that [App] drains at the top of every
// Update.
//
// # Running
//
// [App] implements [ebiten.Game]:
//
//	app, err := kalcame.NewApp(ctx, kalcame.AppConfig{...})
//	if err != nil {
//		return err
//	}
//	defer app.Close()
//	return ebiten.RunGame(app)
//
// The image layer never takes pointer input; clicks and drags over it reach
// the controls beneath.
package kalcame

import "github.com/juju/loggo/v2"

var logger = loggo.GetLogger("kalcame")
