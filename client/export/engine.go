package export

import (
	"context"
)

// Composition is one renderable entry point inside a bundle.
type Composition struct {
	ID             string
	Width          int
	Height         int
	FPS            int
	DurationFrames int
}

// RenderProgress is raw frame feedback from the engine; the controller
// translates it into the percentage the UI sees.
type RenderProgress struct {
	RenderedFrames int
	TotalFrames    int
}

// Engine is the external rendering pipeline, reached only through these
// three calls. Render must honor ctx cancellation between frames.
type Engine interface {
	Bundle(ctx context.Context, project Project) (string, error)
	Compositions(ctx context.Context, bundle string) ([]Composition, error)
	Render(ctx context.Context, bundle string, comp Composition, settings Settings, onProgress func(RenderProgress)) (string, error)
}
