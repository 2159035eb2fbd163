package pipeline

import (
	"context"
	"log/slog"

	"labelpress/internal/config"
	"labelpress/internal/labelimg"
	"labelpress/internal/logging"
	"labelpress/internal/printing"
	"labelpress/internal/region"
	"labelpress/internal/render"
	"labelpress/internal/services"
)

// Stage names used in logs and journal rows.
const (
	StageRender = "render"
	StageCrop   = "crop"
	StageResize = "resize"
	StageSave   = "save"
	StagePrint  = "print"
)

// Processor runs the per-task image pipeline. It holds no task state; one
// instance is shared by all workers.
type Processor struct {
	cfg      *config.Config
	renderer render.Renderer
	locator  region.Locator
	spooler  *printing.Spooler
	logger   *slog.Logger
}

// NewProcessor wires the pipeline stages. spooler may be nil when printing
// is disabled.
func NewProcessor(cfg *config.Config, renderer render.Renderer, locator region.Locator, spooler *printing.Spooler, logger *slog.Logger) *Processor {
	return &Processor{
		cfg:      cfg,
		renderer: renderer,
		locator:  locator,
		spooler:  spooler,
		logger:   logging.WithComponent(logger, "processor"),
	}
}

// Process runs all stages for one task. On failure it returns the name of
// the failed stage alongside the error; the saved output path is returned
// even when a later stage fails, so a print failure still leaves the image.
func (p *Processor) Process(ctx context.Context, task Task) (outputPath string, failedStage string, err error) {
	ctx = services.WithJobID(ctx, task.ID)
	ctx = services.WithSourceFile(ctx, task.Msg.Filename)
	ctx = services.WithPage(ctx, task.Msg.Page)
	logger := logging.WithContext(ctx, p.logger)

	if err := ctx.Err(); err != nil {
		return "", StageRender, err
	}
	img, err := p.renderer.Render(ctx, task.Msg.Payload, task.Msg.Page)
	if err != nil {
		return "", StageRender, err
	}

	if err := ctx.Err(); err != nil {
		return "", StageCrop, err
	}
	if rect, ok := p.locator.Locate(img); ok {
		img = region.Crop(img, rect)
	} else {
		logger.Debug("no label region found, using full page")
	}

	if err := ctx.Err(); err != nil {
		return "", StageResize, err
	}
	label := labelimg.Convert(img, labelimg.Geometry{
		Width:  p.cfg.Label.Width,
		Height: p.cfg.Label.Height,
	})

	if err := ctx.Err(); err != nil {
		return "", StageSave, err
	}
	name := labelimg.OutputName(task.Msg.Filename, task.Msg.Page)
	outputPath, err = labelimg.SavePNG(p.cfg.Paths.OutputDir, name, label)
	if err != nil {
		return "", StageSave, err
	}
	logger.Info("label image saved",
		logging.String("output", outputPath),
		logging.String(logging.FieldEventType, "label_saved"),
	)

	if p.spooler != nil {
		if err := ctx.Err(); err != nil {
			return outputPath, StagePrint, err
		}
		if err := p.spooler.Submit(ctx, outputPath); err != nil {
			return outputPath, StagePrint, err
		}
	}

	return outputPath, "", nil
}
