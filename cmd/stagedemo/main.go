// Command stagedemo renders a small scene headlessly and saves the last
// frame as a PNG.
//
//	stagedemo -frames 60 -output stage.png -config stage.toml
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"
	"os/signal"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/go-fonts/latin-modern/lmroman10bold"

	"github.com/gogpu/stage"
	"github.com/gogpu/stage/backend"
	"github.com/gogpu/stage/config"
	"github.com/gogpu/stage/engine"
	"github.com/gogpu/stage/internal/logging"
	"github.com/gogpu/stage/resource"
	"github.com/gogpu/stage/scene"
)

func main() {
	var (
		width      = flag.Int("width", 800, "viewport width")
		height     = flag.Int("height", 600, "viewport height")
		scale      = flag.Float64("scale", 1, "display scale factor")
		frames     = flag.Int("frames", 60, "frames to render")
		output     = flag.String("output", "stage.png", "output file")
		configPath = flag.String("config", "", "TOML or YAML config file")
		imagePath  = flag.String("image", "", "optional image drawn as a sprite")
	)
	flag.Parse()

	if err := run(*configPath, *imagePath, *output, *width, *height, *frames, *scale); err != nil {
		log.Fatalf("stagedemo: %v", err)
	}
}

func run(configPath, imagePath, output string, width, height, frames int, scale float64) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}

	handler, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, nil)
	if err != nil {
		return err
	}
	defer func() { _ = handler.Sync() }()
	stage.SetLogger(slog.New(handler))

	// The demo reads pixels back, so it always renders in software.
	cfg.Backend.Name = ""
	sw := backend.NewSoftware()
	opts, err := cfg.EngineOptions()
	if err != nil {
		return err
	}
	opts = append(opts,
		engine.WithBackend(sw),
		engine.WithViewport(width, height, scale),
		engine.WithClearColor(stage.Hex("#1e2030")),
	)

	d := &demo{}
	e, err := engine.New(d.update, opts...)
	if err != nil {
		return err
	}
	defer e.Close()
	d.engine = e

	d.font = e.Load(resource.BytesSource("lmroman10-bold.otf", lmroman10bold.TTF), resource.KindFont)
	if imagePath != "" {
		d.image = e.Load(resource.FileSource(imagePath), resource.KindImage)
	}
	if err := d.build(e.Arena()); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	for range frames {
		if err := e.Tick(ctx); err != nil {
			return err
		}
	}

	img := sw.Target()
	if img == nil {
		return fmt.Errorf("no frame rendered")
	}
	if err := imgio.Save(output, img, imgio.PNGEncoder()); err != nil {
		return fmt.Errorf("save %s: %w", output, err)
	}
	st := e.Stats()
	stage.Logger().Info("saved", "output", output, "frames", st.Frames,
		"draw_calls", st.DrawCalls, "vertices", st.Vertices, "glyph_hits", st.GlyphHits)
	return nil
}

type demo struct {
	engine *engine.Engine
	font   *resource.Handle
	image  *resource.Handle

	spinner scene.NodeID
	label   scene.NodeID
}

func (d *demo) build(a *scene.Arena) error {
	panel, err := a.Insert(0, scene.Rectangle{
		Width: 360, Height: 220, Radius: 18,
		Fill:   stage.Hex("#363a4f"),
		Stroke: &stage.Stroke{Width: 3, Color: stage.Hex("#cad3f5"), Join: stage.JoinBevel},
	})
	if err != nil {
		return err
	}
	if err := a.SetTransform(panel, stage.TranslateBy(40, 40)); err != nil {
		return err
	}

	if d.spinner, err = a.Insert(panel, scene.Path{
		Path: stage.NewPath().Circle(0, 0, 50).Rectangle(-10, -70, 20, 40),
		Fill: stage.Hex("#8aadf4"),
	}); err != nil {
		return err
	}
	if err := a.SetTransform(d.spinner, stage.TranslateBy(180, 110)); err != nil {
		return err
	}

	for i := range 5 {
		dot, err := a.Insert(0, scene.Rectangle{Width: 24, Height: 24, Radius: 12, Fill: stage.Hex("#f5a97f")})
		if err != nil {
			return err
		}
		if err := a.SetTransform(dot, stage.TranslateBy(440+float64(i)*40, 60)); err != nil {
			return err
		}
		if err := a.SetBlend(dot, stage.BlendAdditive); err != nil {
			return err
		}
	}

	if d.image != nil {
		sprite, err := a.Insert(0, scene.Sprite{Texture: d.image.ID(), Size: stage.Pt(200, 200)})
		if err != nil {
			return err
		}
		if err := a.SetTransform(sprite, stage.TranslateBy(440, 120)); err != nil {
			return err
		}
	}

	// Footer bar pinned to the bottom of the viewport.
	footer, err := a.Insert(0, scene.Rectangle{Width: 4096, Height: 32, Fill: stage.Hex("#24273a")})
	if err != nil {
		return err
	}
	if err := a.SetViewportRelative(footer, true, stage.Pt(0, 1)); err != nil {
		return err
	}
	if err := a.SetTransform(footer, stage.TranslateBy(0, -32)); err != nil {
		return err
	}
	return a.SetLayer(footer, 1)
}

func (d *demo) update(_ context.Context, a *scene.Arena, info engine.FrameInfo) error {
	t := stage.TranslateBy(180, 110)
	t.Rotation = math.Mod(info.Elapsed.Seconds(), 2*math.Pi)
	if err := a.SetTransform(d.spinner, t); err != nil {
		return err
	}

	if d.label.IsZero() {
		id, ok := d.engine.Font(d.font.ID())
		if !ok {
			return nil
		}
		var err error
		if d.label, err = a.Insert(0, scene.Text{
			Text:      fmt.Sprintf("stage on %s", d.engine.Backend().Name()),
			Font:      id,
			Size:      28,
			WrapWidth: 320,
			Color:     stage.White,
		}); err != nil {
			return err
		}
		return a.SetTransform(d.label, stage.TranslateBy(60, 300))
	}
	return nil
}
