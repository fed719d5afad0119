package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evdisplay/evd/internal/api"
	"github.com/evdisplay/evd/internal/config"
	"github.com/evdisplay/evd/internal/database"
	"github.com/evdisplay/evd/internal/geometry"
	"github.com/evdisplay/evd/internal/influx"
	"github.com/evdisplay/evd/internal/logging"
	intOtel "github.com/evdisplay/evd/internal/otel"
	"github.com/evdisplay/evd/internal/scene"
	"github.com/evdisplay/evd/internal/scene/memory"
	"github.com/evdisplay/evd/internal/scene/plot"
	"github.com/evdisplay/evd/internal/scene/websocket"
	"github.com/evdisplay/evd/internal/session"
	"github.com/evdisplay/evd/internal/simstore"
	"github.com/evdisplay/evd/internal/track"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// app wires the collaborators of one evd run.
type app struct {
	opts   cliOptions
	out    io.Writer
	errOut io.Writer
	start  time.Time

	logs    *logging.SlogManager
	logger  *slog.Logger
	zlog    zerolog.Logger
	logFile *os.File
	otel    *intOtel.Provider
	attrs   *logging.SessionAttrs

	db        *database.Manager
	adapter   *track.Adapter
	memory    *memory.Renderer
	plot      *plot.Renderer
	renderers scene.Multi
	session   *session.Session
}

func newApp(opts cliOptions, fs *pflag.FlagSet, out, errOut io.Writer) (*app, error) {
	a := &app{
		opts:   opts,
		out:    out,
		errOut: errOut,
		start:  time.Now(),
	}

	if err := config.Load(opts.configDir); err != nil {
		fmt.Fprintf(errOut, "warning: %v, using defaults\n", err)
	}
	if fs != nil {
		if err := viper.BindPFlag("track.maxTracks", fs.Lookup("max-tracks")); err != nil {
			return nil, fmt.Errorf("binding flags: %w", err)
		}
	}

	rc := config.GetRenderConfig()
	a.memory = memory.New(memory.Config{OutputDir: rc.OutputDir, CompressOutput: rc.Compress})
	a.attrs = logging.NewSessionAttrs(a.memory.Session().String())
	a.setupLogging()

	tree, err := geometry.Load(opts.geometry)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("loading geometry: %w", err)
	}
	view := a.selectView(tree)
	a.logger.Info("Geometry loaded",
		"file", tree.Source,
		"volumes", tree.Volumes,
		"nodes", tree.Nodes,
		"visible", len(view.Nodes),
	)

	if opts.simInput != "" {
		if err := a.openSimulation(); err != nil {
			a.close()
			return nil, err
		}
	}

	a.renderers = a.buildRenderers(rc)

	a.session, err = session.New(a.adapter, a.renderers, session.Options{
		View:       &view,
		Attrs:      a.attrs,
		CommandLog: logging.NewCommandLogger(a.zlog),
	}, a.logger)
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) setupLogging() {
	level := viper.GetString("logLevel")
	logsDir := viper.GetString("logsDir")

	var file io.Writer
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		fmt.Fprintf(a.errOut, "warning: cannot create logs directory: %v\n", err)
	} else {
		path := logging.LogFilePath(logsDir, appName, a.start)
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			fmt.Fprintf(a.errOut, "warning: cannot open log file: %v\n", err)
		} else {
			a.logFile = f
			file = f
		}
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		p, err := intOtel.New(intOtel.ConfigFrom(otelCfg, file))
		if err != nil {
			fmt.Fprintf(a.errOut, "warning: OTel disabled: %v\n", err)
		} else {
			a.otel = p
		}
	}

	opts := logging.Options{
		Level:   level,
		File:    file,
		Session: a.attrs,
	}
	if a.otel != nil {
		opts.Provider = a.otel.LoggerProvider()
	}
	if viper.GetBool("graylog.enabled") {
		gw, err := logging.DialGraylog(viper.GetString("graylog.address"))
		if err != nil {
			fmt.Fprintf(a.errOut, "warning: %v\n", err)
		} else {
			opts.Graylog = gw
		}
	}

	a.logs = logging.NewSlogManager()
	a.logs.Setup(opts)
	a.logger = a.logs.Logger()

	zw := io.Writer(os.Stderr)
	if file != nil {
		zw = file
	}
	zlevel, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		zlevel = zerolog.InfoLevel
	}
	a.zlog = zerolog.New(zw).With().Timestamp().Str("session", a.memory.Session().String()).Logger().Level(zlevel)
}

func (a *app) selectView(tree *geometry.Tree) geometry.View {
	if !a.opts.cms {
		return tree.Visible(a.opts.vis)
	}
	view, ok := tree.CMSView(a.opts.vis)
	if !ok {
		a.logger.Warn("CMS top volume not found, showing the world volume", "volume", geometry.CMSTopVolume)
	}
	return view
}

func (a *app) openSimulation() error {
	input := a.opts.simInput
	if !database.IsPostgresDSN(input) {
		if _, err := os.Stat(input); err != nil {
			return fmt.Errorf("simulation input: %w", err)
		}
	}

	a.db = database.NewManager(a.zlog)
	if err := a.db.Connect(input); err != nil {
		return fmt.Errorf("opening simulation input: %w", err)
	}

	tc := config.GetTrackConfig()
	opts := track.DefaultOptions()
	opts.MaxTracks = tc.MaxTracks
	opts.MinPoints = tc.MinPoints
	opts.UnitScale = tc.UnitScale
	opts.ShowStepPoints = a.opts.steps

	adapter, err := track.NewAdapter(simstore.New(a.db.DB), opts, a.logger)
	if err != nil {
		return err
	}
	a.adapter = adapter
	a.logger.Info("Simulation output opened", "input", input, "schema", adapter.Schema().String())
	return nil
}

func (a *app) buildRenderers(rc config.RenderConfig) scene.Multi {
	renderers := scene.Multi{a.memory}

	if rc.Plot {
		a.plot = plot.New(plot.Config{
			OutputDir: rc.OutputDir,
			Prefix:    "evd_" + a.memory.Session().String()[:8],
			Unit:      unitLabel(config.GetTrackConfig().UnitScale),
		})
		renderers = append(renderers, a.plot)
	}

	if rc.Websocket.URL != "" {
		ws := websocket.New(websocket.Config{
			URL:      rc.Websocket.URL,
			Secret:   rc.Websocket.Secret,
			Geometry: filepath.Base(a.opts.geometry),
		}, a.logger)
		if err := ws.Init(context.Background()); err != nil {
			a.logger.Warn("Remote viewer unavailable", "url", rc.Websocket.URL, "error", err)
		} else {
			renderers = append(renderers, ws)
		}
	}

	if rc.Influx {
		backup := filepath.Join(viper.GetString("logsDir"),
			fmt.Sprintf("%s_tracks_%s.lp.gz", appName, a.start.Format("20060102_150405")))
		m := influx.NewManager(a.zlog, backup)
		if err := m.Connect(context.Background()); err != nil {
			a.logger.Warn("Track statistics disabled", "error", err)
		} else {
			renderers = append(renderers, influx.NewSink(m, a.memory.Session().String(), a.logger))
		}
	}

	if rc.Upload.URL != "" {
		client := api.New(rc.Upload.URL, rc.Upload.APIKey)
		if err := client.Healthcheck(context.Background()); err != nil {
			a.logger.Warn("Scene server unreachable, uploads may fail", "url", rc.Upload.URL, "error", err)
		}
		// after memory, so the scene file exists when it uploads
		renderers = append(renderers, api.NewPublisher(client, a.memory.GetExportedFilePath, api.SceneMetadata{
			Session:  a.memory.Session().String(),
			Geometry: filepath.Base(a.opts.geometry),
		}, a.logger))
	}

	return renderers
}

// unitLabel names the length unit of plotted coordinates. Stored
// positions are in cm; a scale without a named unit is shown as a
// multiple of cm.
func unitLabel(scale float64) string {
	switch scale {
	case 0, 1:
		return "cm"
	case 10:
		return "mm"
	case 0.01:
		return "m"
	default:
		return fmt.Sprintf("cm×%g", scale)
	}
}

// run shows the initial event and then either exports (batch) or hands
// the terminal to the session. It returns the exit code.
func (a *app) run(ctx context.Context, in io.Reader) int {
	if a.adapter != nil {
		n, err := a.session.Show(ctx, a.opts.event)
		if err != nil {
			fmt.Fprintf(a.errOut, "error: %v\n", err)
			if a.opts.batch {
				return 1
			}
		} else {
			fmt.Fprintf(a.out, "%d tracks shown\n", n)
		}
	}

	if a.opts.batch {
		if err := a.session.Export(ctx); err != nil {
			fmt.Fprintf(a.errOut, "error: %v\n", err)
			return 1
		}
		a.printOutputs()
		return 0
	}

	fmt.Fprintln(a.out, `Type "help" for commands.`)
	if err := a.session.Run(ctx, in, a.out); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(a.errOut, "error: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) printOutputs() {
	if path := a.memory.GetExportedFilePath(); path != "" {
		fmt.Fprintf(a.out, "scene: %s\n", path)
	}
	if a.plot != nil {
		for _, proj := range plot.Projections {
			fmt.Fprintf(a.out, "plot:  %s\n", a.plot.Path(proj))
		}
	}
}

// close releases everything newApp opened. It is safe on a partly built app.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.renderers != nil {
		if err := a.renderers.Close(); err != nil && a.logger != nil {
			a.logger.Warn("Closing renderers", "error", err)
		}
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.logs != nil {
		_ = a.logs.Flush(ctx)
	}
	if a.otel != nil {
		_ = a.otel.Shutdown(ctx)
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}
