// Package main provides the lessonreel command line tool. It renders a
// lesson video in-process, without the HTTP server, and inspects results.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/maauso/lessonreel-api/internal/bootstrap"
	"github.com/maauso/lessonreel-api/internal/config"
	"github.com/maauso/lessonreel-api/internal/job"
	"github.com/maauso/lessonreel-api/internal/media"
)

const pollInterval = 500 * time.Millisecond

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "lessonreel",
		Usage: "Generate narrated lesson videos from instructions",
		Commands: []*cli.Command{
			{
				Name:  "render",
				Usage: "Render one lesson video and print its progress",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "instructions",
						Aliases:  []string{"i"},
						Usage:    "What the lesson should teach",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "reference-file",
						Aliases: []string{"r"},
						Usage:   "Text file with source material",
					},
					&cli.BoolFlag{
						Name:  "push-to-s3",
						Usage: "Upload the finished video to the configured bucket",
					},
				},
				Action: render,
			},
			{
				Name:      "probe",
				Usage:     "Print the duration and streams of a video file",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "ffprobe",
						Usage:   "Path to the ffprobe binary",
						Value:   "ffprobe",
						EnvVars: []string{"FFPROBE_PATH"},
					},
				},
				Action: probe,
			},
		},
	}
}

func render(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := cfg.NewLogger()
	// Progress goes to stdout; keep the log quiet unless asked otherwise.
	if !strings.EqualFold(cfg.LogLevel, "debug") {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var reference string
	if path := c.String("reference-file"); path != "" {
		data, err := os.ReadFile(path) // #nosec G304 - user supplied input file
		if err != nil {
			return fmt.Errorf("read reference file: %w", err)
		}
		reference = string(data)
	}

	deps, err := bootstrap.NewDependencies(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}
	svc := deps.VideoService

	started, err := svc.Start(c.Context, job.StartInput{
		Instructions: c.String("instructions"),
		Reference:    reference,
		PushToS3:     c.Bool("push-to-s3"),
	})
	if err != nil {
		return err
	}

	final, err := follow(c.Context, svc, started.ID, c.App.Writer)
	if err != nil {
		return err
	}

	if final.Status == job.StatusError {
		return cli.Exit(color.RedString("video failed: %s", final.Error), 1)
	}

	res := final.Result
	fmt.Fprintln(c.App.Writer, color.GreenString("video ready: %s", res.FilePath))
	fmt.Fprintf(c.App.Writer, "  slides: %d  duration: %ds  audio: %t\n", res.TotalSlides, res.DurationSeconds, res.HasAudio)
	if res.ScriptFallback {
		fmt.Fprintln(c.App.Writer, color.YellowString("  the default script was used"))
	}
	if res.VideoURL != "" {
		fmt.Fprintf(c.App.Writer, "  url: %s\n", res.VideoURL)
	}
	return nil
}

// follow polls the job until it is finished, printing each new step.
func follow(ctx context.Context, svc *job.VideoService, id string, w io.Writer) (*job.Job, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var last string
	for {
		j, err := svc.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		if line := fmt.Sprintf("%3d%% %-8s %s", j.Progress, j.Stage, j.Message); line != last && j.Stage != "" {
			fmt.Fprintln(w, color.CyanString(line))
			last = line
		}
		if j.IsTerminal() {
			return j, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("interrupted: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func probe(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("probe needs a FILE argument")
	}

	prober := media.NewFFmpegProcessor("", c.String("ffprobe"))
	res, err := prober.Probe(c.Context, path)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "%s\n  duration: %.2fs\n  video: %t\n  audio: %t\n", path, res.Duration, res.HasVideo, res.HasAudio)
	return nil
}
