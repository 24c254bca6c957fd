package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"vfi-client/internal/client"
	"vfi-client/internal/domain"
	"vfi-client/internal/httpapi"
)

const shutdownTimeout = 5 * time.Second

func runExtract(ctx context.Context, c *cli, args []string) error {
	fs := c.flags()
	easeCounts := fs.String("ease", "", "comma-separated counts; ease the extracted frames afterwards")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: extract takes one video path", errUsage)
	}

	if err := c.open(); err != nil {
		return err
	}
	defer c.close()

	h, err := c.app.ExtractFromFile(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	result, err := c.follow(h)
	if err != nil {
		return err
	}
	fmt.Printf("fps=%g pixfmt=%s\n", result.FPS, result.PixFmt)

	if *easeCounts == "" {
		return nil
	}
	counts, err := parseCounts(*easeCounts)
	if err != nil {
		return err
	}
	h, err = c.app.EaseFromExtraction(ctx, result, counts)
	if err != nil {
		return err
	}
	_, err = c.follow(h)
	return err
}

func runGenerate(ctx context.Context, c *cli, args []string) error {
	fs := c.flags()
	number := fs.Int("number", 1, "frames to generate between the two images")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("%w: generate takes a start and an end image", errUsage)
	}

	if err := c.open(); err != nil {
		return err
	}
	defer c.close()

	h, err := c.app.GenerateFromFiles(ctx, fs.Arg(0), fs.Arg(1), *number)
	if err != nil {
		return err
	}
	_, err = c.follow(h)
	return err
}

func runEase(ctx context.Context, c *cli, args []string) error {
	fs := c.flags()
	rawCounts := fs.String("counts", "", "comma-separated frames to insert per gap")
	remote := fs.String("remote", "", "server path of previously extracted frames")
	pixfmt := fs.String("pixfmt", "", "pixel format reported by the extraction")
	if err := fs.Parse(args); err != nil {
		return err
	}
	counts, err := parseCounts(*rawCounts)
	if err != nil {
		return err
	}
	if *remote == "" && fs.NArg() < 2 {
		return fmt.Errorf("%w: ease takes two or more frames, or --remote", errUsage)
	}

	if err := c.open(); err != nil {
		return err
	}
	defer c.close()

	var h *client.Handle
	if *remote != "" {
		h, err = c.app.EaseFromExtraction(ctx, domain.JobResult{RemotePath: *remote, PixFmt: *pixfmt}, counts)
	} else {
		h, err = c.app.EaseFromFiles(ctx, fs.Args(), counts)
	}
	if err != nil {
		return err
	}
	_, err = c.follow(h)
	return err
}

func runExport(ctx context.Context, c *cli, args []string) error {
	fs := c.flags()
	remote := fs.String("remote", "", "server path of the job's frames")
	index := fs.Int("index", 0, "frame index for export frame")
	fps := fs.Float64("fps", 24, "frame rate for export video")
	pixfmt := fs.String("pixfmt", "yuv420p", "pixel format for export video")
	ext := fs.String("ext", "mp4", "container for export video")
	open := fs.Bool("open", false, "open the output folder afterwards")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 || *remote == "" {
		return fmt.Errorf("%w: export {frame|zip|video} --remote PATH", errUsage)
	}

	if err := c.open(); err != nil {
		return err
	}
	defer c.close()

	var (
		path string
		err  error
	)
	switch fs.Arg(0) {
	case "frame":
		path, err = c.app.ExportFrame(ctx, *remote, *index)
	case "zip":
		path, err = c.app.ExportZip(ctx, *remote)
	case "video":
		path, err = c.app.ExportVideo(ctx, *remote, *fps, *pixfmt, *ext)
	default:
		return fmt.Errorf("%w: unknown export %q", errUsage, fs.Arg(0))
	}
	if err != nil {
		return err
	}
	fmt.Println(path)

	if *open {
		return c.app.OpenOutputFolder(path)
	}
	return nil
}

func runServe(ctx context.Context, c *cli, args []string) error {
	fs := c.flags()
	addr := fs.String("addr", "127.0.0.1:8787", "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := c.open(); err != nil {
		return err
	}
	defer c.close()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           httpapi.NewRouter(c.app, c.logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.logger.Info().Str("addr", *addr).Msg("serve: listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	c.logger.Info().Msg("serve: stopped")
	return err
}

func runDiagnose(_ context.Context, c *cli, args []string) error {
	fs := c.flags()
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := c.open(); err != nil {
		return err
	}
	defer c.close()

	report := c.app.RefreshDiagnostics()
	for _, item := range report.Items {
		fmt.Printf("[%s] %-18s %s\n", item.Status, item.Name, item.Message)
		if item.Hint != "" {
			fmt.Printf("       %s\n", item.Hint)
		}
	}
	if report.HasFailures {
		return errors.New("diagnostics reported failures")
	}
	return nil
}

// parseCounts reads "1,2,0" into per-gap frame counts.
func parseCounts(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: --counts is required", errUsage)
	}
	parts := strings.Split(raw, ",")
	counts := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("%w: count %q is not a number", errUsage, part)
		}
		counts = append(counts, n)
	}
	return counts, nil
}
