// Command preview displays the raw capture stream without running inference.
// It checks camera access and window rendering in isolation.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-detect/capture"
	"github.com/nvr-ai/go-detect/capture/webcam"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/render/window"
)

func main() {
	var (
		cameraID  = flag.Int("camera", 0, "Video capture device ID")
		synthetic = flag.Bool("synthetic", false, "Use the synthetic test pattern source")
		width     = flag.Int("width", 1280, "Window width")
		height    = flag.Int("height", 720, "Window height")
		interval  = flag.Duration("interval", 33*time.Millisecond, "Synthetic source frame interval")
	)
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	resolution, ok := images.GetHighestResolutionUnderDimensions(*width, *height)
	if !ok {
		resolution, _ = images.GetResolutionByType(images.ResolutionTypeHD720p)
	}

	var source capture.Source = webcam.NewDevice(*cameraID, resolution)
	if *synthetic {
		source = capture.NewSyntheticSource(resolution, *interval)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := source.Acquire(ctx); err != nil {
		logger.Fatal("acquiring source", zap.Error(err))
	}
	defer source.Release()

	win := window.New("Capture Preview", *width, *height)
	defer win.Close()

	fps := 0.0
	frames := 0
	lastTime := time.Now()

	logger.Info("previewing capture stream",
		zap.Int("camera", *cameraID), zap.Bool("synthetic", *synthetic))

	for ctx.Err() == nil {
		frame, err := source.Read(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, capture.ErrStreamEnded) {
				break
			}
			logger.Error("reading frame", zap.Error(err))
			break
		}

		frames++
		if elapsed := time.Since(lastTime).Seconds(); elapsed >= 1.0 {
			fps = float64(frames) / elapsed
			frames = 0
			lastTime = time.Now()
		}

		win.SetStatus(fmt.Sprintf("%.1f fps | frame %d", fps, frame.Sequence))
		if err := win.Draw(frame, nil); err != nil {
			logger.Error("drawing frame", zap.Error(err))
			break
		}
	}
}
