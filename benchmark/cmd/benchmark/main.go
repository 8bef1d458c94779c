// Command benchmark measures the detection post-processing stages over
// synthetic scenes and writes JSON and CSV reports.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nvr-ai/go-detect/benchmark"
	"github.com/nvr-ai/go-detect/models"
)

func main() {
	var (
		modelName    = flag.String("model", "yolov8n", "Registered model preset to simulate")
		scenarioFile = flag.String("scenarios", "", "Path to a scenario set JSON file")
		outputDir    = flag.String("output", "./benchmark_results", "Output directory for results")
		quick        = flag.Bool("quick", false, "Run the quick scenario set")
		resolutions  = flag.Bool("resolutions", false, "Sweep model input sizes")
		densities    = flag.Bool("densities", false, "Sweep scene densities")
		renders      = flag.Bool("renders", false, "Sweep render target resolutions")
		timeout      = flag.Duration("timeout", 30*time.Minute, "Abort the run after this long")
	)
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	model, err := models.NewConfig(models.Name(*modelName), "synthetic.onnx")
	if err != nil {
		logger.Fatal("resolving model", zap.Error(err))
	}

	suite := benchmark.NewSuite(*outputDir, logger)

	switch {
	case *scenarioFile != "":
		set, err := benchmark.LoadScenarioSet(*scenarioFile)
		if err != nil {
			logger.Fatal("loading scenarios", zap.Error(err))
		}
		suite.AddSet(set)
	case *quick:
		suite.AddSet(benchmark.QuickSet(model))
	default:
		any := false
		if *resolutions {
			suite.AddSet(benchmark.ResolutionSweep(model))
			any = true
		}
		if *densities {
			suite.AddSet(benchmark.DensitySweep(model))
			any = true
		}
		if *renders {
			suite.AddSet(benchmark.RenderTargetSweep(model))
			any = true
		}
		if !any {
			suite.AddSet(benchmark.ResolutionSweep(model))
			suite.AddSet(benchmark.DensitySweep(model))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := suite.RunAll(ctx); err != nil {
		logger.Fatal("benchmark run failed", zap.Error(err))
	}
}
