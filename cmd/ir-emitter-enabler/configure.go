package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/irutil/ir-emitter-enabler/internal/analyzer"
	"github.com/irutil/ir-emitter-enabler/internal/capture"
	"github.com/irutil/ir-emitter-enabler/internal/orchestrator"
	"github.com/irutil/ir-emitter-enabler/internal/search"
	"github.com/irutil/ir-emitter-enabler/internal/store"
	"github.com/irutil/ir-emitter-enabler/internal/uvc"
)

// cmdConfigure wires the search engine, the stream analyzer, the capture
// loop, and a line-oriented collaborator together through the
// orchestrator hub, then runs the session to completion.
func cmdConfigure(s *store.Store, args []string) error {
	fs := flag.NewFlagSet("configure", flag.ContinueOnError)
	device := fs.String("device", "", "video device to configure (defaults to the first greyscale device found)")
	emitters := fs.Int("emitters", 1, "number of emitters to find")
	limit := fs.Uint16("limit", 256, "negative-answer limit before carrying to the next control byte")
	incStep := fs.Uint8("inc-step", 1, "increment step applied to the currently-incrementing control byte")
	manual := fs.Bool("manual", false, "always ask for manual confirmation instead of using the stream analyzer")
	analyzerImgCount := fs.Uint64("analyzer-img-count", 30, "frames analyzed before the analyzer answers")
	refIntensityVarCoef := fs.Uint64("ref-intensity-var-coef", 50, "baseline significance coefficient for the stream analyzer")
	if err := fs.Parse(args); err != nil {
		return err
	}

	devicePath := *device
	if devicePath == "" {
		greys, err := capture.GreyDevices()
		if err != nil {
			return err
		}
		if len(greys) == 0 {
			return errNoGreyDevice
		}
		devicePath = greys[0]
	}

	conf, err := store.New(s, devicePath)
	if err != nil {
		return err
	}

	uvcDev, err := uvc.Open(devicePath)
	if err != nil {
		return err
	}
	defer uvcDev.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	searchRequests := make(chan search.Request, 3)
	searchResponses := make(chan search.Response, 3)
	analyzerRequests := make(chan analyzer.Message, 30)
	analyzerResponses := make(chan analyzer.IsIrWorking, 3)
	images := make(chan capture.Image, 1)

	collaborator := newStdioCollaborator()

	engineLimit := *limit
	engine := search.New(search.Config{
		Emitters:       *emitters,
		NegAnswerLimit: &engineLimit,
		IncStep:        *incStep,
	}, uvcDev, conf, searchRequests, searchResponses)

	streamAnalyzer := analyzer.New(*refIntensityVarCoef)

	orch := orchestrator.New(orchestrator.Config{Manual: *manual}, searchRequests, searchResponses, analyzerRequests, analyzerResponses, images, collaborator)

	// The engine, analyzer and capture loop run as background tasks whose
	// errors are logged, not returned: the orchestrator's own terminal
	// state (Success/Failure/Abort, or a hard channel error) is the sole
	// source of this function's result, matching how each task here only
	// ever logs its own failure rather than bubbling it to the session
	// result.
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := engine.Configure(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("search engine exited")
		}
	}()

	if !*manual {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := analyzer.Analyze(ctx, streamAnalyzer, analyzerResponses, analyzerRequests, *analyzerImgCount); err != nil && ctx.Err() == nil {
				log.WithError(err).Error("stream analyzer exited")
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := captureLoop(ctx, devicePath, images); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("capture loop exited")
		}
	}()

	orchErr := orch.Run(ctx)
	cancel()
	wg.Wait()

	return orchErr
}

// captureLoop opens a dedicated capture stream (separate from the XU
// control device, since V4L2 streaming and UVC XU queries are
// independent surfaces of the same camera) and forwards frames until ctx
// is cancelled.
func captureLoop(ctx context.Context, devicePath string, images chan<- capture.Image) error {
	stream, err := capture.Open(ctx, devicePath)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		img, err := stream.Capture(ctx)
		if err != nil {
			return err
		}
		select {
		case images <- img:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
