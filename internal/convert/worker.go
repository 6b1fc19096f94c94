package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediavault/internal/domain"
	"mediavault/internal/domain/ports"
	"mediavault/internal/metrics"
)

// pollInterval is how often Run polls the job store when the last poll
// yielded no job, per spec.md §4.10's "every ~2s".
const pollInterval = 2 * time.Second

// killGrace bounds how long waitWithGrace waits for the encoder to exit
// once the job's context is done before killing it again, per spec.md
// §4.10's cancellation requirement.
const killGrace = 5 * time.Second

// Config parameterises a Worker's encoder invocation.
type Config struct {
	EncoderPath string
	Conversion  domain.ConversionConfig
	WorkerID    string
}

// Worker is the Conversion Worker (spec.md §4.10): it polls the Job Store,
// drives the external encoder per claimed job, streams progress onto the
// event bus, and on success installs the output into the preparation cache.
type Worker struct {
	Jobs     ports.ConversionJobRepository
	Files    ports.MediaFileRepository
	Cache    ports.PreparationCache
	Bus      ports.EventBus
	Notifier ports.Notifier
	Logger   *slog.Logger
	Config   Config

	mu      sync.Mutex
	cancels map[string]*process
}

func New(jobs ports.ConversionJobRepository, files ports.MediaFileRepository, cache ports.PreparationCache, bus ports.EventBus, notifier ports.Notifier, cfg Config, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		Jobs: jobs, Files: files, Cache: cache, Bus: bus, Notifier: notifier,
		Config: cfg, Logger: logger, cancels: make(map[string]*process),
	}
}

// Run polls the job store until ctx is cancelled. It never returns an error
// for individual job failures — those are persisted via Jobs.Fail and
// iteration continues.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.Jobs.DequeueNext(ctx, w.Config.WorkerID)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollInterval):
			}
			continue
		}

		w.processJob(ctx, job)
		// Loop immediately: "continues immediately if the last poll yielded a job".
	}
}

// Cancel fires the in-process cancellation token for jobID, if one of its
// jobs is currently running on this worker.
func (w *Worker) Cancel(jobID string) {
	w.mu.Lock()
	p := w.cancels[jobID]
	w.mu.Unlock()
	if p != nil {
		p.stop()
	}
}

func (w *Worker) processJob(ctx context.Context, job domain.ConversionJob) {
	logger := w.Logger.With(slog.String("jobId", job.ID), slog.String("itemId", job.ItemID))

	source, err := w.Files.Get(ctx, job.SourceMediaFileID)
	if err != nil {
		w.fail(ctx, job, fmt.Errorf("resolve source media file: %w", err), logger)
		return
	}

	sourceDir := filepath.Dir(source.Path)
	sourceStem := strings.TrimSuffix(filepath.Base(source.Path), filepath.Ext(source.Path))
	output := outputPath(sourceDir, sourceStem)

	args := buildArgs(w.Config.Conversion, source.Path, output, source.Width, source.Height)

	lastIntPct := -1
	onTick := func(tick progressTick) {
		if tick.Done {
			return
		}
		rawPct := 0.0
		if source.DurationSecs > 0 {
			rawPct = (float64(tick.OutTimeUs) / 1e6) / source.DurationSecs
		}
		if rawPct < 0 {
			rawPct = 0
		}
		if rawPct > 1 {
			rawPct = 1
		}
		scaledPct := rawPct * 0.85

		if int(scaledPct*100) == lastIntPct {
			return
		}
		lastIntPct = int(scaledPct * 100)

		eta := 0.0
		if tick.Speed > 0 && source.DurationSecs > 0 {
			remaining := source.DurationSecs - float64(tick.OutTimeUs)/1e6
			if remaining > 0 {
				eta = remaining / tick.Speed
			}
		}

		_ = w.Jobs.UpdateProgress(ctx, job.ID, scaledPct, tick.FPS, tick.BitrateKbps, tick.Speed)
		w.Bus.Publish(ports.Event{Category: ports.CategoryJob, Payload: ports.JobProgress{
			JobID: job.ID, Pct: scaledPct, FPS: tick.FPS, Bitrate: tick.BitrateKbps, Speed: tick.Speed, ETASecs: eta,
		}})
	}

	proc := newProcess(ctx, w.Config.EncoderPath, args, onTick)
	w.mu.Lock()
	w.cancels[job.ID] = proc
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		delete(w.cancels, job.ID)
		w.mu.Unlock()
	}()

	if err := proc.start(); err != nil {
		w.fail(ctx, job, fmt.Errorf("start encoder: %w", err), logger)
		return
	}

	waitErr := w.waitWithGrace(proc)
	if waitErr != nil {
		_ = os.Remove(output)
		w.fail(ctx, job, fmt.Errorf("encoder exited: %w (%s)", waitErr, proc.stderr()), logger)
		return
	}

	w.finish(ctx, job, source, output, logger)
}

// waitWithGrace waits for the encoder to exit. If the parent context is
// cancelled, it gives the process killGrace to exit cleanly before treating
// it as failed — satisfying spec.md §4.10's 5s reap requirement.
func (w *Worker) waitWithGrace(proc *process) error {
	done := make(chan error, 1)
	go func() { done <- proc.wait() }()

	select {
	case err := <-done:
		return err
	case <-proc.ctx.Done():
		select {
		case err := <-done:
			return err
		case <-time.After(killGrace):
			proc.stop()
			return <-done
		}
	}
}

func (w *Worker) finish(ctx context.Context, job domain.ConversionJob, source domain.MediaFile, output string, logger *slog.Logger) {
	_ = w.Jobs.UpdateProgress(ctx, job.ID, 0.90, 0, 0, 0)

	outputMF := domain.MediaFile{
		ID:                uuid.NewString(),
		ItemID:            source.ItemID,
		Path:              output,
		Container:         "mp4",
		VideoCodec:        "h264",
		AudioCodec:        "aac",
		Width:             source.Width,
		Height:            source.Height,
		DurationSecs:      source.DurationSecs,
		Profile:           domain.ProfileB,
		CanBeProfileB:     true,
		ServesAsUniversal: true,
		HasFaststart:      true,
		SourceMediaFileID: source.ID,
	}
	if info, err := os.Stat(output); err == nil {
		outputMF.SizeBytes = info.Size()
	}

	if err := w.Files.Create(ctx, outputMF); err != nil {
		w.fail(ctx, job, fmt.Errorf("register output media file: %w", err), logger)
		return
	}

	// GetOrBuild needs the row Create just wrote (it loads the MediaFile by
	// ID to resolve the source path), so the row has to exist before the
	// cache can be populated. A MediaFile must never sit at profile B
	// without a cache entry backing it, so a failed build here demotes the
	// row to C and fails the job rather than completing it.
	if _, err := w.Cache.GetOrBuild(ctx, outputMF.ID); err != nil {
		outputMF.Profile = domain.ProfileC
		outputMF.CanBeProfileB = false
		outputMF.ServesAsUniversal = false
		if uerr := w.Files.Update(ctx, outputMF); uerr != nil {
			logger.Error("demote to profile C after cache build failure also failed",
				slog.String("error", uerr.Error()))
		}
		w.fail(ctx, job, fmt.Errorf("populate preparation cache: %w", err), logger)
		return
	}

	if err := w.Jobs.Complete(ctx, job.ID, outputMF.ID); err != nil {
		logger.Error("complete failed after successful conversion", slog.String("error", err.Error()))
		return
	}
	metrics.ConversionDuration.Observe(time.Since(job.SubmittedAt).Seconds())

	w.Bus.Publish(ports.Event{Category: ports.CategoryJob, Payload: ports.JobCompleted{
		JobID: job.ID, OutputMediaFileID: outputMF.ID,
	}})
	if w.Notifier != nil {
		w.Notifier.Notify(ctx, ports.ConversionNotification{
			JobID: job.ID, ItemID: job.ItemID, Succeeded: true, OutputMediaFileID: outputMF.ID,
		})
	}
}

func (w *Worker) fail(ctx context.Context, job domain.ConversionJob, cause error, logger *slog.Logger) {
	logger.Error("conversion failed", slog.String("error", cause.Error()))
	if err := w.Jobs.Fail(ctx, job.ID, cause); err != nil {
		logger.Error("fail() itself failed", slog.String("error", err.Error()))
	}
	w.Bus.Publish(ports.Event{Category: ports.CategoryJob, Payload: ports.JobFailed{
		JobID: job.ID, Error: cause.Error(),
	}})
	if w.Notifier != nil {
		w.Notifier.Notify(ctx, ports.ConversionNotification{
			JobID: job.ID, ItemID: job.ItemID, Succeeded: false, Error: cause.Error(),
		})
	}
}
