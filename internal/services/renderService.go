package services

import (
	"context"
	"encoding/base64"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"PMRender/internal/api/dto"
	"PMRender/internal/models"
	"PMRender/internal/models/configs"
	customErrors "PMRender/internal/models/errors"
	"PMRender/pkg/worker"
)

// RenderService is the job entry point: it materializes the audio source,
// supervises the renderer, and assembles the outcome. Every job runs inside
// an exclusively-owned temporary directory that is removed on all paths.
type RenderService struct {
	config configs.RenderServiceConfig
	fetch  *FetchService
	upload *UploadService
	slots  chan struct{}
}

func StartRenderService(cfg configs.RenderServiceConfig, fetch *FetchService, upload *UploadService) (*RenderService, error) {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
		return nil, err
	}

	return &RenderService{
		config: cfg,
		fetch:  fetch,
		upload: upload,
		slots:  make(chan struct{}, cfg.MaxConcurrent),
	}, nil
}

// ParseJob coerces a loosely-typed input map into a JobConfig seeded with
// the process-wide defaults.
func (s *RenderService) ParseJob(input map[string]any) (models.JobConfig, error) {
	return models.ParseJobConfig(input, models.JobConfig{
		VideoWidth:     models.DefaultVideoWidth,
		VideoHeight:    models.DefaultVideoHeight,
		FPS:            models.DefaultFPS,
		BitrateKbps:    models.DefaultBitrateKbps,
		PresetDuration: models.DefaultPresetDuration,
		Mesh:           s.config.DefaultMesh,
		EncoderSpeed:   s.config.DefaultEncoderSpeed,
		Timeout:        s.config.DefaultTimeout,
	})
}

// ActiveRenders reports how many render slots are currently taken.
func (s *RenderService) ActiveRenders() int {
	return len(s.slots)
}

// MaxConcurrent reports the configured slot count.
func (s *RenderService) MaxConcurrent() int {
	return cap(s.slots)
}

// Execute runs one job to a rendered video file. The returned result keeps
// the output inside the job's working directory; the caller must call
// Cleanup after consuming it. On error no files are left behind.
func (s *RenderService) Execute(ctx context.Context, job models.JobConfig) (result *models.RenderResult, err error) {
	select {
	case s.slots <- struct{}{}:
	default:
		return nil, customErrors.New(customErrors.KindBusy, "server is busy (all render slots taken)")
	}
	defer func() { <-s.slots }()

	jobID := uuid.NewString()
	log := slog.With("job_id", jobID)

	workDir, err := os.MkdirTemp(s.config.WorkDir, "render-")
	if err != nil {
		return nil, customErrors.Wrap(customErrors.KindProcess, err, "failed to create working directory")
	}
	defer func() {
		if err != nil {
			os.RemoveAll(workDir)
		}
	}()

	audioPath, err := s.prepareAudio(ctx, job, workDir, log)
	if err != nil {
		return nil, err
	}

	timelinePath, err := s.prepareTimeline(ctx, job, workDir)
	if err != nil {
		return nil, err
	}

	outputPath := filepath.Join(workDir, s.config.OutputName)
	spec := worker.CommandSpec{
		Binary:         s.config.ConvertBinary,
		AudioPath:      audioPath,
		OutputPath:     outputPath,
		PresetDir:      s.config.PresetDir,
		TextureDir:     s.config.TextureDir,
		Mesh:           job.Mesh,
		VideoWidth:     job.VideoWidth,
		VideoHeight:    job.VideoHeight,
		FPS:            job.FPS,
		BitrateKbps:    job.BitrateKbps,
		EncoderSpeed:   job.EncoderSpeed,
		TimelinePath:   timelinePath,
		PresetDuration: job.PresetDuration,
	}

	log.Info("starting conversion", "timeout", job.Timeout, "timeline", timelinePath != "")
	outcome, err := worker.Run(ctx, spec, job.Timeout)
	if err != nil {
		return nil, customErrors.Wrap(customErrors.KindProcess, err, "failed to run renderer").
			WithOutput(outcome.Stdout, outcome.Stderr)
	}

	switch outcome.State {
	case worker.StateTimedOut:
		log.Warn("conversion timed out", "elapsed", outcome.Elapsed)
		return nil, customErrors.New(customErrors.KindTimeout, "%s", outcome.Reason).
			WithOutput(outcome.Stdout, outcome.Stderr)
	case worker.StateFailed:
		log.Warn("conversion failed", "exit_code", outcome.ExitCode, "reason", outcome.Reason)
		return nil, customErrors.New(customErrors.KindProcess, "%s", outcome.Reason).
			WithOutput(outcome.Stdout, outcome.Stderr)
	}

	info, statErr := os.Stat(outputPath)
	if statErr != nil {
		return nil, customErrors.Wrap(customErrors.KindProcess, statErr, "failed to stat rendered output").
			WithOutput(outcome.Stdout, outcome.Stderr)
	}

	result = models.NewRenderResult(jobID, outputPath, workDir)
	result.SizeMB = roundMB(info.Size())
	result.Stdout = outcome.Stdout
	result.Stderr = outcome.Stderr
	result.Elapsed = outcome.Elapsed

	log.Info("conversion finished", "elapsed", outcome.Elapsed, "size_mb", result.SizeMB)
	return result, nil
}

// prepareAudio writes the inline payload or fetches the remote source.
// Inline audio always wins when both are present.
func (s *RenderService) prepareAudio(ctx context.Context, job models.JobConfig, workDir string, log *slog.Logger) (string, error) {
	if !job.HasAudio() {
		return "", customErrors.New(customErrors.KindInput, "missing audio source: supply audio_b64 or audio_url")
	}

	audioPath := filepath.Join(workDir, "audio"+job.AudioSuffix())
	if len(job.AudioData) > 0 {
		if err := os.WriteFile(audioPath, job.AudioData, 0644); err != nil {
			return "", customErrors.Wrap(customErrors.KindInput, err, "failed to write audio payload")
		}
		return audioPath, nil
	}

	log.Info("fetching remote audio", "url", job.AudioURL)
	if err := s.fetch.FetchAudio(ctx, job.AudioURL, audioPath); err != nil {
		return "", err
	}
	return audioPath, nil
}

// prepareTimeline materializes the optional timeline and returns its path,
// or "" when the job falls back to a flat preset duration.
func (s *RenderService) prepareTimeline(ctx context.Context, job models.JobConfig, workDir string) (string, error) {
	timelinePath := filepath.Join(workDir, "timeline.ini")

	switch {
	case job.TimelineURL != "":
		if err := s.fetch.FetchFile(ctx, job.TimelineURL, timelinePath); err != nil {
			return "", err
		}
		return timelinePath, nil
	case job.TimelineINI != "":
		if err := os.WriteFile(timelinePath, []byte(job.TimelineINI), 0644); err != nil {
			return "", customErrors.Wrap(customErrors.KindInput, err, "failed to write timeline")
		}
		return timelinePath, nil
	default:
		return "", nil
	}
}

// Assemble shapes a successful render into the job result record: upload
// when a collaborator is configured, inline base64 otherwise. Upload
// failure is recoverable and never fails the job.
func (s *RenderService) Assemble(ctx context.Context, result *models.RenderResult) dto.JobResult {
	record := dto.JobResult{
		FileSizeMB: result.SizeMB,
		Stdout:     result.Stdout,
		Stderr:     result.Stderr,
	}

	if s.upload.Enabled() {
		reference, err := s.upload.Upload(ctx, result.VideoPath)
		if err == nil {
			record.VideoURL = reference
			return record
		}
		record.UploadError = err.Error()
		slog.Warn("upload failed, falling back to inline encoding",
			"job_id", result.JobID, "error", err)
	}

	data, err := os.ReadFile(result.VideoPath)
	if err != nil {
		return dto.JobResult{
			Error:  "failed to read rendered output: " + err.Error(),
			Stdout: result.Stdout,
			Stderr: result.Stderr,
		}
	}
	record.BaseVideoB64 = base64.StdEncoding.EncodeToString(data)
	return record
}

// Handle drives one serverless-style job record to a result record. It
// never lets a failure escape: every error becomes a tagged result.
func (s *RenderService) Handle(ctx context.Context, input map[string]any) dto.JobResult {
	job, err := s.ParseJob(input)
	if err != nil {
		return failureRecord(err)
	}

	result, err := s.Execute(ctx, job)
	if err != nil {
		return failureRecord(err)
	}
	defer result.Cleanup()

	return s.Assemble(ctx, result)
}

func failureRecord(err error) dto.JobResult {
	re := customErrors.AsRender(err)
	return dto.JobResult{
		Error:  re.Error(),
		Stdout: re.Stdout,
		Stderr: re.Stderr,
	}
}

func roundMB(sizeBytes int64) float64 {
	return math.Round(float64(sizeBytes)/(1<<20)*100) / 100
}
