package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/abrahamus/iBeekeeper/internal/model"
	"github.com/abrahamus/iBeekeeper/internal/provider"
	"github.com/abrahamus/iBeekeeper/internal/queue"
	"github.com/abrahamus/iBeekeeper/pkg/logger"
)

type RunGetter interface {
	GetRun(ctx context.Context, userID int64, id string) (*model.ImportRun, error)
}

// SourceFactory opens the record source a job points at. The cleanup
// func runs after the pipeline finishes, whatever the outcome.
type SourceFactory func(ctx context.Context, job *model.ImportJob) (RecordSource, func(), error)

// NewSourceFactory wires the two supported job sources: a staged CSV
// file on local disk, or the provider's paginated feed. Staged files are
// deleted after the run so the staging directory does not grow.
func NewSourceFactory(providerClient *provider.Client) SourceFactory {
	return func(ctx context.Context, job *model.ImportJob) (RecordSource, func(), error) {
		switch job.Source {
		case model.ImportSourceCSV:
			f, err := os.Open(job.Path)
			if err != nil {
				return nil, nil, fmt.Errorf("opening staged csv: %w", err)
			}
			cleanup := func() {
				f.Close()
				if err := os.Remove(job.Path); err != nil && !os.IsNotExist(err) {
					logger.Warn("failed to remove staged csv", "path", job.Path, "error", err)
				}
			}
			return NewCSVSource(f), cleanup, nil
		case model.ImportSourceProvider:
			if providerClient == nil {
				return nil, nil, errors.New("provider feed is not configured")
			}
			return provider.NewFeed(ctx, providerClient, job.Since), func() {}, nil
		default:
			return nil, nil, fmt.Errorf("unknown import source %q", job.Source)
		}
	}
}

// JobProcessor executes one queued import job end to end.
type JobProcessor struct {
	importer *Importer
	runs     RunGetter
	sources  SourceFactory
}

func NewJobProcessor(imp *Importer, runs RunGetter, sources SourceFactory) *JobProcessor {
	return &JobProcessor{
		importer: imp,
		runs:     runs,
		sources:  sources,
	}
}

func (p *JobProcessor) GetType() string {
	return "import"
}

// Process runs the import pipeline for one queue message. Lock
// contention returns an error so the message is retried after the other
// run releases the lock; pipeline failures are recorded on the run row
// and acked, a blind retry would only repeat them.
func (p *JobProcessor) Process(ctx context.Context, msg *queue.Message) error {
	var job model.ImportJob
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		logger.Error("dropping malformed import job", "error", err)
		return nil
	}

	run, err := p.runs.GetRun(ctx, job.UserID, job.RunID)
	if err != nil {
		logger.Error("import job references unknown run", "run_id", job.RunID, "error", err)
		return nil
	}
	if run.Status != model.ImportRunStatusQueued {
		logger.Info("skipping already handled run", "run_id", run.ID, "status", string(run.Status))
		return nil
	}

	source, cleanup, err := p.sources(ctx, &job)
	if err != nil {
		logger.Error("failed to open import source", "run_id", run.ID, "error", err)
		run.Status = model.ImportRunStatusFailed
		run.Error = err.Error()
		if _, uerr := p.importer.runs.UpdateRun(ctx, run); uerr != nil {
			logger.Error("failed to mark run failed", "run_id", run.ID, "error", uerr)
		}
		return nil
	}
	defer cleanup()

	if _, err := p.importer.Run(ctx, run, source); err != nil {
		if errors.Is(err, ErrImportInProgress) {
			return err
		}
		logger.Error("import run failed", "run_id", run.ID, "error", err)
	}
	return nil
}
