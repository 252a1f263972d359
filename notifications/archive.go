package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/storage"
)

const (
	archiveTimeout = 15 * time.Second
	archiveQueue   = 64
)

// ArchiveKey is the object key of a tournament's final snapshot.
func ArchiveKey(tournamentID int) string {
	return fmt.Sprintf("tournaments/%d/final.json", tournamentID)
}

type archiveJob struct {
	tournamentID int
	key          string
	document     []byte // nil: remove the key
}

// ArchiveSink stores the final snapshot of completed tournaments and removes it when the
// tournament is deleted. Publish only enqueues; the bucket is written by Run.
type ArchiveSink struct {
	store  storage.SnapshotStore
	jobs   chan archiveJob
	done   chan struct{}
	logger *slog.Logger
}

func NewArchiveSink(store storage.SnapshotStore, logger *slog.Logger) *ArchiveSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchiveSink{
		store:  store,
		jobs:   make(chan archiveJob, archiveQueue),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (a *ArchiveSink) Publish(_ context.Context, e Event) {
	job := archiveJob{tournamentID: e.TournamentID, key: ArchiveKey(e.TournamentID)}

	switch e.Type {
	case EventTournamentCompleted:
		snapshot, ok := e.Payload.(*models.Tournament)
		if !ok || snapshot == nil {
			a.logger.Warn("completed event without snapshot", slog.Int("tournament_id", e.TournamentID))
			return
		}
		// Кодируем сразу: payload может измениться после возврата из Publish.
		data, err := json.Marshal(snapshot)
		if err != nil {
			a.logger.Error("failed to encode tournament archive", slog.Int("tournament_id", e.TournamentID), slog.Any("error", err))
			return
		}
		job.document = data
	case EventTournamentDeleted:
	default:
		return
	}

	select {
	case a.jobs <- job:
	default:
		a.logger.Warn("archive queue is full, dropping job",
			slog.Int("tournament_id", e.TournamentID),
			slog.String("event", string(e.Type)))
	}
}

// Run writes queued jobs until ctx is done, then flushes whatever is already queued.
func (a *ArchiveSink) Run(ctx context.Context) {
	defer close(a.done)
	// Отмена ctx останавливает приём, но не обрывает начатую запись.
	writeCtx := context.WithoutCancel(ctx)
	for {
		select {
		case job := <-a.jobs:
			a.write(writeCtx, job)
		case <-ctx.Done():
			for {
				select {
				case job := <-a.jobs:
					a.write(writeCtx, job)
				default:
					return
				}
			}
		}
	}
}

// Done is closed once Run has returned.
func (a *ArchiveSink) Done() <-chan struct{} {
	return a.done
}

func (a *ArchiveSink) write(ctx context.Context, job archiveJob) {
	ctx, cancel := context.WithTimeout(ctx, archiveTimeout)
	defer cancel()

	if job.document == nil {
		if err := a.store.Remove(ctx, job.key); err != nil {
			a.logger.Warn("failed to delete tournament archive", slog.Int("tournament_id", job.tournamentID), slog.Any("error", err))
		}
		return
	}

	obj, err := a.store.Save(ctx, job.key, job.document)
	if err != nil {
		a.logger.Error("failed to archive tournament", slog.Int("tournament_id", job.tournamentID), slog.Any("error", err))
		return
	}
	a.logger.Info("tournament archived",
		slog.Int("tournament_id", job.tournamentID),
		slog.String("key", obj.Key),
		slog.String("url", obj.URL))
}
