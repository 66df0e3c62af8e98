package cache

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bassista/go_gallery/internal/logger"
	"github.com/bassista/go_gallery/internal/repository"
)

// StartPersistenceScheduler flushes a dirty store every interval (write-back mode
// of the json backend). On ctx.Done it flushes once more and closes the returned
// channel when done.
func StartPersistenceScheduler(
	ctx context.Context,
	store PersistableStore,
	repo repository.Saver,
	interval time.Duration,
) <-chan struct{} {
	done := make(chan struct{})
	log := logger.WithComponent("persist")
	log.Debugf("starting persistence scheduler with interval: %v", interval)
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				// final flush must outlive the cancelled app context
				flush(context.Background(), log, store, repo)
				log.Info("persistence scheduler stopped after final flush")
				return
			case <-ticker.C:
				flush(ctx, log, store, repo)
			}
		}
	}()
	return done
}

func flush(ctx context.Context, log *logrus.Entry, store PersistableStore, repo repository.Saver) {
	if !store.IsDirty() {
		return
	}
	if err := ctx.Err(); err != nil {
		log.Debugf("flush cancelled: %v", err)
		return
	}

	doc, revision, err := store.FlushSnapshot()
	if err != nil {
		log.Errorf("flush: snapshot failed: %v", err)
		return
	}
	doc.Metadata.LastUpdate = time.Now().UnixMilli()

	if err := repo.Save(ctx, &doc); err != nil {
		log.Errorf("flush: save failed, keeping changes for the next tick: %v", err)
		return
	}
	store.MarkPersisted(revision, doc.Metadata.LastUpdate)
	log.Debugf("gallery persisted (%d photos, revision %d)", len(doc.Photos), revision)
}
