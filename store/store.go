// Package store holds the municipality dataset. Readers get an immutable
// Snapshot through an atomic pointer; writers persist through gorm inside a
// transaction and publish a new snapshot after the commit.
package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"belgian-housing-api/ingest"
	"belgian-housing-api/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	revisionRowID = 1
	batchSize     = 100
	upsertSource  = "upsert"
)

type Store struct {
	db       *gorm.DB
	validate *validator.Validate

	mu      sync.Mutex // serialises writers
	current atomic.Pointer[Snapshot]
}

// Open migrates the schema and loads the persisted dataset, which may be empty.
func Open(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&models.Municipality{}, &models.DatasetRevision{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	if err := ensureRevision(db); err != nil {
		return nil, err
	}

	s := &Store{db: db, validate: v}
	if err := s.Reload(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Snapshot() *Snapshot            { return s.current.Load() }
func (s *Store) Version() uint64                { return s.Snapshot().Version() }
func (s *Store) Count() int                     { return s.Snapshot().Len() }
func (s *Store) LoadedAt() time.Time            { return s.Snapshot().LoadedAt() }
func (s *Store) ListAll() []models.Municipality { return s.Snapshot().All() }

func (s *Store) Get(code string) (models.Municipality, error) {
	m, ok := s.Snapshot().Get(code)
	if !ok {
		return models.Municipality{}, fmt.Errorf("%w: %s", models.ErrNotFound, code)
	}
	return m, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Refresh replaces the whole dataset with the records of src. The source is
// read before any lock is taken; on failure the database and the current
// snapshot are unchanged.
func (s *Store) Refresh(ctx context.Context, src ingest.Source) (int, error) {
	start := time.Now()
	records, err := src.Load(ctx)
	if err != nil {
		writesFailed.WithLabelValues(opRefresh).Inc()
		return 0, fmt.Errorf("failed to load %s: %w", src.Name(), err)
	}
	if n := len(records); n == 0 || n > models.MaxMunicipalities {
		writesFailed.WithLabelValues(opRefresh).Inc()
		return 0, models.NewLoadError(src.Name(), 0, "", fmt.Sprintf("source returned %d records, expected 1 to %d", n, models.MaxMunicipalities))
	}
	if err := s.checkBatch(src.Name(), records); err != nil {
		writesFailed.WithLabelValues(opRefresh).Inc()
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for i := range records {
		records[i].LastUpdated = now
	}

	snap, err := s.write(ctx, src.Name(), func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Municipality{}).Error; err != nil {
			return fmt.Errorf("failed to clear municipalities: %w", err)
		}
		if err := tx.CreateInBatches(&records, batchSize).Error; err != nil {
			return fmt.Errorf("failed to insert municipalities: %w", err)
		}
		return nil
	})
	if err != nil {
		writesFailed.WithLabelValues(opRefresh).Inc()
		return 0, err
	}

	s.publish(snap)
	writesTotal.WithLabelValues(opRefresh).Inc()
	writeDuration.WithLabelValues(opRefresh).Observe(time.Since(start).Seconds())
	return snap.Len(), nil
}

// Upsert inserts or replaces records by code. The batch is all or nothing.
func (s *Store) Upsert(ctx context.Context, records []models.Municipality) (int, error) {
	start := time.Now()
	if len(records) == 0 {
		return 0, nil
	}

	if err := s.checkBatch(upsertSource, records); err != nil {
		writesFailed.WithLabelValues(opUpsert).Inc()
		return 0, err
	}
	now := time.Now().UTC()
	batch := make([]models.Municipality, len(records))
	for i, m := range records {
		m.LastUpdated = now
		batch[i] = m
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.write(ctx, upsertSource, func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "nis_code"}},
			UpdateAll: true,
		}).CreateInBatches(&batch, batchSize).Error; err != nil {
			return fmt.Errorf("failed to upsert municipalities: %w", err)
		}
		var total int64
		if err := tx.Model(&models.Municipality{}).Count(&total).Error; err != nil {
			return fmt.Errorf("failed to count municipalities: %w", err)
		}
		if total > models.MaxMunicipalities {
			return models.NewLoadError(upsertSource, 0, "", fmt.Sprintf("dataset would hold %d records, the maximum is %d", total, models.MaxMunicipalities))
		}
		return nil
	})
	if err != nil {
		writesFailed.WithLabelValues(opUpsert).Inc()
		return 0, err
	}

	s.publish(snap)
	writesTotal.WithLabelValues(opUpsert).Inc()
	writeDuration.WithLabelValues(opUpsert).Observe(time.Since(start).Seconds())
	return len(batch), nil
}

// Reload rebuilds the snapshot from the database, e.g. after another process
// refreshed it.
func (s *Store) Reload(ctx context.Context) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap *Snapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		snap, err = readSnapshot(tx)
		return err
	})
	if err != nil {
		writesFailed.WithLabelValues(opReload).Inc()
		return err
	}

	s.publish(snap)
	writesTotal.WithLabelValues(opReload).Inc()
	writeDuration.WithLabelValues(opReload).Observe(time.Since(start).Seconds())
	return nil
}

// write runs mutate and the revision bump in one transaction and reads the
// committed state back as the next snapshot.
func (s *Store) write(ctx context.Context, source string, mutate func(tx *gorm.DB) error) (*Snapshot, error) {
	var snap *Snapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := mutate(tx); err != nil {
			return err
		}
		if err := bumpRevision(tx, source); err != nil {
			return err
		}
		var err error
		snap, err = readSnapshot(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Store) publish(snap *Snapshot) {
	s.current.Store(snap)
	snapshotRecords.Set(float64(snap.Len()))
	snapshotVersion.Set(float64(snap.Version()))
}

// checkBatch holds every record of a write to the model invariants and
// rejects repeated codes. Rows are 1-based.
func (s *Store) checkBatch(source string, records []models.Municipality) error {
	seen := make(map[string]struct{}, len(records))
	for i, m := range records {
		if err := s.validateRecord(source, i+1, m); err != nil {
			return err
		}
		if _, dup := seen[m.Code]; dup {
			return models.NewLoadError(source, i+1, "nis_code", "duplicate code "+m.Code)
		}
		seen[m.Code] = struct{}{}
	}
	return nil
}

func (s *Store) validateRecord(source string, row int, m models.Municipality) error {
	err := s.validate.Struct(m)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return models.NewLoadError(source, row, fe.Field(), fmt.Sprintf("failed %q validation", fe.Tag()))
	}
	return &models.LoadError{Source: source, Row: row, Reason: "invalid record", Err: err}
}

func bumpRevision(tx *gorm.DB, source string) error {
	res := tx.Model(&models.DatasetRevision{}).
		Where("id = ?", revisionRowID).
		Updates(map[string]any{
			"revision": gorm.Expr("revision + 1"),
			"source":   source,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to bump revision: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		rev := models.DatasetRevision{ID: revisionRowID, DatasetID: uuid.NewString(), Revision: 1, Source: source}
		if err := tx.Create(&rev).Error; err != nil {
			return fmt.Errorf("failed to create revision: %w", err)
		}
	}
	return nil
}

func readSnapshot(tx *gorm.DB) (*Snapshot, error) {
	var rev models.DatasetRevision
	err := tx.Where("id = ?", revisionRowID).Limit(1).Find(&rev).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read revision: %w", err)
	}

	var records []models.Municipality
	if err := tx.Order("nis_code").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to read municipalities: %w", err)
	}
	snap := NewSnapshot(rev.Revision, rev.Source, records)
	snap.dataset = rev.DatasetID
	return snap, nil
}

// ensureRevision creates the revision row with a fresh dataset id, or fills
// in the id of a row written before it existed.
func ensureRevision(db *gorm.DB) error {
	fresh := models.DatasetRevision{ID: revisionRowID, DatasetID: uuid.NewString()}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh).Error; err != nil {
		return fmt.Errorf("failed to create revision: %w", err)
	}
	err := db.Model(&models.DatasetRevision{}).
		Where("id = ? AND (dataset_id IS NULL OR dataset_id = '')", revisionRowID).
		Update("dataset_id", uuid.NewString()).Error
	if err != nil {
		return fmt.Errorf("failed to assign dataset id: %w", err)
	}
	return nil
}
