// Package guidelines reads and writes the operator-editable settings and
// guidelines that shape prompts. Storage failures never escape: reads fall
// back to literal defaults and writes report false.
package guidelines

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xaenox/rex/internal/metrics"
	"github.com/xaenox/rex/internal/models"
	"github.com/xaenox/rex/internal/storage"
	"go.uber.org/zap"
)

type Store interface {
	storage.SettingStore
	storage.GuidelineStore
}

type cached struct {
	values    map[string]string
	fetchedAt time.Time
}

type Adapter struct {
	store   Store
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu         sync.Mutex
	guidelines *cached
	settings   *cached
}

func NewAdapter(store Store, m *metrics.Metrics, logger *zap.Logger) *Adapter {
	return &Adapter{
		store:   store,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Invalidate drops both caches.
func (a *Adapter) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.guidelines = nil
	a.settings = nil
}

// loadGuidelines returns the raw guideline rows. Results are cached until
// the next write or forced refresh; fallbacks are never cached.
func (a *Adapter) loadGuidelines(ctx context.Context, forceRefresh bool) (map[string]string, time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !forceRefresh && a.guidelines != nil {
		return a.guidelines.values, a.guidelines.fetchedAt, false
	}
	a.guidelines = nil

	rows, err := a.store.ListGuidelines(ctx)
	if err != nil {
		a.logger.Error("Failed to read guidelines, using defaults", zap.Error(err))
		a.metrics.RecordStorageError("list_guidelines")
		return copyStrings(DefaultGuidelines), a.now(), true
	}

	values := make(map[string]string, len(rows))
	for _, g := range rows {
		if g.Value == "" {
			a.logger.Warn("Skipping empty guideline value", zap.String("key", g.Key))
			continue
		}
		values[g.Key] = g.Value
	}

	a.guidelines = &cached{values: values, fetchedAt: a.now()}
	a.logger.Debug("Loaded guidelines", zap.Int("count", len(values)))
	return values, a.guidelines.fetchedAt, false
}

func (a *Adapter) loadSettings(ctx context.Context, forceRefresh bool) (map[string]string, time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !forceRefresh && a.settings != nil {
		return a.settings.values, a.settings.fetchedAt, false
	}
	a.settings = nil

	rows, err := a.store.GetSettings(ctx)
	if err != nil {
		a.logger.Error("Failed to read admin settings, using defaults", zap.Error(err))
		a.metrics.RecordStorageError("get_settings")
		return copyStrings(DefaultSettings), a.now(), true
	}

	values := make(map[string]string, len(rows))
	for _, s := range rows {
		if s.Value == "" {
			continue
		}
		values[s.Key] = s.Value
	}

	a.settings = &cached{values: values, fetchedAt: a.now()}
	return values, a.settings.fetchedAt, false
}

// ReadAll returns the stored guidelines as text. On storage failure the
// default bundle is returned.
func (a *Adapter) ReadAll(ctx context.Context, forceRefresh bool) map[string]string {
	values, _, _ := a.loadGuidelines(ctx, forceRefresh)
	return copyStrings(values)
}

// ReadTyped is ReadAll with every value decoded.
func (a *Adapter) ReadTyped(ctx context.Context, forceRefresh bool) map[string]Value {
	values, _, _ := a.loadGuidelines(ctx, forceRefresh)
	return decodeAll(values, a.logDecodeError)
}

func (a *Adapter) logDecodeError(key string, err error) {
	a.logger.Warn("Failed to parse guideline, keeping raw value", zap.String("key", key), zap.Error(err))
}

// Settings returns the stored admin settings, or defaults on failure.
func (a *Adapter) Settings(ctx context.Context, forceRefresh bool) map[string]string {
	values, _, _ := a.loadSettings(ctx, forceRefresh)
	return copyStrings(values)
}

// Snapshot reads settings and guidelines once and fills missing keys with
// defaults.
func (a *Adapter) Snapshot(ctx context.Context, forceRefresh bool) Snapshot {
	settings, _, settingsDegraded := a.loadSettings(ctx, forceRefresh)
	guidelines, fetchedAt, guidelinesDegraded := a.loadGuidelines(ctx, forceRefresh)

	snap := Snapshot{
		Settings:   copyStrings(settings),
		Guidelines: decodeAll(guidelines, a.logDecodeError),
		FetchedAt:  fetchedAt,
		Degraded:   settingsDegraded || guidelinesDegraded,
	}

	for key, value := range DefaultSettings {
		if _, ok := snap.Settings[key]; !ok {
			snap.Settings[key] = value
		}
	}
	for key, value := range DefaultGuidelines {
		if _, ok := snap.Guidelines[key]; !ok {
			snap.Guidelines[key] = MustDecode(value)
		}
	}

	if snap.Degraded {
		a.logger.Warn("Guideline store unreachable, prompt uses default guidelines")
	}
	a.metrics.SetGuidelineStoreDegraded(snap.Degraded)
	return snap
}

// WriteMany encodes and stores all values in one transaction.
func (a *Adapter) WriteMany(ctx context.Context, values map[string]any) bool {
	encoded := make(map[string]string, len(values))
	for key, value := range values {
		if strings.TrimSpace(key) == "" {
			a.logger.Warn("Rejecting guideline with empty key")
			return false
		}
		text, err := Encode(value)
		if err != nil {
			a.logger.Warn("Failed to encode guideline", zap.String("key", key), zap.Error(err))
			return false
		}
		encoded[key] = text
	}

	if err := a.store.UpsertGuidelines(ctx, encoded); err != nil {
		a.logger.Error("Failed to update guidelines", zap.Error(err))
		a.metrics.RecordStorageError("upsert_guidelines")
		return false
	}

	a.Invalidate()
	a.logger.Info("Guidelines updated", zap.Int("count", len(encoded)))
	return true
}

// WriteSettings upserts admin settings.
func (a *Adapter) WriteSettings(ctx context.Context, values map[string]string) bool {
	if err := a.store.UpsertSettings(ctx, values); err != nil {
		a.logger.Error("Failed to update settings", zap.Error(err))
		a.metrics.RecordStorageError("upsert_settings")
		return false
	}

	a.Invalidate()
	a.logger.Info("Settings updated", zap.Int("count", len(values)))
	return true
}

// ListCustom returns custom guidelines with the prefix stripped, sorted by
// key.
func (a *Adapter) ListCustom(ctx context.Context) []CustomGuideline {
	rows, err := a.store.ListGuidelines(ctx)
	if err != nil {
		a.logger.Error("Failed to list custom guidelines", zap.Error(err))
		a.metrics.RecordStorageError("list_guidelines")
		return []CustomGuideline{}
	}

	custom := []CustomGuideline{}
	for _, g := range rows {
		name, ok := strings.CutPrefix(g.Key, models.CustomGuidelinePrefix)
		if !ok || g.Value == "" {
			continue
		}
		custom = append(custom, CustomGuideline{Key: name, Value: g.Value, Description: g.Description})
	}
	sort.Slice(custom, func(i, j int) bool { return custom[i].Key < custom[j].Key })
	return custom
}

func customKey(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	return models.CustomGuidelinePrefix + name, true
}

func (a *Adapter) CreateCustom(ctx context.Context, name, value, description string) bool {
	key, ok := customKey(name)
	if !ok {
		return false
	}

	err := a.store.CreateGuideline(ctx, &models.Guideline{Key: key, Value: value, Description: description})
	if err != nil {
		a.logCustomError("create", key, err)
		return false
	}

	a.Invalidate()
	return true
}

func (a *Adapter) UpdateCustom(ctx context.Context, name, value, description string) bool {
	key, ok := customKey(name)
	if !ok {
		return false
	}

	err := a.store.UpdateGuideline(ctx, &models.Guideline{Key: key, Value: value, Description: description})
	if err != nil {
		a.logCustomError("update", key, err)
		return false
	}

	a.Invalidate()
	return true
}

// DeleteCustom removes a custom guideline; deleting a missing key fails.
func (a *Adapter) DeleteCustom(ctx context.Context, name string) bool {
	key, ok := customKey(name)
	if !ok {
		return false
	}

	if err := a.store.DeleteGuideline(ctx, key); err != nil {
		a.logCustomError("delete", key, err)
		return false
	}

	a.Invalidate()
	return true
}

func (a *Adapter) logCustomError(op, key string, err error) {
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrAlreadyExists) {
		a.logger.Info("Custom guideline "+op+" rejected", zap.String("key", key), zap.Error(err))
		return
	}
	a.logger.Error("Failed to "+op+" custom guideline", zap.String("key", key), zap.Error(err))
	a.metrics.RecordStorageError(op + "_guideline")
}

// Seed writes default settings and guidelines whose keys are missing.
func (a *Adapter) Seed(ctx context.Context) error {
	existing, err := a.store.GetSettings(ctx)
	if err != nil {
		return err
	}
	present := make(map[string]bool, len(existing))
	for _, s := range existing {
		present[s.Key] = true
	}

	missing := make(map[string]string)
	for key, value := range DefaultSettings {
		if !present[key] {
			missing[key] = value
		}
	}
	if len(missing) > 0 {
		if err := a.store.UpsertSettings(ctx, missing); err != nil {
			return err
		}
	}

	if err := a.store.SeedGuidelines(ctx, seedGuidelines); err != nil {
		return err
	}

	a.Invalidate()
	a.logger.Info("Default settings and guidelines ensured", zap.Int("settings_added", len(missing)))
	return nil
}
