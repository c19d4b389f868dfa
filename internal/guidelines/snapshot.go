package guidelines

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xaenox/rex/internal/models"
)

// Snapshot is one consistent read of settings and guidelines. Everything a
// prompt needs is looked up here, never in the store.
type Snapshot struct {
	Settings   map[string]string
	Guidelines map[string]Value
	FetchedAt  time.Time
	// Degraded is set when the store could not be read and defaults were
	// substituted.
	Degraded bool
}

// Setting returns a setting or def when missing or empty.
func (s Snapshot) Setting(key, def string) string {
	if v, ok := s.Settings[key]; ok && v != "" {
		return v
	}
	return def
}

// String returns the raw text of a guideline or def.
func (s Snapshot) String(key, def string) string {
	if v, ok := s.Guidelines[key]; ok && v.Raw != "" {
		return v.Raw
	}
	return def
}

// Bool returns a boolean guideline or def when missing or not a boolean.
func (s Snapshot) Bool(key string, def bool) bool {
	if v, ok := s.Guidelines[key]; ok && v.Kind == KindBool {
		return v.Bool
	}
	return def
}

// Int returns an integer guideline or def when missing or not numeric.
func (s Snapshot) Int(key string, def int64) int64 {
	v, ok := s.Guidelines[key]
	if !ok {
		return def
	}
	if v.Kind == KindInt {
		return v.Int
	}
	if n, err := strconv.ParseInt(strings.TrimSpace(v.Raw), 10, 64); err == nil {
		return n
	}
	return def
}

// CustomGuideline is a custom_ guideline with its prefix stripped.
type CustomGuideline struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

// Custom returns the custom guidelines of the snapshot sorted by key.
func (s Snapshot) Custom() []CustomGuideline {
	var custom []CustomGuideline
	for key, v := range s.Guidelines {
		if name, ok := strings.CutPrefix(key, models.CustomGuidelinePrefix); ok {
			custom = append(custom, CustomGuideline{Key: name, Value: v.Raw})
		}
	}
	sort.Slice(custom, func(i, j int) bool { return custom[i].Key < custom[j].Key })
	return custom
}

// DefaultSnapshot returns the literal defaults.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		Settings:   copyStrings(DefaultSettings),
		Guidelines: decodeAll(DefaultGuidelines, nil),
	}
}

func copyStrings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func decodeAll(raw map[string]string, onError func(key string, err error)) map[string]Value {
	out := make(map[string]Value, len(raw))
	for key, value := range raw {
		v, err := Decode(value)
		if err != nil && onError != nil {
			onError(key, err)
		}
		out[key] = v
	}
	return out
}
