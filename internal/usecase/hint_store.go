package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/draftlens/backend/internal/domain"
)

// Hint cache defaults
const (
	defaultHintTTL     = 168 * time.Hour
	defaultHintTextCap = 2000
	hintKeyPrefix      = "hint:"
)

// HintConfig holds configuration for the hint store
type HintConfig struct {
	TTL     time.Duration
	TextCap int
}

// HintStore keeps the last external result per normalized input text so a
// later rules-only pass can backfill from it. It is a pure cache: every
// failure reads as a miss.
type HintStore struct {
	cache   domain.CacheRepository
	ttl     time.Duration
	textCap int
	logger  zerolog.Logger
}

// NewHintStore creates a hint store; cache may be nil to disable hints
func NewHintStore(cache domain.CacheRepository, config HintConfig, logger zerolog.Logger) *HintStore {
	ttl := config.TTL
	if ttl <= 0 {
		ttl = defaultHintTTL
	}
	textCap := config.TextCap
	if textCap <= 0 {
		textCap = defaultHintTextCap
	}
	return &HintStore{
		cache:   cache,
		ttl:     ttl,
		textCap: textCap,
		logger:  logger,
	}
}

// Key builds the cache key over lower-cased, length-capped normalized text.
// Format: "hint:{sha256 hex}"
func (h *HintStore) Key(normalized string) string {
	return hintKeyPrefix + hashText(normalizeForHintKey(normalized, h.textCap))
}

// normalizeForHintKey lower-cases, collapses whitespace and caps the text
func normalizeForHintKey(s string, limit int) string {
	s = strings.Join(strings.Fields(strings.ToLower(s)), " ")
	if r := []rune(s); len(r) > limit {
		s = string(r[:limit])
	}
	return s
}

// InputHash identifies the exact normalized input an extraction ran on
func InputHash(normalized string) string {
	return hashText(normalized)
}

func hashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Load returns the cached hint, or nil on miss, cache failure or a
// malformed entry
func (h *HintStore) Load(ctx context.Context, key string) *domain.ExtractionResult {
	if h == nil || h.cache == nil {
		return nil
	}
	raw, err := h.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			h.logger.Warn().Err(err).Str("key", key).Msg("hint cache read failed")
		}
		return nil
	}

	var hint domain.ExtractionResult
	if err := json.Unmarshal(raw, &hint); err != nil {
		h.logger.Warn().Err(err).Str("key", key).Msg("ignoring malformed hint")
		return nil
	}
	return &hint
}

// Store saves the found fields of an external result under key
func (h *HintStore) Store(ctx context.Context, key string, result *domain.ExtractionResult) error {
	if h == nil || h.cache == nil || result == nil || result.FoundCount() == 0 {
		return nil
	}
	hint := *result
	hint.PriceCandidates = nil
	hint.Warnings = nil
	hint.Errors = nil

	data, err := json.Marshal(&hint)
	if err != nil {
		return err
	}
	return h.cache.Set(ctx, key, data, h.ttl)
}
