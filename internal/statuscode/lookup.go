// Package statuscode resolves vendor row-status codes to descriptions.
package statuscode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"transportagent/internal/cache"
	"transportagent/internal/model"
)

const keyPrefix = "transportagent:return_status:"

// Source is the authoritative return-status table
type Source interface {
	ReturnStatus(ctx context.Context, code int) (model.ReturnStatus, bool, error)
}

// Cache is the cache the lookup reads through
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Lookup reads return statuses from the cache, falling back to the source
type Lookup struct {
	source Source
	cache  Cache
	log    *logrus.Entry
}

// New creates a Lookup. A nil cache reads the source every time.
func New(source Source, c Cache, log *logrus.Entry) *Lookup {
	return &Lookup{source: source, cache: c, log: log}
}

// Fallback is the description used for codes missing from the table
func Fallback(code int) string {
	return fmt.Sprintf("vendor row status %d", code)
}

// Describe returns the description of code for the given program
func (l *Lookup) Describe(ctx context.Context, code int, programCode string) (string, error) {
	st, ok, err := l.get(ctx, code)
	if err != nil {
		return "", err
	}
	if !ok {
		l.log.WithField("code", code).Warn("row status missing from return-status table")
		return Fallback(code), nil
	}
	if desc := st.Describe(programCode); desc != "" {
		return desc, nil
	}
	return Fallback(code), nil
}

// Forget drops cached entries for codes, after the table was reloaded
func (l *Lookup) Forget(ctx context.Context, codes ...int) {
	if l.cache == nil {
		return
	}
	for _, code := range codes {
		if err := l.cache.Delete(ctx, keyPrefix+strconv.Itoa(code)); err != nil {
			l.log.WithError(err).WithField("code", code).Warn("return-status cache delete failed")
		}
	}
}

func (l *Lookup) get(ctx context.Context, code int) (model.ReturnStatus, bool, error) {
	key := keyPrefix + strconv.Itoa(code)

	if l.cache != nil {
		raw, err := l.cache.Get(ctx, key)
		if err == nil {
			var st model.ReturnStatus
			if jerr := json.Unmarshal([]byte(raw), &st); jerr == nil {
				return st, true, nil
			}
		} else if !errors.Is(err, cache.ErrMiss) {
			l.log.WithError(err).Warn("return-status cache read failed")
		}
	}

	st, ok, err := l.source.ReturnStatus(ctx, code)
	if err != nil {
		return st, false, fmt.Errorf("lookup return status %d: %w", code, err)
	}
	if !ok || l.cache == nil {
		return st, ok, nil
	}

	raw, err := json.Marshal(st)
	if err == nil {
		err = l.cache.Set(ctx, key, string(raw))
	}
	if err != nil {
		l.log.WithError(err).Warn("return-status cache write failed")
	}
	return st, true, nil
}
