package repository

import (
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mansoorceksport/imagedrop/internal/config"
	"github.com/oklog/ulid/v2"
)

const maxExtLen = 10

// NameGenerator produces the id part of a stored file name
type NameGenerator interface {
	NewID() string
}

// NameGeneratorFunc adapts a plain function to NameGenerator
type NameGeneratorFunc func() string

func (f NameGeneratorFunc) NewID() string { return f() }

// NewNameGenerator returns the generator for a configured strategy
func NewNameGenerator(strategy string) (NameGenerator, error) {
	switch strategy {
	case config.NameStrategyUUID, "":
		return NameGeneratorFunc(uuid.NewString), nil
	case config.NameStrategyULID:
		// ulid.Make is safe for concurrent use and monotonic within a millisecond
		return NameGeneratorFunc(func() string { return ulid.Make().String() }), nil
	case config.NameStrategyTimestamp:
		return NameGeneratorFunc(timestampID), nil
	default:
		return nil, fmt.Errorf("unknown name strategy %q", strategy)
	}
}

// timestampID is "<unix millis>-<0..1e9>". Two calls in the same
// millisecond collide with probability 1e-9; disk writes use O_EXCL so a
// collision fails instead of overwriting.
func timestampID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixMilli(), rand.IntN(1e9+1))
}

// StoredName joins a generated id with the sanitized extension of the
// client's filename.
func StoredName(gen NameGenerator, originalName string) string {
	return gen.NewID() + sanitizeExt(originalName)
}

// sanitizeExt keeps the extension only if it is short and alphanumeric,
// so a client filename can never inject path separators into the name.
func sanitizeExt(originalName string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	if len(ext) < 2 || len(ext) > maxExtLen+1 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
