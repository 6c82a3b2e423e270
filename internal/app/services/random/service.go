package random

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/catalog"
	"github.com/Aromatic05/CurioBox-sub000/pkg/logger"
)

// ErrNothingToDraw is returned when no row of a probability table is
// eligible: every item is out of stock or weighted at zero.
var ErrNothingToDraw = errors.New("nothing to draw")

// Source yields uniform floats in [0, 1).
type Source interface {
	Float64() (float64, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() (float64, error)

func (f SourceFunc) Float64() (float64, error) { return f() }

type cryptoSource struct{}

// Float64 builds a 53-bit mantissa from crypto/rand.
func (cryptoSource) Float64() (float64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("read randomness: %w", err)
	}
	return float64(binary.BigEndian.Uint64(buf[:])>>11) / (1 << 53), nil
}

// Service performs weighted draws over box probability tables.
type Service struct {
	log *logger.Logger
	src Source
}

// Option configures the service.
type Option func(*Service)

// WithSource overrides the randomness source.
func WithSource(src Source) Option {
	return func(s *Service) {
		if src != nil {
			s.src = src
		}
	}
}

// New constructs a random service backed by crypto/rand.
func New(log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewDefault("random")
	}
	svc := &Service{log: log, src: cryptoSource{}}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Float64 returns a uniform value in [0, 1).
func (s *Service) Float64() (float64, error) {
	v, err := s.src.Float64()
	if err != nil {
		return 0, err
	}
	if v < 0 || v >= 1 {
		return 0, fmt.Errorf("random source returned %v outside [0,1)", v)
	}
	return v, nil
}

// Draw picks one entry with probability proportional to its weight. Entries
// that are out of stock or have a non-positive weight never win.
func (s *Service) Draw(entries []catalog.DrawEntry) (catalog.DrawEntry, error) {
	eligible := make([]catalog.DrawEntry, 0, len(entries))
	var total float64
	for _, e := range entries {
		if e.Weight <= 0 || e.Stock <= 0 {
			continue
		}
		eligible = append(eligible, e)
		total += e.Weight
	}
	if len(eligible) == 0 {
		return catalog.DrawEntry{}, ErrNothingToDraw
	}

	r, err := s.Float64()
	if err != nil {
		return catalog.DrawEntry{}, err
	}
	target := r * total
	var cumulative float64
	for _, e := range eligible {
		cumulative += e.Weight
		if cumulative > target {
			s.log.Debugf("drew %s (r=%.4f, total=%.4f)", e.ItemID, r, total)
			return e, nil
		}
	}
	// float rounding can leave target == total
	return eligible[len(eligible)-1], nil
}
