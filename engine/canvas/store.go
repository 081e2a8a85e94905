// Package canvas holds the shared pixel canvas in memory.
package canvas

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/faultscope/faultscope/engine/domain"
)

// ErrCooldown is returned when an IP places pixels faster than allowed.
var ErrCooldown = errors.New("canvas: pixel cooldown active")

var colorRe = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Pixel is one placed cell.
type Pixel struct {
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Color     string    `json:"color"`
	Timestamp time.Time `json:"timestamp"`
	IP        string    `json:"ip"`
}

type point struct{ x, y int }

// Store keeps at most one pixel per coordinate; the last write wins.
type Store struct {
	mu       sync.Mutex
	size     int
	pixels   []Pixel
	index    map[point]int
	cooldown time.Duration
	limiters map[string]*rate.Limiter
	now      func() time.Time
}

// NewStore creates a size×size canvas. A positive cooldown limits each IP to
// one pixel per cooldown period.
func NewStore(size int, cooldown time.Duration) *Store {
	return &Store{
		size:     size,
		index:    make(map[point]int),
		cooldown: cooldown,
		limiters: make(map[string]*rate.Limiter),
		now:      time.Now,
	}
}

// Size returns the canvas edge length.
func (s *Store) Size() int { return s.size }

// Validate checks coordinates and color without touching the store.
func (s *Store) Validate(p Pixel) error {
	if p.X < 0 || p.X >= s.size {
		return domain.NewValidationError("x", fmt.Sprint(p.X), domain.ErrInvalidPixel)
	}
	if p.Y < 0 || p.Y >= s.size {
		return domain.NewValidationError("y", fmt.Sprint(p.Y), domain.ErrInvalidPixel)
	}
	if !colorRe.MatchString(p.Color) {
		return domain.NewValidationError("color", p.Color, domain.ErrInvalidPixel)
	}
	return nil
}

// Put stores p, replacing any pixel at the same coordinate. The stored pixel
// is returned with its timestamp filled in.
func (s *Store) Put(p Pixel) (Pixel, error) {
	if err := s.Validate(p); err != nil {
		return Pixel{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cooldown > 0 && !s.limiter(p.IP).AllowN(s.now(), 1) {
		return Pixel{}, ErrCooldown
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = s.now().UTC()
	}

	key := point{p.X, p.Y}
	if i, ok := s.index[key]; ok {
		s.pixels[i] = p
		return p, nil
	}
	s.index[key] = len(s.pixels)
	s.pixels = append(s.pixels, p)
	return p, nil
}

// limiter returns the per-IP limiter. Must hold mu.
func (s *Store) limiter(ip string) *rate.Limiter {
	l, ok := s.limiters[ip]
	if !ok {
		l = rate.NewLimiter(rate.Every(s.cooldown), 1)
		s.limiters[ip] = l
	}
	return l
}

// All returns a snapshot of every pixel.
func (s *Store) All() []Pixel {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Pixel, len(s.pixels))
	copy(out, s.pixels)
	return out
}

// Len returns the number of painted coordinates.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pixels)
}
