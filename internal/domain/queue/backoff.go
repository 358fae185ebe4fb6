package queue

import (
	"math"
	"math/rand/v2"
	"time"
)

// Config — политика повторов.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// Jitter — доля случайного разброса задержки, 0..1.
	Jitter float64
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:     5,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     5 * time.Minute,
		Multiplier:     2,
		Jitter:         0.1,
	}
}

// Backoff возвращает задержку перед попыткой номер attempt (с единицы).
func (c Config) Backoff(attempt int) time.Duration {
	if attempt < 1 || c.InitialBackoff <= 0 {
		return 0
	}
	mult := c.Multiplier
	if mult < 1 {
		mult = 1
	}

	d := float64(c.InitialBackoff) * math.Pow(mult, float64(attempt-1))
	if c.MaxBackoff > 0 && d > float64(c.MaxBackoff) {
		d = float64(c.MaxBackoff)
	}
	if c.Jitter > 0 {
		d += d * c.Jitter * (rand.Float64()*2 - 1)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}
