// Package level runs the periodic water-level producers. Each producer
// samples its source, stores the reading in shared state and fans it out to
// every subscriber queue without blocking.
package level

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/tank-controller/internal/gate"
	"github.com/thatsimonsguy/tank-controller/internal/gpio"
)

type LevelStore interface {
	SetLevel(percent int)
}

type Publisher interface {
	Publish(percent int)
}

// Observer is told about every published reading (metrics).
type Observer func(source string, percent int)

type Producer struct {
	Name    string
	Sampler Sampler
	Period  time.Duration
	State   LevelStore
	Bus     Publisher
	Ready   *gate.Latch
	Observe Observer
}

// Start runs the producer in its own goroutine until ctx is cancelled.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Str("source", p.Name).Msg("Level producer stopped")
		}
	}()
}

func (p *Producer) Run(ctx context.Context) error {
	if p.Ready != nil {
		if err := p.Ready.Wait(ctx); err != nil {
			return err
		}
	}
	log.Info().Str("source", p.Name).Dur("period", p.Period).Msg("Starting level producer")

	for {
		p.Step()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Period):
		}
	}
}

// Step takes one sample and publishes it. A failed sample skips the cycle.
func (p *Producer) Step() (int, bool) {
	percent, err := p.Sampler.Sample()
	if err != nil {
		if errors.Is(err, gpio.ErrNoEcho) {
			log.Debug().Str("source", p.Name).Msg("No echo, skipping cycle")
		} else {
			log.Warn().Err(err).Str("source", p.Name).Msg("Level sample failed, skipping cycle")
		}
		return 0, false
	}

	p.State.SetLevel(percent)
	p.Bus.Publish(percent)
	if p.Observe != nil {
		p.Observe(p.Name, percent)
	}
	log.Debug().Str("source", p.Name).Int("percent", percent).Msg("Published level reading")
	return percent, true
}
