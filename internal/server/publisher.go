package server

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"MintVault/internal/effect"
	"MintVault/internal/observability"
)

// EffectSubjectPrefix is the NATS subject root for outbound effects;
// instructions publish to mint.effects.{kind}.
const EffectSubjectPrefix = "mint.effects"

// NATSPublisher publishes effect instructions for the host's effect
// executors. Publishing is best-effort: the authoritative operation result
// is the HTTP response, and a lost publish only delays execution until the
// instruction is re-read from the response.
type NATSPublisher struct {
	nc      *nats.Conn
	log     zerolog.Logger
	metrics *observability.Metrics
}

// NewNATSPublisher wraps an established NATS connection.
func NewNATSPublisher(nc *nats.Conn, metrics *observability.Metrics) *NATSPublisher {
	return &NATSPublisher{
		nc:      nc,
		log:     observability.NewLogger("publisher"),
		metrics: metrics,
	}
}

// Publish sends each instruction to its kind-specific subject.
func (p *NATSPublisher) Publish(instructions []effect.Instruction) {
	for _, inst := range instructions {
		kind := string(inst.Kind())
		data, err := json.Marshal(effectEnvelope{Kind: inst.Kind(), Instruction: inst})
		if err != nil {
			p.metrics.EffectPublishErr.WithLabelValues(kind).Inc()
			p.log.Error().Err(err).Str("kind", kind).Msg("marshal effect")
			continue
		}

		subject := fmt.Sprintf("%s.%s", EffectSubjectPrefix, kind)
		if err := p.nc.Publish(subject, data); err != nil {
			p.metrics.EffectPublishErr.WithLabelValues(kind).Inc()
			p.log.Warn().Err(err).
				Str("kind", kind).
				Str("id", inst.InstructionID().String()).
				Msg("effect publish failed")
			continue
		}
		p.metrics.EffectsEmitted.WithLabelValues(kind).Inc()
	}
}
