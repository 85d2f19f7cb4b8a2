package service

import (
	"context"
	"errors"

	"github.com/MikeSquared-Agency/veilmatch/internal/bus"
	"github.com/MikeSquared-Agency/veilmatch/internal/sentinel"
)

// HandleTrustSignal is the NATS handler for veil.trust.signal. Signals for
// unknown users are dropped.
func (s *Service) HandleTrustSignal(subject string, data []byte) {
	sig, err := bus.ParseTrustSignal(data)
	if err != nil {
		s.metrics.IncrementTrustSignal("rejected")
		s.logger.Warn("failed to parse trust signal", "subject", subject, "error", err)
		return
	}

	change, err := s.ApplyActions(context.Background(), sig.UserID, sig.Tally)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncrementTrustSignal("dropped")
			s.logger.Warn("trust signal for unknown user", "user_id", sig.UserID)
			return
		}
		s.metrics.IncrementTrustSignal("failed")
		s.logger.Error("failed to apply trust signal", "user_id", sig.UserID, "error", err)
		return
	}

	s.metrics.IncrementTrustSignal("applied")
	s.logger.Debug("trust signal applied",
		"user_id", change.UserID,
		"from", change.From,
		"to", change.To,
	)
}
