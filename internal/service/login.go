package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"git.sr.ht/~jakintosh/authcode/pkg/authcode"
)

/*
BeginLogin builds an authorization URL for conn and records the state it
carries so the callback can be matched to it.

Configuration problems are returned as a *authcode.ConfigurationError.
*/
func (s *Service) BeginLogin(conn authcode.Connection) (string, error) {
	req, err := s.Exchanger().AuthorizationRequest(conn)
	if err != nil {
		return "", err
	}

	now := time.Now()
	if err := s.states.InsertState(req.State, now, now.Add(s.stateTTL)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInternal, err)
	}

	return req.URL, nil
}

/*
CompleteLogin consumes state and exchanges code for a token. An unknown,
expired, or already used state returns [ErrStateInvalid] without contacting
the token endpoint.

Unlike the exchanger, a response without an access token is an error here:
[authcode.ErrMissingAccessToken].
*/
func (s *Service) CompleteLogin(
	ctx context.Context,
	code string,
	state string,
) (
	*authcode.Token,
	error,
) {
	valid, err := s.states.ConsumeState(state, time.Now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if !valid {
		s.logger.Warn("login callback with invalid state")
		return nil, ErrStateInvalid
	}

	token, err := s.Exchanger().Exchange(ctx, authcode.Options{Code: code})
	if err != nil {
		return nil, err
	}
	if err := token.Validate(); err != nil {
		return nil, err
	}

	s.logger.Debug("login completed", zap.Time("expiry", token.Expiry))
	return token, nil
}

// PurgeExpiredStates drops states that were never returned before expiring.
func (s *Service) PurgeExpiredStates() (int64, error) {
	count, err := s.states.PurgeExpiredStates(time.Now())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return count, nil
}
