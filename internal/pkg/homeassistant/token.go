package homeassistant

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// inspectToken warns about long-lived tokens that are malformed or expired. The
// signature cannot be checked here, home assistant does that during auth.
func (s *service) inspectToken() {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.cfg.Token, claims); err != nil {
		s.logger.Warn("access token is not a JWT", zap.Error(err))
		return
	}
	if claims.ExpiresAt == nil {
		return
	}
	if exp := claims.ExpiresAt.Time; time.Now().After(exp) {
		s.logger.Warn("access token has expired", zap.Time("expired_at", exp))
	} else {
		s.logger.Debug("access token valid", zap.Time("expires_at", exp))
	}
}
