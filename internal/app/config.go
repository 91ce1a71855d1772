package app

import (
	"github.com/harborpoint/dealflow-backend/internal/logger"
	"github.com/harborpoint/dealflow-backend/internal/utils"
)

type Config struct {
	JWTSecretKey    string
	EnablePoller    bool
	ReviewThreshold float64
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		JWTSecretKey:    utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log),
		EnablePoller:    utils.GetEnvAsInt("POLL_ENABLED", 1, log) != 0,
		ReviewThreshold: utils.GetEnvAsFloat("TRIAGE_REVIEW_THRESHOLD", 0.7, log),
	}
}
