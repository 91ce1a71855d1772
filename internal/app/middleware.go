package app

import (
	"github.com/harborpoint/dealflow-backend/internal/logger"
	"github.com/harborpoint/dealflow-backend/internal/middleware"
)

type Middleware struct {
	Auth *middleware.AuthMiddleware
}

func wireMiddleware(log *logger.Logger) Middleware {
	return Middleware{
		Auth: middleware.NewAuthMiddleware(log),
	}
}
