package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger returns the process logger tagged with app.
func Logger(app string) zerolog.Logger {
	return log.Logger.With().Str("app", app).Logger()
}
