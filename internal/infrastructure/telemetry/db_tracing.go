package telemetry

import (
	"fmt"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/channelsync/backend/internal/infrastructure/config"
)

// RegisterDBTracing installs the otelgorm plugin so repository queries
// show up as child spans of the request or sync run that issued them.
// Query variables are excluded from the recorded statements.
func RegisterDBTracing(db *gorm.DB, cfg config.TelemetryConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		logger.Debug("Telemetry disabled, skipping database tracing")
		return nil
	}

	plugin := otelgorm.NewPlugin(
		otelgorm.WithDBName("postgres"),
		otelgorm.WithoutQueryVariables(),
	)
	if err := db.Use(plugin); err != nil {
		return fmt.Errorf("failed to register database tracing: %w", err)
	}

	logger.Info("Database tracing enabled")
	return nil
}
