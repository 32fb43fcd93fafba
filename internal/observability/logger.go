package observability

import (
	"fmt"

	"github.com/rcanpahali/BirdNet/internal/logger"
)

func getLogger() logger.Logger {
	return logger.Global().Module("metrics")
}

// promErrorLog forwards promhttp handler errors to the module logger.
type promErrorLog struct{}

func (promErrorLog) Println(v ...any) {
	getLogger().Error("metrics handler error", logger.String("detail", fmt.Sprint(v...)))
}
