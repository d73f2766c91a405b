package gpu

import (
	"log/slog"

	"github.com/gogpu/cellgrid"
)

// slogger returns the shared cellgrid logger.
// All logging in internal/gpu goes through this function.
func slogger() *slog.Logger { return cellgrid.Logger() }
