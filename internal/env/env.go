package env

import (
	"github.com/thatsimonsguy/tank-controller/internal/config"
)

// Cfg is set once in main before any goroutine starts and is read-only after.
var Cfg *config.Config
