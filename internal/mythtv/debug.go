package mythtv

import (
	"log"
	"os"
)

// Debug enables request tracing. Set from MYTHTV_DEBUG at startup.
var Debug = os.Getenv("MYTHTV_DEBUG") == "true"

// Debugf logs only when Debug is set
func Debugf(format string, args ...interface{}) {
	if Debug {
		log.Printf(format, args...)
	}
}
