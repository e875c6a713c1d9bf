package training

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const jobNameTimeFormat = "2006-01-02-15-04-05"

// JobName builds a globally unique job name from a fixed prefix, a
// second-granularity UTC timestamp, and a short random token. The timestamp
// keeps names human-scannable in the service console; the token closes the
// same-second collision window.
func JobName(prefix string, now time.Time) string {
	token := uuid.NewString()[:6]
	return fmt.Sprintf("%s-%s-%s", prefix, now.UTC().Format(jobNameTimeFormat), token)
}
