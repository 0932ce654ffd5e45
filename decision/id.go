package decision

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const idSuffixLen = 9

// NewDecisionID returns "decision-<unix millis>-<random base36>". The random
// suffix makes collisions within the same millisecond unlikely.
func NewDecisionID(now time.Time) string {
	u := uuid.New()
	suffix := strconv.FormatUint(binary.BigEndian.Uint64(u[:8]), 36)
	if len(suffix) > idSuffixLen {
		suffix = suffix[:idSuffixLen]
	} else {
		suffix = strings.Repeat("0", idSuffixLen-len(suffix)) + suffix
	}
	return fmt.Sprintf("decision-%d-%s", now.UnixMilli(), suffix)
}
