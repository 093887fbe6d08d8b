package transaction

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateReference returns MSIG<unix nanos><8 hex chars>. The random
// suffix keeps references distinct when two are minted in the same
// nanosecond; callers still retry on a uniqueness violation.
func GenerateReference() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s%d%s", ReferencePrefix, time.Now().UnixNano(), strings.ToUpper(suffix))
}
