package xid

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

func New(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

// TransactionNumber returns a human-facing number of the form
// INV-YYYYMMDDHHMMSS-XXXXXXXX using the first group of a random UUID.
func TransactionNumber(at time.Time) string {
	head, _, _ := strings.Cut(uuid.NewString(), "-")
	return fmt.Sprintf("INV-%s-%s", at.Format("20060102150405"), strings.ToUpper(head))
}
