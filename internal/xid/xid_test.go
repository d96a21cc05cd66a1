package xid

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestNewKeepsPrefixAndIsUnique(t *testing.T) {
	a := New("tx")
	b := New("tx")
	if !strings.HasPrefix(a, "tx-") {
		t.Fatalf("expected tx- prefix, got %q", a)
	}
	if a == b {
		t.Fatalf("expected distinct ids, got %q twice", a)
	}
}

func TestTransactionNumberFormat(t *testing.T) {
	at := time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC)
	number := TransactionNumber(at)

	pattern := regexp.MustCompile(`^INV-20240305140709-[0-9A-F]{8}$`)
	if !pattern.MatchString(number) {
		t.Fatalf("unexpected number format %q", number)
	}
}
