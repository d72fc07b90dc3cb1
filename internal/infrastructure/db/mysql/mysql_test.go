package mysql

import (
	"errors"
	"fmt"
	"testing"

	driver "github.com/go-sql-driver/mysql"
)

func TestIsDuplicateKeyError(t *testing.T) {
	dup := &driver.MySQLError{Number: 1062, Message: "Duplicate entry 'alice' for key 'username'"}
	other := &driver.MySQLError{Number: 1146, Message: "Table 'chat.users' doesn't exist"}

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"duplicate", dup, true},
		{"wrapped duplicate", fmt.Errorf("insert: %w", dup), true},
		{"other mysql error", other, false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isDuplicateKeyError(tc.err); got != tc.want {
				t.Fatalf("isDuplicateKeyError(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestConnect_RejectsBadDSN(t *testing.T) {
	if _, err := Connect(t.Context(), Config{DSN: "not a dsn"}); err == nil {
		t.Fatalf("expected an error for a malformed DSN")
	}
}
