package application

import (
	"testing"

	"go.uber.org/goleak"
)

// Every test drains its notification goroutines through AuthService.Wait.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
