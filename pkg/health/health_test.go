package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckerAggregates(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]Check
		want   Status
	}{
		{
			name: "all up",
			checks: map[string]Check{
				"index": CountCheck("documents", func() int { return 3 }),
			},
			want: StatusUp,
		},
		{
			name: "optional dependency failing",
			checks: map[string]Check{
				"index": CountCheck("documents", func() int { return 3 }),
				"redis": PingCheck(func(context.Context) error { return errors.New("refused") }, true),
			},
			want: StatusDegraded,
		},
		{
			name: "required dependency failing",
			checks: map[string]Check{
				"index":    CountCheck("documents", func() int { return 0 }),
				"postgres": PingCheck(func(context.Context) error { return nil }, false),
			},
			want: StatusDown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			for name, check := range tt.checks {
				c.Register(name, check)
			}
			if got := c.Run(context.Background()).Status; got != tt.want {
				t.Errorf("status = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.Register("index", CountCheck("documents", func() int { return 0 }))
	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
