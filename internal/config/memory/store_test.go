package memory

import (
	"context"
	"testing"

	"github.com/geeooff/iis-log-rotator/internal/config"
	"github.com/geeooff/iis-log-rotator/internal/config/storetest"
	"github.com/geeooff/iis-log-rotator/internal/retention"
)

func TestConformance(t *testing.T) {
	storetest.TestStore(t, func(t *testing.T) config.Store {
		return NewStore()
	})
}

func TestGetReturnsCopies(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if err := s.PutPolicy(ctx, "W3SVC1", retention.Policy{Delete: true, DeleteAfterDays: 3}); err != nil {
		t.Fatal(err)
	}
	p, _ := s.GetPolicy(ctx, "W3SVC1")
	p.DeleteAfterDays = 99

	all, _ := s.ListPolicies(ctx)
	all["W3SVC2"] = retention.Policy{}

	again, _ := s.GetPolicy(ctx, "W3SVC1")
	if again.DeleteAfterDays != 3 {
		t.Errorf("stored policy mutated through Get: %+v", again)
	}
	if got, _ := s.GetPolicy(ctx, "W3SVC2"); got != nil {
		t.Error("stored policies mutated through List")
	}
}
