package policy_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ilora-retreats/concierge/pkg/model"
	"github.com/ilora-retreats/concierge/pkg/policy"
	"github.com/m-mizutani/gt"
)

func registered() model.GuestProfile {
	return model.GuestProfile{
		Email:        "guest@example.com",
		Name:         "Asha",
		RoomAllotted: "204",
	}
}

func visitor() model.GuestProfile {
	return model.GuestProfile{
		Email: "visitor@example.com",
		Name:  "Walk-in",
	}
}

func TestDefaultPolicy(t *testing.T) {
	ctx := context.Background()
	gate, err := policy.New(ctx)
	gt.NoError(t, err)

	cases := []struct {
		category model.Intent
		profile  model.GuestProfile
		want     bool
	}{
		{model.IntentQnA, visitor(), true},
		{model.IntentMenu, visitor(), true},
		{model.IntentSmallTalk, visitor(), true},
		{model.IntentOrder, visitor(), false},
		{model.IntentServiceRequest, visitor(), false},
		{model.IntentTicket, visitor(), false},
		{model.IntentOrder, registered(), true},
		{model.IntentServiceRequest, registered(), true},
		{model.IntentTicket, registered(), true},
	}

	for _, tc := range cases {
		allowed, err := gate.Allow(ctx, tc.category, tc.profile)
		gt.NoError(t, err)
		gt.Equal(t, allowed, tc.want)
	}
}

func TestPolicyDirOverride(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	// A property that lets anyone order but never raises tickets via chat.
	custom := `package concierge.access

import rego.v1

default allow := false

allow if {
	input.category != "TICKET"
}
`
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "access.rego"), []byte(custom), 0o644))

	gate, err := policy.New(ctx, policy.WithPolicyDir(dir))
	gt.NoError(t, err)

	allowed, err := gate.Allow(ctx, model.IntentOrder, visitor())
	gt.NoError(t, err)
	gt.True(t, allowed)

	allowed, err = gate.Allow(ctx, model.IntentTicket, registered())
	gt.NoError(t, err)
	gt.False(t, allowed)
}

func TestPolicyDirEmpty(t *testing.T) {
	_, err := policy.New(context.Background(), policy.WithPolicyDir(t.TempDir()))
	gt.Error(t, err)
}
