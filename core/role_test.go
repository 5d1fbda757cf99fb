package core

import (
	"testing"
	"time"
)

func TestDefaultFailurePolicy(t *testing.T) {
	tests := []struct {
		role Role
		want FailurePolicy
	}{
		{RoleMain, PolicyEscalate},
		{RoleSimulation, PolicyLogAndContinue},
		{RoleIO, PolicyLogAndContinue},
		{RoleWorker, PolicyLogAndContinue},
	}
	for _, tt := range tests {
		if got := DefaultFailurePolicy(tt.role); got != tt.want {
			t.Errorf("DefaultFailurePolicy(%v) = %v, want %v", tt.role, got, tt.want)
		}
	}
}

// TestBuildRoleOptions verifies defaults and overrides
func TestBuildRoleOptions(t *testing.T) {
	o := buildRoleOptions(RoleIO, nil)
	if o.name != "io" || o.policy != PolicyLogAndContinue || o.interval != 0 {
		t.Errorf("defaults = %+v", o)
	}

	o = buildRoleOptions(RoleMain, []RoleOption{
		WithName("render"),
		WithFailurePolicy(PolicyLogAndContinue),
		WithTickInterval(16 * time.Millisecond),
		nil,
	})
	if o.name != "render" || o.policy != PolicyLogAndContinue || o.interval != 16*time.Millisecond {
		t.Errorf("overrides = %+v", o)
	}
}

func TestRoleAndStateStrings(t *testing.T) {
	if RoleSimulation.String() != "simulation" || Role(9).String() != "role(9)" {
		t.Errorf("Role strings: %s, %s", RoleSimulation, Role(9))
	}
	if PolicyEscalate.String() != "escalate" {
		t.Errorf("PolicyEscalate = %s", PolicyEscalate)
	}
	if StateEmergencyStop.String() != "emergency_stop" || State(99).String() != "unknown" {
		t.Errorf("State strings: %s, %s", StateEmergencyStop, State(99))
	}
}
