package constants

import "testing"

func TestKeyBuilders(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{BuildFlightSeatsKey(3), "topgun:seats:list:flight:3"},
		{BuildPaymentListKey("alice"), "topgun:payments:list:user:alice"},
		{BuildPaymentTotalsKey("alice"), "topgun:payments:totals:user:alice"},
		{BuildHeaderLockKey(42), "topgun:payments:lock:header:42"},
		{BuildRoomMembersKey(1), "topgun:chat:members:room:1"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}
