package models

import "testing"

func TestMembershipStatusValid(t *testing.T) {
	for _, s := range []MembershipStatus{StatusPending, StatusApproved, StatusRejected} {
		if !s.Valid() {
			t.Errorf("%q reported invalid", s)
		}
	}
	for _, s := range []MembershipStatus{"", "none", "Approved"} {
		if s.Valid() {
			t.Errorf("%q reported valid", s)
		}
	}
}
