package auth

import (
	"errors"
	"testing"
)

func TestCheckRole(t *testing.T) {
	admin := &Identity{UserID: "u1", Role: RoleAdmin}
	customer := &Identity{UserID: "u2", Role: RoleCustomer}

	cases := []struct {
		name    string
		id      *Identity
		allowed []Role
		wantErr bool
	}{
		{"admin allowed", admin, []Role{RoleAdmin}, false},
		{"one of many", customer, []Role{RoleAdmin, RoleCustomer}, false},
		{"wrong role", customer, []Role{RoleAdmin}, true},
		{"absent identity", nil, []Role{RoleAdmin, RoleCustomer, RoleDelivery}, true},
		{"blank user", &Identity{Role: RoleAdmin}, []Role{RoleAdmin}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CheckRole(tc.id, tc.allowed...)
			if tc.wantErr {
				if !errors.Is(err, ErrForbidden) {
					t.Fatalf("want ErrForbidden, got %v", err)
				}
				if got != nil {
					t.Fatalf("identity should be nil on failure")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.id {
				t.Fatalf("CheckRole should return the same identity")
			}
		})
	}
}

func TestRoleValid(t *testing.T) {
	if !RoleDelivery.Valid() || Role("root").Valid() {
		t.Fatalf("role validation wrong")
	}
}
