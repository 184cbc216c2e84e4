package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(id int64) *int64 { return &id }

func TestCanSee(t *testing.T) {
	global := Event{ID: 1, Type: EventNotification}
	subject42 := Event{ID: 2, Type: EventGradeUpdate, SubjectID: ptr(42)}

	tests := []struct {
		name     string
		identity Identity
		event    Event
		want     bool
	}{
		{"admin sees global", Identity{UserID: 1, Role: RoleAdmin}, global, true},
		{"admin sees any subject", Identity{UserID: 1, Role: RoleAdmin}, subject42, true},
		{"staff sees global", Identity{UserID: 2, Role: RoleStaff}, global, true},
		{"staff sees any subject", Identity{UserID: 2, Role: RoleStaff}, subject42, true},
		{"cadet sees global", Identity{UserID: 3, Role: RoleCadet, CadetID: ptr(7)}, global, true},
		{"cadet sees own subject", Identity{UserID: 3, Role: RoleCadet, CadetID: ptr(42)}, subject42, true},
		{"cadet blind to other subject", Identity{UserID: 3, Role: RoleCadet, CadetID: ptr(7)}, subject42, false},
		{"cadet without id blind to subject", Identity{UserID: 3, Role: RoleCadet}, subject42, false},
		{"unknown role sees nothing", Identity{UserID: 4, Role: "auditor"}, global, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.identity.CanSee(tt.event))
		})
	}
}

func TestStaff(t *testing.T) {
	assert.True(t, Identity{Role: RoleAdmin}.Staff())
	assert.True(t, Identity{Role: RoleStaff}.Staff())
	assert.False(t, Identity{Role: RoleCadet, CadetID: ptr(1)}.Staff())
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleStaff.Valid())
	assert.True(t, RoleCadet.Valid())
	assert.False(t, Role("superuser").Valid())
	assert.False(t, Role("").Valid())
}
