package parking

import "testing"

func TestActionText(t *testing.T) {
	held := Slot{Number: 1, IsOccupied: true, UserID: "u1", OccupiedBy: "alice"}
	free := Slot{Number: 2}
	owner := Identity{UserID: "u1", Username: "alice"}
	other := Identity{UserID: "u2", Username: "bob"}

	cases := []struct {
		name string
		slot Slot
		id   Identity
		want string
	}{
		{"anonymous", free, Identity{}, "Login required"},
		{"free slot", free, other, "Tap to book"},
		{"own slot", held, owner, "Tap to release"},
		{"someone else's slot", held, other, "Occupied"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ActionText(tc.slot, tc.id); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
			canInteract := tc.want == "Tap to book" || tc.want == "Tap to release"
			if got := CanInteract(tc.slot, tc.id); got != canInteract {
				t.Errorf("CanInteract = %v, want %v", got, canInteract)
			}
		})
	}
}

func TestUserSlots(t *testing.T) {
	slots := []Slot{
		{Number: 1, IsOccupied: true, UserID: "u1"},
		{Number: 2},
		{Number: 3, IsOccupied: true, UserID: "u2"},
		{Number: 4, IsOccupied: true, UserID: "u1"},
	}

	mine := UserSlots(slots, Identity{UserID: "u1"})
	if len(mine) != 2 || mine[0].Number != 1 || mine[1].Number != 4 {
		t.Errorf("wrong slots for u1: %+v", mine)
	}
	if got := UserSlots(slots, Identity{}); got != nil {
		t.Errorf("anonymous viewer should get nil, got %+v", got)
	}
}

func TestIsAdminUsername_CaseInsensitive(t *testing.T) {
	for _, name := range []string{"admin", "Admin", "ADMIN", "aDmIn"} {
		if !IsAdminUsername(name, "admin") {
			t.Errorf("%q should match the reserved admin name", name)
		}
	}
	for _, name := range []string{"administrator", "adm1n", "", " admin"} {
		if IsAdminUsername(name, "admin") {
			t.Errorf("%q should not match the reserved admin name", name)
		}
	}
}
