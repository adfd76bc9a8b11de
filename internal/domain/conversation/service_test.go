package conversation

import "testing"

func TestKeyForIgnoresParticipantOrder(t *testing.T) {
	anchor := Anchor{PostingID: "7"}

	if KeyFor("userA", "userB", anchor) != KeyFor("userB", "userA", anchor) {
		t.Fatal("key depends on participant order")
	}
	if KeyFor("userA", "userB", anchor) == KeyFor("userA", "userB", Direct()) {
		t.Fatal("posting and direct sessions share a key")
	}
	if PairKey("userA", "userB") != PairKey("userB", "userA") {
		t.Fatal("pair key depends on participant order")
	}
}

func TestKeysDoNotCollideOnSeparators(t *testing.T) {
	tests := []struct {
		a, b [2]string
	}{
		{[2]string{"a|b", "c"}, [2]string{"a", "b|c"}},
		{[2]string{"a#b", "c"}, [2]string{"a", "b#c"}},
		{[2]string{"1:a", "b"}, [2]string{"1", "a|b"}},
	}

	for _, tt := range tests {
		ka := KeyFor(tt.a[0], tt.a[1], Direct())
		kb := KeyFor(tt.b[0], tt.b[1], Direct())
		if ka == kb {
			t.Errorf("session keys collide for %v and %v", tt.a, tt.b)
		}
		if ka.String() == kb.String() {
			t.Errorf("key strings collide for %v and %v: %s", tt.a, tt.b, ka)
		}
		if PairKey(tt.a[0], tt.a[1]) == PairKey(tt.b[0], tt.b[1]) {
			t.Errorf("pair keys collide for %v and %v", tt.a, tt.b)
		}
	}

	if got := PairKey("userB", "userA"); got != "5:userA|userB" {
		t.Errorf("PairKey = %q", got)
	}
}
