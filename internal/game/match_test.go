package game

import "testing"

func TestUniqueMatch(t *testing.T) {
	names := []string{"relay.atlas.net", "Relic Vault", "mail-gw"}
	cases := []struct {
		target     string
		matchParts bool
		want       int
		ok         bool
	}{
		{"relay.atlas.net", false, 0, true},
		{"RELAY", false, 0, true},
		{"rel", false, -1, false},
		{"atlas", false, -1, false},
		{"atlas", true, 0, true},
		{"gw", true, 2, true},
		{"", true, -1, false},
		{"nope", true, -1, false},
	}
	for _, tc := range cases {
		got, ok := UniqueMatch(tc.target, names, tc.matchParts)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("UniqueMatch(%q, %v) = %d, %v; want %d, %v", tc.target, tc.matchParts, got, ok, tc.want, tc.ok)
		}
	}
}
