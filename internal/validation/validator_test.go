package validation

import (
	"strings"
	"testing"
)

type sample struct {
	ID    string `validate:"required"`
	Port  int    `validate:"min=1,max=65535"`
	Scope string `validate:"oneof=global quest_template"`
	IP    string `validate:"omitempty,ip"`
}

func TestStruct(t *testing.T) {
	cases := []struct {
		in   sample
		want string
	}{
		{sample{Port: 22, Scope: "global"}, "sample.ID: field is required"},
		{sample{ID: "a", Port: 70000, Scope: "global"}, "sample.Port: must not exceed 65535"},
		{sample{ID: "a", Port: 22, Scope: "moon"}, "sample.Scope: must be one of [global quest_template], got moon"},
		{sample{ID: "a", Port: 22, Scope: "global", IP: "10.0.0"}, "sample.IP: 10.0.0 is not an IP address"},
	}
	for _, tc := range cases {
		err := Struct(tc.in)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("Struct(%+v) = %v, want %q", tc.in, err, tc.want)
		}
	}
	if err := Struct(sample{ID: "a", Port: 22, Scope: "global", IP: "10.0.0.1"}); err != nil {
		t.Fatalf("Struct returned %v for a valid value", err)
	}
}
