package validator

import "testing"

func TestVar(t *testing.T) {
	val := New()

	if err := val.Var("a1b2c3", "hexadecimal"); err != nil {
		t.Fatalf("expected hex value to pass: %v", err)
	}
	if err := val.Var("not hex", "hexadecimal"); err == nil {
		t.Fatal("expected non-hex value to fail")
	}
}

func TestIsEmail(t *testing.T) {
	val := New()

	cases := []struct {
		value string
		want  bool
	}{
		{"jane@example.com", true},
		{"jane+tag@example.co.uk", true},
		{"", false},
		{"not-an-email", false},
		{"jane@", false},
	}
	for _, c := range cases {
		if got := val.IsEmail(c.value); got != c.want {
			t.Fatalf("IsEmail(%q) = %v, want %v", c.value, got, c.want)
		}
	}
}

func TestStruct(t *testing.T) {
	val := New()

	type payload struct {
		Sender string `validate:"required,min=1"`
	}
	if err := val.Struct(payload{Sender: "+14155551234"}); err != nil {
		t.Fatalf("expected valid struct to pass: %v", err)
	}
	if err := val.Struct(payload{}); err == nil {
		t.Fatal("expected missing sender to fail")
	}
}
