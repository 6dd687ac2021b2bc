package phone

import "testing"

func TestNormalizeSenderKeyFormatsVariantsToE164(t *testing.T) {
	variants := []string{
		"+1 202 555 0187",
		"(202) 555-0187",
		"202-555-0187",
		"12025550187",
	}
	for _, v := range variants {
		if got := NormalizeSenderKey(v, "US"); got != "+12025550187" {
			t.Fatalf("NormalizeSenderKey(%q) = %q, want +12025550187", v, got)
		}
	}
}

func TestNormalizeSenderKeyRespectsRegion(t *testing.T) {
	if got := NormalizeSenderKey("020 7946 0958", "GB"); got != "+442079460958" {
		t.Fatalf("got %q, want +442079460958", got)
	}
}

func TestNormalizeSenderKeyPassesThroughNonPhoneIdentifiers(t *testing.T) {
	cases := []string{
		"user@example.com",
		"webchat:session-42",
		"not a number",
	}
	for _, c := range cases {
		if got := NormalizeSenderKey(c, "US"); got != c {
			t.Fatalf("NormalizeSenderKey(%q) = %q, want pass-through", c, got)
		}
	}
}

func TestNormalizeSenderKeyTrimsWhitespace(t *testing.T) {
	if got := NormalizeSenderKey("  webchat:session-42  ", "US"); got != "webchat:session-42" {
		t.Fatalf("got %q", got)
	}
	if got := NormalizeSenderKey("   ", "US"); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
}

func TestNormalizeSenderKeyRejectsInvalidNumbers(t *testing.T) {
	// Parses as a number but fails validation, so it passes through.
	if got := NormalizeSenderKey("+1 234", "US"); got != "+1 234" {
		t.Fatalf("got %q, want pass-through", got)
	}
}
