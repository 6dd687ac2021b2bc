package pipeline

import (
	"context"
	"strings"
	"testing"
)

func TestComposeAppendsDisclaimerWithOneBlankLine(t *testing.T) {
	r := NewReplier(fixedGen("Happy to help with your visa question."), testLog)

	got := r.Compose(context.Background(), ReplyInput{Body: "visa?", Intent: "study_visa"})
	want := "Happy to help with your visa question.\n\n" + replyDisclaimer
	if got != want {
		t.Fatalf("unexpected reply:\n%q\nwant:\n%q", got, want)
	}
}

func TestComposeFallsBackWhenUnavailable(t *testing.T) {
	r := NewReplier(downGen(), testLog)

	got := r.Compose(context.Background(), ReplyInput{Body: "visa?", Intent: "study_visa"})
	if !strings.HasPrefix(got, fallbackReply) {
		t.Fatalf("expected fallback body, got %q", got)
	}
	if !strings.HasSuffix(got, replyDisclaimer) {
		t.Fatalf("expected disclaimer suffix, got %q", got)
	}
}

func TestComposeAsksForMissingFields(t *testing.T) {
	r := NewReplier(fixedGen("Thanks for the details, we can definitely assist."), testLog)

	got := r.Compose(context.Background(), ReplyInput{
		Body:         "ready to proceed",
		Intent:       "study_visa",
		Qualified:    true,
		MissingName:  true,
		MissingEmail: true,
	})

	if !strings.Contains(got, "Could you share your full name?") {
		t.Fatalf("expected name ask, got %q", got)
	}
	if !strings.Contains(got, "Could you share your email address?") {
		t.Fatalf("expected email ask, got %q", got)
	}
	nameIdx := strings.Index(got, "full name")
	emailIdx := strings.Index(got, "email address")
	if nameIdx > emailIdx {
		t.Fatal("expected name ask before email ask")
	}
	discIdx := strings.Index(got, replyDisclaimer)
	if discIdx < emailIdx {
		t.Fatal("expected disclaimer after the asks")
	}
}

func TestComposeSkipsAsksAlreadyPresent(t *testing.T) {
	r := NewReplier(fixedGen("Thanks! Could you tell me your name and email so we can follow up?"), testLog)

	got := r.Compose(context.Background(), ReplyInput{
		Body:         "ready",
		Intent:       "study_visa",
		Qualified:    true,
		MissingName:  true,
		MissingEmail: true,
	})

	if strings.Contains(got, "Could you share your full name?") {
		t.Fatalf("expected no duplicate name ask, got %q", got)
	}
	if strings.Contains(got, "Could you share your email address?") {
		t.Fatalf("expected no duplicate email ask, got %q", got)
	}
}

func TestComposeNoAsksWhenNotQualified(t *testing.T) {
	r := NewReplier(fixedGen("Here is what we offer."), testLog)

	got := r.Compose(context.Background(), ReplyInput{
		Body:         "what do you do?",
		Intent:       "services_question",
		MissingName:  true,
		MissingEmail: true,
	})
	if strings.Contains(got, "Could you share") {
		t.Fatalf("expected no asks for unqualified sender, got %q", got)
	}
}

func TestFinishReplySanitizesGeneratedBody(t *testing.T) {
	raw := "```\nFirst paragraph.\r\n\r\n\r\n\r\nSecond paragraph.\n```\n"
	got := finishReply(raw, ReplyInput{})
	want := "First paragraph.\n\nSecond paragraph.\n\n" + replyDisclaimer
	if got != want {
		t.Fatalf("unexpected reply:\n%q\nwant:\n%q", got, want)
	}
}

func TestFinishReplyBlankBodyUsesFallback(t *testing.T) {
	got := finishReply("   \n\n  ", ReplyInput{})
	if !strings.HasPrefix(got, fallbackReply) {
		t.Fatalf("expected fallback body, got %q", got)
	}
}

func TestReplyInstructionSelection(t *testing.T) {
	if got := replyInstruction(ReplyInput{}); got != replyInformativeInstruction {
		t.Fatal("expected informative instruction for unqualified input")
	}
	if got := replyInstruction(ReplyInput{Qualified: true}); got != replyQualifiedCompleteInstruction {
		t.Fatal("expected complete-contact instruction when nothing is missing")
	}
	got := replyInstruction(ReplyInput{Qualified: true, MissingName: true, MissingEmail: true})
	if !strings.Contains(got, "full name and email address") {
		t.Fatalf("expected both fields in instruction, got %q", got)
	}
	got = replyInstruction(ReplyInput{Qualified: true, MissingEmail: true})
	if !strings.Contains(got, "email address") || strings.Contains(got, "full name") {
		t.Fatalf("expected only email in instruction, got %q", got)
	}
}
