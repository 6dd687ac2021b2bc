package pipeline

import (
	"context"
	"regexp"
	"strings"

	"leadchat_backend/platform/ai/textgen"
	"leadchat_backend/platform/logger"
)

// ReplyInput carries the post-extraction state the reply decision table
// operates on. MissingName/MissingEmail are only meaningful when Qualified.
type ReplyInput struct {
	Body         string
	Intent       string
	Qualified    bool
	MissingName  bool
	MissingEmail bool
}

// Replier composes the auto-reply for a processed message.
type Replier struct {
	gen textgen.Generator
	log *logger.Logger
}

func NewReplier(gen textgen.Generator, log *logger.Logger) *Replier {
	return &Replier{gen: gen, log: log}
}

// Compose generates the reply body for the decision-table case matching the
// input, then sanitizes and finishes it. On Unavailable the fixed courtesy
// body is used instead; Compose always returns a usable reply.
func (r *Replier) Compose(ctx context.Context, in ReplyInput) string {
	body, err := r.gen.Generate(ctx, textgen.Request{
		System: replyInstruction(in),
		User:   replyUserContent(in),
	})
	if err != nil {
		r.log.GenerationFallback("reply", "")
		body = fallbackReply
	}

	return finishReply(body, in)
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// finishReply sanitizes the generated body, makes sure any asks for missing
// fields sit after the informative content, and appends the disclaimer on
// its own paragraph separated by exactly one blank line.
func finishReply(body string, in ReplyInput) string {
	body = textgen.StripCodeFences(body)
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = blankRuns.ReplaceAllString(body, "\n\n")
	body = strings.TrimSpace(body)
	if body == "" {
		body = fallbackReply
	}

	if asks := missingFieldAsks(body, in); len(asks) > 0 {
		body = body + "\n\n" + strings.Join(asks, " ")
	}

	return body + "\n\n" + replyDisclaimer
}

// missingFieldAsks returns fixed ask sentences for qualified leads with
// missing contact fields the generated body did not already ask for.
func missingFieldAsks(body string, in ReplyInput) []string {
	if !in.Qualified {
		return nil
	}

	lower := strings.ToLower(body)
	var asks []string
	if in.MissingName && !strings.Contains(lower, "name") {
		asks = append(asks, "Could you share your full name?")
	}
	if in.MissingEmail && !strings.Contains(lower, "email") {
		asks = append(asks, "Could you share your email address?")
	}
	return asks
}
