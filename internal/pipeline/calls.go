package pipeline

import (
	"context"
	"strings"

	"leadchat_backend/platform/ai/textgen"
	"leadchat_backend/platform/logger"
	"leadchat_backend/platform/validator"
)

// The four call-sites share one pattern: a fixed instruction, a fixed
// expected shape, and a fixed fallback when the generation client resolves
// to Unavailable or the returned shape does not parse. None of them ever
// return an error past this boundary.

// Classifier decides whether a message is a lead and names its intent.
type Classifier struct {
	gen textgen.Generator
	log *logger.Logger
}

func NewClassifier(gen textgen.Generator, log *logger.Logger) *Classifier {
	return &Classifier{gen: gen, log: log}
}

// Classify returns the classification, falling back to
// {isLead:false, intent:"unknown"}.
func (c *Classifier) Classify(ctx context.Context, body string) Classification {
	fallback := Classification{IsLead: false, Intent: "unknown"}

	text, err := c.gen.Generate(ctx, textgen.Request{System: classifyInstruction, User: body, JSON: true})
	if err != nil {
		c.log.GenerationFallback("classify", "")
		return fallback
	}

	var shape struct {
		IsLead bool   `json:"isLead"`
		Intent string `json:"intent"`
	}
	if err := textgen.DecodeShape(text, &shape); err != nil {
		c.log.GenerationFallback("classify", "")
		return fallback
	}

	intent := strings.TrimSpace(shape.Intent)
	if intent == "" {
		intent = "unknown"
	}
	return Classification{IsLead: shape.IsLead, Intent: intent}
}

// Qualifier decides whether a sender has crossed the qualification
// threshold. The "3+ messages with a specific intent" heuristic lives in
// the instruction, not here.
type Qualifier struct {
	gen textgen.Generator
	log *logger.Logger
}

func NewQualifier(gen textgen.Generator, log *logger.Logger) *Qualifier {
	return &Qualifier{gen: gen, log: log}
}

// Qualify returns the qualification, falling back to
// {isQualified:false, priority:Low}.
func (q *Qualifier) Qualify(ctx context.Context, body string, messageCount int, intent string) Qualification {
	fallback := Qualification{IsQualified: false, Priority: PriorityLow}

	text, err := q.gen.Generate(ctx, textgen.Request{
		System: qualifyInstruction,
		User:   qualifyUserContent(body, messageCount, intent),
		JSON:   true,
	})
	if err != nil {
		q.log.GenerationFallback("qualify", "")
		return fallback
	}

	var shape struct {
		IsQualified bool   `json:"isQualified"`
		Priority    string `json:"priority"`
	}
	if err := textgen.DecodeShape(text, &shape); err != nil {
		q.log.GenerationFallback("qualify", "")
		return fallback
	}

	return Qualification{IsQualified: shape.IsQualified, Priority: ParsePriority(shape.Priority)}
}

// Extractor pulls contact fields out of a message.
type Extractor struct {
	gen      textgen.Generator
	validate *validator.Validator
	log      *logger.Logger
}

func NewExtractor(gen textgen.Generator, validate *validator.Validator, log *logger.Logger) *Extractor {
	return &Extractor{gen: gen, validate: validate, log: log}
}

// Extract returns whatever contact fields the message yields, falling back
// to {name:nil, email:nil}. Extracted emails are validated before use; an
// invalid extraction degrades to nil rather than persisting garbage.
func (e *Extractor) Extract(ctx context.Context, body string) Contact {
	text, err := e.gen.Generate(ctx, textgen.Request{System: extractInstruction, User: body, JSON: true})
	if err != nil {
		e.log.GenerationFallback("extract", "")
		return Contact{}
	}

	var shape struct {
		Name  *string `json:"name"`
		Email *string `json:"email"`
	}
	if err := textgen.DecodeShape(text, &shape); err != nil {
		e.log.GenerationFallback("extract", "")
		return Contact{}
	}

	var contact Contact
	if shape.Name != nil {
		if name := strings.TrimSpace(*shape.Name); name != "" {
			contact.Name = &name
		}
	}
	if shape.Email != nil {
		email := strings.TrimSpace(*shape.Email)
		if email != "" && e.validate.IsEmail(email) {
			contact.Email = &email
		}
	}
	return contact
}
