package pipeline

import (
	"fmt"
	"strings"
)

const classifyInstruction = `You triage inbound chat messages for a professional services firm.
Decide whether the message expresses interest in our services (a lead) and name its intent.
Intent is a short snake_case label such as "study_visa", "pricing_question", or "greeting".
Pure greetings, small talk, spam, and abuse are not leads.
Respond with only a JSON object: {"isLead": boolean, "intent": string}.`

const qualifyInstruction = `You decide whether a chat sender has become a qualified lead.
A sender qualifies once they have sent 3 or more messages and their intent is specific,
not a greeting or small talk. Assign a priority reflecting urgency and buying signals.
Respond with only a JSON object: {"isQualified": boolean, "priority": "Low" | "Medium" | "High"}.`

const extractInstruction = `Extract the sender's own name and email address from the message, if stated.
Do not guess and do not invent values; use null for anything not present.
Respond with only a JSON object: {"name": string or null, "email": string or null}.`

const replyQualifiedMissingInstruction = `You write a short reply to a qualified lead.
Thank them briefly, then ask only for the following so our team can follow up: %s.
Do not ask for anything else. At most 3 sentences. No sign-off, no subject line.`

const replyQualifiedCompleteInstruction = `You write a reply to a qualified lead whose contact details we already have.
Reply with a single sentence confirming that a member of our team will follow up shortly.
No sign-off, no subject line.`

const replyInformativeInstruction = `You write a helpful reply to an inbound chat message.
Answer the sender's query directly in at most 5 sentences, then offer a short call to discuss further.
No sign-off, no subject line.`

// replyDisclaimer is appended to every composed reply on its own paragraph.
const replyDisclaimer = "This is an automated reply. A member of our team reviews every conversation."

// fallbackReply is the fixed courtesy reply body used when the generation
// service is unavailable.
const fallbackReply = "Thank you for reaching out. We have received your message and a member of our team will get back to you shortly."

func qualifyUserContent(body string, messageCount int, intent string) string {
	return fmt.Sprintf("Latest message:\n%s\n\nMessages from this sender so far: %d\nDetected intent: %s", body, messageCount, intent)
}

func replyInstruction(in ReplyInput) string {
	if !in.Qualified {
		return replyInformativeInstruction
	}
	missing := missingFieldNames(in)
	if len(missing) == 0 {
		return replyQualifiedCompleteInstruction
	}
	return fmt.Sprintf(replyQualifiedMissingInstruction, strings.Join(missing, " and "))
}

func replyUserContent(in ReplyInput) string {
	return fmt.Sprintf("Latest message:\n%s\n\nDetected intent: %s", in.Body, in.Intent)
}

func missingFieldNames(in ReplyInput) []string {
	var missing []string
	if in.MissingName {
		missing = append(missing, "full name")
	}
	if in.MissingEmail {
		missing = append(missing, "email address")
	}
	return missing
}
