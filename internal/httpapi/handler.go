// Package httpapi exposes the inbound HTTP surface: a message ingest
// endpoint and liveness/readiness probes. Processing never happens on the
// request path; stored messages are picked up by the intake source.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadchat_backend/internal/store"
	"leadchat_backend/platform/httpkit"
	"leadchat_backend/platform/logger"
	"leadchat_backend/platform/phone"
	"leadchat_backend/platform/validator"
)

const (
	errInvalidRequest = "invalid request body"
	errValidation     = "validation error"
)

// MessageStore stores inbound messages and serves status lookups.
type MessageStore interface {
	Insert(ctx context.Context, params store.InsertMessageParams) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (store.RawMessage, error)
}

// LeadReader serves lead lookups for a sender key.
type LeadReader interface {
	GetLead(ctx context.Context, senderKey string) (*store.Lead, error)
	GetQualified(ctx context.Context, senderKey string) (*store.QualifiedLead, error)
}

// Notifier signals that a new message was stored. In queue mode this
// enqueues a process task; in poll mode there is no notifier and the next
// poll cycle finds the message.
type Notifier interface {
	MessageStored(ctx context.Context, id uuid.UUID) error
}

// Handler handles ingest and lookup HTTP requests.
type Handler struct {
	messages MessageStore
	leads    LeadReader
	val      *validator.Validator
	notify   Notifier
	region   string
	log      *logger.Logger
}

// NewHandler creates a new API handler. notify may be nil.
func NewHandler(messages MessageStore, leads LeadReader, val *validator.Validator, notify Notifier, region string, log *logger.Logger) *Handler {
	return &Handler{
		messages: messages,
		leads:    leads,
		val:      val,
		notify:   notify,
		region:   region,
		log:      log,
	}
}

// IngestRequest is the request body for storing an inbound message. The
// payload is either plaintext (body) or an encrypted triple (cipher, iv,
// authTag), never both halves mixed.
type IngestRequest struct {
	Sender  string `json:"sender" validate:"required,min=1,max=128"`
	Body    string `json:"body" validate:"max=16384"`
	Cipher  string `json:"cipher" validate:"omitempty,hexadecimal,max=65536"`
	IV      string `json:"iv" validate:"omitempty,hexadecimal,max=128"`
	AuthTag string `json:"authTag" validate:"omitempty,hexadecimal,max=128"`
}

// IngestResponse is returned after a message is stored.
type IngestResponse struct {
	ID uuid.UUID `json:"id"`
}

// HandleIngest stores an inbound chat message.
// POST /api/v1/messages
func (h *Handler) HandleIngest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errValidation, err.Error())
		return
	}

	encrypted := req.Cipher != "" || req.IV != "" || req.AuthTag != ""
	if encrypted && (req.Cipher == "" || req.IV == "" || req.AuthTag == "") {
		httpkit.Error(c, http.StatusBadRequest, "cipher, iv and authTag must all be provided", nil)
		return
	}
	if !encrypted && strings.TrimSpace(req.Body) == "" {
		httpkit.Error(c, http.StatusBadRequest, "either body or an encrypted payload is required", nil)
		return
	}

	senderKey := phone.NormalizeSenderKey(req.Sender, h.region)

	id, err := h.messages.Insert(c.Request.Context(), store.InsertMessageParams{
		SenderKey: senderKey,
		Body:      req.Body,
		Cipher:    req.Cipher,
		IV:        req.IV,
		AuthTag:   req.AuthTag,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	if h.notify != nil {
		if err := h.notify.MessageStored(c.Request.Context(), id); err != nil {
			// The sweep re-enqueues anything the push path missed.
			h.log.Warn("failed to notify stored message", "message_id", id.String(), "error", err.Error())
		}
	}

	c.JSON(http.StatusCreated, IngestResponse{ID: id})
}

// MessageStatusResponse reports the processing state of one message. The
// derived fields stay null until processing finishes.
type MessageStatusResponse struct {
	ID            uuid.UUID `json:"id"`
	SenderKey     string    `json:"senderKey"`
	Processed     bool      `json:"processed"`
	AutoReplyText *string   `json:"autoReplyText,omitempty"`
	IsLead        *bool     `json:"isLead,omitempty"`
	IsQualified   *bool     `json:"isQualified,omitempty"`
	Priority      *string   `json:"priority,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// HandleGetMessage returns the stored message and its enrichment verdict,
// which is how producers pick up the composed reply.
// GET /api/v1/messages/:id
func (h *Handler) HandleGetMessage(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid message id", nil)
		return
	}

	msg, err := h.messages.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, MessageStatusResponse{
		ID:            msg.ID,
		SenderKey:     msg.SenderKey,
		Processed:     msg.Processed,
		AutoReplyText: msg.AutoReplyText,
		IsLead:        msg.IsLead,
		IsQualified:   msg.IsQualified,
		Priority:      msg.Priority,
		CreatedAt:     msg.CreatedAt,
	})
}

// LeadResponse summarizes what is known about a sender, merging the Lead row
// with the QualifiedLead row when one exists.
type LeadResponse struct {
	SenderKey    string    `json:"senderKey"`
	Intent       string    `json:"intent"`
	MessageCount int       `json:"messageCount"`
	Qualified    bool      `json:"qualified"`
	Name         *string   `json:"name,omitempty"`
	Email        *string   `json:"email,omitempty"`
	Priority     *string   `json:"priority,omitempty"`
	LastActive   time.Time `json:"lastActive"`
}

// HandleGetLead returns the lead state for a sender key.
// GET /api/v1/leads/:senderKey
func (h *Handler) HandleGetLead(c *gin.Context) {
	senderKey := phone.NormalizeSenderKey(c.Param("senderKey"), h.region)

	lead, err := h.leads.GetLead(c.Request.Context(), senderKey)
	if httpkit.HandleError(c, err) {
		return
	}
	if lead == nil {
		httpkit.Error(c, http.StatusNotFound, "lead not found", nil)
		return
	}

	resp := LeadResponse{
		SenderKey:    lead.SenderKey,
		Intent:       lead.Intent,
		MessageCount: lead.MessageCount,
		LastActive:   lead.LastActive,
	}

	qualified, err := h.leads.GetQualified(c.Request.Context(), senderKey)
	if httpkit.HandleError(c, err) {
		return
	}
	if qualified != nil {
		resp.Qualified = true
		resp.Name = qualified.Name
		resp.Email = qualified.Email
		resp.Priority = &qualified.Priority
	}

	httpkit.OK(c, resp)
}
