package api

import (
	"encoding/json"
	"net"
	"net/http"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/abev/portfolio-contact/internal/config"
	"github.com/abev/portfolio-contact/internal/mailer"
	"github.com/abev/portfolio-contact/internal/pkg/logger"
	"github.com/abev/portfolio-contact/internal/ratelimit"
	"github.com/abev/portfolio-contact/internal/turnstile"
	"github.com/abev/portfolio-contact/internal/urlcheck"
)

const maxBodyBytes = 1 << 20

// Field bounds for a submission.
const (
	maxNameLen    = 80
	maxEmailLen   = 120
	maxURLLen     = 300
	maxMessageLen = 500
)

// Handlers holds the collaborators of the contact pipeline.
type Handlers struct {
	limiter   ratelimit.Limiter
	verifier  turnstile.Verifier
	sender    mailer.Sender
	templates *mailer.TemplateService
	filter    *urlcheck.Filter
	contact   config.ContactConfig
}

// NewHandlers wires the contact pipeline.
func NewHandlers(
	limiter ratelimit.Limiter,
	verifier turnstile.Verifier,
	sender mailer.Sender,
	templates *mailer.TemplateService,
	filter *urlcheck.Filter,
	contact config.ContactConfig,
) *Handlers {
	return &Handlers{
		limiter:   limiter,
		verifier:  verifier,
		sender:    sender,
		templates: templates,
		filter:    filter,
		contact:   contact,
	}
}

// HealthCheck reports service liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type submission struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Message         string `json:"message"`
	VerificationURL string `json:"verificationUrl"`
	Hp              string `json:"hp"`
	SecondsToSubmit int    `json:"secondsToSubmit"`
	TurnstileToken  string `json:"turnstileToken"`
}

func (s *submission) validate() bool {
	if s.Name == "" || len(s.Name) > maxNameLen {
		return false
	}
	if s.Email == "" || len(s.Email) > maxEmailLen {
		return false
	}
	if _, err := mail.ParseAddress(s.Email); err != nil {
		return false
	}
	if s.VerificationURL == "" || len(s.VerificationURL) > maxURLLen {
		return false
	}
	if len(s.Message) > maxMessageLen {
		return false
	}
	if s.SecondsToSubmit < 0 {
		return false
	}
	return true
}

// Contact runs the submission pipeline: parse, honeypot/timing, rate limit,
// URL filter, captcha, dispatch. It stops at the first failing check.
// Bot-detected submissions are acknowledged exactly like delivered ones.
func (h *Handlers) Contact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	submissionID := uuid.New().String()

	var sub submission
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil || !sub.validate() {
		respondError(w, http.StatusBadRequest, "invalid request")
		return
	}

	identity := clientIdentity(r)

	// Bot drop. The counters still accrue so a probing client cannot
	// detect the honeypot by watching throttling behavior change.
	if strings.TrimSpace(sub.Hp) != "" || sub.SecondsToSubmit < h.contact.MinSecondsToSubmit {
		if _, err := h.limiter.Allow(ctx, identity); err != nil {
			logger.Debug("counter increment failed on dropped submission", "error", err)
		}
		logger.Warn("submission dropped as bot", "submission_id", submissionID, "client", identity)
		respondAccepted(w)
		return
	}

	allowed, err := h.limiter.Allow(ctx, identity)
	if err != nil {
		logger.Error("rate limiter unavailable", "submission_id", submissionID, "error", err)
		respondError(w, http.StatusInternalServerError, "temporarily unavailable")
		return
	}
	if !allowed {
		logger.Warn("submission throttled", "submission_id", submissionID, "client", identity)
		respondError(w, http.StatusTooManyRequests, "too many requests")
		return
	}

	ok, host := h.filter.Check(sub.VerificationURL)
	if !ok {
		logger.Warn("verification URL rejected", "submission_id", submissionID, "client", identity)
		respondError(w, http.StatusBadRequest, "rejected")
		return
	}

	if h.contact.RequireCaptcha {
		if !h.verifier.Verify(ctx, sub.TurnstileToken, identity) {
			logger.Warn("captcha failed", "submission_id", submissionID, "client", identity)
			respondError(w, http.StatusBadRequest, "rejected")
			return
		}
	}

	html, err := h.templates.RenderContact(sub.Name, sub.Email, sub.VerificationURL, sub.Message, host)
	if err != nil {
		logger.Error("template render failed", "submission_id", submissionID, "error", err)
		respondError(w, http.StatusInternalServerError, "temporarily unavailable")
		return
	}

	msg := &mailer.Message{
		To:           h.contact.DestEmail,
		From:         h.contact.MailFrom,
		ReplyTo:      sub.Email,
		Subject:      mailer.Subject(sub.Name, host),
		HTML:         html,
		SubmissionID: submissionID,
	}
	if err := h.sender.Send(ctx, msg); err != nil {
		logger.Error("email dispatch failed", "submission_id", submissionID, "error", err)
		respondError(w, http.StatusInternalServerError, "temporarily unavailable")
		return
	}

	logger.Info("submission forwarded", "submission_id", submissionID, "host", host)
	respondAccepted(w)
}

// clientIdentity derives a best-effort client key for rate limiting: the
// first hop of X-Forwarded-For, else the host part of the remote address.
// Never an authentication claim.
func clientIdentity(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return r.RemoteAddr
	}
	return host
}
