package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/doorlink/doorlink/internal/domain"
	"github.com/doorlink/doorlink/internal/service"
	"github.com/doorlink/doorlink/internal/twiml"
	"github.com/doorlink/doorlink/pkg/logger"
)

type VoiceHandlers struct {
	gateway   service.GatewayService
	verify    service.VerifyService
	reconcile service.ReconcileService
	twimlCfg  twiml.Config
}

func NewVoiceHandlers(
	gateway service.GatewayService,
	verify service.VerifyService,
	reconcile service.ReconcileService,
	twimlCfg twiml.Config,
) *VoiceHandlers {
	return &VoiceHandlers{
		gateway:   gateway,
		verify:    verify,
		reconcile: reconcile,
		twimlCfg:  twimlCfg,
	}
}

// HandleVoice serves both the initial call event and the follow-up event
// carrying gathered input; the presence of Digits or SpeechResult selects
// the path. The provider always receives a well-formed document, even on
// failure, because a missing response leaves the caller's line hanging.
func (h *VoiceHandlers) HandleVoice(w http.ResponseWriter, r *http.Request) {
	defer h.recoverToErrorResponse(w, r)

	if err := r.ParseForm(); err != nil {
		h.writeOutcome(w, r, domain.Outcome{Kind: domain.OutcomeError})
		return
	}

	event := &domain.CallEvent{
		CallSID:      r.PostFormValue("CallSid"),
		From:         r.PostFormValue("From"),
		To:           r.PostFormValue("To"),
		Digits:       r.PostFormValue("Digits"),
		SpeechResult: r.PostFormValue("SpeechResult"),
	}
	if event.CallSID == "" || event.To == "" {
		logger.WarnContext(r.Context(), "Voice webhook missing CallSid or To")
		h.writeOutcome(w, r, domain.Outcome{Kind: domain.OutcomeError})
		return
	}

	var outcome domain.Outcome
	if event.IsFollowUp() {
		outcome = h.verify.HandleFollowUp(r.Context(), event)
	} else {
		outcome = h.gateway.HandleInbound(r.Context(), event)
	}

	h.writeOutcome(w, r, outcome)
}

// HandleStatus serves the provider's terminal call-status callback.
func (h *VoiceHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	defer h.recoverToEmptyResponse(w, r)

	if err := r.ParseForm(); err != nil {
		writeXML(w, twiml.RenderEmpty())
		return
	}

	duration, _ := strconv.Atoi(r.PostFormValue("CallDuration"))
	event := &domain.StatusEvent{
		CallSID:    r.PostFormValue("CallSid"),
		From:       r.PostFormValue("From"),
		To:         r.PostFormValue("To"),
		CallStatus: r.PostFormValue("CallStatus"),
		Duration:   duration,
		Timestamp:  time.Now(),
	}

	if event.CallSID != "" {
		if err := h.reconcile.HandleStatus(r.Context(), event); err != nil {
			// Logged and swallowed: at-least-once delivery plus the
			// idempotent log write make a provider retry safe, and a 5xx
			// here buys nothing.
			logger.ErrorContext(r.Context(), "Failed to reconcile call status",
				"call_status", event.CallStatus, "error", err)
		}
	}

	writeXML(w, twiml.RenderEmpty())
}

func (h *VoiceHandlers) writeOutcome(w http.ResponseWriter, r *http.Request, outcome domain.Outcome) {
	body, err := twiml.Render(outcome, h.twimlCfg)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to render voice response", "kind", outcome.Kind, "error", err)
		body, _ = twiml.Render(domain.Outcome{Kind: domain.OutcomeError}, h.twimlCfg)
	}
	writeXML(w, body)
}

func (h *VoiceHandlers) recoverToErrorResponse(w http.ResponseWriter, r *http.Request) {
	if v := recover(); v != nil {
		logger.ErrorContext(r.Context(), "Voice handler panic", "panic", v)
		body, _ := twiml.Render(domain.Outcome{Kind: domain.OutcomeError}, h.twimlCfg)
		writeXML(w, body)
	}
}

func (h *VoiceHandlers) recoverToEmptyResponse(w http.ResponseWriter, r *http.Request) {
	if v := recover(); v != nil {
		logger.ErrorContext(r.Context(), "Status handler panic", "panic", v)
		writeXML(w, twiml.RenderEmpty())
	}
}

func writeXML(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
