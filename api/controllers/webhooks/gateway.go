package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/reconciliation"
	"github.com/angelmondragon/storefront-backend/pkg/gateway"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// WebhookConsumer scopes the delivery dedupe markers.
const WebhookConsumer = "gateway-webhook"

const maxNotificationBytes = 64 << 10

const (
	webhookResultProcessed        = "processed"
	webhookResultDuplicate        = "duplicate"
	webhookResultIgnored          = "ignored"
	webhookResultUnresolved       = "unresolved"
	webhookResultInvalidSignature = "invalid_signature"
	webhookResultError            = "error"
)

// PaymentReconciler applies the authoritative gateway state of a payment.
type PaymentReconciler interface {
	ReconcilePayment(ctx context.Context, paymentID string, source reconciliation.Source) (*reconciliation.Result, error)
}

type deliveryGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Delete(ctx context.Context, consumer, eventID string) error
}

type webhookRecorder interface {
	IncWebhook(result string)
}

// SignatureConfig controls notification signature verification.
type SignatureConfig struct {
	Secret   string
	Required bool
}

type notification struct {
	Type   string `json:"type"`
	Topic  string `json:"topic"`
	Action string `json:"action"`
	Data   struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

type ackResponse struct {
	Received bool   `json:"received"`
	Result   string `json:"result"`
}

// Gateway receives payment notifications. It always acknowledges with 200 so the gateway
// does not retry-storm; failures are logged and the dedupe marker is released instead.
func Gateway(svc PaymentReconciler, guard deliveryGuard, sig SignatureConfig, metrics webhookRecorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ack := func(result string) {
			if metrics != nil {
				metrics.IncWebhook(result)
			}
			responses.WriteSuccess(w, ackResponse{Received: true, Result: result})
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxNotificationBytes))
		if err != nil {
			logError(ctx, logg, "webhook.read_failed", err)
			ack(webhookResultError)
			return
		}

		eventType, dataID := parseNotification(r, body)
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{"event_type": eventType, "data_id": dataID})
		}
		if eventType != "payment" || dataID == "" {
			logInfo(ctx, logg, "webhook.ignored")
			ack(webhookResultIgnored)
			return
		}

		requestID := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if err := verify(sig, r.Header.Get("X-Signature"), requestID, dataID); err != nil {
			logError(ctx, logg, "webhook.signature_rejected", err)
			ack(webhookResultInvalidSignature)
			return
		}

		if svc == nil || guard == nil {
			logError(ctx, logg, "webhook.unavailable", errors.New("webhook dependencies not configured"))
			ack(webhookResultError)
			return
		}

		deliveryID := strings.Join([]string{eventType, dataID, requestID}, ":")
		alreadyProcessed, err := guard.CheckAndMarkProcessed(ctx, WebhookConsumer, deliveryID)
		if err != nil {
			// dedupe is best-effort, the status CAS still absorbs duplicates
			logError(ctx, logg, "webhook.dedupe_failed", err)
		} else if alreadyProcessed {
			logInfo(ctx, logg, "webhook.duplicate")
			ack(webhookResultDuplicate)
			return
		}

		result, err := reconcile(ctx, svc, dataID)
		if err != nil {
			if delErr := guard.Delete(ctx, WebhookConsumer, deliveryID); delErr != nil {
				logError(ctx, logg, "webhook.dedupe_release_failed", delErr)
			}
			logError(ctx, logg, "webhook.reconcile_failed", err)
			ack(webhookResultError)
			return
		}

		if result != nil && result.Outcome == reconciliation.OutcomeUnresolved {
			ack(webhookResultUnresolved)
			return
		}
		ack(webhookResultProcessed)
	}
}

// reconcile turns a panic below the reconciler into an error; the delivery is still
// acknowledged and its dedupe marker released.
func reconcile(ctx context.Context, svc PaymentReconciler, paymentID string) (result *reconciliation.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result, err = nil, fmt.Errorf("reconcile payment %s panicked: %v", paymentID, rec)
		}
	}()
	return svc.ReconcilePayment(ctx, paymentID, reconciliation.SourceWebhook)
}

// parseNotification reads the event type and payment id from the JSON body, falling back
// to the query string used by legacy IPN deliveries (?topic=payment&id=123).
func parseNotification(r *http.Request, body []byte) (string, string) {
	var payload notification
	if len(body) > 0 {
		_ = json.Unmarshal(body, &payload)
	}

	q := r.URL.Query()
	eventType := firstNonEmpty(payload.Type, payload.Topic, q.Get("type"), q.Get("topic"))
	dataID := firstNonEmpty(rawID(payload.Data.ID), q.Get("data.id"), q.Get("id"))
	return strings.ToLower(eventType), dataID
}

func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func verify(sig SignatureConfig, header, requestID, dataID string) error {
	if strings.TrimSpace(header) == "" && !sig.Required {
		return nil
	}
	if sig.Secret == "" {
		if sig.Required {
			return errors.New("webhook secret not configured")
		}
		return nil
	}
	return gateway.VerifySignature(sig.Secret, header, requestID, dataID, time.Now(), 0)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func logInfo(ctx context.Context, logg *logger.Logger, msg string) {
	if logg != nil {
		logg.Info(ctx, msg)
	}
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg != nil {
		logg.Error(ctx, msg, err)
	}
}
