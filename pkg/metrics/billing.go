package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// BillingMetrics counts redemption and webhook outcomes so overruns and
// replay storms show up on dashboards before they show up in support tickets.
type BillingMetrics struct {
	redemptions   *prometheus.CounterVec
	webhookEvents *prometheus.CounterVec
	checkouts     *prometheus.CounterVec
}

// NewBillingMetrics registers the billing metrics on the provided registerer.
func NewBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	if reg == nil {
		return &BillingMetrics{}
	}
	redemptions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coupon_redemptions_total",
		Help: "Coupon redemption attempts by outcome.",
	}, []string{"outcome"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stripe_webhook_events_total",
		Help: "Stripe webhook events by type and outcome.",
	}, []string{"type", "outcome"})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_sessions_total",
		Help: "Checkout session creations by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(redemptions, webhookEvents, checkouts)
	return &BillingMetrics{
		redemptions:   redemptions,
		webhookEvents: webhookEvents,
		checkouts:     checkouts,
	}
}

// IncRedemption counts one redemption attempt with the given outcome
// (success, already_redeemed, race_lost, invalid).
func (b *BillingMetrics) IncRedemption(outcome string) {
	if b == nil || b.redemptions == nil {
		return
	}
	b.redemptions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncWebhookEvent counts one processed webhook event.
func (b *BillingMetrics) IncWebhookEvent(eventType, outcome string) {
	if b == nil || b.webhookEvents == nil {
		return
	}
	b.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// IncCheckout counts one checkout-session creation attempt.
func (b *BillingMetrics) IncCheckout(outcome string) {
	if b == nil || b.checkouts == nil {
		return
	}
	b.checkouts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return strings.ReplaceAll(value, ".", "_")
}
