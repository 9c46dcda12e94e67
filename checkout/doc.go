// Package checkout creates hosted checkout sessions, either against a local
// mock or against Stripe in test mode. Webhook processing does not depend on it.
package checkout
