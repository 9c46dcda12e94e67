// Package webhooks verifies, parses and coordinates provider webhook events.
//
// Each delivery moves through one unit of work:
// admit -> (already_processed | reconcile) -> mark outcome -> commit.
// Any error rolls the unit back, admission row included, so a failed event
// is admitted fresh on its next delivery.
package webhooks
