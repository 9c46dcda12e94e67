package sqlstore

import "github.com/goliatone/go-payments/core"

var (
	_ core.AdmissionLog       = (*WebhookEventStore)(nil)
	_ core.WebhookEventReader = (*WebhookEventStore)(nil)
	_ core.CustomerStore      = (*CustomerStore)(nil)
	_ core.CustomerReader     = (*CustomerStore)(nil)
	_ core.OrderStore         = (*OrderStore)(nil)
	_ core.OrderReader        = (*OrderStore)(nil)
	_ core.TxRunner           = (*TxRunner)(nil)
	_ core.UnitOfWork         = (*unitOfWork)(nil)
)
