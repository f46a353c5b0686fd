package payment

import (
	"github.com/smallbiznis/quoteflow/internal/payment/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.ledger",
	fx.Provide(repository.Provide),
)
