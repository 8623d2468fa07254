package bill

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/billorder/internal/bill/events"
	"github.com/smallbiznis/billorder/internal/bill/repository"
	"github.com/smallbiznis/billorder/internal/bill/service"
)

var Module = fx.Module("bill.service",
	fx.Provide(repository.New),
	fx.Provide(events.NewLogPublisher),
	fx.Provide(service.NewService),
)
