package checkin

import (
	"github.com/smallbiznis/xingyu/internal/checkin/repository"
	"github.com/smallbiznis/xingyu/internal/checkin/service"
	"go.uber.org/fx"
)

var Module = fx.Module("checkin.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
