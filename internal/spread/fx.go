package spread

import (
	"github.com/smallbiznis/xingyu/internal/spread/repository"
	"github.com/smallbiznis/xingyu/internal/spread/service"
	"go.uber.org/fx"
)

var Module = fx.Module("spread.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
