package conversation

import (
	"github.com/smallbiznis/xingyu/internal/conversation/repository"
	"github.com/smallbiznis/xingyu/internal/conversation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("conversation.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
