package gen

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

var Module = fx.Module("snowflake",
	fx.Provide(NewSnowflakeNode),
)

func NewSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
