// Package middleware собирает цепочки huma-middleware для групп операций.
package middleware

import "github.com/danielgtaylor/huma/v2"

type Container struct {
	mws huma.Middlewares
}

func NewContainer() *Container {
	return &Container{}
}

func (c *Container) Add(mws ...func(huma.Context, func(huma.Context))) {
	c.mws = append(c.mws, mws...)
}

// GetAllAndClear отдаёт накопленную цепочку и начинает новую.
func (c *Container) GetAllAndClear() huma.Middlewares {
	out := c.mws
	c.mws = nil
	return out
}
