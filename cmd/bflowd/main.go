// Command bflowd serves a small bflow app with the bserve runtime. It greets the caller and reports the time left
// before the request times out.
package main

import (
	"net/http"

	"github.com/advdv/bflow"
	"github.com/advdv/bflow/bserve"
	"github.com/cockroachdb/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Env is the environment of bflowd.
type Env struct {
	bserve.BaseEnvironment
	Greeting string `env:"BFLOWD_GREETING" envDefault:"hello"`
}

// Greeter answers every request with a greeting.
type Greeter struct {
	rt *bserve.Runtime[Env]
}

// NewGreeter creates the greeter unit.
func NewGreeter(rt *bserve.Runtime[Env]) *Greeter {
	return &Greeter{rt: rt}
}

// ServeFlow implements bflow.Middleware.
func (g *Greeter) ServeFlow(c *bflow.Context) error {
	if c.Method() != http.MethodGet && c.Method() != http.MethodHead {
		c.Set("Allow", "GET, HEAD")
		return bflow.NewError(bflow.CodeMethodNotAllowed, errors.New("only GET and HEAD are supported"))
	}

	ip := c.Request().IP()
	bserve.Log(c).Debug("greeting", zap.String("ip", ip))
	c.SetBody(map[string]any{
		"greeting":  g.rt.Env().Greeting,
		"ip":        ip,
		"remaining": bserve.RemainingTime(c).String(),
	})

	return nil
}

func main() {
	bserve.NewApp[Env](func(app *bflow.App, g *Greeter) {
		app.Use(g)
	},
		bserve.WithFx(fx.Provide(NewGreeter)),
	).Run()
}
