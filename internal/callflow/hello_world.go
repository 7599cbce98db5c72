package callflow

import "context"

// HelloWorldName is the built-in default flow.
const HelloWorldName = "hello_world"

func init() {
	Register(HelloWorldName, func() Flow { return HelloWorld{} })
}

// HelloWorld says a fixed greeting and hangs up. It is the engine's fallback
// when no flow is configured anywhere in the resolution chain.
type HelloWorld struct{}

func (HelloWorld) ToTwiML(ctx context.Context, cc CallContext) (string, error) {
	var t TwiML
	return t.Say("Hello World").Hangup().Render()
}
