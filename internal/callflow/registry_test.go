package callflow

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReturnsRegisteredFlow(t *testing.T) {
	flow, err := New(HelloWorldName)
	require.NoError(t, err)

	out, err := flow.ToTwiML(context.Background(), CallContext{})
	require.NoError(t, err)
	assert.Contains(t, out, "<Say>Hello World</Say>")
	assert.Contains(t, out, "<Hangup></Hangup>")
}

func TestNewFailsClosedOnUnregisteredName(t *testing.T) {
	_, err := New("no_such_flow")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no_such_flow")
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	assert.Panics(t, func() {
		Register(HelloWorldName, func() Flow { return HelloWorld{} })
	})
}

func TestResolveFallbackChain(t *testing.T) {
	assert.Equal(t, "p", Resolve("p", "c", "a", "d"))
	assert.Equal(t, "c", Resolve("", "c", "a", "d"))
	assert.Equal(t, "a", Resolve("", "", "a", "d"))
	assert.Equal(t, "d", Resolve("", "", "", "d"))
}

func TestTwiMLEmptyResponseIsValidTerminal(t *testing.T) {
	var tw TwiML
	out, err := tw.Render()
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "<Response></Response>") || strings.Contains(out, "<Response/>"))
}
