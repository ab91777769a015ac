package handshake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutbox(t *testing.T) {
	o := NewOutbox()
	assert.Equal(t, []Command{}, o.Drain())

	assert.ErrorIs(t, o.Post(OutboundMessage{Name: MessageFinishTransaction}, "https://matara.pro"), ErrSurfaceNotLoaded)
	o.TearDown()
	assert.Empty(t, o.Drain(), "tearing down an unloaded frame records nothing")

	o.Load("https://matara.pro/iframe/?language=he")
	assert.True(t, o.Loaded())
	assert.Equal(t, "https://matara.pro/iframe/?language=he", o.URL())
	require.NoError(t, o.Post(OutboundMessage{Name: MessageFinishTransaction}, "https://matara.pro"))
	o.Resize(480)
	o.SetConfirm(ConfirmControl{Visible: true, Enabled: true, Label: "Process Payment"})
	o.RenderSuccess(Receipt{Confirmation: "X1"})
	o.TearDown()
	assert.False(t, o.Loaded())

	cmds := o.Drain()
	require.Len(t, cmds, 6)
	assert.Equal(t, CommandLoad, cmds[0].Type)
	assert.Equal(t, CommandPost, cmds[1].Type)
	assert.Equal(t, "https://matara.pro", cmds[1].TargetOrigin)
	assert.Equal(t, 480, cmds[2].Height)
	assert.True(t, cmds[3].Confirm.Enabled)
	assert.Equal(t, "X1", cmds[4].Receipt.Confirmation)
	assert.Equal(t, CommandTearDown, cmds[5].Type)

	assert.Empty(t, o.Drain())
}
