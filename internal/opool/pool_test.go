package opool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetConfiguresRecord(t *testing.T) {
	p := New()

	var got int32
	cb := func(_ any, result int32) { got = result }
	op := p.Get(cb, "state")

	require.Equal(t, "state", op.State)
	require.NotNil(t, op.Callback)
	op.Callback(op.State, 7)
	require.EqualValues(t, 7, got)
}

func TestPutClearsBeforeRecycle(t *testing.T) {
	p := New()
	op := p.Get(func(any, int32) {}, "x")
	op.Result = 5
	op.Token = 9
	p.Put(op)

	recycled := p.Get(nil, nil)
	require.Nil(t, recycled.Callback)
	require.Nil(t, recycled.State)
	require.EqualValues(t, 0, recycled.Result)
	require.EqualValues(t, 0, recycled.Token)
}
