package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransactionWritePhase(t *testing.T) {
	w := []byte{0x10, 0x20, 0x30}
	txn := WriteTransaction(0x50, w)

	require.True(t, txn.HasWrite())
	require.False(t, txn.HasRead())
	require.Equal(t, ModeSend, txn.Mode())

	for i, want := range w {
		require.True(t, txn.NeedsSending())
		require.False(t, txn.IsFinished())
		b, ok := txn.nextByteToSend()
		require.True(t, ok)
		require.Equal(t, want, b)
		require.Equal(t, i+1, txn.Sent())
	}

	require.False(t, txn.NeedsSending())
	require.True(t, txn.IsFinished())
	require.Equal(t, ModeNone, txn.Mode())

	_, ok := txn.nextByteToSend()
	require.False(t, ok)
	require.Equal(t, len(w), txn.Sent())
}

func TestTransactionReadPhase(t *testing.T) {
	r := make([]byte, 3)
	txn := ReadTransaction(0x50, r)

	require.False(t, txn.NeedsSending())
	require.Equal(t, ModeReceive, txn.Mode())
	require.Equal(t, 3, txn.remaining())

	filled, stored := txn.storeReceivedByte(0xA1)
	require.True(t, stored)
	require.False(t, filled)
	filled, stored = txn.storeReceivedByte(0xA2)
	require.True(t, stored)
	require.False(t, filled)
	require.Equal(t, 1, txn.remaining())

	filled, stored = txn.storeReceivedByte(0xA3)
	require.True(t, stored)
	require.True(t, filled)
	require.True(t, txn.IsFinished())

	filled, stored = txn.storeReceivedByte(0xFF)
	require.False(t, stored)
	require.False(t, filled)

	require.Equal(t, []byte{0xA1, 0xA2, 0xA3}, r)
	require.Equal(t, 3, txn.Received())
}

func TestTransactionWriteComesFirst(t *testing.T) {
	r := make([]byte, 2)
	txn := WriteReadTransaction(0x68, []byte{0x3B}, r)

	require.Equal(t, ModeSend, txn.Mode())
	require.True(t, txn.NeedsReceiving())

	_, ok := txn.nextByteToSend()
	require.True(t, ok)
	require.Equal(t, ModeReceive, txn.Mode())

	txn.storeReceivedByte(1)
	txn.storeReceivedByte(2)
	require.Equal(t, ModeNone, txn.Mode())
	require.True(t, txn.IsFinished())
}

func TestTransactionEmpty(t *testing.T) {
	testCases := []struct {
		name string
		txn  *Transaction
	}{
		{"empty write", WriteTransaction(0x50, nil)},
		{"empty read", ReadTransaction(0x50, []byte{})},
		{"empty write read", WriteReadTransaction(0x50, nil, nil)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.True(t, tc.txn.IsFinished())
			require.Equal(t, ModeNone, tc.txn.Mode())
			require.Zero(t, tc.txn.remaining())
		})
	}
}

func TestStateAwaiting(t *testing.T) {
	_, ok := StateIdle.Awaiting()
	require.False(t, ok)
	require.Equal(t, "idle", StateIdle.String())

	for e := StartGenerated; e <= ByteReceived; e++ {
		evt, ok := WaitingFor(e).Awaiting()
		require.True(t, ok)
		require.Equal(t, e, evt)
		require.NotEqual(t, StateIdle, WaitingFor(e))
	}
}
