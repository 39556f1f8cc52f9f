package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"l1hal/protocol"
)

func TestCommandRegistry(t *testing.T) {
	reg := NewCommandRegistry()

	var got uint32
	id := reg.Register("test_command", "arg=%u", func(args *protocol.Decoder) error {
		got = args.Uint()
		return args.Err()
	})
	require.Equal(t, uint16(0), id)

	cmd, ok := reg.Lookup(id)
	require.True(t, ok)
	require.Equal(t, "test_command", cmd.Name)
	require.Equal(t, "arg=%u", cmd.Format)

	require.NoError(t, reg.Dispatch(id, protocol.NewDecoder(protocol.AppendVLQUint(nil, 300))))
	require.Equal(t, uint32(300), got)

	err := reg.Dispatch(999, protocol.NewDecoder(nil))
	require.ErrorIs(t, err, ErrUnknownCommand)
	require.EqualError(t, err, "unknown command ID: 999")
}

func TestCommandRegistryOrder(t *testing.T) {
	reg := NewCommandRegistry()
	nop := func(*protocol.Decoder) error { return nil }

	require.Equal(t, uint16(0), reg.RegisterResponse("status", "code=%c"))
	require.Equal(t, uint16(1), reg.Register("first", "", nop))
	require.Equal(t, uint16(2), reg.Register("second", "a=%c", nop))
	require.Equal(t, uint16(1), reg.Register("first", "other=%u", nop), "re-registering keeps the first id")
	require.Equal(t, 3, reg.Count())

	id, ok := reg.ID("second")
	require.True(t, ok)
	require.Equal(t, uint16(2), id)
	_, ok = reg.ID("missing")
	require.False(t, ok)
}

func TestDispatchResponse(t *testing.T) {
	reg := NewCommandRegistry()
	id := reg.RegisterResponse("status", "code=%c")

	// responses travel device to host only
	require.ErrorIs(t, reg.Dispatch(id, protocol.NewDecoder(nil)), ErrUnknownCommand)
}

func TestDispatchHandlerError(t *testing.T) {
	reg := NewCommandRegistry()
	boom := errors.New("boom")
	id := reg.Register("fail", "", func(*protocol.Decoder) error { return boom })

	require.ErrorIs(t, reg.Dispatch(id, protocol.NewDecoder(nil)), boom)
}

func TestMessage(t *testing.T) {
	reg := NewCommandRegistry()
	for i := 0; i < 200; i++ {
		reg.RegisterResponse("r"+itoa(i), "")
	}

	msg, err := reg.Message("r150")
	require.NoError(t, err)
	require.Equal(t, protocol.AppendVLQUint(nil, 150), msg)
	require.Equal(t, protocol.MaxPayload, cap(msg))

	_, err = reg.Message("missing")
	require.ErrorIs(t, err, ErrUnknownCommand)
}

func TestGetCommandsAndResponses(t *testing.T) {
	reg := NewCommandRegistry()
	reg.RegisterResponse("identify_response", "offset=%u data=%*s")
	reg.Register("identify", "offset=%u count=%c", func(*protocol.Decoder) error { return nil })
	reg.Register("ping", "", func(*protocol.Decoder) error { return nil })

	commands, responses := reg.GetCommandsAndResponses()
	require.Equal(t, map[string]int{
		"identify offset=%u count=%c": 1,
		"ping":                        2,
	}, commands)
	require.Equal(t, map[string]int{"identify_response offset=%u data=%*s": 0}, responses)
}
