//go:build js && wasm

// Command wasm exposes the bridge frame codec to a browser page so captured
// serial traffic can be decoded and test frames built by hand.
package main

import (
	"encoding/hex"
	"errors"
	"syscall/js"

	"l1hal/protocol"
)

func main() {
	js.Global().Set("l1halWasm", js.ValueOf(map[string]interface{}{
		"encodeVLQ":    js.FuncOf(encodeVLQWrapper),
		"decodeVLQ":    js.FuncOf(decodeVLQWrapper),
		"crc16":        js.FuncOf(crc16Wrapper),
		"encodeFrame":  js.FuncOf(encodeFrameWrapper),
		"decodeFrames": js.FuncOf(decodeFramesWrapper),
		"version":      protocol.Version,
	}))

	select {}
}

// encodeVLQWrapper encodes a signed integer.
// Args: value (int32)
// Returns: hex string
func encodeVLQWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf("error: missing value argument")
	}
	return js.ValueOf(hex.EncodeToString(protocol.AppendVLQInt(nil, int32(args[0].Int()))))
}

// decodeVLQWrapper decodes the first integer of a hex string.
// Args: hexString (string)
// Returns: {value: number, consumed: number, error: string}
func decodeVLQWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeResult(0, 0, "missing hex string argument")
	}
	data, err := hex.DecodeString(args[0].String())
	if err != nil {
		return makeResult(0, 0, "invalid hex string: "+err.Error())
	}

	d := protocol.NewDecoder(data)
	value := d.Int()
	if err := d.Err(); err != nil {
		return makeResult(0, 0, err.Error())
	}
	return makeResult(int(value), len(data)-d.Len(), "")
}

// crc16Wrapper calculates the frame checksum.
// Args: hexString (string)
// Returns: number (uint16)
func crc16Wrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(0)
	}
	data, err := hex.DecodeString(args[0].String())
	if err != nil {
		return js.ValueOf(0)
	}
	return js.ValueOf(int(protocol.CRC16(data)))
}

// encodeFrameWrapper wraps a message block in a frame.
// Args: seq (number), payloadHex (string)
// Returns: hex string of the frame
func encodeFrameWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf("error: missing arguments")
	}
	payload, err := hex.DecodeString(args[1].String())
	if err != nil {
		return js.ValueOf("error: invalid payload hex: " + err.Error())
	}
	frame, err := protocol.AppendFrame(nil, uint8(args[0].Int()), payload)
	if err != nil {
		return js.ValueOf("error: " + err.Error())
	}
	return js.ValueOf(hex.EncodeToString(frame))
}

// decodeFramesWrapper splits a captured byte stream into frames.
// Args: hexString (string)
// Returns: {frames: [{sequence, ack, payload, cmdID, params}], rejected, pending, error}
func decodeFramesWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeFramesResult(nil, 0, 0, "missing hex string argument")
	}
	data, err := hex.DecodeString(args[0].String())
	if err != nil {
		return makeFramesResult(nil, 0, 0, "invalid hex string: "+err.Error())
	}

	var p protocol.Parser
	p.Feed(data)
	var frames []interface{}
	for {
		f, err := p.Next()
		if errors.Is(err, protocol.ErrIncomplete) {
			break
		}
		if err != nil {
			continue
		}
		frames = append(frames, describeFrame(f))
	}
	return makeFramesResult(frames, p.Rejected(), p.Buffered(), "")
}

// describeFrame decodes the first message id and every following value as an
// integer. Byte strings show up as their length followed by their bytes.
func describeFrame(f protocol.Frame) map[string]interface{} {
	result := map[string]interface{}{
		"sequence": int(f.Seq),
		"ack":      f.IsAck(),
		"payload":  hex.EncodeToString(f.Payload),
	}
	if f.IsAck() {
		return result
	}

	d := protocol.NewDecoder(f.Payload)
	result["cmdID"] = int(d.Uint())
	params := []interface{}{}
	for d.Len() > 0 {
		before := d.Len()
		v := d.Int()
		if d.Err() != nil {
			break
		}
		params = append(params, map[string]interface{}{
			"value": int(v),
			"bytes": before - d.Len(),
		})
	}
	result["params"] = params
	return result
}

func makeResult(value int, consumed int, errMsg string) js.Value {
	result := make(map[string]interface{})
	result["value"] = value
	result["consumed"] = consumed
	if errMsg != "" {
		result["error"] = errMsg
	}
	return js.ValueOf(result)
}

func makeFramesResult(frames []interface{}, rejected, pending int, errMsg string) js.Value {
	if frames == nil {
		frames = []interface{}{}
	}
	result := make(map[string]interface{})
	result["frames"] = frames
	result["rejected"] = rejected
	result["pending"] = pending
	if errMsg != "" {
		result["error"] = errMsg
	}
	return js.ValueOf(result)
}
