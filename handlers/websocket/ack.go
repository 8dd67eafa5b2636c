package websocket

import (
	"reflect"
)

type ackInvoker func(err error, payload map[string]any)

// socketAckType is the shape socket.io hands handlers for client acks.
var socketAckType = reflect.TypeOf((func([]any, error))(nil))

// extractAck splits a trailing client ack callback off the event arguments.
func extractAck(datas []any) (ack ackInvoker, args []any) {
	if len(datas) == 0 {
		return nil, datas
	}

	ack = wrapAck(datas[len(datas)-1])
	if ack == nil {
		return nil, datas
	}
	return ack, datas[:len(datas)-1]
}

// wrapAck adapts the callback shapes a client ack can arrive as. Anything
// else is not an ack and stays an ordinary argument.
func wrapAck(candidate any) ackInvoker {
	switch fn := candidate.(type) {
	case nil:
		return nil
	case func(error, map[string]any):
		return fn
	case func(map[string]any):
		return func(_ error, payload map[string]any) { fn(payload) }
	case func(...any):
		return func(_ error, payload map[string]any) { fn(payload) }
	}

	value := reflect.ValueOf(candidate)
	if value.Kind() != reflect.Func || !value.Type().ConvertibleTo(socketAckType) {
		return nil
	}
	send := value.Convert(socketAckType).Interface().(func([]any, error))
	// The status inside payload already carries err.
	return func(_ error, payload map[string]any) { send([]any{payload}, nil) }
}

// ackPayload is the body every handled event acknowledges with.
func ackPayload(err error) map[string]any {
	if err != nil {
		return map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}
	return map[string]any{"status": "ok"}
}
