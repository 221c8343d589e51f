package ws

import "reflect"

// ackFunc invokes a client-supplied acknowledgement callback with a single
// response payload.
type ackFunc func(payload any)

// extractAck splits a trailing acknowledgement callback, if the client sent
// one, from the event arguments.
func extractAck(datas []any) (ackFunc, []any) {
	if len(datas) == 0 {
		return nil, datas
	}
	fn := wrapAck(datas[len(datas)-1])
	if fn == nil {
		return nil, datas
	}
	return fn, datas[:len(datas)-1]
}

// wrapAck adapts whatever function shape the socket.io parser handed us.
// Client acks arrive as funcs of varying signatures, so the payload is
// coerced into the first parameter and the rest are zeroed.
func wrapAck(candidate any) ackFunc {
	if candidate == nil {
		return nil
	}
	value := reflect.ValueOf(candidate)
	if !value.IsValid() || value.Kind() != reflect.Func {
		return nil
	}
	typ := value.Type()
	if typ.IsVariadic() && typ.NumIn() == 1 {
		return func(payload any) {
			if payload == nil {
				value.Call(nil)
				return
			}
			value.Call([]reflect.Value{reflect.ValueOf(payload)})
		}
	}
	return func(payload any) {
		args := make([]reflect.Value, typ.NumIn())
		for i := 0; i < typ.NumIn(); i++ {
			param := typ.In(i)
			if i == 0 && payload != nil {
				if v, ok := coerce(payload, param); ok {
					args[i] = v
					continue
				}
			}
			args[i] = reflect.Zero(param)
		}
		value.Call(args)
	}
}

func coerce(payload any, target reflect.Type) (reflect.Value, bool) {
	v := reflect.ValueOf(payload)
	if v.Type().AssignableTo(target) {
		return v, true
	}
	// Acks generated by the parser often take the raw argument slice.
	if target.Kind() == reflect.Slice && target.Elem().Kind() == reflect.Interface {
		s := reflect.MakeSlice(target, 1, 1)
		s.Index(0).Set(v)
		return s, true
	}
	return reflect.Value{}, false
}
