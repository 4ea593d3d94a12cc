//go:build js && wasm

// Command wasm exposes the bridge to a browser. Every module becomes a global
// object whose methods call the bridge synchronously and throw an Error
// carrying a code on failure; module events reach listeners added with
// BridgeEvents.addListener(name, fn).
package main

import (
	"context"
	"encoding/json"
	"syscall/js"

	"github.com/cwbudde/native-reverb/bridge"
)

var (
	b         *bridge.Bridge
	funcs     []js.Func
	listeners = map[string][]js.Value{}
)

func main() {
	b = bridge.New()
	if _, err := bridge.NewModule(b); err != nil {
		js.Global().Get("console").Call("error", err.Error())
		return
	}
	b.Subscribe(dispatch)

	// unwrap turns an {ok, value | code, message} envelope into a return
	// value or a thrown Error; Go callbacks cannot throw themselves.
	unwrap := js.Global().Get("Function").New("call", `return function() {
		var r = call.apply(null, arguments);
		if (!r.ok) { var e = new Error(r.message); e.code = r.code; throw e; }
		return r.value;
	};`)

	for _, module := range b.Modules() {
		obj := js.Global().Get("Object").New()
		for _, method := range b.Methods(module) {
			obj.Set(method, unwrap.Invoke(export(invoker(module, method))))
		}
		js.Global().Set(module, obj)
	}

	events := js.Global().Get("Object").New()
	events.Set("addListener", export(addListener))
	events.Set("invalidate", export(func(js.Value, []js.Value) any {
		b.Invalidate()
		return js.Undefined()
	}))
	js.Global().Set("BridgeEvents", events)

	select {}
}

// invoker returns a JS function that serializes its arguments, calls the
// bridge and returns a result envelope.
func invoker(module, method string) func(js.Value, []js.Value) any {
	return func(_ js.Value, args []js.Value) any {
		env := js.Global().Get("Object").New()
		result, err := b.Invoke(context.Background(), module, method, []byte(encodeArgs(args)))
		if err != nil {
			be := bridge.AsError(err)
			env.Set("ok", false)
			env.Set("code", string(be.Code))
			env.Set("message", be.Message)
			return env
		}
		env.Set("ok", true)
		env.Set("value", js.Global().Get("JSON").Call("parse", string(result)))
		return env
	}
}

// encodeArgs JSON encodes args, turning typed arrays into plain arrays.
func encodeArgs(args []js.Value) string {
	list := js.Global().Get("Array").New(len(args))
	for i, a := range args {
		if a.Type() == js.TypeObject && js.Global().Get("ArrayBuffer").Call("isView", a).Bool() {
			a = js.Global().Get("Array").Call("from", a)
		}
		list.SetIndex(i, a)
	}
	return js.Global().Get("JSON").Call("stringify", list).String()
}

func addListener(_ js.Value, args []js.Value) any {
	if len(args) < 2 || args[1].Type() != js.TypeFunction {
		return js.Undefined()
	}
	name, fn := args[0].String(), args[1]
	listeners[name] = append(listeners[name], fn)

	sub := js.Global().Get("Object").New()
	sub.Set("remove", export(func(js.Value, []js.Value) any {
		fns := listeners[name]
		for i, f := range fns {
			if f.Equal(fn) {
				listeners[name] = append(fns[:i], fns[i+1:]...)
				break
			}
		}
		return js.Undefined()
	}))
	return sub
}

func dispatch(name string, payload []byte) {
	if !json.Valid(payload) {
		return
	}
	v := js.Global().Get("JSON").Call("parse", string(payload))
	for _, fn := range listeners[name] {
		fn.Invoke(v)
	}
}

func export(fn func(js.Value, []js.Value) any) js.Func {
	f := js.FuncOf(fn)
	funcs = append(funcs, f)
	return f
}
