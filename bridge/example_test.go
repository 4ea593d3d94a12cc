package bridge_test

import (
	"context"
	"fmt"

	"github.com/cwbudde/native-reverb/bridge"
)

func ExampleBridge_Invoke() {
	b := bridge.New()
	m, err := bridge.NewModule(b)
	if err != nil {
		panic(err)
	}
	defer m.Release(context.Background())

	ctx := context.Background()
	if _, err := b.Invoke(ctx, bridge.ModuleName, "initialize", []byte(`[{"sampleRate": 44100}]`)); err != nil {
		panic(err)
	}
	state, _ := b.Invoke(ctx, bridge.ModuleName, "getState", nil)
	fmt.Println(string(state))

	_, err = b.Invoke(ctx, bridge.ModuleName, "loadPreset", []byte(`["garage"]`))
	fmt.Println(bridge.CodeOf(err))
	// Output:
	// "ready"
	// INVALID_ARGUMENT
}
