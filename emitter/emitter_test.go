package emitter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Emit_In_Registration_Order(t *testing.T) {
	req := require.New(t)
	var e Emitter[int]
	var order []string

	e.Subscribe(func(v int) { order = append(order, "first") })
	e.Subscribe(func(v int) { order = append(order, "second") })
	e.Subscribe(func(v int) { order = append(order, "third") })

	e.Emit(1)
	e.Emit(2)

	req.Equal([]string{"first", "second", "third", "first", "second", "third"}, order)
}

func Test_Unsubscribe_Stops_Delivery(t *testing.T) {
	req := require.New(t)
	var e Emitter[string]
	var got []string

	off := e.Subscribe(func(v string) { got = append(got, v) })
	e.Emit("one")
	off()
	e.Emit("two")
	off() // second call is harmless

	req.Equal([]string{"one"}, got)
	req.Equal(0, e.Len())
}

func Test_Clear_Drops_All_Listeners(t *testing.T) {
	req := require.New(t)
	var e Emitter[int]
	count := 0

	e.Subscribe(func(int) { count++ })
	e.Subscribe(func(int) { count++ })
	e.Clear()
	e.Emit(1)

	req.Zero(count)
	req.Zero(e.Len())
}
