package observable

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscribeReplaysCurrentValue(t *testing.T) {
	v := New("initial")

	var got []string
	v.Subscribe(func(s string) { got = append(got, s) })

	assert.Equal(t, []string{"initial"}, got)
}

func TestSetNotifiesInSubscriptionOrder(t *testing.T) {
	v := New(0)

	var order []string
	v.Subscribe(func(n int) {
		if n > 0 {
			order = append(order, "first")
		}
	})
	v.Subscribe(func(n int) {
		if n > 0 {
			order = append(order, "second")
		}
	})

	v.Set(1)
	v.Set(2)

	assert.Equal(t, []string{"first", "second", "first", "second"}, order)
	assert.Equal(t, 2, v.Get())
}

func TestUnsubscribe(t *testing.T) {
	v := New(0)

	calls := 0
	unsub := v.Subscribe(func(int) { calls++ })
	unsub()
	unsub() // second call is harmless

	v.Set(1)
	assert.Equal(t, 1, calls, "only the replay call")
}

func TestSubscriberMayReadDuringNotification(t *testing.T) {
	v := New(0)

	var seen int
	v.Subscribe(func(n int) { seen = v.Get() })
	v.Set(7)

	assert.Equal(t, 7, seen)
}
