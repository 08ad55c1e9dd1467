package notification

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	mu     sync.Mutex
	events []int
}

func (r *recorder) Send(e int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) got() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.events...)
}

type failingStream struct{ calls int }

func (f *failingStream) Send(int) error {
	f.calls++
	return errors.New("stream closed")
}

func TestManager_DeliversInPublishOrder(t *testing.T) {
	m := NewManager[int]()
	defer m.Close()

	first, second := &recorder{}, &recorder{}
	m.Subscribe(first)
	m.Subscribe(second)

	for i := 1; i <= 50; i++ {
		m.Publish(i)
	}
	m.Flush()

	expected := make([]int, 50)
	for i := range expected {
		expected[i] = i + 1
	}
	assert.Equal(t, expected, first.got())
	assert.Equal(t, expected, second.got())
}

func TestManager_Unsubscribe(t *testing.T) {
	m := NewManager[int]()
	defer m.Close()

	r := &recorder{}
	id := m.Subscribe(r)
	assert.Equal(t, 1, m.SubscriberCount())

	m.Publish(1)
	m.Flush()
	m.Unsubscribe(id)
	m.Publish(2)
	m.Flush()

	assert.Equal(t, []int{1}, r.got())
	assert.Equal(t, 0, m.SubscriberCount())
}

func TestManager_DropsFailingStream(t *testing.T) {
	m := NewManager[int]()
	defer m.Close()

	f := &failingStream{}
	m.Subscribe(f)

	m.Publish(1)
	m.Publish(2)
	m.Flush()

	assert.Equal(t, 1, f.calls)
	assert.Equal(t, 0, m.SubscriberCount())
}

func TestManager_HandlerMayPublish(t *testing.T) {
	m := NewManager[int]()
	defer m.Close()

	r := &recorder{}
	m.Subscribe(HandlerFunc[int](func(e int) {
		if e == 1 {
			m.Publish(2)
		}
	}))
	m.Subscribe(r)

	m.Publish(1)
	m.Flush()

	assert.Equal(t, []int{1, 2}, r.got())
}

func TestManager_CloseDrainsAndDropsLatePublishes(t *testing.T) {
	m := NewManager[int]()

	r := &recorder{}
	m.Subscribe(r)
	m.Publish(1)
	m.Close()
	m.Publish(2)
	m.Close()

	assert.Equal(t, []int{1}, r.got())
	assert.Equal(t, 0, m.SubscriberCount())
}
