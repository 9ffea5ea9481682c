package docstore

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockerSerializesSameKey(t *testing.T) {
	l := NewLocker()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("123456")
			v := counter
			v++
			counter = v
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Zero(t, l.Len(), "entries are released")
}

func TestLockerIndependentKeys(t *testing.T) {
	l := NewLocker()
	a := l.Lock("a")
	done := make(chan struct{})
	go func() {
		b := l.Lock("b")
		b()
		close(done)
	}()
	<-done
	a()
}

func TestNoLockerNeverBlocks(t *testing.T) {
	var l NoLocker
	u1 := l.Lock("k")
	u2 := l.Lock("k")
	u1()
	u2()
}
