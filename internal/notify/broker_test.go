package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"Mansoor88-6/team-time-tracker/internal/models"
)

func TestBroker_FanOutWithIncreasingSeq(t *testing.T) {
	b := NewBroker(zap.NewNop())
	first, cancelFirst := b.Subscribe(4)
	defer cancelFirst()
	second, cancelSecond := b.Subscribe(4)
	defer cancelSecond()

	b.Publish(models.ChangeEvent{Table: models.TableTasks, Type: models.EventInsert})
	b.Publish(models.ChangeEvent{Table: models.TableTimeEntries, Type: models.EventUpdate})

	for _, ch := range []<-chan models.ChangeEvent{first, second} {
		e1 := <-ch
		e2 := <-ch
		assert.Equal(t, int64(1), e1.Seq)
		assert.Equal(t, int64(2), e2.Seq)
		assert.Equal(t, models.TableTimeEntries, e2.Table)
		assert.False(t, e1.Timestamp.IsZero())
	}
	assert.Equal(t, int64(2), b.Seq())
}

func TestBroker_SlowSubscriberIsDisconnected(t *testing.T) {
	b := NewBroker(zap.NewNop())
	slow, cancel := b.Subscribe(1)
	defer cancel()

	b.Publish(models.ChangeEvent{Type: models.EventInsert})
	b.Publish(models.ChangeEvent{Type: models.EventInsert})

	e, ok := <-slow
	require.True(t, ok)
	assert.Equal(t, int64(1), e.Seq)

	_, ok = <-slow
	assert.False(t, ok, "channel closed after overflow")
	assert.Equal(t, 0, b.Subscribers())
}

func TestBroker_CancelIsIdempotent(t *testing.T) {
	b := NewBroker(zap.NewNop())
	ch, cancel := b.Subscribe(0)

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, b.Subscribers())
}

func TestBroker_Close(t *testing.T) {
	b := NewBroker(zap.NewNop())
	ch, cancel := b.Subscribe(1)

	b.Close()
	b.Close()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	event := b.Publish(models.ChangeEvent{})
	assert.Equal(t, int64(1), event.Seq)

	late, _ := b.Subscribe(1)
	_, ok = <-late
	assert.False(t, ok)
}
