package events

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/domain"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/pkg/errors"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &recordingWriter{}
	p := newKafkaPublisher(w, nil)

	session := &domain.CheckoutSession{ID: "gid://shopify/Cart/c1", AttemptID: "attempt-1", Tenant: "LUNA", Market: "DE"}
	require.NoError(t, p.Publish(context.Background(), SessionCreated(session)))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "attempt-1", string(msg.Key))
	assert.Equal(t, []kafka.Header{{Key: "type", Value: []byte(TypeSessionCreated)}}, msg.Headers)

	var got CheckoutEvent
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "created", got.Outcome)
	assert.Equal(t, "gid://shopify/Cart/c1", got.SessionID)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteFailureIsUpstream(t *testing.T) {
	p := newKafkaPublisher(&recordingWriter{err: fmt.Errorf("broker down")}, nil)

	err := p.Publish(context.Background(), CheckoutEvent{AttemptID: "a"})
	var upstream *errors.ErrUpstream
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "kafka", upstream.Service)
}

func TestRejected(t *testing.T) {
	sc := domain.StoreContext{Tenant: "LUNA", Market: "FI"}

	retry := Rejected("a1", sc, errors.NewRejection(errors.KindIndexingDelay, 30*time.Second, "not yet visible", nil))
	assert.Equal(t, "retry", retry.Outcome)
	assert.Equal(t, TypeRejected, retry.Type)

	hard := Rejected("a2", sc, errors.NewRejection(errors.KindOutOfStock, 0, "cart failed validation", []errors.Reason{{Kind: errors.KindOutOfStock}}))
	assert.Equal(t, "rejected", hard.Outcome)
	assert.Len(t, hard.Reasons, 1)
}

func TestNewKafkaPublisher_Validation(t *testing.T) {
	_, err := NewKafkaPublisher(" , ", "topic", nil)
	assert.Error(t, err)
	_, err = NewKafkaPublisher("localhost:9092", "", nil)
	assert.Error(t, err)

	p, err := NewKafkaPublisher("localhost:9092, localhost:9093", "storefront.checkout", nil)
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}
