package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type recordingEmitter struct {
	got []Notification
	err error
}

func (r *recordingEmitter) Notify(_ context.Context, n Notification) error {
	r.got = append(r.got, n)
	return r.err
}

func sample() Notification {
	return Notification{
		ID:         uuid.New(),
		BorrowerID: "b-1",
		Kind:       KindPaymentApproved,
		Title:      "Payment approved",
		Message:    "Your payment of 945.60 was approved.",
		LoanID:     uuid.New(),
	}
}

func TestKafkaEmitter_Notify(t *testing.T) {
	w := &fakeWriter{}
	e := &KafkaEmitter{writer: w, topic: "loan-notifications", logger: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))}
	n := sample()

	require.NoError(t, e.Notify(context.Background(), n))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("b-1"), w.msgs[0].Key)
	assert.Equal(t, "kind", w.msgs[0].Headers[0].Key)
	assert.Equal(t, []byte(KindPaymentApproved), w.msgs[0].Headers[0].Value)

	var decoded Notification
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, n.LoanID, decoded.LoanID)
	assert.Equal(t, n.Message, decoded.Message)

	require.NoError(t, e.Close())
	assert.True(t, w.closed)
}

func TestKafkaEmitter_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	e := &KafkaEmitter{writer: w, topic: "loan-notifications", logger: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))}

	err := e.Notify(context.Background(), sample())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loan-notifications")
}

func TestLogEmitter(t *testing.T) {
	var buf bytes.Buffer
	e := NewLogEmitter(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, e.Notify(context.Background(), sample()))
	assert.Contains(t, buf.String(), `"kind":"payment_approved"`)
}

func TestFanout_DeliversToAllAndJoinsErrors(t *testing.T) {
	ok := &recordingEmitter{}
	failing := &recordingEmitter{err: errors.New("unreachable")}

	err := Fanout{failing, ok}.Notify(context.Background(), sample())
	require.Error(t, err)
	assert.Len(t, ok.got, 1)
	assert.Len(t, failing.got, 1)

	assert.NoError(t, Fanout{ok}.Notify(context.Background(), sample()))
}
