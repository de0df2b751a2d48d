package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

var testLogger = ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

func TestDecodePairRequest(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    models.ContactPair
		wantErr bool
	}{
		{"numbers", `{"contact_id_1":1,"contact_id_2":2}`, models.ContactPair{ContactID1: 1, ContactID2: 2}, false},
		{"strings", `{"contact_id_1":"9","contact_id_2":" 5 "}`, models.ContactPair{ContactID1: 9, ContactID2: 5}, false},
		{"equal ids decode", `{"contact_id_1":4,"contact_id_2":4}`, models.ContactPair{ContactID1: 4, ContactID2: 4}, false},
		{"missing id", `{"contact_id_1":1}`, models.ContactPair{}, true},
		{"null id", `{"contact_id_1":1,"contact_id_2":null}`, models.ContactPair{}, true},
		{"non numeric", `{"contact_id_1":"abc","contact_id_2":2}`, models.ContactPair{}, true},
		{"fractional", `{"contact_id_1":1.5,"contact_id_2":2}`, models.ContactPair{}, true},
		{"not json", `contact 1 and 2`, models.ContactPair{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePairRequest([]byte(tt.value))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDedupeEventKey(t *testing.T) {
	assert.Equal(t, "3:7", (&DedupeEvent{ContactID1: 7, ContactID2: 3}).Key())
	assert.Equal(t, "3:7", (&DedupeEvent{ContactID1: 3, ContactID2: 7}).Key())
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestProducerPublish(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "dedupe-events", testLogger)

	err := p.Publish(context.Background(), &DedupeEvent{
		EventType:   "candidate.upserted",
		CandidateID: "c-1",
		ContactID1:  9,
		ContactID2:  5,
		Score:       0.61,
		Status:      models.CandidateStatusPending,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "5:9", string(msg.Key))
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, "candidate.upserted", string(msg.Headers[0].Value))

	var decoded DedupeEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "c-1", decoded.CandidateID)
	assert.False(t, decoded.Timestamp.IsZero())

	w.err = errors.New("broker down")
	assert.Error(t, p.Publish(context.Background(), &DedupeEvent{EventType: "candidate.rejected"}))
}

type fakeReader struct {
	ch        chan kafka.Message
	mu        sync.Mutex
	committed []int64
}

func newFakeReader(values ...string) *fakeReader {
	r := &fakeReader{ch: make(chan kafka.Message, len(values))}
	for i, v := range values {
		r.ch <- kafka.Message{Value: []byte(v), Offset: int64(i)}
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case msg := <-r.ch:
		return msg, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) Committed() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func TestPairConsumer_BatchesAndCommits(t *testing.T) {
	reader := newFakeReader(
		`{"contact_id_1":1,"contact_id_2":2}`,
		`garbage`,
		`{"contact_id_1":3,"contact_id_2":4}`,
	)

	var (
		mu      sync.Mutex
		batches [][]models.ContactPair
	)
	handler := func(_ context.Context, pairs []models.ContactPair) error {
		mu.Lock()
		defer mu.Unlock()
		batches = append(batches, pairs)
		return nil
	}

	c := newPairConsumer(reader, ConsumerConfig{Topic: "dedupe-pair-requests", BatchSize: 10, FlushInterval: 50 * time.Millisecond}, testLogger, handler)
	require.NoError(t, c.Start(context.Background()))

	assert.Eventually(t, func() bool { return len(reader.Committed()) == 3 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, c.Stop())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, batches, 1)
	assert.Equal(t, []models.ContactPair{{ContactID1: 1, ContactID2: 2}, {ContactID1: 3, ContactID2: 4}}, batches[0])
}

func TestPairConsumer_HandlerFailureSkipsCommit(t *testing.T) {
	reader := newFakeReader(`{"contact_id_1":1,"contact_id_2":2}`)
	called := make(chan struct{}, 1)
	handler := func(context.Context, []models.ContactPair) error {
		called <- struct{}{}
		return errors.New("database unavailable")
	}

	c := newPairConsumer(reader, ConsumerConfig{BatchSize: 1}, testLogger, handler)
	require.NoError(t, c.Start(context.Background()))

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}
	require.NoError(t, c.Stop())
	assert.Empty(t, reader.Committed())
}

func TestFetchBatch_StopsAtBatchSize(t *testing.T) {
	reader := newFakeReader(`{}`, `{}`, `{}`)
	c := newPairConsumer(reader, ConsumerConfig{BatchSize: 2, FlushInterval: time.Second}, testLogger, nil)

	msgs, err := c.fetchBatch(context.Background())
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}
