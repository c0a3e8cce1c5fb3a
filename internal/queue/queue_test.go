package queue

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAcknowledger struct {
	acks  int
	nacks int
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error { f.acks++; return nil }

func (f *fakeAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	f.nacks++
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error { return nil }

type published struct {
	body    []byte
	retries int
}

func testConsumer() (*Consumer, *[]published) {
	var out []published
	c := &Consumer{log: zerolog.Nop()}
	c.publish = func(body []byte, retries int) error {
		out = append(out, published{body: body, retries: retries})
		return nil
	}
	return c, &out
}

func delivery(ack *fakeAcknowledger, campaignID, retries int) amqp.Delivery {
	body, _ := json.Marshal(DispatchJob{CampaignID: campaignID})
	d := amqp.Delivery{Acknowledger: ack, Body: body}
	if retries > 0 {
		d.Headers = amqp.Table{"x-retry-count": int32(retries)}
	}
	return d
}

func TestProcessAcksOnSuccess(t *testing.T) {
	c, out := testConsumer()
	ack := &fakeAcknowledger{}

	var got []int
	c.process(delivery(ack, 5, 0), func(job DispatchJob) error {
		got = append(got, job.CampaignID)
		return nil
	})

	assert.Equal(t, []int{5}, got)
	assert.Equal(t, 1, ack.acks)
	assert.Empty(t, *out)
}

func TestProcessReenqueuesWithIncrementedCount(t *testing.T) {
	c, out := testConsumer()
	ack := &fakeAcknowledger{}

	c.process(delivery(ack, 5, 0), func(job DispatchJob) error {
		return errors.New("resolver down")
	})

	// The original delivery is acked; the retry is a fresh message carrying
	// the advanced count, so the cap can actually engage.
	assert.Equal(t, 1, ack.acks)
	assert.Equal(t, 0, ack.nacks)
	require.Len(t, *out, 1)
	assert.Equal(t, 1, (*out)[0].retries)

	var job DispatchJob
	require.NoError(t, json.Unmarshal((*out)[0].body, &job))
	assert.Equal(t, 5, job.CampaignID)
}

func TestProcessDropsAfterMaxAttempts(t *testing.T) {
	c, out := testConsumer()
	ack := &fakeAcknowledger{}

	c.process(delivery(ack, 5, maxDeliveryAttempts-1), func(job DispatchJob) error {
		return errors.New("resolver down")
	})

	assert.Equal(t, 1, ack.acks)
	assert.Empty(t, *out, "exhausted job must not be re-enqueued")
}

func TestProcessRetryCountAdvancesToCap(t *testing.T) {
	c, out := testConsumer()
	fail := func(job DispatchJob) error { return errors.New("still down") }

	// Walk one job through every redelivery until the cap drops it.
	ack := &fakeAcknowledger{}
	c.process(delivery(ack, 9, 0), fail)
	for len(*out) > 0 {
		d := amqp.Delivery{
			Acknowledger: ack,
			Body:         (*out)[0].body,
			Headers:      amqp.Table{"x-retry-count": int32((*out)[0].retries)},
		}
		*out = (*out)[1:]
		c.process(d, fail)
	}

	assert.Equal(t, maxDeliveryAttempts, ack.acks)
}

func TestProcessDropsUnparseableJob(t *testing.T) {
	c, out := testConsumer()
	ack := &fakeAcknowledger{}

	c.process(amqp.Delivery{Acknowledger: ack, Body: []byte("not json")}, func(job DispatchJob) error {
		t.Fatal("handler must not run for an unparseable job")
		return nil
	})

	assert.Equal(t, 1, ack.acks)
	assert.Empty(t, *out)
}
