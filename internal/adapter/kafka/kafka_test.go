package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/couchcryptid/election-map-etl/internal/domain"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func testRow() domain.MergedRow {
	return domain.MergedRow{
		ID: "09110", Name: "Capitol", State: "CT", County: "Capitol",
		Votes:      domain.PartyVotes{Dem: 300000, GOP: 200000, Green: 1000},
		Population: 976248,
		Geometry:   geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{-72.7, 41.8}),
	}
}

func TestSerializeToMessage(t *testing.T) {
	run := domain.Run{Source: domain.SourceNYT2024, Year: 2024, ID: "3f1c1f0e-8d7a-4d0b-9f52-0c9c1a9f7e21"}

	msg, err := serializeToMessage(run, testRow())
	require.NoError(t, err)

	assert.Equal(t, []byte("09110"), msg.Key)
	assert.JSONEq(t, `{"id":"09110","name":"Capitol","state":"CT","county":"Capitol",
		"dem":300000,"gop":200000,"lib":0,"grn":1000,"una":0,"oth":0,"population":976248}`, string(msg.Value))
	assert.NotContains(t, string(msg.Value), "coordinates")
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, kafkago.Header{Key: "source", Value: []byte("nyt2024")}, msg.Headers[0])
	assert.Equal(t, kafkago.Header{Key: "year", Value: []byte("2024")}, msg.Headers[1])
	assert.Equal(t, "run_id", msg.Headers[2].Key)
	assert.Equal(t, []byte(run.ID), msg.Headers[2].Value)
}

func TestWriter_Publish(t *testing.T) {
	fw := &fakeWriter{}
	w := &Writer{writer: fw, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	require.NoError(t, w.Publish(context.Background(), domain.Run{Source: "mit", Year: 2008}, nil))
	assert.Empty(t, fw.msgs)

	rows := []domain.MergedRow{testRow(), testRow()}
	rows[1].ID = "09120"
	require.NoError(t, w.Publish(context.Background(), domain.Run{Source: "mit", Year: 2008, ID: "r"}, rows))
	require.Len(t, fw.msgs, 2)
	assert.Equal(t, "09120", string(fw.msgs[1].Key))

	fw.err = errors.New("leader not available")
	err := w.Publish(context.Background(), domain.Run{}, rows)
	require.ErrorIs(t, err, fw.err)

	require.NoError(t, w.Close())
	assert.True(t, fw.closed)
}
