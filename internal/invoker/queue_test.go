package invoker

import (
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaign-engine/internal/common/errors"
)

func TestConnectionPoolChannelAfterClose(t *testing.T) {
	pool := &connectionPool{
		url:         "amqp://localhost:5672",
		connections: make(chan *amqp.Connection, 1),
	}
	pool.close()

	ch, conn, err := pool.channel()
	assert.Nil(t, ch)
	assert.Nil(t, conn)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConnection))
}

func TestConnectionPoolChannelRacingClose(t *testing.T) {
	// close() can land between the closed check and the channel receive;
	// the drained channel must surface an error, not a nil connection.
	pool := &connectionPool{
		url:         "amqp://localhost:5672",
		connections: make(chan *amqp.Connection, 1),
	}
	close(pool.connections)

	ch, conn, err := pool.channel()
	assert.Nil(t, ch)
	assert.Nil(t, conn)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConnection))
}
