package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestControllerAddr(t *testing.T) {
	addr := controllerAddr(kafka.Broker{Host: "broker-2.internal", Port: 9093})
	assert.Equal(t, "broker-2.internal:9093", addr)

	addr = controllerAddr(kafka.Broker{Host: "::1", Port: 9092})
	assert.Equal(t, "[::1]:9092", addr)
}
