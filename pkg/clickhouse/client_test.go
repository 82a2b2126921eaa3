package clickhouse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(ClientConfig{
		Host:        "ch",
		Port:        9000,
		Database:    "prices",
		User:        "default",
		Password:    "pw",
		DialTimeout: 5 * time.Second,
		ReadTimeout: 10 * time.Second,
		MaxExecTime: 30 * time.Second,
		AsyncInsert: true,
	})
	assert.Equal(t, "clickhouse://default:pw@ch:9000/prices?dial_timeout=5s&read_timeout=10s&max_execution_time=30&async_insert=1", dsn)

	dsn = buildDSN(ClientConfig{Host: "ch", Port: 8123, Database: "prices", UseHTTP: true})
	assert.Equal(t, "clickhouse+http://:@ch:8123/prices", dsn)
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient()
	assert.Error(t, err)
}
