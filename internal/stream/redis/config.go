package redis

const (
	DefaultRequestStream = "guard-requests"
	DefaultResultStream  = "guard-results"
	DefaultGroup         = "guard-group"
)

type RedisStreamConfig struct {
	RedisAddr     string
	RedisPassword string
	Stream        string
	// ResultStream receives one entry per processed request.
	ResultStream string
	Group        string
	ConsumerName string
}

func NewRedisStreamConfig(redisAddr string, redisPassword string, stream string, resultStream string, group string, consumerName string) *RedisStreamConfig {
	if stream == "" {
		stream = DefaultRequestStream
	}
	if resultStream == "" {
		resultStream = DefaultResultStream
	}
	if group == "" {
		group = DefaultGroup
	}
	if consumerName == "" {
		consumerName = "guard-consumer"
	}
	return &RedisStreamConfig{
		RedisAddr:     redisAddr,
		RedisPassword: redisPassword,
		Stream:        stream,
		ResultStream:  resultStream,
		Group:         group,
		ConsumerName:  consumerName,
	}
}
