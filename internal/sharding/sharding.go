package sharding

import (
	"strconv"
	"strings"

	"github.com/segmentio/kafka-go"
)

type ShardRouter struct {
	ShardCount int // Number of shards
}

func NewShardRouter(shardCount int) *ShardRouter {
	return &ShardRouter{ShardCount: shardCount}
}

func (r *ShardRouter) GetShard(id int64) int {
	if r.ShardCount <= 0 {
		return 0
	}
	shardIndex := id % int64(r.ShardCount)
	if shardIndex < 0 {
		shardIndex = -shardIndex
	}
	return int(shardIndex)
}

// OrderBalancer is a kafka.Balancer that keeps every event of one order on the
// same partition, so consumers observe created before paid or cancelled.
// Messages whose key carries no order id go to the fallback balancer.
type OrderBalancer struct {
	Fallback kafka.Balancer
}

func NewOrderBalancer() *OrderBalancer {
	return &OrderBalancer{Fallback: &kafka.LeastBytes{}}
}

var _ kafka.Balancer = (*OrderBalancer)(nil)

func (b *OrderBalancer) Balance(msg kafka.Message, partitions ...int) int {
	id, ok := OrderIDFromKey(msg.Key)
	if !ok || len(partitions) == 0 {
		return b.Fallback.Balance(msg, partitions...)
	}
	return partitions[NewShardRouter(len(partitions)).GetShard(id)]
}

// OrderIDFromKey extracts the trailing id of a key shaped "order.<event>.<id>".
func OrderIDFromKey(key []byte) (int64, bool) {
	parts := strings.Split(string(key), ".")
	if len(parts) != 3 || parts[0] != "order" {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
