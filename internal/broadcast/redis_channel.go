package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"idlegate/internal/constants"
)

// RedisChannel is a channel member backed by Redis pub/sub, so tabs served
// by different processes still hear each other.
type RedisChannel struct {
	client   *redis.Client
	topic    string
	id       string
	handlers handlerSet
	pubsub   *redis.PubSub
	ctx      context.Context
	cancel   func()
	wg       sync.WaitGroup
}

// JoinRedis subscribes to the named channel. The client is shared and is not
// closed by the channel.
func JoinRedis(ctx context.Context, client *redis.Client, name string) (*RedisChannel, error) {
	listenCtx, cancel := context.WithCancel(context.Background())

	c := &RedisChannel{
		client: client,
		topic:  constants.RedisBroadcastPref + name,
		id:     uuid.New().String(),
		ctx:    listenCtx,
		cancel: cancel,
	}

	c.pubsub = client.Subscribe(listenCtx, c.topic)
	if _, err := c.pubsub.Receive(ctx); err != nil {
		c.pubsub.Close()
		cancel()
		return nil, fmt.Errorf("broadcast: subscribe %s: %w", c.topic, err)
	}

	c.wg.Add(1)
	go c.listen()
	return c, nil
}

func (c *RedisChannel) Post(ctx context.Context, msg Message) error {
	msg.Sender = c.id
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("broadcast: marshal: %w", err)
	}
	if err := c.client.Publish(ctx, c.topic, payload).Err(); err != nil {
		return fmt.Errorf("broadcast: publish: %w", err)
	}
	return nil
}

func (c *RedisChannel) OnMessage(fn func(Message)) func() {
	return c.handlers.add(fn)
}

func (c *RedisChannel) Close() error {
	c.cancel()
	err := c.pubsub.Close()
	c.wg.Wait()
	c.handlers.clear()
	return err
}

func (c *RedisChannel) listen() {
	defer c.wg.Done()

	ch := c.pubsub.Channel()
	for {
		select {
		case <-c.ctx.Done():
			return
		case raw, ok := <-ch:
			if !ok {
				return
			}
			var msg Message
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				log.Printf("Failed to decode broadcast on %s: %v", c.topic, err)
				continue
			}
			if msg.Sender == c.id {
				continue
			}
			c.handlers.dispatch(msg)
		}
	}
}
