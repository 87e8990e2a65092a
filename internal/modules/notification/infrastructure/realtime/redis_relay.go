package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultChannel = "petcuddles:notifications"

const publishTimeout = 2 * time.Second

// LocalSender delivers to the connections held by this process.
type LocalSender interface {
	SendToUser(userID uuid.UUID, msg []byte)
}

type envelope struct {
	UserID  uuid.UUID       `json:"user_id"`
	Payload json.RawMessage `json:"payload"`
}

// RedisRelay fans user pushes out to every instance through Redis pub/sub.
// Each instance runs Run to feed received pushes into its own hub.
type RedisRelay struct {
	client  *redis.Client
	channel string
	local   LocalSender
	logger  *zap.Logger
}

func NewRedisRelay(client *redis.Client, local LocalSender, logger *zap.Logger) *RedisRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRelay{client: client, channel: DefaultChannel, local: local, logger: logger}
}

// SendToUser publishes the push. If Redis is unavailable the push is
// delivered locally so single-instance deployments keep working.
func (r *RedisRelay) SendToUser(userID uuid.UUID, msg []byte) {
	body, err := json.Marshal(envelope{UserID: userID, Payload: msg})
	if err != nil {
		r.logger.Warn("[Relay] encode failed, delivering locally", zap.Error(err))
		r.local.SendToUser(userID, msg)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, body).Err(); err != nil {
		r.logger.Warn("[Relay] publish failed, delivering locally", zap.Error(err))
		r.local.SendToUser(userID, msg)
	}
}

// Run subscribes to the relay channel until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	r.logger.Info("[Relay] subscribed", zap.String("channel", r.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			r.deliver(m.Payload)
		}
	}
}

func (r *RedisRelay) deliver(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil || env.UserID == uuid.Nil {
		r.logger.Warn("[Relay] ignoring malformed push", zap.Error(err))
		return
	}
	r.local.SendToUser(env.UserID, env.Payload)
}
