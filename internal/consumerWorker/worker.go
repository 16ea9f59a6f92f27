package consumerWorker

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"eventhub/internal/dto"
	"eventhub/internal/rabbit"
)

type Consumer interface {
	Consume(ctx context.Context, handler rabbit.Handler) error
}

// TimeoutChecker settles a payment whose timeout message came due.
type TimeoutChecker interface {
	CheckTimeout(ctx context.Context, msg dto.PaymentTimeoutMessage) error
}

// Reader feeds delayed payment-timeout messages to the reconciler.
type Reader struct {
	rmq     Consumer
	checker TimeoutChecker
	log     *zerolog.Logger
	done    chan struct{}
	cancel  context.CancelFunc
}

func NewReader(rmq Consumer, checker TimeoutChecker, log *zerolog.Logger) *Reader {
	return &Reader{
		rmq:     rmq,
		checker: checker,
		log:     log,
		done:    make(chan struct{}),
	}
}

func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.log.Info().Msg("payment timeout reader started")

	go func() {
		defer close(r.done)

		if err := r.rmq.Consume(cctx, r.handle); err != nil {
			r.log.Error().Err(err).Msg("payment timeout consumer stopped")
			return
		}
		r.log.Info().Msg("payment timeout reader stopped by context")
	}()
}

func (r *Reader) handle(ctx context.Context, body []byte) error {
	var msg dto.PaymentTimeoutMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		// malformed messages are acked and dropped
		r.log.Error().Err(err).Str("body", string(body)).Msg("failed to unmarshal payment timeout message")
		return nil
	}

	r.log.Info().
		Str("kind", msg.Kind).
		Int64("id", msg.ID).
		Str("authority", msg.Authority).
		Msg("payment timeout due")

	if err := r.checker.CheckTimeout(ctx, msg); err != nil {
		r.log.Error().Err(err).Str("kind", msg.Kind).Int64("id", msg.ID).Msg("failed to check payment timeout")
		return err
	}
	return nil
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}
