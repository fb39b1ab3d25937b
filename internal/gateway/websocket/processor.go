package websocket

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/AlibekovAA/crypt-ledger/internal/common/constants"
	"github.com/AlibekovAA/crypt-ledger/internal/common/logger"
	"github.com/AlibekovAA/crypt-ledger/internal/observability/metrics"
)

type messageTask struct {
	client *Client
	msg    *WSMessage
	ctx    context.Context
}

// MessageProcessor runs one worker per shard. A user always lands on the same shard,
// so their messages are handled in arrival order.
type MessageProcessor struct {
	shards  []chan messageTask
	router  MessageRouter
	log     *logger.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewMessageProcessor(shards int, router MessageRouter, log *logger.Logger, queueSize int, timeout time.Duration) *MessageProcessor {
	if shards <= 0 {
		shards = constants.GatewayProcessorShards
	}
	if queueSize <= 0 {
		queueSize = constants.GatewayProcessorQueueSize
	}
	if timeout <= 0 {
		timeout = constants.GatewayProcessorTimeout
	}

	p := &MessageProcessor{
		shards:  make([]chan messageTask, shards),
		router:  router,
		log:     log,
		timeout: timeout,
	}

	for i := range p.shards {
		p.shards[i] = make(chan messageTask, queueSize)
		p.wg.Add(1)
		go p.worker(i)
	}

	return p
}

func (p *MessageProcessor) shardFor(externalID string) int {
	h := fnv.New32a()
	h.Write([]byte(externalID))
	return int(h.Sum32() % uint32(len(p.shards)))
}

func (p *MessageProcessor) worker(shard int) {
	defer p.wg.Done()
	label := strconv.Itoa(shard)
	for task := range p.shards[shard] {
		metrics.GatewayQueueDepth.WithLabelValues(label).Set(float64(len(p.shards[shard])))
		p.process(task.ctx, task.client, task.msg)
	}
}

func (p *MessageProcessor) process(ctx context.Context, client *Client, msg *WSMessage) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			metrics.GatewayErrors.WithLabelValues("panic").Inc()
			p.log.WithFields(ctx, logger.Fields{
				"external_id": client.ExternalID(),
				"type":        string(msg.Type),
				"panic":       rec,
				"action":      "ws_processing_panic",
			}).Critical("websocket message processing panicked")
		}
		metrics.GatewayProcessingDurationSeconds.WithLabelValues(string(msg.Type)).Observe(time.Since(start).Seconds())
	}()

	if err := p.router.Route(ctx, client, msg); err != nil {
		p.log.WithFields(ctx, logger.Fields{
			"external_id": client.ExternalID(),
			"type":        string(msg.Type),
			"action":      "ws_message_processing_failed",
		}).Warnf("websocket message processing failed: %v", err)
	}
}

// Submit queues msg and reports false when the shard is full or the processor is stopped.
func (p *MessageProcessor) Submit(ctx context.Context, client *Client, msg *WSMessage) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}

	shard := p.shardFor(client.ExternalID())
	queue := p.shards[shard]
	task := messageTask{
		client: client,
		msg:    msg,
		ctx:    ctx,
	}

	select {
	case queue <- task:
		metrics.GatewayQueueDepth.WithLabelValues(strconv.Itoa(shard)).Set(float64(len(queue)))
		return true
	default:
		p.log.WithFields(ctx, logger.Fields{
			"external_id": client.ExternalID(),
			"type":        string(msg.Type),
			"shard":       shard,
			"action":      "ws_queue_full",
		}).Warn("websocket message queue full")
		return false
	}
}

// Shutdown stops accepting work and waits for queued messages to drain.
func (p *MessageProcessor) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, queue := range p.shards {
		close(queue)
	}
	p.mu.Unlock()

	p.wg.Wait()
}
