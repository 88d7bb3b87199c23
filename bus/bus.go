// bus.go
package bus

import (
	"context"
	"sync"
	"sync/atomic"
)

// -----------------------------------------------------------------------------
// Topics
// -----------------------------------------------------------------------------

// Topic is a sequence of comparable tokens (strings, ints). Subscriptions may
// use the wildcard tokens "+" (exactly one level) and "#" (this level and
// everything below); published topics must be concrete.
type Topic []any

// Wildcard tokens.
const (
	WildcardOne = "+"
	WildcardAll = "#"
)

// T builds a Topic from tokens. It panics if a token is not comparable, so
// malformed topics fail at construction and not deep inside the trie.
func T(tokens ...any) Topic {
	for _, tok := range tokens {
		// Comparing a non-comparable dynamic type panics at runtime.
		_ = tok == tok
	}
	return Topic(tokens)
}

// -----------------------------------------------------------------------------
// Messages
// -----------------------------------------------------------------------------

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	ReplyTo  Topic
}

// NewMessage builds a message. A retained message with a nil payload clears
// the retained slot at its topic.
func (b *Bus) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained}
}

// NewMessage on a connection mirrors Bus.NewMessage for call-site convenience.
func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(topic, payload, retained)
}

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	topic Topic
	ch    chan *Message
	conn  *Connection
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// push delivers without blocking, dropping the oldest queued message when the
// subscriber queue is full.
func (s *Subscription) push(m *Message) {
	select {
	case s.ch <- m:
	default:
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- m:
		default:
		}
	}
}

// -----------------------------------------------------------------------------
// Trie
// -----------------------------------------------------------------------------

// One trie holds both subscription patterns (which may contain wildcard
// tokens) and retained messages (stored at concrete paths only).
type node struct {
	children map[any]*node
	subs     []*Subscription
	retained *Message
}

func (n *node) child(tok any) *node {
	if n.children == nil {
		return nil
	}
	return n.children[tok]
}

func (n *node) ensure(tok any) *node {
	if n.children == nil {
		n.children = make(map[any]*node)
	}
	c, ok := n.children[tok]
	if !ok {
		c = &node{}
		n.children[tok] = c
	}
	return c
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

type Bus struct {
	mu    sync.Mutex
	root  *node
	qLen  int
	reqID atomic.Uint64
}

// NewBus creates a new bus with the given subscription queue length.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8 // safe default
	}
	return &Bus{root: &node{}, qLen: queueLen}
}

func (b *Bus) addSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	for _, tok := range sub.topic {
		n = n.ensure(tok)
	}
	n.subs = append(n.subs, sub)

	// Deliver retained messages matching the pattern.
	b.deliverRetained(b.root, sub.topic, sub)
}

// deliverRetained walks the trie along a (possibly wildcarded) pattern and
// pushes every retained message it matches. Caller holds b.mu.
func (b *Bus) deliverRetained(n *node, pat Topic, sub *Subscription) {
	if len(pat) == 0 {
		if n.retained != nil {
			sub.push(n.retained)
		}
		return
	}
	switch pat[0] {
	case any(WildcardAll):
		b.retainedSubtree(n, sub)
	case any(WildcardOne):
		for _, c := range n.children {
			b.deliverRetained(c, pat[1:], sub)
		}
	default:
		if c := n.child(pat[0]); c != nil {
			b.deliverRetained(c, pat[1:], sub)
		}
	}
}

func (b *Bus) retainedSubtree(n *node, sub *Subscription) {
	if n.retained != nil {
		sub.push(n.retained)
	}
	for _, c := range n.children {
		b.retainedSubtree(c, sub)
	}
}

// Publish delivers a message to every subscription whose pattern matches the
// concrete topic, then stores or clears the retained slot.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.matchAndDeliver(b.root, msg.Topic, msg)

	if msg.Retained {
		n := b.root
		for _, tok := range msg.Topic {
			n = n.ensure(tok)
		}
		if msg.Payload == nil {
			n.retained = nil
		} else {
			n.retained = msg
		}
	}
}

// matchAndDeliver walks the pattern trie against a concrete topic.
// Caller holds b.mu.
func (b *Bus) matchAndDeliver(n *node, topic Topic, msg *Message) {
	// "a/#" matches "a" itself and everything below.
	if c := n.child(any(WildcardAll)); c != nil {
		for _, sub := range c.subs {
			sub.push(msg)
		}
	}
	if len(topic) == 0 {
		for _, sub := range n.subs {
			sub.push(msg)
		}
		return
	}
	if c := n.child(topic[0]); c != nil {
		b.matchAndDeliver(c, topic[1:], msg)
	}
	if c := n.child(any(WildcardOne)); c != nil {
		b.matchAndDeliver(c, topic[1:], msg)
	}
}

func (b *Bus) removeSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	var stack []*node
	for _, tok := range sub.topic {
		c := n.child(tok)
		if c == nil {
			return
		}
		stack = append(stack, n)
		n = c
	}

	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}

	// Prune empty nodes.
	for i := len(sub.topic) - 1; i >= 0; i-- {
		parent := stack[i]
		key := sub.topic[i]
		child := parent.children[key]
		if len(child.subs) == 0 && len(child.children) == 0 && child.retained == nil {
			delete(parent.children, key)
		} else {
			break
		}
	}
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

type Connection struct {
	bus  *Bus
	mu   sync.Mutex
	subs []*Subscription
	id   string
}

// NewConnection creates a new connection bound to this bus.
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

// Publish sends a message via the bus.
func (c *Connection) Publish(msg *Message) {
	c.bus.Publish(msg)
}

// Subscribe registers a subscription owned by this connection.
func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan *Message, c.bus.qLen),
		conn:  c,
	}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	c.bus.addSubscription(sub)
	return sub
}

// Unsubscribe removes a subscription owned by this connection. Safe to call
// more than once; the channel is closed exactly once.
func (c *Connection) Unsubscribe(sub *Subscription) {
	c.mu.Lock()
	owned := false
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			owned = true
			break
		}
	}
	c.mu.Unlock()
	if !owned {
		return
	}
	c.bus.removeSubscription(sub)
	close(sub.ch)
}

// Disconnect closes all subscriptions and clears them.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		c.bus.removeSubscription(sub)
		close(sub.ch)
	}
}

// -----------------------------------------------------------------------------
// Request / Reply
// -----------------------------------------------------------------------------

// Request assigns the message a unique ReplyTo topic, subscribes to it, and
// publishes the request. The caller owns the returned subscription.
func (c *Connection) Request(msg *Message) *Subscription {
	msg.ReplyTo = Topic{"$reply", c.id, int(c.bus.reqID.Add(1))}
	sub := c.Subscribe(msg.ReplyTo)
	c.Publish(msg)
	return sub
}

// RequestWait publishes a request and blocks for a single reply or context
// cancellation.
func (c *Connection) RequestWait(ctx context.Context, msg *Message) (*Message, error) {
	sub := c.Request(msg)
	defer c.Unsubscribe(sub)
	select {
	case reply := <-sub.ch:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Reply publishes a response on the request's ReplyTo topic. Requests without
// a ReplyTo are dropped silently.
func (c *Connection) Reply(req *Message, payload any, retained bool) {
	if len(req.ReplyTo) == 0 {
		return
	}
	c.Publish(&Message{Topic: req.ReplyTo, Payload: payload, Retained: retained})
}
