package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"sync"
	"time"
)

// Publisher ships a digest batch somewhere (the Kafka producer in practice).
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type DigestConfig struct {
	FlushInterval  time.Duration // periodic flush (e.g. 30s)
	CountThreshold int           // distinct entries before an early flush
	Topic          string
	Publisher      Publisher
}

// DigestEntry counts repeats of one (level, message, fields, caller).
type DigestEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// Digest folds repeated warnings and errors (a degenerate column logged on
// every run, a flapping upstream) into counted entries and publishes them
// in batches.
type Digest struct {
	cfg     DigestConfig
	mu      sync.Mutex
	entries map[uint64]*DigestEntry
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewDigest(cfg DigestConfig) *Digest {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 30 * time.Second
	}
	if cfg.CountThreshold <= 0 {
		cfg.CountThreshold = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Digest{
		cfg:     cfg,
		entries: make(map[uint64]*DigestEntry),
		ctx:     ctx,
		cancel:  cancel,
	}
	d.wg.Add(1)
	go d.loop()
	return d
}

func (d *Digest) Add(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := digestKey(level, message, fields, caller)

	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.entries[key]; ok {
		e.Count++
		e.LastSeen = now
	} else {
		d.entries[key] = &DigestEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}
	if len(d.entries) >= d.cfg.CountThreshold {
		d.flushLocked()
	}
}

// Len is the number of distinct pending entries.
func (d *Digest) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

func digestKey(level, message string, fields map[string]interface{}, caller string) uint64 {
	// encoding/json sorts map keys, so equal field sets hash equally
	b, _ := json.Marshal(struct {
		L string                 `json:"l"`
		M string                 `json:"m"`
		F map[string]interface{} `json:"f"`
		C string                 `json:"c"`
	}{level, message, fields, caller})
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

func (d *Digest) loop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.mu.Lock()
			d.flushLocked()
			d.mu.Unlock()
		case <-d.ctx.Done():
			d.mu.Lock()
			batch := d.takeLocked()
			d.mu.Unlock()
			d.publish(batch)
			return
		}
	}
}

func (d *Digest) takeLocked() []DigestEntry {
	if len(d.entries) == 0 {
		return nil
	}
	batch := make([]DigestEntry, 0, len(d.entries))
	for _, e := range d.entries {
		batch = append(batch, *e)
	}
	d.entries = make(map[uint64]*DigestEntry)
	return batch
}

func (d *Digest) flushLocked() {
	batch := d.takeLocked()
	if batch == nil {
		return
	}
	go d.publish(batch)
}

func (d *Digest) publish(batch []DigestEntry) {
	if len(batch) == 0 || d.cfg.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := d.cfg.Publisher.PublishMessage(ctx, d.cfg.Topic, batch); err != nil {
		// cannot log through the logger that feeds us
		fmt.Fprintf(os.Stderr, "log digest publish failed: %v\n", err)
	}
}

// Close flushes synchronously and stops the loop.
func (d *Digest) Close() {
	d.cancel()
	d.wg.Wait()
}
