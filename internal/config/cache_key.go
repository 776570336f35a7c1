package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionCodeKey returns the cache key for the session behind a join code.
// The key holds a hash of the status rank and the session payload.
func (r *CacheKeyStruct) SessionCodeKey(code string) string {
	return fmt.Sprintf("session:code:%s", code)
}

// SessionSubmittedKey returns the cache key for the set of students who submitted to a session
func (r *CacheKeyStruct) SessionSubmittedKey(sessionID string) string {
	return fmt.Sprintf("session:%s:submitted", sessionID)
}

// StudentDraftsKey returns the cache key for a student's autosaved answers
func (r *CacheKeyStruct) StudentDraftsKey(sessionID, studentID string) string {
	return fmt.Sprintf("session:%s:student:%s:drafts", sessionID, studentID)
}

// SessionMonitorChannel returns the Redis PubSub channel name for a session's live monitor
func (r *CacheKeyStruct) SessionMonitorChannel(sessionID string) string {
	return fmt.Sprintf("session:%s:monitor", sessionID)
}

var CacheKey = NewCacheKeyStruct()
