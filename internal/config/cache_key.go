package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AuthSessionKey returns the storage key for the persisted auth session (token + user).
func (r *CacheKeyStruct) AuthSessionKey() string {
	return "auth:session"
}

// RunSnapshotKey returns the storage key for a test run's snapshot.
func (r *CacheKeyStruct) RunSnapshotKey(testSessionID string) string {
	return fmt.Sprintf("run:%s:snapshot", testSessionID)
}

// ActiveRunKey returns the storage key holding the id of the run in progress.
func (r *CacheKeyStruct) ActiveRunKey() string {
	return "run:active"
}

var CacheKey = NewCacheKeyStruct()
