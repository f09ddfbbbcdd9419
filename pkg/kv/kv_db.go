package kv

import (
	"encoding/json"
	"errors"
	"lintang/deliverynav/pkg/server"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

const usageKey = "usage/monthly"

type KVDB struct {
	db *pebble.DB
}

func NewKVDB(db *pebble.DB) *KVDB {
	return &KVDB{db}
}

// Open opens a pebble database at dir. An empty dir keeps everything in memory.
func Open(dir string) (*KVDB, error) {
	opts := &pebble.Options{}
	if dir == "" {
		opts.FS = vfs.NewMem()
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrInternalServerError, "open pebble db %q", dir)
	}
	return NewKVDB(db), nil
}

type UsageRecord struct {
	Month string `json:"month"` // "2006-01"
	Count int64  `json:"count"`
}

// LoadUsage returns the persisted request counter, or a zero record when none was saved yet.
func (k *KVDB) LoadUsage() (UsageRecord, error) {
	var rec UsageRecord
	val, closer, err := k.db.Get([]byte(usageKey))
	if errors.Is(err, pebble.ErrNotFound) {
		return rec, nil
	}
	if err != nil {
		return rec, server.WrapErrorf(err, server.ErrInternalServerError, "read usage counter")
	}
	defer closer.Close()

	if err := json.Unmarshal(val, &rec); err != nil {
		return UsageRecord{}, server.WrapErrorf(err, server.ErrInternalServerError, "decode usage counter")
	}
	return rec, nil
}

func (k *KVDB) SaveUsage(rec UsageRecord) error {
	val, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := k.db.Set([]byte(usageKey), val, pebble.Sync); err != nil {
		return server.WrapErrorf(err, server.ErrInternalServerError, "write usage counter")
	}
	return nil
}

func (k *KVDB) Close() error {
	return k.db.Close()
}
