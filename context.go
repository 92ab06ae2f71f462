package matchbatch

import (
	"encoding/json"
	"sync"

	"github.com/karlseguin/typed"
)

// BatchContext is a concurrency safe key/value bag shared between the steps of a job execution.
type BatchContext struct {
	mu  sync.RWMutex
	kvs typed.Typed
}

func NewBatchContext() *BatchContext {
	return &BatchContext{kvs: typed.Typed{}}
}

func (ctx *BatchContext) Put(key string, value interface{}) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	ctx.kvs[key] = value
}

func (ctx *BatchContext) Exists(key string) bool {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	_, ok := ctx.kvs[key]
	return ok
}

func (ctx *BatchContext) Get(key string) interface{} {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.kvs[key]
}

func (ctx *BatchContext) Remove(key string) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	delete(ctx.kvs, key)
}

// GetInt returns the int stored at key, or def[0] when key is absent.
func (ctx *BatchContext) GetInt(key string, def ...int) (int, error) {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	if v, ok := ctx.kvs.IntIf(key); ok {
		return v, nil
	}
	if _, exists := ctx.kvs[key]; !exists && len(def) > 0 {
		return def[0], nil
	}
	return 0, NewBatchError(ErrCodeGeneral, "value of key:%v in BatchContext is not an int", key)
}

// GetString returns the string stored at key, or def[0] when key is absent.
func (ctx *BatchContext) GetString(key string, def ...string) (string, error) {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	if v, ok := ctx.kvs.StringIf(key); ok {
		return v, nil
	}
	if _, exists := ctx.kvs[key]; !exists && len(def) > 0 {
		return def[0], nil
	}
	return "", NewBatchError(ErrCodeGeneral, "value of key:%v in BatchContext is not a string", key)
}

// Keys lists the keys currently stored.
func (ctx *BatchContext) Keys() []string {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	keys := make([]string, 0, len(ctx.kvs))
	for k := range ctx.kvs {
		keys = append(keys, k)
	}
	return keys
}

// DeepCopy copies the key set; values are shared.
func (ctx *BatchContext) DeepCopy() *BatchContext {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	kvs := make(typed.Typed, len(ctx.kvs))
	for k, v := range ctx.kvs {
		kvs[k] = v
	}
	return &BatchContext{kvs: kvs}
}

// Summary keeps only scalar values, which is what gets persisted with an execution.
func (ctx *BatchContext) Summary() map[string]interface{} {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	out := map[string]interface{}{}
	for k, v := range ctx.kvs {
		switch v.(type) {
		case string, bool, int, int32, int64, float32, float64:
			out[k] = v
		}
	}
	return out
}

func (ctx *BatchContext) MarshalJSON() ([]byte, error) {
	return json.Marshal(ctx.Summary())
}

func (ctx *BatchContext) UnmarshalJSON(b []byte) error {
	kvs := typed.Typed{}
	if err := json.Unmarshal(b, &kvs); err != nil {
		return err
	}
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	ctx.kvs = kvs
	return nil
}
