// 引导文件变更监听。
//
// 基于轮询检测修改时间与大小变化，防抖后回调。
package envfile

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrWatcherRunning 重复启动
var ErrWatcherRunning = errors.New("watcher already running")

// WatchOp 文件变化类型
type WatchOp int

const (
	// WatchCreate 文件出现
	WatchCreate WatchOp = iota
	// WatchWrite 文件内容变化
	WatchWrite
	// WatchRemove 文件被删除
	WatchRemove
)

// String returns the string representation of WatchOp
func (op WatchOp) String() string {
	switch op {
	case WatchCreate:
		return "CREATE"
	case WatchWrite:
		return "WRITE"
	case WatchRemove:
		return "REMOVE"
	default:
		return "UNKNOWN"
	}
}

// WatchEvent 一次防抖后的变化
type WatchEvent struct {
	Path      string    `json:"path"`
	Op        WatchOp   `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

// WatcherOption configures the Watcher
type WatcherOption func(*Watcher)

// WithPollInterval 设置轮询间隔
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithDebounceDelay 设置防抖延迟
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithWatcherLogger 设置日志记录器
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// fileState 上一次观察到的文件状态
type fileState struct {
	exists  bool
	modTime time.Time
	size    int64
}

// Watcher 监听单个引导文件
type Watcher struct {
	mu        sync.RWMutex
	path      string
	interval  time.Duration
	debounce  time.Duration
	running   bool
	stop      chan struct{}
	done      chan struct{}
	callbacks []func(WatchEvent)
	logger    *zap.Logger
	last      fileState
}

// NewWatcher 创建监听器，文件不存在时等待其创建
func NewWatcher(path string, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		path:     path,
		interval: time.Second,
		debounce: 200 * time.Millisecond,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(zap.String("component", "envfile_watcher"), zap.String("path", path))
	return w
}

// OnChange 注册回调，回调在监听协程中串行执行
func (w *Watcher) OnChange(cb func(WatchEvent)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Path 返回被监听的文件
func (w *Watcher) Path() string { return w.path }

// IsRunning 是否在运行
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Start 开始监听，ctx 取消或 Stop 后退出
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrWatcherRunning
	}
	w.running = true
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	w.last = w.stat()
	stop, done := w.stop, w.done
	w.mu.Unlock()

	go w.loop(ctx, stop, done)

	w.logger.Info("envfile watcher started",
		zap.Duration("interval", w.interval),
		zap.Duration("debounce", w.debounce))
	return nil
}

// Stop 停止监听并等待协程退出
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stop)
	done := w.done
	w.mu.Unlock()

	<-done
	w.logger.Info("envfile watcher stopped")
}

func (w *Watcher) stat() fileState {
	info, err := os.Stat(w.path)
	if err != nil {
		return fileState{}
	}
	return fileState{exists: true, modTime: info.ModTime(), size: info.Size()}
}

func (w *Watcher) loop(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var (
		pending  *WatchEvent
		debounce <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			return
		case <-stop:
			return
		case <-ticker.C:
			if evt, ok := w.detect(); ok {
				pending = &evt
				debounce = time.After(w.debounce)
			}
		case <-debounce:
			debounce = nil
			if pending != nil {
				w.dispatch(*pending)
				pending = nil
			}
		}
	}
}

// detect 比较当前状态与上一次状态
func (w *Watcher) detect() (WatchEvent, bool) {
	cur := w.stat()
	prev := w.last
	w.last = cur

	evt := WatchEvent{Path: w.path, Timestamp: time.Now()}
	switch {
	case !prev.exists && cur.exists:
		evt.Op = WatchCreate
	case prev.exists && !cur.exists:
		evt.Op = WatchRemove
	case cur.exists && (!cur.modTime.Equal(prev.modTime) || cur.size != prev.size):
		evt.Op = WatchWrite
	default:
		return WatchEvent{}, false
	}
	return evt, true
}

func (w *Watcher) dispatch(evt WatchEvent) {
	w.mu.RLock()
	callbacks := make([]func(WatchEvent), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	w.logger.Debug("dispatching file event", zap.String("op", evt.Op.String()))
	for _, cb := range callbacks {
		cb(evt)
	}
}
