package reconcile

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/envsync/internal/metrics"
	"github.com/BaSui01/envsync/internal/store"
)

// DefaultManagedKeys 默认托管的键
var DefaultManagedKeys = []string{"CORS_ORIGINS", "ACCESS_TOKEN_EXPIRE_MINUTES"}

// DefaultDescriptions 托管键的规范描述
var DefaultDescriptions = map[string]string{
	"CORS_ORIGINS":                "Comma separated list of origins allowed for CORS",
	"ACCESS_TOKEN_EXPIRE_MINUTES": "Access token expiration (minutes)",
}

// ManagedDefault 托管键的兜底值与规范描述（空字符串表示无描述）
type ManagedDefault struct {
	Key         string
	Value       string
	Description string
}

// BuildDefaults 按 keys 的顺序组装托管默认值。values 中没有兜底值的键被跳过；
// descriptions 覆盖 DefaultDescriptions 中的同名项。
func BuildDefaults(keys []string, values, descriptions map[string]string) []ManagedDefault {
	seen := make(map[string]struct{}, len(keys))
	defaults := make([]ManagedDefault, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		value, ok := values[key]
		if !ok {
			continue
		}
		desc, ok := descriptions[key]
		if !ok {
			desc = DefaultDescriptions[key]
		}
		defaults = append(defaults, ManagedDefault{Key: key, Value: value, Description: desc})
	}
	return defaults
}

// Outcome 单个托管键的处理结果
type Outcome string

const (
	OutcomeCreated            Outcome = "created"
	OutcomeDescriptionUpdated Outcome = "updated"
	OutcomeUnchanged          Outcome = "unchanged"
	OutcomeFailed             Outcome = "failed"
)

// KeyOutcome 单个键的结果，失败时 Err 非空
type KeyOutcome struct {
	Key     string
	Outcome Outcome
	Err     error
}

// Report 一次调和的完整结果
type Report struct {
	// Skipped 为 true 表示本进程已运行过且未强制
	Skipped   bool
	Outcomes  []KeyOutcome
	ResyncErr error
}

// Failed 返回失败的键
func (r Report) Failed() []KeyOutcome {
	var failed []KeyOutcome
	for _, o := range r.Outcomes {
		if o.Outcome == OutcomeFailed {
			failed = append(failed, o)
		}
	}
	return failed
}

// Syncer 调和器依赖的同步服务能力
type Syncer interface {
	Read(ctx context.Context, key string) (*store.EnvVariable, bool, error)
	Create(ctx context.Context, row store.EnvVariable) (*store.EnvVariable, error)
	Update(ctx context.Context, key string, patch store.EnvPatch) (*store.EnvVariable, bool, error)
	FullResync(ctx context.Context) error
}

// Reconciler 托管键调和器。每个进程生命周期默认只运行一次。
type Reconciler struct {
	syncer   Syncer
	defaults []ManagedDefault
	metrics  *metrics.Collector
	logger   *zap.Logger

	mu  sync.Mutex
	ran bool
}

// New 创建调和器
func New(syncer Syncer, defaults []ManagedDefault, collector *metrics.Collector, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		syncer:   syncer,
		defaults: defaults,
		metrics:  collector,
		logger:   logger.With(zap.String("component", "reconciler")),
	}
}

// Run 为每个托管键补齐记录：缺失时以兜底值与规范描述创建；已存在时从不覆盖值，
// 仅在规范描述非空且与存储不同时更新描述。单键失败被记录后继续处理其余键，
// 处理完毕后触发缓存全量重同步，无论是否有键失败都标记为已运行。
func (r *Reconciler) Run(ctx context.Context, force bool) Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ran && !force {
		return Report{Skipped: true}
	}

	report := Report{Outcomes: make([]KeyOutcome, 0, len(r.defaults))}
	for _, d := range r.defaults {
		outcome := r.reconcileKey(ctx, d)
		if outcome.Err != nil {
			r.logger.Warn("failed to reconcile managed key",
				zap.String("key", d.Key),
				zap.Error(outcome.Err),
			)
		}
		r.metrics.RecordReconcileOutcome(string(outcome.Outcome))
		report.Outcomes = append(report.Outcomes, outcome)
	}

	if err := r.syncer.FullResync(ctx); err != nil {
		report.ResyncErr = err
		r.logger.Warn("cache resync after reconciliation failed", zap.Error(err))
	}

	r.ran = true
	r.logger.Info("managed keys reconciled",
		zap.Int("keys", len(report.Outcomes)),
		zap.Int("failed", len(report.Failed())),
	)
	return report
}

func (r *Reconciler) reconcileKey(ctx context.Context, d ManagedDefault) KeyOutcome {
	existing, ok, err := r.syncer.Read(ctx, d.Key)
	if err != nil {
		return KeyOutcome{Key: d.Key, Outcome: OutcomeFailed, Err: err}
	}

	if !ok {
		row := store.EnvVariable{Key: d.Key, Value: d.Value}
		if d.Description != "" {
			desc := d.Description
			row.Description = &desc
		}
		if _, err := r.syncer.Create(ctx, row); err != nil {
			return KeyOutcome{Key: d.Key, Outcome: OutcomeFailed, Err: err}
		}
		return KeyOutcome{Key: d.Key, Outcome: OutcomeCreated}
	}

	if d.Description == "" || (existing.Description != nil && *existing.Description == d.Description) {
		return KeyOutcome{Key: d.Key, Outcome: OutcomeUnchanged}
	}

	desc := d.Description
	_, updated, err := r.syncer.Update(ctx, d.Key, store.EnvPatch{Description: &desc})
	if err != nil {
		return KeyOutcome{Key: d.Key, Outcome: OutcomeFailed, Err: err}
	}
	if !updated {
		// 读取之后被并发删除
		return KeyOutcome{Key: d.Key, Outcome: OutcomeFailed, Err: fmt.Errorf("update description of %q: %w", d.Key, store.ErrNotFound)}
	}
	return KeyOutcome{Key: d.Key, Outcome: OutcomeDescriptionUpdated}
}
