package config

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/execguard/execguard/internal/event"
	"github.com/execguard/execguard/internal/logging"
	"github.com/execguard/execguard/internal/permission"
)

// reloadDebounce coalesces the write bursts editors produce when saving.
const reloadDebounce = 100 * time.Millisecond

// RuleWatcher keeps a compiled evaluator in sync with the rule files on
// disk. Reloads are atomic: a file that fails to parse or compile leaves the
// previous evaluator in place.
type RuleWatcher struct {
	config  *Config
	watcher *fsnotify.Watcher

	mu        sync.RWMutex
	evaluator *permission.Evaluator

	done chan struct{}
	once sync.Once
}

// NewRuleWatcher compiles the configured rules and starts watching the rule
// files for changes.
func NewRuleWatcher(config *Config) (*RuleWatcher, error) {
	evaluator, err := config.Evaluator()
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, path := range config.RuleFiles {
		if err := watcher.Add(path); err != nil {
			watcher.Close()
			return nil, err
		}
	}

	w := &RuleWatcher{
		config:    config,
		watcher:   watcher,
		evaluator: evaluator,
		done:      make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Evaluator returns the current evaluator snapshot. The returned value is
// immutable; callers may hold it across requests.
func (w *RuleWatcher) Evaluator() *permission.Evaluator {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.evaluator
}

// Reload recompiles the rule set immediately. Used by the watcher loop and
// available to callers that change configuration out of band.
func (w *RuleWatcher) Reload() error {
	rules, err := w.config.AllRules()
	if err != nil {
		return err
	}
	evaluator, err := permission.NewEvaluator(rules...)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.evaluator = evaluator
	w.mu.Unlock()

	event.Publish(event.Event{
		Type: event.RulesReloaded,
		Data: event.RulesReloadedData{Rules: len(rules)},
	})
	return nil
}

func (w *RuleWatcher) loop() {
	var timer *time.Timer
	pending := make(chan struct{}, 1)

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			// Some editors replace the file; re-arm the watch.
			if ev.Has(fsnotify.Create) {
				w.watcher.Add(ev.Name)
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})

		case <-pending:
			if err := w.Reload(); err != nil {
				logging.Warn().Err(err).Msg("rule reload failed, keeping previous rules")
			} else {
				logging.Info().Int("rules", len(w.Evaluator().Rules())).Msg("rules reloaded")
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn().Err(err).Msg("rule watcher error")
		}
	}
}

// Close stops the watcher.
func (w *RuleWatcher) Close() error {
	w.once.Do(func() { close(w.done) })
	return w.watcher.Close()
}
